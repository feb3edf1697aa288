package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// SecretProvider supplies the deployment's ledger secret.
type SecretProvider interface {
	Secret(ctx context.Context) ([]byte, error)
}

// StaticSecret is a SecretProvider holding a fixed secret.
type StaticSecret []byte

// Secret implements SecretProvider.
func (s StaticSecret) Secret(context.Context) ([]byte, error) {
	if len(s) == 0 {
		return nil, ErrConfiguration
	}
	return s, nil
}

// SecretFunc adapts a function to SecretProvider.
type SecretFunc func(ctx context.Context) ([]byte, error)

// Secret implements SecretProvider.
func (f SecretFunc) Secret(ctx context.Context) ([]byte, error) { return f(ctx) }

// Digest returns the hex SHA-256 of secret followed by the NFKD form of text.
func Digest(secret []byte, text string) (string, error) {
	if len(secret) == 0 {
		return "", ErrConfiguration
	}
	h := sha256.New()
	h.Write(secret)
	h.Write([]byte(norm.NFKD.String(text)))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// loadSecret resolves the secret from p, normalising absence to ErrConfiguration.
func loadSecret(ctx context.Context, p SecretProvider) ([]byte, error) {
	if p == nil {
		return nil, ErrConfiguration
	}
	secret, err := p.Secret(ctx)
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, ErrConfiguration
	}
	return secret, nil
}
