package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the privilege carried by an actor token.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// DefaultTokenTTL is used when the issuer is created with a zero TTL.
const DefaultTokenTTL = 8 * time.Hour

// ErrNoSigningKey is returned when an issuer is built without a key.
var ErrNoSigningKey = errors.New("identity: signing key not configured")

// ActorClaims are the JWT claims of an actor token. Subject is the identity
// recorded on every ledger entry the bearer writes.
type ActorClaims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// ActorTokenIssuer issues and verifies actor tokens signed with a shared
// HMAC key.
type ActorTokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

// NewActorTokenIssuer creates an ActorTokenIssuer.
//
//	issuer — the "iss" claim value, checked on Verify.
//	ttl    — token lifetime (default: DefaultTokenTTL).
func NewActorTokenIssuer(key []byte, issuer string, ttl time.Duration) (*ActorTokenIssuer, error) {
	if len(key) == 0 {
		return nil, ErrNoSigningKey
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &ActorTokenIssuer{key: key, issuer: issuer, ttl: ttl}, nil
}

// Issue creates a signed actor token for subject.
func (i *ActorTokenIssuer) Issue(subject string, role Role) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("issue actor token: empty subject")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return "", fmt.Errorf("issue actor token: %w", err)
	}
	now := time.Now().UTC()
	claims := ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign actor token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an actor token, returning its claims.
func (i *ActorTokenIssuer) Verify(tokenStr string) (*ActorClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&ActorClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return i.key, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify actor token: %w", err)
	}
	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid actor token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("actor token has no subject")
	}
	if _, err := ParseRole(string(claims.Role)); err != nil {
		return nil, fmt.Errorf("verify actor token: %w", err)
	}
	return claims, nil
}
