package identity

import (
	"context"
)

type ctxKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *ActorClaims) context.Context {
	return context.WithValue(ctx, ctxKey{}, claims)
}

// WithSubject returns a copy of ctx carrying a bare subject with the user
// role. Background jobs use it to attribute their writes.
func WithSubject(ctx context.Context, subject string) context.Context {
	claims := &ActorClaims{Role: RoleUser}
	claims.Subject = subject
	return WithClaims(ctx, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims, or nil.
func ClaimsFromContext(ctx context.Context) *ActorClaims {
	claims, _ := ctx.Value(ctxKey{}).(*ActorClaims)
	return claims
}

// ContextIdentity resolves the effective identity from the request context.
// Fallback is used when the context carries no claims; leave it empty to
// make unauthenticated writes fail attribution.
type ContextIdentity struct {
	Fallback string
}

// EffectiveIdentity returns the subject of the claims in ctx.
func (ci ContextIdentity) EffectiveIdentity(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil && claims.Subject != "" {
		return claims.Subject
	}
	return ci.Fallback
}
