package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxActorClaims = "ledger_actor_claims"

// RequireActorToken returns a Gin middleware that enforces a valid Bearer
// actor token.
//
// On success the claims are stored on the Gin context and on the request
// context, so ContextIdentity sees the caller.
func RequireActorToken(tokens *ActorTokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, tokens, "Bearer actor token required")
		if !ok {
			return
		}
		attach(c, claims)
		c.Next()
	}
}

// RequireAdmin returns a Gin middleware that enforces a Bearer token with the
// admin role.
func RequireAdmin(tokens *ActorTokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, tokens, "admin Bearer token required")
		if !ok {
			return
		}
		if claims.Role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin role required",
			})
			return
		}
		attach(c, claims)
		c.Next()
	}
}

// ClaimsFromCtx retrieves the claims injected by RequireActorToken or
// RequireAdmin. Returns nil if none are present.
func ClaimsFromCtx(c *gin.Context) *ActorClaims {
	v, _ := c.Get(ctxActorClaims)
	claims, _ := v.(*ActorClaims)
	return claims
}

func bearerClaims(c *gin.Context, tokens *ActorTokenIssuer, missing string) (*ActorClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": missing})
		return nil, false
	}
	claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid token: " + err.Error(),
		})
		return nil, false
	}
	return claims, true
}

func attach(c *gin.Context, claims *ActorClaims) {
	c.Set(ctxActorClaims, claims)
	c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
}
