package identity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/ConfidenceLedger/internal/identity"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw gin.HandlerFunc, seen *string) *gin.Engine {
	r := gin.New()
	r.GET("/x", mw, func(c *gin.Context) {
		*seen = identity.ContextIdentity{}.EffectiveIdentity(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"role": identity.ClaimsFromCtx(c).Role})
	})
	return r
}

func do(r *gin.Engine, token string) int {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireActorToken(t *testing.T) {
	ti := newTestIssuer(t)
	var seen string
	r := newRouter(identity.RequireActorToken(ti), &seen)

	if code := do(r, ""); code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", code)
	}
	if code := do(r, "garbage"); code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", code)
	}

	token, _ := ti.Issue("analyst@example.com", identity.RoleUser)
	if code := do(r, token); code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", code)
	}
	if seen != "analyst@example.com" {
		t.Errorf("request context identity: got %q", seen)
	}
}

func TestRequireAdmin(t *testing.T) {
	ti := newTestIssuer(t)
	var seen string
	r := newRouter(identity.RequireAdmin(ti), &seen)

	user, _ := ti.Issue("analyst@example.com", identity.RoleUser)
	if code := do(r, user); code != http.StatusForbidden {
		t.Errorf("user token: expected 403, got %d", code)
	}

	admin, _ := ti.Issue("ops@example.com", identity.RoleAdmin)
	if code := do(r, admin); code != http.StatusOK {
		t.Errorf("admin token: expected 200, got %d", code)
	}
	if seen != "ops@example.com" {
		t.Errorf("request context identity: got %q", seen)
	}
}

func TestContextIdentity(t *testing.T) {
	ctx := context.Background()
	if got := (identity.ContextIdentity{}).EffectiveIdentity(ctx); got != "" {
		t.Errorf("empty context: got %q", got)
	}
	if got := (identity.ContextIdentity{Fallback: "system"}).EffectiveIdentity(ctx); got != "system" {
		t.Errorf("fallback: got %q", got)
	}
	ctx = identity.WithSubject(ctx, "sweeper@ledgerd")
	if got := (identity.ContextIdentity{Fallback: "system"}).EffectiveIdentity(ctx); got != "sweeper@ledgerd" {
		t.Errorf("subject: got %q", got)
	}
}
