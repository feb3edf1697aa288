// Package server exposes the ledger and the confidence declaration engine
// over HTTP.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"github.com/jmerrifield20/ConfidenceLedger/internal/confidence"
	"github.com/jmerrifield20/ConfidenceLedger/internal/identity"
	"go.uber.org/zap"
)

// Handler serves the /api/v1 routes.
type Handler struct {
	ledger *chain.Ledger
	engine *confidence.Engine
	tokens *identity.ActorTokenIssuer
	logger *zap.Logger
}

// NewHandler creates a Handler. Writes made through it are attributed to the
// subject of the caller's actor token, so ledger should be built with an
// identity.ContextIdentity.
func NewHandler(ledger *chain.Ledger, engine *confidence.Engine, tokens *identity.ActorTokenIssuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: ledger, engine: engine, tokens: tokens, logger: logger}
}

// Register mounts every ledger route on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	actor := identity.RequireActorToken(h.tokens)

	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/audit", h.Audit)
		l.GET("/entries/:id/verify", h.VerifyEntry)
		l.POST("/entries", actor, h.AppendEntry)
	}

	d := rg.Group("/declarations")
	{
		d.GET("/audit", h.AuditDeclarations)
		d.POST("", actor, h.Declare)
		d.POST("/:id/link", actor, h.Link)
		d.POST("/:id/violations", actor, h.FlagViolation)
	}

	a := rg.Group("/admin", identity.RequireAdmin(h.tokens))
	{
		a.POST("/migrate", h.Migrate)
		a.POST("/audit", h.RecordAudit)
		a.POST("/reconcile", h.Reconcile)
	}
}
