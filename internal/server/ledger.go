package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"github.com/jmerrifield20/ConfidenceLedger/internal/confidence"
	"github.com/jmerrifield20/ConfidenceLedger/internal/identity"
	"go.uber.org/zap"
)

// entryRequest is the body of POST /ledger/entries and
// POST /declarations/:id/link.
type entryRequest struct {
	Actor      string          `json:"actor"      binding:"required"`
	EventType  string          `json:"event_type" binding:"required"`
	Text       string          `json:"text"`
	Annotation string          `json:"annotation"`
	Status     string          `json:"status"`
	Citations  chain.Citations `json:"citations"`
}

func (r entryRequest) record(actor chain.Actor) chain.Record {
	return chain.Record{
		Actor:      actor,
		EventType:  r.EventType,
		Text:       r.Text,
		Annotation: r.Annotation,
		Status:     r.Status,
		Citations:  r.Citations,
	}
}

// authorizeActor resolves the actor named in a request body. Admin and
// System entries may only be written with an admin-role token.
func authorizeActor(c *gin.Context, name string) (chain.Actor, error) {
	actor, err := chain.ParseActor(name)
	if err != nil {
		return "", err
	}
	if actor == chain.ActorUser {
		return actor, nil
	}
	if claims := identity.ClaimsFromCtx(c); claims == nil || claims.Role != identity.RoleAdmin {
		return "", fmt.Errorf("%w: %s entries require an admin token", chain.ErrUnauthorizedActor, actor)
	}
	return actor, nil
}

func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// Overview handles GET /ledger — returns the chain length, tip hash and width.
func (h *Handler) Overview(c *gin.Context) {
	ov, err := h.ledger.Overview(c.Request.Context())
	if err != nil {
		h.fail(c, "ledger overview", err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

// Audit handles GET /ledger/audit — walks the full chain and reports every
// broken link and digest mismatch. Integrity failures are reported with 200.
func (h *Handler) Audit(c *gin.Context) {
	report, err := h.ledger.AuditChain(c.Request.Context())
	if err != nil {
		h.fail(c, "ledger audit", err)
		return
	}
	RecordAudit(report)
	if !report.Passed() {
		h.logger.Warn("ledger integrity check failed",
			zap.Ints("broken_rows", report.BrokenRows),
			zap.Ints("mismatched_rows", report.MismatchedRows),
		)
	}
	c.JSON(http.StatusOK, gin.H{
		"passed": report.Passed(),
		"report": report,
	})
}

// VerifyEntry handles GET /ledger/entries/:id/verify — recomputes one
// entry's digest.
func (h *Handler) VerifyEntry(c *gin.Context) {
	check, err := h.ledger.VerifyOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "verify entry", err)
		return
	}
	if !check.Found {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.JSON(http.StatusOK, check)
}

// AppendEntry handles POST /ledger/entries — chains a new entry.
func (h *Handler) AppendEntry(c *gin.Context) {
	var req entryRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "append entry", err)
		return
	}
	if confidence.IsReserved(req.EventType) {
		h.fail(c, "append entry", fmt.Errorf("%w: %q", confidence.ErrReservedEventType, req.EventType))
		return
	}
	actor, err := authorizeActor(c, req.Actor)
	if err != nil {
		h.fail(c, "append entry", err)
		return
	}

	receipt, err := h.ledger.AppendWithCitations(c.Request.Context(), req.record(actor), req.Citations)
	if err != nil {
		h.fail(c, "append entry", err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}
