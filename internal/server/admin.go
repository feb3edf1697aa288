package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/ConfidenceLedger/internal/confidence"
)

// Migrate handles POST /admin/migrate — widens the ledger to the extended
// schema. Repeated calls report already_extended.
func (h *Handler) Migrate(c *gin.Context) {
	res, err := h.engine.Migrate(c.Request.Context())
	if err != nil {
		h.fail(c, "schema migration", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RecordAudit handles POST /admin/audit — audits the chain and appends the
// outcome as a CHAIN_AUDIT entry.
func (h *Handler) RecordAudit(c *gin.Context) {
	ctx := c.Request.Context()
	report, err := h.ledger.AuditChain(ctx)
	if err != nil {
		h.fail(c, "ledger audit", err)
		return
	}
	RecordAudit(report)

	receipt, err := h.ledger.RecordAudit(ctx, report)
	if err != nil {
		h.fail(c, "record audit", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"passed":  report.Passed(),
		"report":  report,
		"receipt": receipt,
	})
}

// Reconcile handles POST /admin/reconcile — repairs declarations whose
// content was linked but whose status was never updated.
func (h *Handler) Reconcile(c *gin.Context) {
	n, err := h.engine.Reconcile(c.Request.Context())
	if err != nil {
		h.fail(c, "reconcile", err)
		return
	}
	RecordTransitions(string(confidence.StatusLinked), n)
	c.JSON(http.StatusOK, gin.H{"reconciled": n})
}
