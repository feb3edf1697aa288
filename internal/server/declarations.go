package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/ConfidenceLedger/internal/confidence"
	"go.uber.org/zap"
)

type declareRequest struct {
	Level             string `json:"level"  binding:"required"`
	Justification     string `json:"justification"`
	Actor             string `json:"actor"  binding:"required"`
	NumericConfidence *int   `json:"numeric_confidence"`
}

type violationRequest struct {
	Reason string `json:"reason" binding:"required"`
	Actor  string `json:"actor"  binding:"required"`
}

// Declare handles POST /declarations — records a confidence declaration.
func (h *Handler) Declare(c *gin.Context) {
	var req declareRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "declare", err)
		return
	}
	actor, err := authorizeActor(c, req.Actor)
	if err != nil {
		h.fail(c, "declare", err)
		return
	}

	decl, err := h.engine.Declare(c.Request.Context(), confidence.DeclareRequest{
		Level:         confidence.Level(req.Level),
		Justification: req.Justification,
		Actor:         actor,
		Numeric:       req.NumericConfidence,
	})
	if err != nil {
		h.fail(c, "declare", err)
		return
	}
	RecordTransitions(string(confidence.StatusDeclared), 1)
	c.JSON(http.StatusCreated, decl)
}

// Link handles POST /declarations/:id/link — writes content under a
// declaration. A link whose status update failed is reported with 202.
func (h *Handler) Link(c *gin.Context) {
	var req entryRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "link content", err)
		return
	}
	actor, err := authorizeActor(c, req.Actor)
	if err != nil {
		h.fail(c, "link content", err)
		return
	}

	res, err := h.engine.LinkContent(c.Request.Context(), c.Param("id"), req.record(actor))
	switch {
	case errors.Is(err, confidence.ErrLinkPending):
		h.logger.Warn("link recorded, status pending", zap.String("confidence_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusAccepted, gin.H{
			"result":  res,
			"pending": true,
		})
		return
	case err != nil:
		h.fail(c, "link content", err)
		return
	}
	RecordTransitions(string(confidence.StatusLinked), 1)
	c.JSON(http.StatusCreated, gin.H{
		"result":  res,
		"pending": false,
	})
}

// FlagViolation handles POST /declarations/:id/violations.
func (h *Handler) FlagViolation(c *gin.Context) {
	var req violationRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "flag violation", err)
		return
	}
	actor, err := authorizeActor(c, req.Actor)
	if err != nil {
		h.fail(c, "flag violation", err)
		return
	}

	res, err := h.engine.FlagViolation(c.Request.Context(), c.Param("id"), req.Reason, actor)
	if err != nil {
		h.fail(c, "flag violation", err)
		return
	}
	RecordTransitions(string(confidence.StatusViolated), 1)
	c.JSON(http.StatusCreated, res)
}

// AuditDeclarations handles GET /declarations/audit.
func (h *Handler) AuditDeclarations(c *gin.Context) {
	audit, err := h.engine.AuditDeclarations(c.Request.Context())
	if err != nil {
		h.fail(c, "declaration audit", err)
		return
	}
	c.JSON(http.StatusOK, audit)
}
