package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"github.com/jmerrifield20/ConfidenceLedger/internal/confidence"
	"go.uber.org/zap"
)

var errBadRequest = errors.New("invalid request")

// statusFor maps ledger and engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chain.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, confidence.ErrDeclarationNotFound):
		return http.StatusNotFound
	case errors.Is(err, confidence.ErrDeclarationNotLinkable),
		errors.Is(err, confidence.ErrInvalidTransition),
		errors.Is(err, chain.ErrSchemaMismatch),
		errors.Is(err, chain.ErrSchemaNotUpgraded),
		errors.Is(err, chain.ErrPreflightFailed):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, confidence.ErrInvalidLevel),
		errors.Is(err, confidence.ErrJustificationRequired),
		errors.Is(err, confidence.ErrNumericOutOfRange),
		errors.Is(err, confidence.ErrReasonRequired),
		errors.Is(err, confidence.ErrReservedEventType):
		return http.StatusBadRequest
	case errors.Is(err, chain.ErrAttributionRequired):
		return http.StatusUnauthorized
	case errors.Is(err, chain.ErrUnauthorizedActor):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// fail writes the error response for err. Server-side failures are logged
// and their detail withheld from the client.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	switch {
	case status == http.StatusServiceUnavailable:
		RecordLockTimeout()
		c.Header("Retry-After", "1")
		h.logger.Warn(op+" timed out", zap.Error(err))
	case status >= http.StatusInternalServerError:
		h.logger.Error(op+" failed", zap.Error(err))
		c.JSON(status, gin.H{"error": op + " failed"})
		return
	case status == http.StatusConflict:
		h.logger.Warn(op+" rejected", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
