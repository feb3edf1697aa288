package confidence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"go.uber.org/zap"
)

// Reconcile moves DECLARED declarations that already have linked content to
// LINKED. This repairs a LinkContent whose status update failed after the
// content was chained.
func (e *Engine) Reconcile(ctx context.Context) (int, error) {
	return e.sweep(ctx, "reconcile", func(decl *chain.Entry, linked bool) (Status, bool) {
		return StatusLinked, linked
	})
}

// ExpireStale moves DECLARED declarations older than maxAge with no linked
// content to EXPIRED.
func (e *Engine) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := e.now().UTC().Add(-maxAge)
	return e.sweep(ctx, "expire", func(decl *chain.Entry, linked bool) (Status, bool) {
		if linked {
			return "", false
		}
		declaredAt, err := time.Parse(chain.TimestampLayout, decl.Timestamp)
		if err != nil {
			e.logger.Warn("declaration timestamp unparseable",
				zap.String("confidence_id", decl.ConfidenceID),
				zap.String("timestamp", decl.Timestamp),
			)
			return "", false
		}
		return StatusExpired, declaredAt.Before(cutoff)
	})
}

// sweep applies decide to every DECLARED declaration under the append lock.
func (e *Engine) sweep(ctx context.Context, name string, decide func(decl *chain.Entry, linked bool) (Status, bool)) (int, error) {
	changed := 0
	err := e.ledger.Exclusive(ctx, func(tx *chain.Tx) error {
		if tx.Width() != chain.WidthExtended {
			return nil
		}
		idx, err := buildIndex(tx.Scan)
		if err != nil {
			return err
		}
		for _, decl := range idx.order {
			status, err := e.statusOf(tx.Context(), decl)
			if err != nil {
				return err
			}
			if status != StatusDeclared {
				continue
			}
			next, ok := decide(decl, idx.linked[decl.ConfidenceID])
			if !ok {
				continue
			}
			if err := e.statuses.Set(tx.Context(), decl.ConfidenceID, next, e.now().UTC()); err != nil {
				return fmt.Errorf("set declaration %s %s: %w", decl.ConfidenceID, next, err)
			}
			changed++
			e.logger.Info("declaration status swept",
				zap.String("sweep", name),
				zap.String("confidence_id", decl.ConfidenceID),
				zap.String("status", string(next)),
			)
		}
		return nil
	})
	return changed, err
}
