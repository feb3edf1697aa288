package confidence

import (
	"context"
	"fmt"

	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"go.uber.org/zap"
)

// MigrationResult reports what Migrate did.
type MigrationResult struct {
	AlreadyExtended bool           `json:"already_extended"`
	BackfilledRows  int            `json:"backfilled_rows"`
	Receipt         *chain.Receipt `json:"receipt,omitempty"`
}

// Migrate widens a base-width ledger to the extended schema. Every existing
// row is marked LEGACY so audits keep verifying it at base width, then the
// header is replaced and a SCHEMA_MIGRATION entry is appended. Running it
// against an extended ledger does nothing.
//
// Rows are backfilled before the header changes, so an interrupted run
// leaves a base-width ledger that a second run completes.
func (e *Engine) Migrate(ctx context.Context) (*MigrationResult, error) {
	result := &MigrationResult{}
	err := e.ledger.Exclusive(ctx, func(tx *chain.Tx) error {
		if tx.Width() == chain.WidthExtended {
			result.AlreadyExtended = true
			return nil
		}
		if tx.Identity() == "" {
			return chain.ErrAttributionRequired
		}

		var rows []int
		if err := tx.Scan(func(en *chain.Entry) error {
			if !en.Legacy() {
				rows = append(rows, en.Row)
			}
			return nil
		}); err != nil {
			return fmt.Errorf("scan ledger: %w", err)
		}
		for _, row := range rows {
			if err := tx.WriteField(row, chain.ColConfidenceLevel, chain.LegacyMarker); err != nil {
				return fmt.Errorf("backfill row %d: %w", row, err)
			}
		}
		result.BackfilledRows = len(rows)

		if err := tx.WriteHeader(chain.WidthExtended); err != nil {
			return err
		}

		receipt, err := tx.Append(chain.Record{
			Actor:     chain.ActorSystem,
			EventType: EventMigration,
			Text: fmt.Sprintf("schema widened from %d to %d columns; %d rows marked %s",
				chain.WidthBase, chain.WidthExtended, len(rows), chain.LegacyMarker),
			Status: "FINAL",
		})
		if err != nil {
			return err
		}
		result.Receipt = receipt
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyExtended {
		e.logger.Info("confidence migration skipped: ledger already extended")
	} else {
		e.logger.Info("confidence migration applied", zap.Int("backfilled_rows", result.BackfilledRows))
	}
	return result, nil
}
