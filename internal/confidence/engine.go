package confidence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"go.uber.org/zap"
)

// Engine runs the declaration lifecycle against a ledger. Every operation
// that writes holds the ledger's append serializer for its whole duration.
type Engine struct {
	ledger   *chain.Ledger
	statuses StatusIndex
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an Engine.
func New(ledger *chain.Ledger, statuses StatusIndex, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{ledger: ledger, statuses: statuses, logger: logger, now: time.Now}
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// DeclareRequest is the input to Declare.
type DeclareRequest struct {
	Level         Level
	Justification string
	Actor         chain.Actor
	// Numeric is an optional 0–100 confidence score.
	Numeric *int
}

// Declaration is a recorded confidence commitment.
type Declaration struct {
	ConfidenceID      string `json:"confidence_id"`
	Level             Level  `json:"level"`
	Status            Status `json:"status"`
	NumericConfidence *int   `json:"numeric_confidence,omitempty"`
	// NumericMismatch is set when Numeric implies a different level.
	NumericMismatch bool           `json:"numeric_mismatch"`
	Receipt         *chain.Receipt `json:"receipt"`
}

type declarationBody struct {
	ConfidenceID      string      `json:"confidence_id"`
	Level             Level       `json:"level"`
	NumericConfidence *int        `json:"numeric_confidence,omitempty"`
	ImpliedLevel      Level       `json:"implied_level,omitempty"`
	Justification     string      `json:"justification"`
	Actor             chain.Actor `json:"actor"`
	Identity          string      `json:"identity"`
}

// Declare validates req and chains a DECLARED declaration into the ledger.
func (e *Engine) Declare(ctx context.Context, req DeclareRequest) (*Declaration, error) {
	level, err := ParseLevel(string(req.Level))
	if err != nil {
		return nil, err
	}
	if level == KnownKnown &&
		utf8.RuneCountInString(strings.TrimSpace(req.Justification)) < MinKnownKnownJustification {
		return nil, ErrJustificationRequired
	}

	var implied Level
	if req.Numeric != nil {
		if *req.Numeric < 0 || *req.Numeric > 100 {
			return nil, fmt.Errorf("%w: got %d", ErrNumericOutOfRange, *req.Numeric)
		}
		implied = ImpliedLevel(*req.Numeric)
	}

	decl := &Declaration{
		ConfidenceID:      uuid.New().String(),
		Level:             level,
		Status:            StatusDeclared,
		NumericConfidence: req.Numeric,
		NumericMismatch:   implied != "" && implied != level,
	}
	if decl.NumericMismatch {
		// The declared level stands; the score is advisory.
		e.logger.Warn("declared confidence disagrees with numeric score",
			zap.String("confidence_id", decl.ConfidenceID),
			zap.String("declared", string(level)),
			zap.String("implied", string(implied)),
			zap.Int("numeric", *req.Numeric),
		)
	}

	err = e.ledger.Exclusive(ctx, func(tx *chain.Tx) error {
		if err := requireExtended(tx); err != nil {
			return err
		}
		body, err := json.Marshal(declarationBody{
			ConfidenceID:      decl.ConfidenceID,
			Level:             level,
			NumericConfidence: req.Numeric,
			ImpliedLevel:      implied,
			Justification:     req.Justification,
			Actor:             req.Actor,
			Identity:          tx.Identity(),
		})
		if err != nil {
			return fmt.Errorf("marshal declaration: %w", err)
		}

		receipt, err := tx.Append(chain.Record{
			Actor:     req.Actor,
			EventType: EventDeclaration,
			Text:      string(body),
			Status:    string(StatusDeclared),
			Confidence: &chain.Confidence{
				Level:         string(level),
				ID:            decl.ConfidenceID,
				Justification: req.Justification,
			},
		})
		if err != nil {
			return err
		}
		decl.Receipt = receipt
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("confidence declared",
		zap.String("confidence_id", decl.ConfidenceID),
		zap.String("level", string(level)),
		zap.Int("row", decl.Receipt.Row),
	)
	return decl, nil
}

// LinkResult is returned by LinkContent.
type LinkResult struct {
	ConfidenceID    string         `json:"confidence_id"`
	ConfidenceLevel Level          `json:"confidence_level"`
	Receipt         *chain.Receipt `json:"receipt"`
}

// LinkContent writes rec as content governed by the declaration id, then
// marks the declaration LINKED. The content append always happens first;
// if the status update then fails the result is returned together with
// ErrLinkPending.
func (e *Engine) LinkContent(ctx context.Context, confidenceID string, rec chain.Record) (*LinkResult, error) {
	if IsReserved(rec.EventType) {
		return nil, fmt.Errorf("%w: %q", ErrReservedEventType, rec.EventType)
	}

	var result *LinkResult
	err := e.ledger.Exclusive(ctx, func(tx *chain.Tx) error {
		if err := requireExtended(tx); err != nil {
			return err
		}
		decl, linkedRow, err := e.findDeclaration(tx, confidenceID)
		if err != nil {
			return err
		}
		status, err := e.statusOf(tx.Context(), decl)
		if err != nil {
			return err
		}
		if status != StatusDeclared {
			return fmt.Errorf("%w: %s is %s", ErrDeclarationNotLinkable, confidenceID, status)
		}
		if linkedRow > 0 {
			// An earlier link chained its content but never flipped the status.
			if err := e.statuses.Set(tx.Context(), confidenceID, StatusLinked, e.now().UTC()); err != nil {
				e.logger.Error("declaration status not repaired",
					zap.String("confidence_id", confidenceID),
					zap.Int("content_row", linkedRow),
					zap.Error(err),
				)
			}
			return fmt.Errorf("%w: %s already linked at row %d", ErrDeclarationNotLinkable, confidenceID, linkedRow)
		}

		rec.Confidence = &chain.Confidence{
			Level:         decl.ConfidenceLevel,
			ID:            decl.ConfidenceID,
			Justification: decl.ConfidenceJustification,
		}
		receipt, err := tx.Append(rec)
		if err != nil {
			return err
		}
		result = &LinkResult{
			ConfidenceID:    confidenceID,
			ConfidenceLevel: Level(decl.ConfidenceLevel),
			Receipt:         receipt,
		}

		if err := e.statuses.Set(tx.Context(), confidenceID, StatusLinked, e.now().UTC()); err != nil {
			e.logger.Error("declaration status not updated after link",
				zap.String("confidence_id", confidenceID),
				zap.Int("content_row", receipt.Row),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %s: %v", ErrLinkPending, confidenceID, err)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	e.logger.Info("content linked to declaration",
		zap.String("confidence_id", confidenceID),
		zap.Int("row", result.Receipt.Row),
	)
	return result, nil
}

// ViolationResult is returned by FlagViolation.
type ViolationResult struct {
	ConfidenceID  string         `json:"confidence_id"`
	OriginalLevel Level          `json:"original_level"`
	PriorStatus   Status         `json:"prior_status"`
	Receipt       *chain.Receipt `json:"receipt"`
}

type violationBody struct {
	ConfidenceID      string      `json:"confidence_id"`
	OriginalLevel     Level       `json:"original_level"`
	OriginalTimestamp string      `json:"original_timestamp"`
	PriorStatus       Status      `json:"prior_status"`
	Reason            string      `json:"reason"`
	FlaggedAt         string      `json:"flagged_at"`
	FlaggedBy         chain.Actor `json:"flagged_by"`
	Identity          string      `json:"identity"`
}

// FlagViolation records that the declaration id did not hold up and marks it
// VIOLATED. DECLARED, LINKED and already VIOLATED declarations may be flagged.
func (e *Engine) FlagViolation(ctx context.Context, confidenceID, reason string, actor chain.Actor) (*ViolationResult, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	var result *ViolationResult
	err := e.ledger.Exclusive(ctx, func(tx *chain.Tx) error {
		if err := requireExtended(tx); err != nil {
			return err
		}
		decl, _, err := e.findDeclaration(tx, confidenceID)
		if err != nil {
			return err
		}
		prior, err := e.statusOf(tx.Context(), decl)
		if err != nil {
			return err
		}
		switch prior {
		case StatusDeclared, StatusLinked, StatusViolated:
		default:
			return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, confidenceID, prior)
		}

		flaggedAt := e.now().UTC()
		body, err := json.Marshal(violationBody{
			ConfidenceID:      confidenceID,
			OriginalLevel:     Level(decl.ConfidenceLevel),
			OriginalTimestamp: decl.Timestamp,
			PriorStatus:       prior,
			Reason:            reason,
			FlaggedAt:         flaggedAt.Format(chain.TimestampLayout),
			FlaggedBy:         actor,
			Identity:          tx.Identity(),
		})
		if err != nil {
			return fmt.Errorf("marshal violation: %w", err)
		}

		receipt, err := tx.Append(chain.Record{
			Actor:     actor,
			EventType: EventViolation,
			Text:      string(body),
			Status:    string(StatusViolated),
			Confidence: &chain.Confidence{
				Level:         decl.ConfidenceLevel,
				ID:            confidenceID,
				Justification: decl.ConfidenceJustification,
			},
		})
		if err != nil {
			return err
		}
		if err := e.statuses.Set(tx.Context(), confidenceID, StatusViolated, flaggedAt); err != nil {
			return fmt.Errorf("set declaration %s VIOLATED: %w", confidenceID, err)
		}
		result = &ViolationResult{
			ConfidenceID:  confidenceID,
			OriginalLevel: Level(decl.ConfidenceLevel),
			PriorStatus:   prior,
			Receipt:       receipt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Warn("confidence declaration violated",
		zap.String("confidence_id", confidenceID),
		zap.String("prior_status", string(result.PriorStatus)),
		zap.Int("row", result.Receipt.Row),
	)
	return result, nil
}

// Status returns the current status of declaration id.
func (e *Engine) Status(ctx context.Context, confidenceID string) (Status, error) {
	decl, err := e.ledger.Find(ctx, func(en *chain.Entry) bool {
		return en.EventType == EventDeclaration && en.ConfidenceID == confidenceID
	})
	if err != nil {
		return "", err
	}
	if decl == nil {
		return "", fmt.Errorf("%w: %s", ErrDeclarationNotFound, confidenceID)
	}
	return e.statusOf(ctx, decl)
}

// findDeclaration returns the declaration row for confidenceID and the row
// of the first content entry linked to it, or 0 when none is.
func (e *Engine) findDeclaration(tx *chain.Tx, confidenceID string) (*chain.Entry, int, error) {
	var found *chain.Entry
	linkedRow := 0
	err := tx.Scan(func(en *chain.Entry) error {
		if en.ConfidenceID != confidenceID || en.Legacy() {
			return nil
		}
		switch en.EventType {
		case EventDeclaration:
			if found == nil {
				found = en
			}
		case EventViolation:
		default:
			if linkedRow == 0 {
				linkedRow = en.Row
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan ledger: %w", err)
	}
	if found == nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrDeclarationNotFound, confidenceID)
	}
	return found, linkedRow, nil
}

// statusOf resolves the current status of a declaration row.
func (e *Engine) statusOf(ctx context.Context, decl *chain.Entry) (Status, error) {
	if decl.Legacy() {
		return StatusLegacy, nil
	}
	s, ok, err := e.statuses.Get(ctx, decl.ConfidenceID)
	if err != nil {
		return "", fmt.Errorf("read declaration status: %w", err)
	}
	if ok {
		return s, nil
	}
	return Status(decl.Status), nil
}

func requireExtended(tx *chain.Tx) error {
	if tx.Width() != chain.WidthExtended {
		return fmt.Errorf("%w: run the confidence migration first", chain.ErrSchemaNotUpgraded)
	}
	return nil
}

// IsReserved reports whether eventType is written only by the ledger itself.
func IsReserved(eventType string) bool {
	switch eventType {
	case EventDeclaration, EventViolation, EventMigration, chain.EventChainAudit:
		return true
	}
	return false
}
