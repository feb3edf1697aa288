// Package sweep runs the ledger's periodic maintenance: a full-chain audit,
// repair of half-finished links and expiry of stale declarations.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"github.com/jmerrifield20/ConfidenceLedger/internal/confidence"
	"github.com/jmerrifield20/ConfidenceLedger/internal/identity"
	"go.uber.org/zap"
)

// DefaultSubject attributes the sweeper's own ledger writes.
const DefaultSubject = "system:sweeper"

// Config holds sweeper configuration.
type Config struct {
	Interval time.Duration
	// DeclarationTTL is how long a declaration may stay unlinked before it
	// expires. Zero disables expiry.
	DeclarationTTL time.Duration
	// RecordOutcome appends a CHAIN_AUDIT entry after every audit.
	RecordOutcome bool
	Subject       string
}

// Auditor audits the chain and records the outcome.
type Auditor interface {
	AuditChain(ctx context.Context) (*chain.AuditReport, error)
	RecordAudit(ctx context.Context, r *chain.AuditReport) (*chain.Receipt, error)
}

// Lifecycle moves declarations between statuses.
type Lifecycle interface {
	Reconcile(ctx context.Context) (int, error)
	ExpireStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// AuditRecordFunc is an optional callback for recording audit results.
type AuditRecordFunc func(r *chain.AuditReport)

// TransitionRecordFunc is an optional callback for recording status changes.
type TransitionRecordFunc func(status string, n int)

// Result is the outcome of one sweep.
type Result struct {
	Audit      *chain.AuditReport
	Receipt    *chain.Receipt
	Reconciled int
	Expired    int
}

// Sweeper runs periodic ledger maintenance.
type Sweeper struct {
	auditor       Auditor
	lifecycle     Lifecycle
	cfg           Config
	onAudit       AuditRecordFunc
	onTransitions TransitionRecordFunc
	logger        *zap.Logger
}

// New creates a new Sweeper.
func New(auditor Auditor, lifecycle Lifecycle, cfg Config, logger *zap.Logger) *Sweeper {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{auditor: auditor, lifecycle: lifecycle, cfg: cfg, logger: logger}
}

// SetAuditMetrics configures the audit metrics callback.
func (s *Sweeper) SetAuditMetrics(fn AuditRecordFunc) {
	s.onAudit = fn
}

// SetTransitionMetrics configures the status-change metrics callback.
func (s *Sweeper) SetTransitionMetrics(fn TransitionRecordFunc) {
	s.onTransitions = fn
}

// Start runs the sweep loop until done is closed.
func (s *Sweeper) Start(done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("sweep: incomplete", zap.Error(err))
			}
			cancel()
		case <-done:
			return
		}
	}
}

// RunOnce performs a single sweep. Every step runs even if an earlier one
// failed; the returned error joins all step failures.
func (s *Sweeper) RunOnce(ctx context.Context) (*Result, error) {
	ctx = identity.WithSubject(ctx, s.cfg.Subject)
	res := &Result{}
	var errs []error

	report, err := s.auditor.AuditChain(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("audit: %w", err))
	} else {
		res.Audit = report
		if s.onAudit != nil {
			s.onAudit(report)
		}
		if report.Passed() {
			s.logger.Info("sweep: chain verified", zap.Int("rows", report.Rows))
		} else {
			s.logger.Warn("sweep: chain integrity failure",
				zap.Int("rows", report.Rows),
				zap.Ints("broken_rows", report.BrokenRows),
				zap.Ints("mismatched_rows", report.MismatchedRows),
			)
		}
		switch {
		case !s.cfg.RecordOutcome:
		case report.Width != chain.WidthExtended:
			// Nothing may be appended until the confidence migration has run.
			s.logger.Debug("sweep: audit not recorded on base-width ledger")
		default:
			receipt, err := s.auditor.RecordAudit(ctx, report)
			if err != nil {
				errs = append(errs, fmt.Errorf("record audit: %w", err))
			}
			res.Receipt = receipt
		}
	}

	if s.lifecycle != nil {
		n, err := s.lifecycle.Reconcile(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile: %w", err))
		}
		res.Reconciled = n
		s.transitions(confidence.StatusLinked, n)

		if s.cfg.DeclarationTTL > 0 {
			n, err := s.lifecycle.ExpireStale(ctx, s.cfg.DeclarationTTL)
			if err != nil {
				errs = append(errs, fmt.Errorf("expire: %w", err))
			}
			res.Expired = n
			s.transitions(confidence.StatusExpired, n)
		}
	}

	return res, errors.Join(errs...)
}

func (s *Sweeper) transitions(status confidence.Status, n int) {
	if n == 0 {
		return
	}
	s.logger.Info("sweep: declarations updated", zap.String("status", string(status)), zap.Int("count", n))
	if s.onTransitions != nil {
		s.onTransitions(string(status), n)
	}
}
