package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"github.com/jmerrifield20/ConfidenceLedger/internal/chain/chaintest"
	"github.com/jmerrifield20/ConfidenceLedger/internal/confidence"
	"github.com/jmerrifield20/ConfidenceLedger/internal/identity"
	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubLifecycle struct {
	reconciled, expired int
	err                 error
	maxAge              time.Duration
}

func (s *stubLifecycle) Reconcile(context.Context) (int, error) { return s.reconciled, s.err }

func (s *stubLifecycle) ExpireStale(_ context.Context, maxAge time.Duration) (int, error) {
	s.maxAge = maxAge
	return s.expired, nil
}

type failingAuditor struct{}

func (failingAuditor) AuditChain(context.Context) (*chain.AuditReport, error) {
	return nil, chain.ErrConfiguration
}

func (failingAuditor) RecordAudit(context.Context, *chain.AuditReport) (*chain.Receipt, error) {
	return nil, errors.New("unreachable")
}

func newLedger(t *testing.T) (*chain.Ledger, *chain.MemoryStore) {
	t.Helper()
	store := chain.NewMemoryStore(chain.WidthExtended)
	l := chain.New(store, chain.StaticSecret("sweep-secret"), identity.ContextIdentity{},
		chain.NewLocalSerializer(time.Second), zap.NewNop())
	return l, store
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestRunOnce_recordsAuditAsSweeper(t *testing.T) {
	l, store := newLedger(t)
	s := New(l, nil, Config{RecordOutcome: true}, zap.NewNop())

	var audited *chain.AuditReport
	s.SetAuditMetrics(func(r *chain.AuditReport) { audited = r })

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if audited == nil || !audited.Passed() {
		t.Errorf("audit metrics callback: got %+v", audited)
	}
	if res.Receipt == nil || res.Receipt.Identity != DefaultSubject {
		t.Fatalf("expected audit entry attributed to %s, got %+v", DefaultSubject, res.Receipt)
	}
	last, _ := store.ReadLastRecord(context.Background())
	if last.EventType != chain.EventChainAudit {
		t.Errorf("event type: got %q", last.EventType)
	}
}

func TestRunOnce_skipsRecordBeforeMigration(t *testing.T) {
	store := chain.NewMemoryStore(chain.WidthBase)
	chaintest.SeedBase(t, store, []byte("sweep-secret"), 2)
	l := chain.New(store, chain.StaticSecret("sweep-secret"), identity.ContextIdentity{},
		chain.NewLocalSerializer(time.Second), zap.NewNop())

	res, err := New(l, nil, Config{RecordOutcome: true}, zap.NewNop()).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Audit.Passed() || res.Receipt != nil {
		t.Errorf("expected a passing, unrecorded audit, got %+v", res)
	}
	if n, _ := store.Len(context.Background()); n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}
}

func TestRunOnce_noRecordByDefault(t *testing.T) {
	l, store := newLedger(t)
	if _, err := New(l, nil, Config{}, zap.NewNop()).RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Len(context.Background()); n != 0 {
		t.Errorf("expected no entries, got %d", n)
	}
}

func TestRunOnce_expiryOnlyWithTTL(t *testing.T) {
	l, _ := newLedger(t)
	lc := &stubLifecycle{reconciled: 2, expired: 3}

	var counts = map[string]int{}
	s := New(l, lc, Config{}, zap.NewNop())
	s.SetTransitionMetrics(func(status string, n int) { counts[status] += n })

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Reconciled != 2 || res.Expired != 0 || lc.maxAge != 0 {
		t.Errorf("without TTL: %+v, maxAge %s", res, lc.maxAge)
	}

	s = New(l, lc, Config{DeclarationTTL: 72 * time.Hour}, zap.NewNop())
	s.SetTransitionMetrics(func(status string, n int) { counts[status] += n })
	res, _ = s.RunOnce(context.Background())
	if res.Expired != 3 || lc.maxAge != 72*time.Hour {
		t.Errorf("with TTL: %+v, maxAge %s", res, lc.maxAge)
	}
	if counts[string(confidence.StatusLinked)] != 4 || counts[string(confidence.StatusExpired)] != 3 {
		t.Errorf("transition metrics: %v", counts)
	}
}

func TestRunOnce_continuesAfterFailure(t *testing.T) {
	lc := &stubLifecycle{reconciled: 1}
	res, err := New(failingAuditor{}, lc, Config{}, zap.NewNop()).RunOnce(context.Background())
	if !errors.Is(err, chain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if res.Reconciled != 1 {
		t.Errorf("reconcile should still run, got %+v", res)
	}
}

func TestRunOnce_withEngine(t *testing.T) {
	l, _ := newLedger(t)
	engine := confidence.New(l, confidence.NewMemoryStatusIndex(), zap.NewNop())

	ctx := identity.WithSubject(context.Background(), "analyst@example.com")
	old := time.Now().Add(-48 * time.Hour)
	l.SetClock(func() time.Time { return old })
	decl, err := engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.UnknownUnknown, Actor: chain.ActorUser})
	if err != nil {
		t.Fatal(err)
	}
	l.SetClock(time.Now)

	res, err := New(l, engine, Config{DeclarationTTL: 24 * time.Hour}, zap.NewNop()).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Expired != 1 {
		t.Errorf("expired: got %d, want 1", res.Expired)
	}
	if s, _ := engine.Status(context.Background(), decl.ConfidenceID); s != confidence.StatusExpired {
		t.Errorf("status: got %s", s)
	}
}

func TestStart_stopsOnDone(t *testing.T) {
	l, _ := newLedger(t)
	s := New(l, nil, Config{Interval: time.Millisecond}, zap.NewNop())
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		s.Start(done)
		close(finished)
	}()
	time.Sleep(5 * time.Millisecond)
	close(done)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after done was closed")
	}
}
