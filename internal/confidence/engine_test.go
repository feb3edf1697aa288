package confidence_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"github.com/jmerrifield20/ConfidenceLedger/internal/confidence"
	"go.uber.org/zap"
)

var ctx = context.Background()

var secret = chain.StaticSecret("confidence-test-secret")

type fixture struct {
	ledger   *chain.Ledger
	store    *chain.MemoryStore
	statuses *confidence.MemoryStatusIndex
	engine   *confidence.Engine
}

func newFixture(t *testing.T, w chain.Width) *fixture {
	t.Helper()
	store := chain.NewMemoryStore(w)
	l := chain.New(store, secret, chain.StaticIdentity("analyst@example.com"),
		chain.NewLocalSerializer(time.Second), zap.NewNop())
	statuses := confidence.NewMemoryStatusIndex()
	return &fixture{
		ledger:   l,
		store:    store,
		statuses: statuses,
		engine:   confidence.New(l, statuses, zap.NewNop()),
	}
}

func intp(n int) *int { return &n }

func content(text string) chain.Record {
	return chain.Record{Actor: chain.ActorUser, EventType: "REPORT", Text: text, Status: "FINAL"}
}

func TestDeclare_levelValidation(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	_, err := f.engine.Declare(ctx, confidence.DeclareRequest{Level: "PRETTY_SURE", Actor: chain.ActorUser})
	if !errors.Is(err, confidence.ErrInvalidLevel) {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}
}

func TestDeclare_knownKnownJustificationFloor(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)

	_, err := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownKnown, Actor: chain.ActorUser})
	if !errors.Is(err, confidence.ErrJustificationRequired) {
		t.Fatalf("empty justification: expected ErrJustificationRequired, got %v", err)
	}

	_, err = f.engine.Declare(ctx, confidence.DeclareRequest{
		Level: confidence.KnownKnown, Justification: "012345678", Actor: chain.ActorUser,
	})
	if !errors.Is(err, confidence.ErrJustificationRequired) {
		t.Fatalf("9 characters: expected ErrJustificationRequired, got %v", err)
	}

	decl, err := f.engine.Declare(ctx, confidence.DeclareRequest{
		Level: confidence.KnownKnown, Justification: "0123456789", Actor: chain.ActorUser,
	})
	if err != nil {
		t.Fatalf("10 characters should be accepted: %v", err)
	}
	if decl.Status != confidence.StatusDeclared || decl.ConfidenceID == "" {
		t.Errorf("unexpected declaration %+v", decl)
	}
}

func TestDeclare_lowerLevelsNeedNoJustification(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	if _, err := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.UnknownUnknown, Actor: chain.ActorUser}); err != nil {
		t.Fatal(err)
	}
}

func TestDeclare_numericMismatchIsWarningOnly(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)

	decl, err := f.engine.Declare(ctx, confidence.DeclareRequest{
		Level: confidence.UnknownUnknown, Actor: chain.ActorUser, Numeric: intp(95),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !decl.NumericMismatch {
		t.Error("expected NumericMismatch for 95 declared as UNKNOWN_UNKNOWN")
	}
	if decl.Level != confidence.UnknownUnknown {
		t.Errorf("declared level must be authoritative, got %s", decl.Level)
	}

	decl, _ = f.engine.Declare(ctx, confidence.DeclareRequest{
		Level: confidence.KnownUnknown, Actor: chain.ActorUser, Numeric: intp(50),
	})
	if decl.NumericMismatch {
		t.Error("50 implies KNOWN_UNKNOWN; no mismatch expected")
	}
}

func TestDeclare_numericOutOfRange(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	for _, n := range []int{-1, 101} {
		_, err := f.engine.Declare(ctx, confidence.DeclareRequest{
			Level: confidence.KnownUnknown, Actor: chain.ActorUser, Numeric: intp(n),
		})
		if !errors.Is(err, confidence.ErrNumericOutOfRange) {
			t.Errorf("numeric %d: expected ErrNumericOutOfRange, got %v", n, err)
		}
	}
}

func TestImpliedLevel_thresholds(t *testing.T) {
	cases := map[int]confidence.Level{
		100: confidence.KnownKnown,
		80:  confidence.KnownKnown,
		79:  confidence.KnownUnknown,
		50:  confidence.KnownUnknown,
		49:  confidence.UnknownUnknown,
		0:   confidence.UnknownUnknown,
	}
	for n, want := range cases {
		if got := confidence.ImpliedLevel(n); got != want {
			t.Errorf("ImpliedLevel(%d) = %s, want %s", n, got, want)
		}
	}
}

func TestDeclare_writesDeclarationEntry(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	decl, err := f.engine.Declare(ctx, confidence.DeclareRequest{
		Level: confidence.KnownUnknown, Justification: "two sources disagree", Actor: chain.ActorAdmin,
	})
	if err != nil {
		t.Fatal(err)
	}

	last, _ := f.store.ReadLastRecord(ctx)
	if last.EventType != confidence.EventDeclaration {
		t.Errorf("event type: got %q", last.EventType)
	}
	if last.Status != string(confidence.StatusDeclared) {
		t.Errorf("status: got %q", last.Status)
	}
	if last.ConfidenceID != decl.ConfidenceID || last.ConfidenceLevel != "KNOWN_UNKNOWN" {
		t.Errorf("confidence columns: %+v", last)
	}
	if last.ConfidenceJustification != "two sources disagree" {
		t.Errorf("justification: got %q", last.ConfidenceJustification)
	}
}

func TestDeclare_requiresExtendedSchema(t *testing.T) {
	f := newFixture(t, chain.WidthBase)
	_, err := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.UnknownUnknown, Actor: chain.ActorUser})
	if !errors.Is(err, chain.ErrSchemaNotUpgraded) {
		t.Fatalf("expected ErrSchemaNotUpgraded, got %v", err)
	}
	if n, _ := f.store.Len(ctx); n != 0 {
		t.Errorf("no row should be written, got %d", n)
	}
}

func TestLinkContent_copiesDeclarationAndLinksOnce(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	decl, err := f.engine.Declare(ctx, confidence.DeclareRequest{
		Level: confidence.KnownKnown, Justification: "verified against primary record", Actor: chain.ActorUser,
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := f.engine.LinkContent(ctx, decl.ConfidenceID, content("the finding"))
	if err != nil {
		t.Fatal(err)
	}
	if res.ConfidenceLevel != confidence.KnownKnown {
		t.Errorf("linked level: got %s", res.ConfidenceLevel)
	}
	if res.Receipt.PrevHash != decl.Receipt.RecordHash {
		t.Error("content entry must chain directly after the declaration")
	}

	last, _ := f.store.ReadLastRecord(ctx)
	if last.ConfidenceID != decl.ConfidenceID ||
		last.ConfidenceLevel != string(confidence.KnownKnown) ||
		last.ConfidenceJustification != "verified against primary record" {
		t.Errorf("content entry does not embed the declaration: %+v", last)
	}

	status, _ := f.engine.Status(ctx, decl.ConfidenceID)
	if status != confidence.StatusLinked {
		t.Errorf("status after link: got %s", status)
	}

	_, err = f.engine.LinkContent(ctx, decl.ConfidenceID, content("second attempt"))
	if !errors.Is(err, confidence.ErrDeclarationNotLinkable) {
		t.Fatalf("second link: expected ErrDeclarationNotLinkable, got %v", err)
	}
}

func TestLinkContent_declarationRowStaysIntact(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	decl, _ := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownUnknown, Actor: chain.ActorUser})
	if _, err := f.engine.LinkContent(ctx, decl.ConfidenceID, content("x")); err != nil {
		t.Fatal(err)
	}

	report, err := f.ledger.AuditChain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Passed() {
		t.Errorf("status change must not disturb the chain: %+v", report.Violations)
	}
}

func TestLinkContent_unknownDeclaration(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	_, err := f.engine.LinkContent(ctx, "no-such-id", content("x"))
	if !errors.Is(err, confidence.ErrDeclarationNotFound) {
		t.Fatalf("expected ErrDeclarationNotFound, got %v", err)
	}
	if n, _ := f.store.Len(ctx); n != 0 {
		t.Errorf("no row should be written, got %d", n)
	}
}

func TestLinkContent_reservedEventType(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	decl, _ := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownUnknown, Actor: chain.ActorUser})
	rec := content("x")
	rec.EventType = confidence.EventDeclaration
	if _, err := f.engine.LinkContent(ctx, decl.ConfidenceID, rec); !errors.Is(err, confidence.ErrReservedEventType) {
		t.Fatalf("expected ErrReservedEventType, got %v", err)
	}
}

func TestLinkContent_violatedIsNotLinkable(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	decl, _ := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownUnknown, Actor: chain.ActorUser})
	if _, err := f.engine.FlagViolation(ctx, decl.ConfidenceID, "overstated", chain.ActorAdmin); err != nil {
		t.Fatal(err)
	}
	_, err := f.engine.LinkContent(ctx, decl.ConfidenceID, content("x"))
	if !errors.Is(err, confidence.ErrDeclarationNotLinkable) {
		t.Fatalf("expected ErrDeclarationNotLinkable, got %v", err)
	}
}

type failingStatuses struct {
	*confidence.MemoryStatusIndex
}

func (failingStatuses) Set(context.Context, string, confidence.Status, time.Time) error {
	return errors.New("status table unavailable")
}

func TestLinkContent_statusFailureLeavesDeclared(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	decl, _ := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownUnknown, Actor: chain.ActorUser})

	broken := confidence.New(f.ledger, failingStatuses{f.statuses}, zap.NewNop())
	res, err := broken.LinkContent(ctx, decl.ConfidenceID, content("x"))
	if !errors.Is(err, confidence.ErrLinkPending) {
		t.Fatalf("expected ErrLinkPending, got %v", err)
	}
	if res == nil || res.Receipt == nil {
		t.Fatal("content receipt should be returned with ErrLinkPending")
	}

	status, _ := f.engine.Status(ctx, decl.ConfidenceID)
	if status != confidence.StatusDeclared {
		t.Fatalf("declaration must not be reported LINKED, got %s", status)
	}

	n, err := f.engine.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("reconcile changed %d declarations, want 1", n)
	}
	status, _ = f.engine.Status(ctx, decl.ConfidenceID)
	if status != confidence.StatusLinked {
		t.Errorf("status after reconcile: got %s", status)
	}
}

// flakyStatuses fails Set until fail is cleared.
type flakyStatuses struct {
	*confidence.MemoryStatusIndex
	fail bool
}

func (s *flakyStatuses) Set(ctx context.Context, id string, st confidence.Status, at time.Time) error {
	if s.fail {
		return errors.New("status table unavailable")
	}
	return s.MemoryStatusIndex.Set(ctx, id, st, at)
}

func TestLinkContent_pendingLinkIsNotRepeatable(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	statuses := &flakyStatuses{MemoryStatusIndex: f.statuses, fail: true}
	engine := confidence.New(f.ledger, statuses, zap.NewNop())

	decl, err := engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownUnknown, Actor: chain.ActorUser})
	if err != nil {
		t.Fatal(err)
	}
	first, err := engine.LinkContent(ctx, decl.ConfidenceID, content("first"))
	if !errors.Is(err, confidence.ErrLinkPending) {
		t.Fatalf("expected ErrLinkPending, got %v", err)
	}

	statuses.fail = false
	_, err = engine.LinkContent(ctx, decl.ConfidenceID, content("second"))
	if !errors.Is(err, confidence.ErrDeclarationNotLinkable) {
		t.Fatalf("second link: expected ErrDeclarationNotLinkable, got %v", err)
	}

	linked := 0
	_ = chain.Scan(ctx, f.store, func(en *chain.Entry) error {
		if en.ConfidenceID == decl.ConfidenceID && en.EventType == "REPORT" {
			linked++
		}
		return nil
	})
	if linked != 1 {
		t.Errorf("content rows linked to declaration: got %d, want 1", linked)
	}
	if n, _ := f.store.Len(ctx); n != first.Receipt.Row {
		t.Errorf("refused link must not write, ledger has %d rows", n)
	}
	if s, _ := engine.Status(ctx, decl.ConfidenceID); s != confidence.StatusLinked {
		t.Errorf("refused link should complete the status flip, got %s", s)
	}
}

func TestFlagViolation_fromDeclaredAndLinked(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)

	d1, _ := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownUnknown, Actor: chain.ActorUser})
	res, err := f.engine.FlagViolation(ctx, d1.ConfidenceID, "never substantiated", chain.ActorAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if res.PriorStatus != confidence.StatusDeclared || res.OriginalLevel != confidence.KnownUnknown {
		t.Errorf("unexpected result %+v", res)
	}

	d2, _ := f.engine.Declare(ctx, confidence.DeclareRequest{
		Level: confidence.KnownKnown, Justification: "audited ledger export", Actor: chain.ActorUser,
	})
	_, _ = f.engine.LinkContent(ctx, d2.ConfidenceID, content("claim"))
	res, err = f.engine.FlagViolation(ctx, d2.ConfidenceID, "export was stale", chain.ActorAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if res.PriorStatus != confidence.StatusLinked {
		t.Errorf("prior status: got %s", res.PriorStatus)
	}

	last, _ := f.store.ReadLastRecord(ctx)
	if last.EventType != confidence.EventViolation || last.ConfidenceLevel != string(confidence.KnownKnown) {
		t.Errorf("violation entry: %+v", last)
	}
	if last.ConfidenceJustification != "audited ledger export" {
		t.Errorf("violation justification column: got %q, want the declaration's", last.ConfidenceJustification)
	}
	if !strings.Contains(last.Text, `"reason":"export was stale"`) {
		t.Errorf("reason missing from violation body: %s", last.Text)
	}
	for _, id := range []string{d1.ConfidenceID, d2.ConfidenceID} {
		if s, _ := f.engine.Status(ctx, id); s != confidence.StatusViolated {
			t.Errorf("%s: status %s, want VIOLATED", id, s)
		}
	}
}

func TestFlagViolation_validation(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	if _, err := f.engine.FlagViolation(ctx, "missing", "reason", chain.ActorAdmin); !errors.Is(err, confidence.ErrDeclarationNotFound) {
		t.Errorf("expected ErrDeclarationNotFound, got %v", err)
	}
	decl, _ := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownUnknown, Actor: chain.ActorUser})
	if _, err := f.engine.FlagViolation(ctx, decl.ConfidenceID, "  ", chain.ActorAdmin); !errors.Is(err, confidence.ErrReasonRequired) {
		t.Errorf("expected ErrReasonRequired, got %v", err)
	}
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.ledger.SetClock(func() time.Time { return old })
	stale, _ := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownUnknown, Actor: chain.ActorUser})

	later := old.Add(48 * time.Hour)
	f.ledger.SetClock(func() time.Time { return later })
	f.engine.SetClock(func() time.Time { return later })
	fresh, _ := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownUnknown, Actor: chain.ActorUser})

	n, err := f.engine.ExpireStale(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}
	if s, _ := f.engine.Status(ctx, stale.ConfidenceID); s != confidence.StatusExpired {
		t.Errorf("stale: %s", s)
	}
	if s, _ := f.engine.Status(ctx, fresh.ConfidenceID); s != confidence.StatusDeclared {
		t.Errorf("fresh: %s", s)
	}

	if _, err := f.engine.LinkContent(ctx, stale.ConfidenceID, content("late")); !errors.Is(err, confidence.ErrDeclarationNotLinkable) {
		t.Errorf("expired link: expected ErrDeclarationNotLinkable, got %v", err)
	}
	if _, err := f.engine.FlagViolation(ctx, stale.ConfidenceID, "late", chain.ActorAdmin); !errors.Is(err, confidence.ErrInvalidTransition) {
		t.Errorf("expired flag: expected ErrInvalidTransition, got %v", err)
	}
}

func TestConcurrentLink_onlyOneWins(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)
	decl, _ := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownUnknown, Actor: chain.ActorUser})

	const callers = 8
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := f.engine.LinkContent(ctx, decl.ConfidenceID, content("race"))
			results <- err
		}()
	}
	wins := 0
	for i := 0; i < callers; i++ {
		err := <-results
		switch {
		case err == nil:
			wins++
		case errors.Is(err, confidence.ErrDeclarationNotLinkable):
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one successful link, got %d", wins)
	}
}
