package confidence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"github.com/jmerrifield20/ConfidenceLedger/internal/chain/chaintest"
	"github.com/jmerrifield20/ConfidenceLedger/internal/confidence"
)

func seedBase(t *testing.T, f *fixture, n int) {
	t.Helper()
	chaintest.SeedBase(t, f.store, secret, n)
}

func TestBaseLedger_refusesWritesUntilMigrated(t *testing.T) {
	f := newFixture(t, chain.WidthBase)
	seedBase(t, f, 2)

	if _, err := f.ledger.Append(ctx, content("too early")); !errors.Is(err, chain.ErrSchemaNotUpgraded) {
		t.Fatalf("expected ErrSchemaNotUpgraded, got %v", err)
	}
	report, _ := f.ledger.AuditChain(ctx)
	if _, err := f.ledger.RecordAudit(ctx, report); !errors.Is(err, chain.ErrSchemaNotUpgraded) {
		t.Fatalf("audit record: expected ErrSchemaNotUpgraded, got %v", err)
	}
	if n, _ := f.store.Len(ctx); n != 2 {
		t.Fatalf("refused writes must not add rows, got %d", n)
	}

	if _, err := f.engine.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.Append(ctx, content("after migration")); err != nil {
		t.Fatalf("append after migration: %v", err)
	}
}

func TestMigrate_forgedLegacyConfidenceDetected(t *testing.T) {
	f := newFixture(t, chain.WidthBase)
	seedBase(t, f, 3)
	if _, err := f.engine.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	ids := make([]string, 0, 3)
	rows, _ := f.store.ReadRange(ctx, 1, 3)
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	_ = f.store.WriteField(ctx, 2, chain.ColConfidenceJustification, "forged justification")
	_ = f.store.WriteField(ctx, 3, chain.ColConfidenceID, "forged-id")

	report, _ := f.ledger.AuditChain(ctx)
	if fmt.Sprint(report.MismatchedRows) != "[2 3]" {
		t.Errorf("mismatched rows: got %v, want [2 3]", report.MismatchedRows)
	}
	for _, v := range report.Violations {
		if v.Kind != chain.ViolationMismatch || v.Expected != "" {
			t.Errorf("unexpected violation %+v", v)
		}
	}
	for _, id := range ids[1:] {
		if check, _ := f.ledger.VerifyOne(ctx, id); check.Valid {
			t.Errorf("spot check of %s should fail: %+v", id, check)
		}
	}
}

func TestMigrate_widensAndKeepsHistoryVerifiable(t *testing.T) {
	f := newFixture(t, chain.WidthBase)
	seedBase(t, f, 3)

	res, err := f.engine.Migrate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.AlreadyExtended || res.BackfilledRows != 3 {
		t.Errorf("unexpected result %+v", res)
	}

	header, _ := f.store.ReadHeader(ctx)
	if w, err := chain.WidthOf(header); err != nil || w != chain.WidthExtended {
		t.Fatalf("header after migration: %d %v", w, err)
	}

	rows, _ := f.store.ReadRange(ctx, 1, 3)
	for _, r := range rows {
		if r.ConfidenceLevel != chain.LegacyMarker || r.ConfidenceID != "" || r.ConfidenceJustification != "" {
			t.Errorf("row %d not backfilled: %+v", r.Row, r)
		}
	}

	report, err := f.ledger.AuditChain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Passed() {
		t.Errorf("migrated ledger fails audit: %+v", report.Violations)
	}

	audit, _ := f.engine.AuditDeclarations(ctx)
	if audit.LegacyRows != 3 {
		t.Errorf("legacy rows: got %d, want 3", audit.LegacyRows)
	}

	// Extended writes now succeed and keep the chain intact.
	decl, err := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownUnknown, Actor: chain.ActorUser})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.LinkContent(ctx, decl.ConfidenceID, content("after")); err != nil {
		t.Fatal(err)
	}
	report, _ = f.ledger.AuditChain(ctx)
	if !report.Passed() {
		t.Errorf("post-migration appends fail audit: %+v", report.Violations)
	}
}

func TestMigrate_idempotent(t *testing.T) {
	f := newFixture(t, chain.WidthBase)
	seedBase(t, f, 2)

	if _, err := f.engine.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	before, _ := f.store.ReadRange(ctx, 1, 100)
	header1, _ := f.store.ReadHeader(ctx)

	res, err := f.engine.Migrate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !res.AlreadyExtended || res.BackfilledRows != 0 || res.Receipt != nil {
		t.Errorf("second run should be a no-op, got %+v", res)
	}

	after, _ := f.store.ReadRange(ctx, 1, 100)
	header2, _ := f.store.ReadHeader(ctx)
	if fmt.Sprint(header1) != fmt.Sprint(header2) {
		t.Error("header changed on second run")
	}
	if len(before) != len(after) {
		t.Fatalf("row count changed: %d → %d", len(before), len(after))
	}
	for i := range before {
		if *before[i] != *after[i] {
			t.Errorf("row %d changed on second run", i+1)
		}
	}
}

func TestMigrate_tamperedLegacyRowStillDetected(t *testing.T) {
	f := newFixture(t, chain.WidthBase)
	seedBase(t, f, 3)
	if _, err := f.engine.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	_ = f.store.WriteField(ctx, 2, chain.ColText, "edited after migration")
	report, _ := f.ledger.AuditChain(ctx)
	if fmt.Sprint(report.MismatchedRows) != "[2]" {
		t.Errorf("mismatched rows: got %v, want [2]", report.MismatchedRows)
	}
}

func TestMigrate_requiresAttribution(t *testing.T) {
	store := chain.NewMemoryStore(chain.WidthBase)
	l := chain.New(store, secret, chain.StaticIdentity(""), nil, nil)
	e := confidence.New(l, confidence.NewMemoryStatusIndex(), nil)
	if _, err := e.Migrate(ctx); !errors.Is(err, chain.ErrAttributionRequired) {
		t.Fatalf("expected ErrAttributionRequired, got %v", err)
	}
	header, _ := store.ReadHeader(ctx)
	if len(header) != int(chain.WidthBase) {
		t.Errorf("header must stay at base width, got %d columns", len(header))
	}
}
