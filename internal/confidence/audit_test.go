package confidence_test

import (
	"testing"

	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"github.com/jmerrifield20/ConfidenceLedger/internal/confidence"
)

func TestAuditDeclarations(t *testing.T) {
	f := newFixture(t, chain.WidthExtended)

	kk, _ := f.engine.Declare(ctx, confidence.DeclareRequest{
		Level: confidence.KnownKnown, Justification: "double-entry reconciled", Actor: chain.ActorUser,
	})
	ku, _ := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.KnownUnknown, Actor: chain.ActorUser})
	uu, _ := f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.UnknownUnknown, Actor: chain.ActorUser})
	_, _ = f.engine.Declare(ctx, confidence.DeclareRequest{Level: confidence.UnknownUnknown, Actor: chain.ActorUser})

	if _, err := f.engine.LinkContent(ctx, kk.ConfidenceID, content("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.LinkContent(ctx, uu.ConfidenceID, content("b")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.FlagViolation(ctx, ku.ConfidenceID, "guess", chain.ActorAdmin); err != nil {
		t.Fatal(err)
	}
	_, _ = f.ledger.Append(ctx, chain.Record{Actor: chain.ActorSystem, EventType: "NOTE", Text: "unrelated"})

	audit, err := f.engine.AuditDeclarations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if audit.Total != 4 {
		t.Errorf("total: got %d, want 4", audit.Total)
	}

	want := map[confidence.Level]confidence.LevelCounts{
		confidence.KnownKnown:     {Total: 1, Linked: 1, Unlinked: 0},
		confidence.KnownUnknown:   {Total: 1, Linked: 0, Unlinked: 1},
		confidence.UnknownUnknown: {Total: 2, Linked: 1, Unlinked: 1},
	}
	for level, w := range want {
		got := audit.Levels[level]
		if got == nil || *got != w {
			t.Errorf("%s: got %+v, want %+v", level, got, w)
		}
	}

	if len(audit.Unlinked) != 2 {
		t.Errorf("unlinked: got %d, want 2", len(audit.Unlinked))
	}
	if len(audit.Violated) != 1 || audit.Violated[0].ConfidenceID != ku.ConfidenceID {
		t.Errorf("violated: got %+v", audit.Violated)
	}
}
