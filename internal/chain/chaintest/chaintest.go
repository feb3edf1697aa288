// Package chaintest builds ledger state that the append path refuses to
// produce, such as rows written before the confidence columns existed.
package chaintest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
)

// SeedBase chains n base-width rows onto store, hashed with secret. The
// store's header is left alone; callers pass a base-width store.
func SeedBase(tb testing.TB, store chain.Store, secret []byte, n int) []*chain.Entry {
	tb.Helper()
	ctx := context.Background()

	last, err := store.ReadLastRecord(ctx)
	if err != nil {
		tb.Fatalf("read ledger tail: %v", err)
	}
	prev := ""
	if last != nil {
		prev = last.RecordHash
	}

	out := make([]*chain.Entry, 0, n)
	for i := 0; i < n; i++ {
		e := &chain.Entry{
			ID:             uuid.New().String(),
			Timestamp:      time.Now().UTC().Format(chain.TimestampLayout),
			Actor:          chain.ActorSystem,
			EventType:      "NOTE",
			Text:           fmt.Sprintf("base entry %d", i+1),
			PrevHash:       prev,
			Status:         "FINAL",
			CitationDigest: chain.NoCitations,
		}
		hash, err := chain.HashEntry(secret, e, chain.WidthBase)
		if err != nil {
			tb.Fatalf("hash base entry: %v", err)
		}
		e.RecordHash = hash
		if err := store.AppendRecord(ctx, e); err != nil {
			tb.Fatalf("append base entry: %v", err)
		}
		prev = hash
		out = append(out, e)
	}
	return out
}
