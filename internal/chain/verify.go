package chain

import (
	"context"
	"errors"
	"fmt"
)

// ViolationKind classifies an integrity failure found by AuditChain.
type ViolationKind string

const (
	// ViolationBreak: prev_hash does not match the predecessor's record_hash.
	ViolationBreak ViolationKind = "chain_break"
	// ViolationMismatch: the recomputed digest does not match record_hash,
	// or a legacy row carries confidence values its digest cannot cover.
	ViolationMismatch ViolationKind = "hash_mismatch"
)

// Violation is one integrity failure, with enough context to act on it.
type Violation struct {
	Row      int           `json:"row"`
	ID       string        `json:"id"`
	Kind     ViolationKind `json:"kind"`
	Expected string        `json:"expected"`
	Actual   string        `json:"actual"`
}

func (v Violation) String() string {
	return fmt.Sprintf("row %d (%s): %s expected %q got %q", v.Row, v.ID, v.Kind, v.Expected, v.Actual)
}

// AuditReport is the outcome of AuditChain. A corrupt ledger is reported,
// never returned as an error.
type AuditReport struct {
	Rows           int         `json:"rows"`
	Width          Width       `json:"width"`
	BrokenRows     []int       `json:"broken_rows"`
	MismatchedRows []int       `json:"mismatched_rows"`
	Violations     []Violation `json:"violations"`
}

// Passed reports whether no row failed either check.
func (r *AuditReport) Passed() bool {
	return len(r.BrokenRows) == 0 && len(r.MismatchedRows) == 0
}

// AuditChain walks every entry, checking its link to the predecessor and
// its own digest. The two checks are independent; a row may fail either,
// both or neither. It does not take the append lock.
func (l *Ledger) AuditChain(ctx context.Context) (*AuditReport, error) {
	secret, err := loadSecret(ctx, l.secret)
	if err != nil {
		return nil, err
	}
	header, err := l.store.ReadHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	width, err := WidthOf(header)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{
		Width:          width,
		BrokenRows:     []int{},
		MismatchedRows: []int{},
		Violations:     []Violation{},
	}
	prevHash := ""
	err = Scan(ctx, l.store, func(e *Entry) error {
		report.Rows++

		if e.PrevHash != prevHash {
			report.BrokenRows = append(report.BrokenRows, e.Row)
			report.Violations = append(report.Violations, Violation{
				Row: e.Row, ID: e.ID, Kind: ViolationBreak,
				Expected: prevHash, Actual: e.PrevHash,
			})
		}
		prevHash = e.RecordHash

		if v, err := checkEntry(secret, e, width); err != nil {
			return err
		} else if v != nil {
			report.MismatchedRows = append(report.MismatchedRows, e.Row)
			report.Violations = append(report.Violations, *v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return report, nil
}

// SpotCheck is the outcome of VerifyOne.
type SpotCheck struct {
	Found        bool   `json:"found"`
	Valid        bool   `json:"valid"`
	Row          int    `json:"row,omitempty"`
	ExpectedHash string `json:"expected_hash,omitempty"`
	StoredHash   string `json:"stored_hash,omitempty"`
}

// errStopScan ends a Scan early without reporting a failure.
var errStopScan = errors.New("stop scan")

// VerifyOne recomputes the digest of the entry with the given id. Only the
// digest is checked; chain linkage needs the neighbouring rows.
func (l *Ledger) VerifyOne(ctx context.Context, id string) (*SpotCheck, error) {
	secret, err := loadSecret(ctx, l.secret)
	if err != nil {
		return nil, err
	}
	header, err := l.store.ReadHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	width, err := WidthOf(header)
	if err != nil {
		return nil, err
	}

	var found *Entry
	err = Scan(ctx, l.store, func(e *Entry) error {
		if e.ID == id {
			found = e
			return errStopScan
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	if found == nil {
		return &SpotCheck{Found: false}, nil
	}

	expected, err := HashEntry(secret, found, encodingWidth(found, width))
	if err != nil {
		return nil, err
	}
	v, err := checkEntry(secret, found, width)
	if err != nil {
		return nil, err
	}
	return &SpotCheck{
		Found:        true,
		Valid:        v == nil,
		Row:          found.Row,
		ExpectedHash: expected,
		StoredHash:   found.RecordHash,
	}, nil
}

// checkEntry returns a ViolationMismatch when e's digest does not verify.
// Legacy rows are hashed without their confidence columns, so those columns
// must still hold the empty values the backfill wrote.
func checkEntry(secret []byte, e *Entry, header Width) (*Violation, error) {
	expected, err := HashEntry(secret, e, encodingWidth(e, header))
	if err != nil {
		return nil, err
	}
	if expected != e.RecordHash {
		return &Violation{
			Row: e.Row, ID: e.ID, Kind: ViolationMismatch,
			Expected: expected, Actual: e.RecordHash,
		}, nil
	}
	if !e.Legacy() {
		return nil, nil
	}
	for _, f := range []struct{ col, val string }{
		{ColConfidenceID, e.ConfidenceID},
		{ColConfidenceJustification, e.ConfidenceJustification},
	} {
		if f.val != "" {
			return &Violation{
				Row: e.Row, ID: e.ID, Kind: ViolationMismatch,
				Expected: "", Actual: f.col + "=" + f.val,
			}, nil
		}
	}
	return nil, nil
}

// Find returns the first entry for which match is true, or nil.
func (l *Ledger) Find(ctx context.Context, match func(*Entry) bool) (*Entry, error) {
	var found *Entry
	err := Scan(ctx, l.store, func(e *Entry) error {
		if match(e) {
			found = e
			return errStopScan
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, err
	}
	return found, nil
}

// Overview summarises the ledger: entry count, tip hash and header width.
type Overview struct {
	Entries int    `json:"entries"`
	Root    string `json:"root"`
	Width   Width  `json:"width"`
}

// Overview returns the chain length, tip hash and current width.
func (l *Ledger) Overview(ctx context.Context) (*Overview, error) {
	header, err := l.store.ReadHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	width, err := WidthOf(header)
	if err != nil {
		return nil, err
	}
	n, err := l.store.Len(ctx)
	if err != nil {
		return nil, err
	}
	last, err := l.store.ReadLastRecord(ctx)
	if err != nil {
		return nil, err
	}
	ov := &Overview{Entries: n, Width: width}
	if last != nil {
		ov.Root = last.RecordHash
	}
	return ov, nil
}
