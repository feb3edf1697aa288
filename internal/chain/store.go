package chain

import "context"

// Store is the row-oriented backing store of a ledger. Row 0 is the header;
// entries occupy rows 1..Len. Stores do no hashing and no locking beyond
// what keeps their own data structures consistent.
type Store interface {
	// ReadHeader returns the column names in order. An uninitialised store
	// returns an empty header.
	ReadHeader(ctx context.Context) ([]string, error)

	// WriteHeader replaces the header row.
	WriteHeader(ctx context.Context, columns []string) error

	// ReadLastRecord returns the final entry, or nil when the ledger is empty.
	ReadLastRecord(ctx context.Context) (*Entry, error)

	// ReadRange returns up to count entries starting at the 1-based row start.
	ReadRange(ctx context.Context, start, count int) ([]*Entry, error)

	// Len returns the number of entries, excluding the header.
	Len(ctx context.Context) (int, error)

	// AppendRecord stores e as the next row and sets e.Row.
	AppendRecord(ctx context.Context, e *Entry) error

	// WriteField overwrites a single column of an existing row. It exists for
	// the schema-widening backfill only.
	WriteField(ctx context.Context, row int, column, value string) error
}

// scanPage is the number of rows fetched per ReadRange call during scans.
const scanPage = 500

// Scan calls fn for every entry in row order, stopping at the first error.
func Scan(ctx context.Context, s Store, fn func(*Entry) error) error {
	for start := 1; ; start += scanPage {
		rows, err := s.ReadRange(ctx, start, scanPage)
		if err != nil {
			return err
		}
		for _, e := range rows {
			if err := fn(e); err != nil {
				return err
			}
		}
		if len(rows) < scanPage {
			return nil
		}
	}
}
