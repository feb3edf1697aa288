package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore persists the ledger to a PostgreSQL database.
// It implements the Store interface. The tables are created by the SQL files
// in migrations/.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// entryColumnList is every stored column in header order, quoted.
var entryColumnList = func() string {
	quoted := make([]string, len(extendedColumns))
	for i, c := range extendedColumns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}()

const selectEntries = `SELECT row_num, `

func scanEntry(row pgx.Row) (*Entry, error) {
	e := &Entry{}
	var actor string
	if err := row.Scan(
		&e.Row, &e.ID, &e.Timestamp, &actor, &e.EventType, &e.Text,
		&e.Annotation, &e.PrevHash, &e.RecordHash, &e.Status,
		&e.CitationIDs, &e.CitationTitles, &e.CitationSnippets, &e.CitationURLs,
		&e.CitationDigest, &e.ConfidenceLevel, &e.ConfidenceID,
		&e.ConfidenceJustification,
	); err != nil {
		return nil, err
	}
	e.Actor = Actor(actor)
	return e, nil
}

// ReadHeader implements Store.
func (s *PostgresStore) ReadHeader(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT name FROM ledger_header ORDER BY pos ASC")
	if err != nil {
		return nil, fmt.Errorf("query ledger header: %w", err)
	}
	header, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan ledger header: %w", err)
	}
	return header, nil
}

// WriteHeader implements Store. The old header is replaced atomically.
func (s *PostgresStore) WriteHeader(ctx context.Context, columns []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "DELETE FROM ledger_header"); err != nil {
		return fmt.Errorf("clear ledger header: %w", err)
	}
	for i, name := range columns {
		if _, err := tx.Exec(ctx,
			"INSERT INTO ledger_header (pos, name) VALUES ($1, $2)", i, name,
		); err != nil {
			return fmt.Errorf("insert header column %q: %w", name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit header tx: %w", err)
	}
	s.logger.Info("ledger header written", zap.Int("columns", len(columns)))
	return nil
}

// ReadLastRecord implements Store.
func (s *PostgresStore) ReadLastRecord(ctx context.Context) (*Entry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx,
		selectEntries+entryColumnList+" FROM ledger_entries ORDER BY row_num DESC LIMIT 1",
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger tail: %w", err)
	}
	return e, nil
}

// ReadRange implements Store.
func (s *PostgresStore) ReadRange(ctx context.Context, start, count int) ([]*Entry, error) {
	if start < 1 {
		return nil, fmt.Errorf("%w: start %d", ErrRowOutOfRange, start)
	}
	rows, err := s.pool.Query(ctx,
		selectEntries+entryColumnList+
			" FROM ledger_entries WHERE row_num >= $1 ORDER BY row_num ASC LIMIT $2",
		start, count,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger range: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Len implements Store.
func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return n, nil
}

// AppendRecord implements Store.
func (s *PostgresStore) AppendRecord(ctx context.Context, e *Entry) error {
	if err := s.pool.QueryRow(ctx,
		`INSERT INTO ledger_entries (row_num, `+entryColumnList+`)
		 SELECT COALESCE(MAX(row_num), 0) + 1,
		        $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		 FROM ledger_entries
		 RETURNING row_num`,
		e.ID, e.Timestamp, string(e.Actor), e.EventType, e.Text, e.Annotation,
		e.PrevHash, e.RecordHash, e.Status,
		e.CitationIDs, e.CitationTitles, e.CitationSnippets, e.CitationURLs,
		e.CitationDigest, e.ConfidenceLevel, e.ConfidenceID, e.ConfidenceJustification,
	).Scan(&e.Row); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}

	s.logger.Debug("ledger entry appended",
		zap.Int("row", e.Row),
		zap.String("event_type", e.EventType),
	)
	return nil
}

// WriteField implements Store.
func (s *PostgresStore) WriteField(ctx context.Context, row int, column, value string) error {
	if _, err := (&Entry{}).Field(column); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE ledger_entries SET "+pgx.Identifier{column}.Sanitize()+" = $1 WHERE row_num = $2",
		value, row,
	)
	if err != nil {
		return fmt.Errorf("update row %d column %s: %w", row, column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: row %d", ErrRowOutOfRange, row)
	}
	return nil
}
