package confidence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StatusIndex holds the current status of each declaration, keyed by
// confidence id. An id with no record is in the status written on its
// declaration row.
type StatusIndex interface {
	Get(ctx context.Context, confidenceID string) (Status, bool, error)
	Set(ctx context.Context, confidenceID string, status Status, at time.Time) error
	All(ctx context.Context) (map[string]Status, error)
}

type statusRecord struct {
	status    Status
	version   int
	updatedAt time.Time
}

// MemoryStatusIndex is an in-memory StatusIndex.
type MemoryStatusIndex struct {
	mu      sync.RWMutex
	records map[string]statusRecord
}

// NewMemoryStatusIndex creates an empty MemoryStatusIndex.
func NewMemoryStatusIndex() *MemoryStatusIndex {
	return &MemoryStatusIndex{records: make(map[string]statusRecord)}
}

// Get implements StatusIndex.
func (m *MemoryStatusIndex) Get(_ context.Context, id string) (Status, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	return r.status, ok, nil
}

// Set implements StatusIndex.
func (m *MemoryStatusIndex) Set(_ context.Context, id string, status Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.records[id]
	m.records[id] = statusRecord{status: status, version: r.version + 1, updatedAt: at}
	return nil
}

// All implements StatusIndex.
func (m *MemoryStatusIndex) All(_ context.Context) (map[string]Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Status, len(m.records))
	for id, r := range m.records {
		out[id] = r.status
	}
	return out, nil
}

// Version returns how many times id's status has been set.
func (m *MemoryStatusIndex) Version(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[id].version
}

// PostgresStatusIndex stores declaration status in the declaration_status
// table. Each Set bumps the row's version.
type PostgresStatusIndex struct {
	pool *pgxpool.Pool
}

// NewPostgresStatusIndex creates a PostgresStatusIndex backed by pool.
func NewPostgresStatusIndex(pool *pgxpool.Pool) *PostgresStatusIndex {
	return &PostgresStatusIndex{pool: pool}
}

// Get implements StatusIndex.
func (p *PostgresStatusIndex) Get(ctx context.Context, id string) (Status, bool, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT status FROM declaration_status WHERE confidence_id = $1", id)
	if err != nil {
		return "", false, fmt.Errorf("query declaration status: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return "", false, rows.Err()
	}
	var s string
	if err := rows.Scan(&s); err != nil {
		return "", false, fmt.Errorf("scan declaration status: %w", err)
	}
	return Status(s), true, nil
}

// Set implements StatusIndex.
func (p *PostgresStatusIndex) Set(ctx context.Context, id string, status Status, at time.Time) error {
	if _, err := p.pool.Exec(ctx,
		`INSERT INTO declaration_status (confidence_id, status, version, updated_at)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (confidence_id) DO UPDATE
		 SET status = EXCLUDED.status,
		     version = declaration_status.version + 1,
		     updated_at = EXCLUDED.updated_at`,
		id, string(status), at,
	); err != nil {
		return fmt.Errorf("upsert declaration status: %w", err)
	}
	return nil
}

// All implements StatusIndex.
func (p *PostgresStatusIndex) All(ctx context.Context) (map[string]Status, error) {
	rows, err := p.pool.Query(ctx, "SELECT confidence_id, status FROM declaration_status")
	if err != nil {
		return nil, fmt.Errorf("query declaration statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Status)
	for rows.Next() {
		var id, s string
		if err := rows.Scan(&id, &s); err != nil {
			return nil, fmt.Errorf("scan declaration status: %w", err)
		}
		out[id] = Status(s)
	}
	return out, rows.Err()
}
