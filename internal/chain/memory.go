package chain

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory, thread-safe Store. It is primarily useful for
// testing and for single-process deployments that do not require durable
// persistence across restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	header  []string
	entries []*Entry
}

// NewMemoryStore creates an empty MemoryStore whose header is the column set
// of width w.
func NewMemoryStore(w Width) *MemoryStore {
	return &MemoryStore{header: Columns(w)}
}

// ReadHeader implements Store.
func (s *MemoryStore) ReadHeader(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.header...), nil
}

// WriteHeader implements Store.
func (s *MemoryStore) WriteHeader(_ context.Context, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = append([]string{}, columns...)
	return nil
}

// ReadLastRecord implements Store.
func (s *MemoryStore) ReadLastRecord(_ context.Context) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	e := *s.entries[len(s.entries)-1]
	return &e, nil
}

// ReadRange implements Store. Entries are returned as copies.
func (s *MemoryStore) ReadRange(_ context.Context, start, count int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if start < 1 {
		return nil, fmt.Errorf("%w: start %d", ErrRowOutOfRange, start)
	}
	var out []*Entry
	for i := start - 1; i < len(s.entries) && len(out) < count; i++ {
		e := *s.entries[i]
		out = append(out, &e)
	}
	return out, nil
}

// Len implements Store.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// AppendRecord implements Store.
func (s *MemoryStore) AppendRecord(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Row = len(s.entries) + 1
	stored := *e
	s.entries = append(s.entries, &stored)
	return nil
}

// WriteField implements Store.
func (s *MemoryStore) WriteField(_ context.Context, row int, column, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 1 || row > len(s.entries) {
		return fmt.Errorf("%w: row %d", ErrRowOutOfRange, row)
	}
	return s.entries[row-1].SetField(column, value)
}

// DeleteRow removes a row and renumbers its successors. It bypasses the
// ledger entirely and exists to exercise break detection.
func (s *MemoryStore) DeleteRow(row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 1 || row > len(s.entries) {
		return fmt.Errorf("%w: row %d", ErrRowOutOfRange, row)
	}
	s.entries = append(s.entries[:row-1], s.entries[row:]...)
	for i := row - 1; i < len(s.entries); i++ {
		s.entries[i].Row = i + 1
	}
	return nil
}

// SwapRows exchanges two rows in place, bypassing the ledger.
func (s *MemoryStore) SwapRows(a, b int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a < 1 || b < 1 || a > len(s.entries) || b > len(s.entries) {
		return fmt.Errorf("%w: rows %d, %d", ErrRowOutOfRange, a, b)
	}
	s.entries[a-1], s.entries[b-1] = s.entries[b-1], s.entries[a-1]
	s.entries[a-1].Row, s.entries[b-1].Row = a, b
	return nil
}
