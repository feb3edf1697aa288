package confidence

import (
	"context"
	"fmt"

	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
)

// LevelCounts tallies declarations at one level.
type LevelCounts struct {
	Total    int `json:"total"`
	Linked   int `json:"linked"`
	Unlinked int `json:"unlinked"`
}

// DeclarationSummary identifies one declaration in an audit.
type DeclarationSummary struct {
	ConfidenceID string `json:"confidence_id"`
	Level        Level  `json:"level"`
	Status       Status `json:"status"`
	DeclaredAt   string `json:"declared_at"`
	Row          int    `json:"row"`
}

// DeclarationAudit summarises every declaration in the ledger.
type DeclarationAudit struct {
	Total  int                    `json:"total"`
	Levels map[Level]*LevelCounts `json:"levels"`
	// Unlinked lists declarations no content was ever written against.
	Unlinked   []DeclarationSummary `json:"unlinked"`
	Violated   []DeclarationSummary `json:"violated"`
	LegacyRows int                  `json:"legacy_rows"`
}

// declarationIndex is a single pass over the ledger.
type declarationIndex struct {
	order      []*chain.Entry
	linked     map[string]bool
	legacyRows int
}

func buildIndex(scan func(func(*chain.Entry) error) error) (*declarationIndex, error) {
	idx := &declarationIndex{linked: make(map[string]bool)}
	err := scan(func(en *chain.Entry) error {
		switch {
		case en.Legacy():
			idx.legacyRows++
		case en.EventType == EventDeclaration:
			idx.order = append(idx.order, en)
		case en.EventType == EventViolation:
		case en.ConfidenceID != "":
			idx.linked[en.ConfidenceID] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return idx, nil
}

// AuditDeclarations reports per-level totals and lists declarations that
// were never linked. It is a read and does not take the append lock.
func (e *Engine) AuditDeclarations(ctx context.Context) (*DeclarationAudit, error) {
	store := e.ledger.Store()
	idx, err := buildIndex(func(fn func(*chain.Entry) error) error {
		return chain.Scan(ctx, store, fn)
	})
	if err != nil {
		return nil, err
	}
	statuses, err := e.statuses.All(ctx)
	if err != nil {
		return nil, err
	}

	audit := &DeclarationAudit{
		Levels:     make(map[Level]*LevelCounts, len(Levels)),
		Unlinked:   []DeclarationSummary{},
		Violated:   []DeclarationSummary{},
		LegacyRows: idx.legacyRows,
	}
	for _, l := range Levels {
		audit.Levels[l] = &LevelCounts{}
	}

	for _, decl := range idx.order {
		level := Level(decl.ConfidenceLevel)
		counts, ok := audit.Levels[level]
		if !ok {
			counts = &LevelCounts{}
			audit.Levels[level] = counts
		}
		status, ok := statuses[decl.ConfidenceID]
		if !ok {
			status = Status(decl.Status)
		}
		summary := DeclarationSummary{
			ConfidenceID: decl.ConfidenceID,
			Level:        level,
			Status:       status,
			DeclaredAt:   decl.Timestamp,
			Row:          decl.Row,
		}

		audit.Total++
		counts.Total++
		if idx.linked[decl.ConfidenceID] {
			counts.Linked++
		} else {
			counts.Unlinked++
			audit.Unlinked = append(audit.Unlinked, summary)
		}
		if status == StatusViolated {
			audit.Violated = append(audit.Violated, summary)
		}
	}
	return audit, nil
}
