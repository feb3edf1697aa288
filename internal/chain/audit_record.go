package chain

import (
	"context"
	"encoding/json"
	"fmt"
)

// EventChainAudit is the event type of entries written by RecordAudit.
const EventChainAudit = "CHAIN_AUDIT"

// Audit outcome statuses.
const (
	AuditPassed = "PASSED"
	AuditFailed = "FAILED"
)

type auditSummary struct {
	Rows           int   `json:"rows"`
	Width          Width `json:"width"`
	BrokenRows     []int `json:"broken_rows"`
	MismatchedRows []int `json:"mismatched_rows"`
}

// RecordAudit chains the outcome of an audit as a System entry. The entry
// covers the rows the audit saw, not itself.
func (l *Ledger) RecordAudit(ctx context.Context, r *AuditReport) (*Receipt, error) {
	body, err := json.Marshal(auditSummary{
		Rows:           r.Rows,
		Width:          r.Width,
		BrokenRows:     r.BrokenRows,
		MismatchedRows: r.MismatchedRows,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal audit summary: %w", err)
	}
	status := AuditPassed
	if !r.Passed() {
		status = AuditFailed
	}
	return l.Append(ctx, Record{
		Actor:     ActorSystem,
		EventType: EventChainAudit,
		Text:      string(body),
		Status:    status,
	})
}
