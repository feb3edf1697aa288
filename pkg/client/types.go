package client

// Overview is returned by GET /api/v1/ledger.
type Overview struct {
	Entries int    `json:"entries"`
	Root    string `json:"root"`
	Width   int    `json:"width"`
}

// Citations is an optional evidence bundle attached to an entry.
type Citations struct {
	IDs      string `json:"ids,omitempty"`
	Titles   string `json:"titles,omitempty"`
	Snippets string `json:"snippets,omitempty"`
	URLs     string `json:"urls,omitempty"`
	Digest   string `json:"digest,omitempty"`
}

// EntryRequest is the payload for Append and Link.
type EntryRequest struct {
	Actor      string    `json:"actor"`
	EventType  string    `json:"event_type"`
	Text       string    `json:"text,omitempty"`
	Annotation string    `json:"annotation,omitempty"`
	Status     string    `json:"status,omitempty"`
	Citations  Citations `json:"citations"`
}

// Receipt identifies an appended entry.
type Receipt struct {
	Row        int    `json:"row"`
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	RecordHash string `json:"record_hash"`
	PrevHash   string `json:"prev_hash"`
	Identity   string `json:"identity"`
}

// Violation is one integrity failure found by an audit.
type Violation struct {
	Row      int    `json:"row"`
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// AuditReport lists every integrity failure in the chain.
type AuditReport struct {
	Rows           int         `json:"rows"`
	Width          int         `json:"width"`
	BrokenRows     []int       `json:"broken_rows"`
	MismatchedRows []int       `json:"mismatched_rows"`
	Violations     []Violation `json:"violations"`
}

// AuditResult is returned by Audit and RecordAudit. Receipt is set only when
// the audit was recorded in the ledger.
type AuditResult struct {
	Passed  bool        `json:"passed"`
	Report  AuditReport `json:"report"`
	Receipt *Receipt    `json:"receipt,omitempty"`
}

// SpotCheck is the result of verifying one entry.
type SpotCheck struct {
	Found        bool   `json:"found"`
	Valid        bool   `json:"valid"`
	Row          int    `json:"row,omitempty"`
	ExpectedHash string `json:"expected_hash,omitempty"`
	StoredHash   string `json:"stored_hash,omitempty"`
}

// DeclareRequest is the payload for Declare.
type DeclareRequest struct {
	Level             string `json:"level"`
	Justification     string `json:"justification,omitempty"`
	Actor             string `json:"actor"`
	NumericConfidence *int   `json:"numeric_confidence,omitempty"`
}

// Declaration is a recorded confidence declaration.
type Declaration struct {
	ConfidenceID      string   `json:"confidence_id"`
	Level             string   `json:"level"`
	Status            string   `json:"status"`
	NumericConfidence *int     `json:"numeric_confidence,omitempty"`
	NumericMismatch   bool     `json:"numeric_mismatch"`
	Receipt           *Receipt `json:"receipt"`
}

// LinkResult is returned by Link.
type LinkResult struct {
	ConfidenceID    string   `json:"confidence_id"`
	ConfidenceLevel string   `json:"confidence_level"`
	Receipt         *Receipt `json:"receipt"`
}

// ViolationRequest is the payload for FlagViolation.
type ViolationRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// ViolationResult is returned by FlagViolation.
type ViolationResult struct {
	ConfidenceID  string   `json:"confidence_id"`
	OriginalLevel string   `json:"original_level"`
	PriorStatus   string   `json:"prior_status"`
	Receipt       *Receipt `json:"receipt"`
}

// LevelCounts tallies declarations at one level.
type LevelCounts struct {
	Total    int `json:"total"`
	Linked   int `json:"linked"`
	Unlinked int `json:"unlinked"`
}

// DeclarationSummary identifies one declaration in an audit.
type DeclarationSummary struct {
	ConfidenceID string `json:"confidence_id"`
	Level        string `json:"level"`
	Status       string `json:"status"`
	DeclaredAt   string `json:"declared_at"`
	Row          int    `json:"row"`
}

// DeclarationAudit is returned by AuditDeclarations.
type DeclarationAudit struct {
	Total      int                    `json:"total"`
	Levels     map[string]LevelCounts `json:"levels"`
	Unlinked   []DeclarationSummary   `json:"unlinked"`
	Violated   []DeclarationSummary   `json:"violated"`
	LegacyRows int                    `json:"legacy_rows"`
}

// MigrationResult is returned by Migrate.
type MigrationResult struct {
	AlreadyExtended bool     `json:"already_extended"`
	BackfilledRows  int      `json:"backfilled_rows"`
	Receipt         *Receipt `json:"receipt,omitempty"`
}
