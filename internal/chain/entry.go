package chain

import "fmt"

// Actor is the kind of principal an entry is attributed to.
type Actor string

const (
	ActorUser   Actor = "User"
	ActorAdmin  Actor = "Admin"
	ActorSystem Actor = "System"
)

// Valid reports whether a is one of the recognised actors.
func (a Actor) Valid() bool {
	switch a {
	case ActorUser, ActorAdmin, ActorSystem:
		return true
	}
	return false
}

// ParseActor converts s to an Actor, failing with ErrUnauthorizedActor.
func ParseActor(s string) (Actor, error) {
	a := Actor(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnauthorizedActor, s)
	}
	return a, nil
}

// Width is the number of columns an entry is encoded against.
type Width int

const (
	WidthBase     Width = 14
	WidthExtended Width = 17
)

// NoCitations is stored in CitationDigest when an entry carries no citations.
const NoCitations = "no_citations"

// LegacyMarker is written into ConfidenceLevel of rows that predate the
// extended schema. Such rows are re-encoded at base width during audits.
const LegacyMarker = "LEGACY"

// Column names, in header order.
const (
	ColID                      = "id"
	ColTimestamp               = "timestamp"
	ColActor                   = "actor"
	ColEventType               = "event_type"
	ColText                    = "text"
	ColAnnotation              = "annotation"
	ColPrevHash                = "prev_hash"
	ColRecordHash              = "record_hash"
	ColStatus                  = "status"
	ColCitationIDs             = "citation_ids"
	ColCitationTitles          = "citation_titles"
	ColCitationSnippets        = "citation_snippets"
	ColCitationURLs            = "citation_urls"
	ColCitationDigest          = "citation_digest"
	ColConfidenceLevel         = "confidence_level"
	ColConfidenceID            = "confidence_id"
	ColConfidenceJustification = "confidence_justification"
)

var baseColumns = []string{
	ColID, ColTimestamp, ColActor, ColEventType, ColText, ColAnnotation,
	ColPrevHash, ColRecordHash, ColStatus,
	ColCitationIDs, ColCitationTitles, ColCitationSnippets, ColCitationURLs,
	ColCitationDigest,
}

var extendedColumns = append(append([]string{}, baseColumns...),
	ColConfidenceLevel, ColConfidenceID, ColConfidenceJustification,
)

// Columns returns a copy of the header for width w.
func Columns(w Width) []string {
	if w == WidthExtended {
		return append([]string{}, extendedColumns...)
	}
	return append([]string{}, baseColumns...)
}

// WidthOf matches header against the known column sets exactly.
func WidthOf(header []string) (Width, error) {
	switch {
	case equalColumns(header, extendedColumns):
		return WidthExtended, nil
	case equalColumns(header, baseColumns):
		return WidthBase, nil
	}
	return 0, fmt.Errorf("%w: header has %d columns %v", ErrSchemaMismatch, len(header), header)
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Entry is a single ledger row. Row is the 1-based position in the store
// and is not part of the encoded record.
type Entry struct {
	Row int `json:"row"`

	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Actor      Actor  `json:"actor"`
	EventType  string `json:"event_type"`
	Text       string `json:"text"`
	Annotation string `json:"annotation"`
	PrevHash   string `json:"prev_hash"`
	RecordHash string `json:"record_hash"`
	Status     string `json:"status"`

	CitationIDs      string `json:"citation_ids"`
	CitationTitles   string `json:"citation_titles"`
	CitationSnippets string `json:"citation_snippets"`
	CitationURLs     string `json:"citation_urls"`
	CitationDigest   string `json:"citation_digest"`

	ConfidenceLevel         string `json:"confidence_level"`
	ConfidenceID            string `json:"confidence_id"`
	ConfidenceJustification string `json:"confidence_justification"`
}

// Legacy reports whether e was written before the schema was widened.
func (e *Entry) Legacy() bool { return e.ConfidenceLevel == LegacyMarker }

// Field returns the value of the named column.
func (e *Entry) Field(column string) (string, error) {
	p, err := e.fieldPtr(column)
	if err != nil {
		return "", err
	}
	return *p, nil
}

// SetField overwrites the named column. Only stores call this.
func (e *Entry) SetField(column, value string) error {
	p, err := e.fieldPtr(column)
	if err != nil {
		return err
	}
	*p = value
	return nil
}

func (e *Entry) fieldPtr(column string) (*string, error) {
	switch column {
	case ColID:
		return &e.ID, nil
	case ColTimestamp:
		return &e.Timestamp, nil
	case ColActor:
		return (*string)(&e.Actor), nil
	case ColEventType:
		return &e.EventType, nil
	case ColText:
		return &e.Text, nil
	case ColAnnotation:
		return &e.Annotation, nil
	case ColPrevHash:
		return &e.PrevHash, nil
	case ColRecordHash:
		return &e.RecordHash, nil
	case ColStatus:
		return &e.Status, nil
	case ColCitationIDs:
		return &e.CitationIDs, nil
	case ColCitationTitles:
		return &e.CitationTitles, nil
	case ColCitationSnippets:
		return &e.CitationSnippets, nil
	case ColCitationURLs:
		return &e.CitationURLs, nil
	case ColCitationDigest:
		return &e.CitationDigest, nil
	case ColConfidenceLevel:
		return &e.ConfidenceLevel, nil
	case ColConfidenceID:
		return &e.ConfidenceID, nil
	case ColConfidenceJustification:
		return &e.ConfidenceJustification, nil
	}
	return nil, fmt.Errorf("unknown column %q", column)
}

// Citations is the bundle of supporting references attached to an entry.
// The four text fields are parallel lists in whatever form the caller chose;
// Digest is the caller's precomputed summary of them.
type Citations struct {
	IDs      string `json:"ids"`
	Titles   string `json:"titles"`
	Snippets string `json:"snippets"`
	URLs     string `json:"urls"`
	Digest   string `json:"digest"`
}

// Empty reports whether c carries no citation data.
func (c Citations) Empty() bool {
	return c.IDs == "" && c.Titles == "" && c.Snippets == "" && c.URLs == ""
}

// Confidence holds the three extended-schema columns.
type Confidence struct {
	Level         string
	ID            string
	Justification string
}

// Record is the caller-supplied content of a new entry.
type Record struct {
	Actor      Actor
	EventType  string
	Text       string
	Annotation string
	Status     string
	Citations  Citations
	Confidence *Confidence
}

// Receipt is returned for every successful append.
type Receipt struct {
	Row        int    `json:"row"`
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	RecordHash string `json:"record_hash"`
	PrevHash   string `json:"prev_hash"`
	Identity   string `json:"identity"`
}
