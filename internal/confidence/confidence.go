// Package confidence implements pre-commit confidence declarations on top of
// the chain ledger.
//
// An actor first declares how confident it is (Declare). The declaration is
// chained into the ledger before any content exists. Content is then written
// with LinkContent, which copies the declared level and justification into
// the content entry, so neither record can be softened later without
// breaking the hash chain. A declaration links at most once.
//
// Declaration rows are never edited. Their current status lives in a
// StatusIndex keyed by confidence id.
package confidence

import (
	"errors"
	"fmt"
)

// Level is an epistemic confidence tier.
type Level string

const (
	KnownKnown     Level = "KNOWN_KNOWN"
	KnownUnknown   Level = "KNOWN_UNKNOWN"
	UnknownUnknown Level = "UNKNOWN_UNKNOWN"
)

// Levels lists every valid level, highest first.
var Levels = []Level{KnownKnown, KnownUnknown, UnknownUnknown}

// ParseLevel validates s as a Level.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// ImpliedLevel maps a 0–100 numeric confidence onto a Level.
func ImpliedLevel(numeric int) Level {
	switch {
	case numeric >= 80:
		return KnownKnown
	case numeric >= 50:
		return KnownUnknown
	default:
		return UnknownUnknown
	}
}

// MinKnownKnownJustification is the shortest justification accepted for a
// KNOWN_KNOWN declaration, in characters.
const MinKnownKnownJustification = 10

// Status is the lifecycle state of a declaration.
type Status string

const (
	StatusDeclared Status = "DECLARED"
	StatusLinked   Status = "LINKED"
	StatusViolated Status = "VIOLATED"
	StatusExpired  Status = "EXPIRED"
	StatusLegacy   Status = "LEGACY"
)

// Reserved event types.
const (
	EventDeclaration = "CONFIDENCE_DECLARATION"
	EventViolation   = "CONFIDENCE_VIOLATION"
	EventMigration   = "SCHEMA_MIGRATION"
)

var (
	ErrInvalidLevel          = errors.New("invalid confidence level")
	ErrJustificationRequired = errors.New("KNOWN_KNOWN requires a justification of at least 10 characters")
	ErrNumericOutOfRange     = errors.New("numeric confidence must be between 0 and 100")
	ErrReasonRequired        = errors.New("violation reason required")
	ErrReservedEventType     = errors.New("event type is reserved")

	// ErrDeclarationNotFound means no declaration carries the given id.
	ErrDeclarationNotFound = errors.New("confidence declaration not found")

	// ErrDeclarationNotLinkable means the declaration is not DECLARED.
	ErrDeclarationNotLinkable = errors.New("confidence declaration not linkable")

	// ErrInvalidTransition means the declaration cannot move to the
	// requested state from its current one.
	ErrInvalidTransition = errors.New("invalid declaration status transition")

	// ErrLinkPending means the content entry was written but the status flip
	// to LINKED failed. The declaration stays DECLARED until Reconcile.
	ErrLinkPending = errors.New("content linked but declaration status not updated")
)
