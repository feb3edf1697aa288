package chain

import "strings"

// Delimiter separates fields in the canonical encoding. Fields are not
// escaped, so a field containing it shifts the boundaries.
const Delimiter = "|"

// Encode returns the canonical string of e at width w. RecordHash is never
// part of the encoding.
func Encode(e *Entry, w Width) string {
	citationDigest := e.CitationDigest
	if citationDigest == "" {
		citationDigest = NoCitations
	}
	fields := []string{
		e.ID,
		e.Timestamp,
		string(e.Actor),
		e.EventType,
		e.Text,
		e.Annotation,
		e.PrevHash,
		e.Status,
		e.CitationIDs,
		e.CitationTitles,
		e.CitationSnippets,
		e.CitationURLs,
		citationDigest,
	}
	if w == WidthExtended {
		fields = append(fields, e.ConfidenceLevel, e.ConfidenceID, e.ConfidenceJustification)
	}
	return strings.Join(fields, Delimiter)
}

// HashEntry computes the record hash of e at width w.
func HashEntry(secret []byte, e *Entry, w Width) (string, error) {
	return Digest(secret, Encode(e, w))
}

// encodingWidth is the width a stored row was hashed at: legacy rows keep
// their base-width digest after the header is widened.
func encodingWidth(e *Entry, header Width) Width {
	if header == WidthExtended && !e.Legacy() {
		return WidthExtended
	}
	return WidthBase
}
