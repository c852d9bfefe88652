package model

import "regexp"

// WorksheetUUIDPattern is the literal printed business identifier
// format: four decimal digits (easy-OCR) then six uppercase
// alphanumerics (hard-OCR).
var WorksheetUUIDPattern = regexp.MustCompile(`^ES-\d{4}-[A-Z0-9]{6}$`)

// WorksheetUUID is the recovered worksheet business identifier.
type WorksheetUUID struct {
	Value      string
	Confidence float64
	Candidates []PageUUIDCandidate
	Consistent bool
}

// PageUUIDCandidate is the per-page UUID diagnostic: which candidate a
// single page's OCR text yielded, and how.
type PageUUIDCandidate struct {
	PageIndex  int
	Candidate  string
	Confidence float64
	Source     string // "full_match" | "two_part"
}

// Valid reports whether v matches the worksheet UUID pattern exactly.
func Valid(v string) bool { return WorksheetUUIDPattern.MatchString(v) }
