// Package pii detects and redacts personally identifiable information in
// free text: email addresses, US phone numbers, social security numbers,
// and payment card numbers.
package pii

import "fmt"

// Category identifies one kind of detectable PII. The set is closed so
// that redaction-label lookup stays total: a new category is added here
// and in the label tables together, never as a free-form string.
type Category string

const (
	CategoryEmail      Category = "email"
	CategoryPhone      Category = "phone"
	CategorySSN        Category = "ssn"
	CategoryCreditCard Category = "credit_card"
)

// Mode selects how matched values are rewritten.
type Mode string

const (
	// ModeFull replaces the whole match with a per-category label.
	ModeFull Mode = "full"
	// ModePartial masks the match but keeps a caller-recognizable fragment.
	ModePartial Mode = "partial"
)

// ParseMode converts an untrusted string into a Mode. Boundary layers must
// parse here; the redactor treats any other value as a programming error.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull:
		return ModeFull, nil
	case ModePartial:
		return ModePartial, nil
	default:
		return "", fmt.Errorf("unknown redaction mode: %q", s)
	}
}

// Match represents a single detected PII occurrence. Start and End are
// byte offsets into the scanned text, half-open, so Value == text[Start:End].
//
// Matches are transient: Value slices the caller's text and must never be
// persisted, logged, or serialized. Only categories and aggregate counts
// may leave the process.
type Match struct {
	Category   Category `json:"category"`
	Value      string   `json:"-"` // Never serialize matched values
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Confidence float64  `json:"confidence"`
}

// RedactionResult contains the outcome of one redaction pass. It is a pure
// value: it holds no reference to the pre-redaction text.
type RedactionResult struct {
	Text           string     `json:"text"`
	RedactionsMade int        `json:"redactions_made"`
	PIITypesFound  []Category `json:"pii_types_found"`
}
