package pii

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// fullLabels maps each category to its replacement label. Lookup goes
// through labelFor so that unknown categories keep a total fallback.
var fullLabels = map[Category]string{
	CategoryEmail:      "[EMAIL]",
	CategoryPhone:      "[PHONE]",
	CategorySSN:        "[SSN]",
	CategoryCreditCard: "[CARD]",
}

func labelFor(category Category) string {
	if label, ok := fullLabels[category]; ok {
		return label
	}
	return "[REDACTED]"
}

// Redact returns text with every detected match rewritten per mode.
func (e *Engine) Redact(text string, mode Mode) string {
	return e.RedactWithDetails(text, mode).Text
}

// RedactWithDetails returns the rewritten text together with the redaction
// count and the set of categories found. Text without matches comes back
// unchanged.
func (e *Engine) RedactWithDetails(text string, mode Mode) RedactionResult {
	return e.RedactMatches(text, e.Detect(text), mode)
}

// RedactMatches rewrites text using matches already produced by Detect,
// for callers that also need the match list itself. Matches must be
// sorted by start offset and pairwise disjoint, as Detect returns them.
func (e *Engine) RedactMatches(text string, matches []Match, mode Mode) RedactionResult {
	result := RedactionResult{
		Text:          text,
		PIITypesFound: []Category{},
	}
	if len(matches) == 0 {
		return result
	}

	seen := make(map[Category]bool)
	for _, m := range matches {
		if !seen[m.Category] {
			seen[m.Category] = true
			result.PIITypesFound = append(result.PIITypesFound, m.Category)
		}
	}

	// Replace back to front: every not-yet-processed match lies strictly
	// before the current one, so its offsets stay valid no matter how the
	// replacement length differs from the span it substitutes.
	out := text
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		out = out[:m.Start] + replacementFor(m, mode) + out[m.End:]
	}

	result.Text = out
	result.RedactionsMade = len(matches)

	if e.logger != nil {
		names := make([]string, len(result.PIITypesFound))
		for i, c := range result.PIITypesFound {
			names[i] = string(c)
		}
		e.logger.Debug("PII redacted",
			zap.Int("redactions", result.RedactionsMade),
			zap.Strings("categories", names),
			zap.String("mode", string(mode)),
		)
	}

	return result
}

// replacementFor computes the substitution for one match. A mode outside
// the closed set is a programming error, not caller input, and fails loudly.
func replacementFor(m Match, mode Mode) string {
	switch mode {
	case ModeFull:
		return labelFor(m.Category)
	case ModePartial:
		return partialMask(m.Category, m.Value)
	default:
		panic(fmt.Sprintf("pii: unsupported redaction mode %q", mode))
	}
}

// partialMask keeps a caller-recognizable fragment of the value. Values of
// four characters or fewer always collapse to a fixed mask, whatever the
// category.
func partialMask(category Category, value string) string {
	if len(value) <= 4 {
		return "***"
	}

	switch category {
	case CategoryEmail:
		if at := strings.IndexByte(value, '@'); at > 0 {
			keep := 2
			if at < 2 {
				keep = 1
			}
			return value[:keep] + "***" + value[at:]
		}
	case CategoryPhone:
		return "***-***-" + lastDigits(value, 4)
	case CategorySSN:
		return "***-**-" + lastDigits(value, 4)
	case CategoryCreditCard:
		return "****-****-****-" + lastDigits(value, 4)
	}

	return value[:1] + "***" + value[len(value)-1:]
}

// lastDigits returns the trailing n digits of value.
func lastDigits(value string, n int) string {
	digits := digitsOnly(value)
	if len(digits) <= n {
		return digits
	}
	return digits[len(digits)-n:]
}
