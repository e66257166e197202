package pii

import (
	"testing"

	"go.uber.org/zap"

	"github.com/veillabs/veil/internal/logger"
)

func newTestEngine() *Engine {
	return New(&logger.Logger{Logger: zap.NewNop()})
}

// TestDetect tests detection across all categories
func TestDetect(t *testing.T) {
	engine := newTestEngine()

	t.Run("EmptyInput", func(t *testing.T) {
		if matches := engine.Detect(""); len(matches) != 0 {
			t.Errorf("Expected no matches for empty input, got %d", len(matches))
		}
	})

	t.Run("NoPII", func(t *testing.T) {
		matches := engine.Detect("The quick brown fox jumps over the lazy dog.")
		if len(matches) != 0 {
			t.Errorf("Expected no matches, got %d", len(matches))
		}
	})

	t.Run("Email", func(t *testing.T) {
		text := "Contact john.doe@example.com for details"
		matches := engine.Detect(text)
		if len(matches) != 1 {
			t.Fatalf("Expected 1 match, got %d", len(matches))
		}
		if matches[0].Category != CategoryEmail {
			t.Errorf("Expected category %s, got %s", CategoryEmail, matches[0].Category)
		}
		if matches[0].Value != "john.doe@example.com" {
			t.Errorf("Unexpected match value: %s", matches[0].Value)
		}
	})

	t.Run("PhoneFormats", func(t *testing.T) {
		inputs := []string{
			"Call (555) 123-4567 now",
			"Call (555)123-4567 now",
			"Call 555-123-4567 now",
			"Call +1 555 123 4567 now",
			"Call +15551234567 now",
		}
		for _, text := range inputs {
			matches := engine.Detect(text)
			if len(matches) != 1 {
				t.Errorf("Expected 1 match in %q, got %d", text, len(matches))
				continue
			}
			if matches[0].Category != CategoryPhone {
				t.Errorf("Expected phone match in %q, got %s", text, matches[0].Category)
			}
		}
	})

	t.Run("SSN", func(t *testing.T) {
		matches := engine.Detect("SSN on file: 123-45-6789")
		if len(matches) != 1 || matches[0].Category != CategorySSN {
			t.Fatalf("Expected 1 SSN match, got %v", matches)
		}
	})

	t.Run("SSNWithoutSeparators", func(t *testing.T) {
		matches := engine.Detect("id 123456789 recorded")
		if len(matches) != 1 || matches[0].Category != CategorySSN {
			t.Fatalf("Expected 1 SSN match, got %v", matches)
		}
	})

	t.Run("SSNReservedAreaIgnored", func(t *testing.T) {
		if matches := engine.Detect("SSN on file: 000-12-3456"); len(matches) != 0 {
			t.Errorf("Reserved-area SSN should not match, got %v", matches)
		}
		if matches := engine.Detect("id 987654321 recorded"); len(matches) != 0 {
			t.Errorf("Area 987 should not match, got %v", matches)
		}
	})

	t.Run("CreditCardBrands", func(t *testing.T) {
		cards := []string{
			"4111111111111111",
			"4111-1111-1111-1111",
			"5500 0055 5555 5559",
			"378282246310005",
			"3782-822463-10005",
			"6011 1111 1111 1117",
			"9999999999999995", // no brand prefix, generic shape only
		}
		for _, card := range cards {
			matches := engine.Detect("card " + card + " on file")
			if len(matches) != 1 {
				t.Errorf("Expected 1 match for %s, got %d", card, len(matches))
				continue
			}
			if matches[0].Category != CategoryCreditCard {
				t.Errorf("Expected credit_card for %s, got %s", card, matches[0].Category)
			}
		}
	})

	t.Run("LuhnInvalidCardIgnored", func(t *testing.T) {
		matches := engine.Detect("card 4111111111111112 on file")
		for _, m := range matches {
			if m.Category == CategoryCreditCard {
				t.Errorf("Luhn-invalid number reported as credit card: %v", m)
			}
		}
	})

	t.Run("ConfidenceAlwaysOne", func(t *testing.T) {
		matches := engine.Detect("a@b.com and 555-123-4567 and 4111111111111111")
		for _, m := range matches {
			if m.Confidence != 1.0 {
				t.Errorf("Expected confidence 1.0, got %f", m.Confidence)
			}
		}
	})
}

// TestDetectOrdering tests the sorted, disjoint output contract
func TestDetectOrdering(t *testing.T) {
	engine := newTestEngine()

	t.Run("SortedAndDisjoint", func(t *testing.T) {
		text := "Email john@example.com, phone 555-123-4567, ssn 123-45-6789, card 4111111111111111."
		matches := engine.Detect(text)
		if len(matches) != 4 {
			t.Fatalf("Expected 4 matches, got %d", len(matches))
		}
		for i, m := range matches {
			if m.End <= m.Start {
				t.Errorf("Match %d has empty span: %d-%d", i, m.Start, m.End)
			}
			if text[m.Start:m.End] != m.Value {
				t.Errorf("Match %d value does not slice text: %q vs %q", i, m.Value, text[m.Start:m.End])
			}
			if i > 0 {
				if matches[i-1].Start >= m.Start {
					t.Errorf("Matches not sorted ascending at %d", i)
				}
				if matches[i-1].End > m.Start {
					t.Errorf("Matches overlap at %d", i)
				}
			}
		}
	})

	t.Run("OffsetsStableWithMultibyteText", func(t *testing.T) {
		text := "héllo ünd a@b.com über 555-123-4567"
		matches := engine.Detect(text)
		if len(matches) != 2 {
			t.Fatalf("Expected 2 matches, got %d", len(matches))
		}
		for _, m := range matches {
			if text[m.Start:m.End] != m.Value {
				t.Errorf("Byte offsets do not slice text: %q vs %q", m.Value, text[m.Start:m.End])
			}
		}
	})

	t.Run("SameStartProducesSingleMatch", func(t *testing.T) {
		// The Visa shape and the generic 16-digit fallback both begin at
		// offset 0 here; exactly one survives.
		matches := engine.Detect("4111111111111111")
		if len(matches) != 1 {
			t.Fatalf("Expected exactly 1 match, got %d", len(matches))
		}
		if matches[0].Category != CategoryCreditCard {
			t.Errorf("Expected credit_card, got %s", matches[0].Category)
		}
	})

	t.Run("OverlappingPhoneFamilies", func(t *testing.T) {
		// The international shape claims the full span, the US shape the
		// tail; one survives and it is the superset.
		text := "+1 555-123-4567"
		matches := engine.Detect(text)
		if len(matches) != 1 {
			t.Fatalf("Expected exactly 1 match, got %d", len(matches))
		}
		if matches[0].Value != text {
			t.Errorf("Expected the full span to survive, got %q", matches[0].Value)
		}
	})
}

func TestCountByCategory(t *testing.T) {
	engine := newTestEngine()

	t.Run("MixedText", func(t *testing.T) {
		matches := engine.Detect("a@b.com and c@d.org, ssn 123-45-6789")
		counts := CountByCategory(matches)
		if counts[CategoryEmail] != 2 {
			t.Errorf("Expected 2 emails, got %d", counts[CategoryEmail])
		}
		if counts[CategorySSN] != 1 {
			t.Errorf("Expected 1 ssn, got %d", counts[CategorySSN])
		}
	})

	t.Run("NoMatches", func(t *testing.T) {
		if counts := CountByCategory(nil); counts != nil {
			t.Errorf("Expected nil counts, got %v", counts)
		}
	})
}

// BenchmarkDetect benchmarks detection over mixed text
func BenchmarkDetect(b *testing.B) {
	engine := newTestEngine()
	text := "Contact john.doe@example.com or (555) 123-4567. SSN 123-45-6789, card 4111-1111-1111-1111. " +
		"Plain sentences follow with no sensitive content at all, just ordinary words."

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Detect(text)
	}
}
