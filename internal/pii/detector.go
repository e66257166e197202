package pii

import (
	"sort"

	"github.com/veillabs/veil/internal/logger"
)

// Engine detects and redacts PII. It is stateless across calls and safe
// for concurrent use from any number of goroutines.
type Engine struct {
	logger *logger.Logger
}

// New creates a new detection and redaction engine.
func New(log *logger.Logger) *Engine {
	return &Engine{logger: log}
}

// Detect scans text and returns every validated match, sorted ascending by
// start offset and pairwise disjoint. Input without PII, including the
// empty string, yields an empty result; Detect never fails.
func (e *Engine) Detect(text string) []Match {
	if text == "" {
		return nil
	}

	var matches []Match
	claimed := make(map[int]bool)

	for _, set := range library {
		for _, shape := range set.shapes {
			for _, loc := range shape.FindAllStringIndex(text, -1) {
				start, end := loc[0], loc[1]
				value := text[start:end]

				if set.validate != nil && !set.validate(value) {
					continue
				}

				// First validated candidate at a given start wins, within
				// and across categories. A generic card shape can never
				// duplicate the brand shape that already claimed its start.
				if claimed[start] {
					continue
				}
				claimed[start] = true

				matches = append(matches, Match{
					Category:   set.category,
					Value:      value,
					Start:      start,
					End:        end,
					Confidence: 1.0,
				})
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Start < matches[j].Start
	})

	return dropOverlaps(matches)
}

// CountByCategory tallies matches per category. An empty match list
// yields nil.
func CountByCategory(matches []Match) map[Category]int {
	if len(matches) == 0 {
		return nil
	}
	counts := make(map[Category]int, 4)
	for _, m := range matches {
		counts[m.Category]++
	}
	return counts
}

// dropOverlaps removes matches overlapping an earlier-starting survivor.
// The US and international phone shapes can claim one number at different
// offsets; the redaction splice needs disjoint spans, so the earlier
// (superset) span is kept.
func dropOverlaps(matches []Match) []Match {
	if len(matches) < 2 {
		return matches
	}

	kept := make([]Match, 0, len(matches))
	kept = append(kept, matches[0])
	for _, m := range matches[1:] {
		if m.Start < kept[len(kept)-1].End {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}
