package pii

import "regexp"

// patternSet holds the ordered shape matchers for one category. Order
// matters: the first validated candidate at a given start offset wins, so
// brand-specific card shapes precede the generic fallback.
type patternSet struct {
	category Category
	shapes   []*regexp.Regexp
	validate func(string) bool // nil when the shape match is sufficient
}

// library is built once at process start and never mutated afterwards, so
// any number of goroutines can scan concurrently without synchronization.
// Shapes stay free of nested quantifiers; matching cost is linear in input
// length even on adversarial text.
var library = []patternSet{
	{
		category: CategoryEmail,
		shapes: []*regexp.Regexp{
			regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		},
	},
	{
		category: CategoryPhone,
		shapes: []*regexp.Regexp{
			// US formats, then international +cc
			regexp.MustCompile(`\(\d{3}\)\s?\d{3}-\d{4}\b`),
			regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
			regexp.MustCompile(`\+\d{1,3}[-.\s]?\d{1,4}[-.\s]?\d{3,4}[-.\s]?\d{3,4}\b`),
		},
		validate: validPhone,
	},
	{
		category: CategorySSN,
		shapes: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{3}[- ]?\d{2}[- ]?\d{4}\b`),
		},
		validate: validSSN,
	},
	{
		category: CategoryCreditCard,
		shapes: []*regexp.Regexp{
			// Visa, MasterCard, Amex, Discover, then a generic 16-digit fallback
			regexp.MustCompile(`\b4\d{3}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
			regexp.MustCompile(`\b5[1-5]\d{2}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
			regexp.MustCompile(`\b3[47]\d{2}[-\s]?\d{6}[-\s]?\d{5}\b`),
			regexp.MustCompile(`\b6011[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
			regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
		},
		validate: validCardNumber,
	},
}

// Categories returns the closed set of detected categories in scan order.
func Categories() []Category {
	out := make([]Category, len(library))
	for i, set := range library {
		out[i] = set.category
	}
	return out
}
