package analytics

import (
	"time"
)

// DetectionEvent is one aggregate row: how many matches of a single
// category were found in one scrubbed request. The matched values
// themselves are never stored.
type DetectionEvent struct {
	ID        int64     `db:"id" json:"id"`
	Source    string    `db:"source" json:"source"`
	Category  string    `db:"category" json:"category"`
	Matches   int       `db:"matches" json:"matches"`
	Mode      string    `db:"mode" json:"mode"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CategoryCount aggregates detection events for one category.
type CategoryCount struct {
	Category string `db:"category" json:"category"`
	Events   int64  `db:"events" json:"events"`
	Matches  int64  `db:"matches" json:"matches"`
}

// Summary represents detection totals since a given time.
type Summary struct {
	Since        time.Time       `json:"since"`
	TotalEvents  int64           `json:"total_events"`
	TotalMatches int64           `json:"total_matches"`
	Categories   []CategoryCount `json:"categories"`
}
