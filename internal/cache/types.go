package cache

import (
	"time"

	"github.com/veillabs/veil/internal/pii"
)

// CachedEntry wraps one redaction result stored in Redis. Only
// post-redaction output and aggregate counts are stored; the original
// text never leaves the request that produced it.
type CachedEntry struct {
	Result     pii.RedactionResult `json:"result"`
	Categories map[string]int      `json:"categories,omitempty"`
	Mode       string              `json:"mode"`
	CachedAt   time.Time           `json:"cached_at"`
}

// Stats represents cache performance statistics
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Errors      int64   `json:"errors"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes"`
}
