package security

import (
	"testing"
	"time"

	"github.com/veillabs/veil/internal/config"
)

// TestRateLimiter tests per-client limiting behavior
func TestRateLimiter(t *testing.T) {
	t.Run("AllowsWithinBurst", func(t *testing.T) {
		limiter := NewRateLimiter(config.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 1,
			Burst:             3,
		})

		for i := 0; i < 3; i++ {
			if !limiter.Allow("10.0.0.1") {
				t.Errorf("Request %d within burst should be allowed", i)
			}
		}
		if limiter.Allow("10.0.0.1") {
			t.Error("Request beyond burst should be denied")
		}
	})

	t.Run("ClientsAreIndependent", func(t *testing.T) {
		limiter := NewRateLimiter(config.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 1,
			Burst:             1,
		})

		if !limiter.Allow("10.0.0.1") {
			t.Error("First client should be allowed")
		}
		if !limiter.Allow("10.0.0.2") {
			t.Error("Second client should have its own budget")
		}
		if limiter.Allow("10.0.0.1") {
			t.Error("First client should be exhausted")
		}
	})

	t.Run("DisabledAlwaysAllows", func(t *testing.T) {
		limiter := NewRateLimiter(config.RateLimitConfig{Enabled: false})

		for i := 0; i < 100; i++ {
			if !limiter.Allow("10.0.0.1") {
				t.Fatal("Disabled limiter should always allow")
			}
		}
		if limiter.ClientCount() != 0 {
			t.Error("Disabled limiter should not track clients")
		}
	})

	t.Run("CleanupRemovesIdleClients", func(t *testing.T) {
		limiter := NewRateLimiter(config.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 1,
			Burst:             1,
		})

		limiter.Allow("10.0.0.1")
		if limiter.ClientCount() != 1 {
			t.Fatalf("Expected 1 tracked client, got %d", limiter.ClientCount())
		}

		// Age the entry past the cutoff
		limiter.mu.Lock()
		limiter.clients["10.0.0.1"].lastSeen = time.Now().Add(-2 * time.Hour)
		limiter.mu.Unlock()

		limiter.CleanupIdleClients()
		if limiter.ClientCount() != 0 {
			t.Errorf("Expected idle client removed, got %d", limiter.ClientCount())
		}
	})
}
