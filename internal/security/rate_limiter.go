package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/veillabs/veil/internal/config"
)

// RateLimiter provides per-client request limiting for DoS protection.
type RateLimiter struct {
	config  config.RateLimitConfig
	clients map[string]*clientLimiter
	mu      sync.RWMutex
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:  cfg,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow checks if a request from the given client IP is allowed
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.config.Enabled {
		return true
	}

	client := r.getClient(clientIP)

	client.mu.Lock()
	client.lastSeen = time.Now()
	client.mu.Unlock()

	return client.limiter.Allow()
}

// getClient gets or creates the limiter for a client IP
func (r *RateLimiter) getClient(clientIP string) *clientLimiter {
	r.mu.RLock()
	client, exists := r.clients[clientIP]
	r.mu.RUnlock()

	if exists {
		return client
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if client, exists := r.clients[clientIP]; exists {
		return client
	}

	client = &clientLimiter{
		limiter:  rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.Burst),
		lastSeen: time.Now(),
	}

	r.clients[clientIP] = client
	return client
}

// ClientCount returns the number of tracked clients
func (r *RateLimiter) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CleanupIdleClients removes entries not seen for an hour to prevent the
// registry growing without bound.
func (r *RateLimiter) CleanupIdleClients() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-time.Hour)

	for ip, client := range r.clients {
		client.mu.Lock()
		if client.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
		}
		client.mu.Unlock()
	}
}

// StartCleanupRoutine starts a background routine to clean up idle clients
func (r *RateLimiter) StartCleanupRoutine() {
	interval := r.config.CleanupInterval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			r.CleanupIdleClients()
		}
	}()
}
