package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypePIIDetection represents a PII detection event
	EventTypePIIDetection EventType = "pii_detection"
	// EventTypeRequestLog represents a request logging event
	EventTypeRequestLog EventType = "request_log"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// DetectionEvent reports what was found in one request. It carries
// category counts only, never the matched values or the input text.
type DetectionEvent struct {
	RequestID    string         `json:"request_id"`
	Source       string         `json:"source"`
	ClientIP     string         `json:"client_ip"`
	Categories   map[string]int `json:"categories"`
	TotalMatches int            `json:"total_matches"`
	Redactions   int            `json:"redactions"`
	Mode         string         `json:"mode"`
	ProcessingMS float64        `json:"processing_ms"`
}

// RequestLogEvent represents a request logging event
type RequestLogEvent struct {
	RequestID    string  `json:"request_id"`
	Method       string  `json:"method"`
	Path         string  `json:"path"`
	StatusCode   int     `json:"status_code"`
	ClientIP     string  `json:"client_ip"`
	UserAgent    string  `json:"user_agent,omitempty"`
	DurationMS   float64 `json:"duration_ms"`
	RequestSize  int64   `json:"request_size"`
	ResponseSize int64   `json:"response_size"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalRequests    int64  `json:"total_requests"`
	TotalDetections  int64  `json:"total_detections"`
	TotalRedactions  int64  `json:"total_redactions"`
	ConnectedClients int    `json:"connected_clients"`
	CacheEnabled     bool   `json:"cache_enabled"`
	AnalyticsEnabled bool   `json:"analytics_enabled"`
	MemoryUsage      string `json:"memory_usage,omitempty"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	LastPing    time.Time
	IP          string
	UserAgent   string

	// subscription is written by the read pump and read by the hub.
	mu           sync.RWMutex
	subscription *SubscriptionRequest
}

func (c *Client) setSubscription(s *SubscriptionRequest) {
	c.mu.Lock()
	c.subscription = s
	c.mu.Unlock()
}

func (c *Client) currentSubscription() *SubscriptionRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscription
}
