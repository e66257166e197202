package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/veillabs/veil/internal/config"
	"github.com/veillabs/veil/internal/logger"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.Cache.Enabled = false
	cfg.Analytics.Enabled = false
	cfg.RateLimit.RequestsPerSecond = 1000
	cfg.RateLimit.Burst = 1000
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := New(cfg, &logger.Logger{Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	go srv.wsHub.Run()
	return srv
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func decodeScrub(t *testing.T, rec *httptest.ResponseRecorder) ScrubResponse {
	t.Helper()

	var resp ScrubResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestHandleScrub(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("FullMode", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/scrub", ScrubRequest{
			Text: "Contact me at john.doe@example.com or (555) 123-4567",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		resp := decodeScrub(t, rec)
		if resp.Text != "Contact me at [EMAIL] or [PHONE]" {
			t.Errorf("Unexpected scrubbed text: %q", resp.Text)
		}
		if resp.RedactionsMade != 2 {
			t.Errorf("Expected 2 redactions, got %d", resp.RedactionsMade)
		}
		if len(resp.PIITypesFound) != 2 {
			t.Errorf("Expected 2 categories, got %v", resp.PIITypesFound)
		}
		if resp.Categories["email"] != 1 || resp.Categories["phone"] != 1 {
			t.Errorf("Expected one email and one phone, got %v", resp.Categories)
		}
		if resp.RequestID == "" {
			t.Error("Expected a request ID")
		}
		if resp.Mode != "full" {
			t.Errorf("Expected full mode, got %q", resp.Mode)
		}
		if resp.Cached {
			t.Error("Expected uncached response")
		}
		if strings.Contains(rec.Body.String(), "john.doe@example.com") {
			t.Error("Response leaked the original value")
		}
	})

	t.Run("RequestedPartialMode", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/scrub", ScrubRequest{
			Text: "Card 4111111111111111 on file",
			Mode: "partial",
		})
		resp := decodeScrub(t, rec)
		if resp.Text != "Card ****-****-****-1111 on file" {
			t.Errorf("Unexpected scrubbed text: %q", resp.Text)
		}
		if resp.Mode != "partial" {
			t.Errorf("Expected partial mode, got %q", resp.Mode)
		}
	})

	t.Run("InvalidMode", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/scrub", ScrubRequest{Text: "x", Mode: "obfuscate"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("EmptyText", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/scrub", ScrubRequest{Text: ""})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		resp := decodeScrub(t, rec)
		if resp.RedactionsMade != 0 || resp.Text != "" {
			t.Errorf("Expected empty result, got %+v", resp)
		}
		if resp.PIITypesFound == nil {
			t.Error("Expected empty category list, got null")
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/v1/scrub", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/scrub", nil)
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", rec.Code)
		}
	})
}

func TestScrubDefaultsToConfiguredMode(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Redaction.DefaultMode = "partial"
	})

	rec := postJSON(t, srv, "/v1/scrub", ScrubRequest{Text: "ssn 123-45-6789"})
	resp := decodeScrub(t, rec)
	if resp.Text != "ssn ***-**-6789" {
		t.Errorf("Expected partial default, got %q", resp.Text)
	}
	if resp.Mode != "partial" {
		t.Errorf("Expected partial mode, got %q", resp.Mode)
	}
}

func TestHandleSanitize(t *testing.T) {
	srv := newTestServer(t, nil)

	// Sanitize ignores the requested mode and always redacts fully.
	rec := postJSON(t, srv, "/v1/sanitize", ScrubRequest{
		Text: "ssn 123-45-6789",
		Mode: "partial",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	resp := decodeScrub(t, rec)
	if resp.Text != "ssn [SSN]" {
		t.Errorf("Expected full redaction, got %q", resp.Text)
	}
	if resp.Mode != "full" {
		t.Errorf("Expected full mode, got %q", resp.Mode)
	}
}

func TestHandleDetect(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := postJSON(t, srv, "/v1/detect", ScrubRequest{Text: "write to a@b.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp DetectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Matches) != 1 {
		t.Fatalf("Expected 1 match, got %+v", resp)
	}
	m := resp.Matches[0]
	if m.Category != "email" {
		t.Errorf("Expected email category, got %s", m.Category)
	}
	if m.Start != 9 || m.End != 16 {
		t.Errorf("Expected offsets [9,16), got [%d,%d)", m.Start, m.End)
	}
	if resp.Categories["email"] != 1 {
		t.Errorf("Expected one email in categories, got %v", resp.Categories)
	}
	if strings.Contains(rec.Body.String(), "a@b.com") {
		t.Error("Detect response leaked the matched value")
	}

	t.Run("NoMatches", func(t *testing.T) {
		rec := postJSON(t, srv, "/v1/detect", ScrubRequest{Text: "nothing here"})
		var resp DetectResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Count != 0 || resp.Matches == nil {
			t.Errorf("Expected empty match list, got %+v", resp)
		}
	})
}

func TestBodyLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.MaxBodyBytes = 32
	})

	rec := postJSON(t, srv, "/v1/scrub", ScrubRequest{
		Text: strings.Repeat("x", 100),
	})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerSecond = 1
		cfg.RateLimit.Burst = 1
	})

	first := postJSON(t, srv, "/v1/scrub", ScrubRequest{Text: "hello"})
	if first.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", first.Code)
	}

	second := postJSON(t, srv, "/v1/scrub", ScrubRequest{Text: "hello"})
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("Unexpected health body: %s", rec.Body.String())
	}
}

func TestHandleInfo(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest("GET", "/info", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	var info map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if info["name"] != "veil" {
		t.Errorf("Expected name veil, got %v", info["name"])
	}
	if categories, ok := info["categories"].([]interface{}); !ok || len(categories) != 4 {
		t.Errorf("Expected 4 categories, got %v", info["categories"])
	}
}

func TestHandleStats(t *testing.T) {
	srv := newTestServer(t, nil)

	postJSON(t, srv, "/v1/scrub", ScrubRequest{
		Text: "a@b.com and 4111-1111-1111-1111",
	})

	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	var stats StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if stats.TotalRequests != 1 {
		t.Errorf("Expected 1 request, got %d", stats.TotalRequests)
	}
	if stats.TotalDetections != 2 {
		t.Errorf("Expected 2 detections, got %d", stats.TotalDetections)
	}
	if stats.TotalRedactions != 2 {
		t.Errorf("Expected 2 redactions, got %d", stats.TotalRedactions)
	}
	if stats.Cache != nil {
		t.Error("Expected no cache stats when cache is disabled")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected string
	}{
		{"XForwardedFor", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "203.0.113.9"},
		{"XRealIP", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"RemoteAddrFallback", nil, "192.0.2.1:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
