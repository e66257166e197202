package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/veillabs/veil/internal/analytics"
	"github.com/veillabs/veil/internal/cache"
	"github.com/veillabs/veil/internal/pii"
	"github.com/veillabs/veil/internal/websocket"
)

// ScrubRequest is the body of the scrubbing endpoints. Source is an
// optional caller tag used in analytics and dashboard events.
type ScrubRequest struct {
	Text   string `json:"text"`
	Mode   string `json:"mode,omitempty"`
	Source string `json:"source,omitempty"`
}

// ScrubResponse returns the scrubbed text and what was found.
type ScrubResponse struct {
	RequestID      string         `json:"request_id"`
	Text           string         `json:"text"`
	RedactionsMade int            `json:"redactions_made"`
	PIITypesFound  []pii.Category `json:"pii_types_found"`
	Categories     map[string]int `json:"categories,omitempty"`
	Mode           string         `json:"mode"`
	Cached         bool           `json:"cached"`
	ProcessingMS   float64        `json:"processing_ms"`
}

// DetectResponse lists match positions and per-category counts.
// Matched values are not serialized.
type DetectResponse struct {
	Matches    []pii.Match    `json:"matches"`
	Count      int            `json:"count"`
	Categories map[string]int `json:"categories,omitempty"`
}

// StatsResponse aggregates service statistics for /stats.
type StatsResponse struct {
	Status          string             `json:"status"`
	Uptime          string             `json:"uptime"`
	TotalRequests   int64              `json:"total_requests"`
	TotalDetections int64              `json:"total_detections"`
	TotalRedactions int64              `json:"total_redactions"`
	WebSocket       websocket.HubStats `json:"websocket"`
	Cache           *cache.Stats       `json:"cache,omitempty"`
	Analytics       *analytics.Summary `json:"analytics,omitempty"`
}

// handleScrub redacts PII in the submitted text, honoring the requested
// mode or falling back to the configured default.
func (s *Server) handleScrub(w http.ResponseWriter, r *http.Request) {
	s.scrub(w, r, "")
}

// handleSanitize is handleScrub pinned to full redaction, for callers
// that must never receive partial values.
func (s *Server) handleSanitize(w http.ResponseWriter, r *http.Request) {
	s.scrub(w, r, pii.ModeFull)
}

func (s *Server) scrub(w http.ResponseWriter, r *http.Request, forced pii.Mode) {
	start := time.Now()
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	mode := forced
	if mode == "" {
		var err error
		mode, err = s.resolveMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	source := req.Source
	if source == "" {
		source = "api"
	}

	if s.cache != nil {
		if entry, found := s.cache.Get(r.Context(), req.Text, mode); found {
			s.stats.addRedactions(entry.Result.RedactionsMade)
			writeJSON(w, http.StatusOK, ScrubResponse{
				RequestID:      requestID,
				Text:           entry.Result.Text,
				RedactionsMade: entry.Result.RedactionsMade,
				PIITypesFound:  entry.Result.PIITypesFound,
				Categories:     entry.Categories,
				Mode:           string(mode),
				Cached:         true,
				ProcessingMS:   elapsedMS(start),
			})
			return
		}
	}

	matches := s.engine.Detect(req.Text)
	detail := s.engine.RedactMatches(req.Text, matches, mode)
	counts := pii.CountByCategory(matches)
	categories := stringCounts(counts)

	s.stats.addDetections(len(matches))
	s.stats.addRedactions(detail.RedactionsMade)

	if s.cache != nil {
		if err := s.cache.Set(r.Context(), req.Text, mode, detail, categories); err != nil {
			log.Debug("Failed to cache result", zap.Error(err))
		}
	}

	if len(matches) > 0 {
		s.recordDetections(source, mode, counts)
		s.broadcastDetection(r, requestID, source, mode, categories, detail.RedactionsMade, elapsedMS(start))
		log.Info("PII redacted",
			zap.Int("redactions", detail.RedactionsMade),
			zap.Int("categories", len(counts)),
			zap.String("mode", string(mode)),
		)
	}

	writeJSON(w, http.StatusOK, ScrubResponse{
		RequestID:      requestID,
		Text:           detail.Text,
		RedactionsMade: detail.RedactionsMade,
		PIITypesFound:  detail.PIITypesFound,
		Categories:     categories,
		Mode:           string(mode),
		ProcessingMS:   elapsedMS(start),
	})
}

// handleDetect reports match positions without rewriting the text.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	matches := s.engine.Detect(req.Text)
	s.stats.addDetections(len(matches))

	if matches == nil {
		matches = []pii.Match{}
	}
	writeJSON(w, http.StatusOK, DetectResponse{
		Matches:    matches,
		Count:      len(matches),
		Categories: stringCounts(pii.CountByCategory(matches)),
	})
}

// stringCounts converts category counts to their JSON form. Empty input
// yields nil so the field is omitted entirely.
func stringCounts(counts map[pii.Category]int) map[string]int {
	if len(counts) == 0 {
		return nil
	}
	out := make(map[string]int, len(counts))
	for category, n := range counts {
		out[string(category)] = n
	}
	return out
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":              "veil",
		"version":           Version,
		"default_mode":      s.config.Redaction.DefaultMode,
		"categories":        pii.Categories(),
		"cache_enabled":     s.cache != nil,
		"analytics_enabled": s.analytics != nil,
		"websocket_enabled": s.config.WebSocket.Enabled,
	})
}

// handleStats aggregates counters from the server, the hub, and the
// optional backends.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Status:          "healthy",
		Uptime:          time.Since(s.startTime).Round(time.Second).String(),
		TotalRequests:   s.stats.requests(),
		TotalDetections: s.stats.detections(),
		TotalRedactions: s.stats.redactions(),
		WebSocket:       s.wsHub.GetStats(),
	}

	if s.cache != nil {
		stats, err := s.cache.GetStats(r.Context())
		if err != nil {
			s.logger.Warn("Failed to collect cache stats", zap.Error(err))
		} else {
			resp.Cache = stats
		}
	}

	if s.analytics != nil {
		summary, err := s.analytics.Summary(r.Context(), time.Now().Add(-24*time.Hour))
		if err != nil {
			s.logger.Warn("Failed to collect analytics summary", zap.Error(err))
		} else {
			resp.Analytics = summary
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (ScrubRequest, bool) {
	var req ScrubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit))
			return req, false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	return req, true
}

func (s *Server) resolveMode(requested string) (pii.Mode, error) {
	if requested == "" {
		requested = s.config.Redaction.DefaultMode
	}
	return pii.ParseMode(requested)
}

// recordDetections writes aggregate counts to the analytics store off
// the request path.
func (s *Server) recordDetections(source string, mode pii.Mode, counts map[pii.Category]int) {
	if s.analytics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Errors are logged by the store.
		s.analytics.RecordDetections(ctx, source, mode, counts)
	}()
}

func (s *Server) broadcastDetection(r *http.Request, requestID, source string, mode pii.Mode, categories map[string]int, redactions int, processingMS float64) {
	total := 0
	for _, n := range categories {
		total += n
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypePIIDetection,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.DetectionEvent{
			RequestID:    requestID,
			Source:       source,
			ClientIP:     getClientIP(r),
			Categories:   categories,
			TotalMatches: total,
			Redactions:   redactions,
			Mode:         string(mode),
			ProcessingMS: processingMS,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}
