// Package server exposes the PII engine over HTTP: scrub endpoints,
// operational endpoints, and the live dashboard feed.
package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/veillabs/veil/internal/analytics"
	"github.com/veillabs/veil/internal/cache"
	"github.com/veillabs/veil/internal/config"
	"github.com/veillabs/veil/internal/logger"
	"github.com/veillabs/veil/internal/pii"
	"github.com/veillabs/veil/internal/security"
	"github.com/veillabs/veil/internal/web"
	"github.com/veillabs/veil/internal/websocket"
)

// Version is the service version reported by /info and the CLI.
const Version = "0.1.0"

// statusInterval is how often the system status event is broadcast to
// dashboard clients.
const statusInterval = 30 * time.Second

// Server represents the main scrubbing service
type Server struct {
	config    *config.Config
	logger    *logger.Logger
	engine    *pii.Engine
	cache     *cache.ResultCache
	analytics *analytics.Store
	limiter   *security.RateLimiter
	router    *mux.Router
	server    *http.Server
	wsHub     *websocket.Hub
	startTime time.Time
	stopCh    chan struct{}
	stats     serverStats
}

// New creates a new server instance. The cache and analytics store are
// only connected when enabled in the configuration.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	engine := pii.New(log.WithComponent("pii"))

	wsHub := websocket.NewHub(cfg.WebSocket, log)

	var resultCache *cache.ResultCache
	if cfg.Cache.Enabled {
		var err error
		resultCache, err = cache.NewResultCache(cfg.Cache, log.WithComponent("cache"))
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
	}

	var store *analytics.Store
	if cfg.Analytics.Enabled {
		var err error
		store, err = analytics.NewStore(cfg.Analytics, log.WithComponent("analytics"))
		if err != nil {
			return nil, fmt.Errorf("failed to create analytics store: %w", err)
		}
	}

	server := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		engine:    engine,
		cache:     resultCache,
		analytics: store,
		limiter:   security.NewRateLimiter(cfg.RateLimit),
		router:    mux.NewRouter(),
		wsHub:     wsHub,
		startTime: time.Now(),
		stopCh:    make(chan struct{}),
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Scrubbing API
	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.Use(s.bodyLimitMiddleware)
	api.HandleFunc("/scrub", s.handleScrub).Methods("POST")
	api.HandleFunc("/sanitize", s.handleSanitize).Methods("POST")
	api.HandleFunc("/detect", s.handleDetect).Methods("POST")

	// Operational endpoints
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Dashboard
	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting Veil server",
		zap.Int("port", s.config.Server.Port),
		zap.String("default_mode", s.config.Redaction.DefaultMode),
		zap.Bool("cache_enabled", s.cache != nil),
		zap.Bool("analytics_enabled", s.analytics != nil),
		zap.Bool("websocket_enabled", s.config.WebSocket.Enabled),
	)

	go s.wsHub.Run()
	s.limiter.StartCleanupRoutine()
	if s.config.WebSocket.Enabled && s.config.WebSocket.Events.BroadcastSystem {
		go s.systemStatusLoop()
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server and closes backend connections.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping Veil server")
	close(s.stopCh)

	err := s.server.Shutdown(ctx)

	if s.cache != nil {
		if cerr := s.cache.Close(); cerr != nil {
			s.logger.Warn("Failed to close cache", zap.Error(cerr))
		}
	}
	if s.analytics != nil {
		if cerr := s.analytics.Close(); cerr != nil {
			s.logger.Warn("Failed to close analytics store", zap.Error(cerr))
		}
	}

	return err
}

// handleWebSocket handles WebSocket connections for the dashboard
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}

// systemStatusLoop periodically broadcasts a status event to dashboard
// clients until the server stops.
func (s *Server) systemStatusLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.broadcastSystemStatus()
		}
	}
}

func (s *Server) broadcastSystemStatus() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeSystemStatus,
		Timestamp: time.Now(),
		Data: websocket.SystemStatusEvent{
			Status:           "healthy",
			Uptime:           time.Since(s.startTime).Round(time.Second).String(),
			TotalRequests:    s.stats.requests(),
			TotalDetections:  s.stats.detections(),
			TotalRedactions:  s.stats.redactions(),
			ConnectedClients: s.wsHub.ClientCount(),
			CacheEnabled:     s.cache != nil,
			AnalyticsEnabled: s.analytics != nil,
			MemoryUsage:      fmt.Sprintf("%.1f MiB", float64(mem.Alloc)/(1<<20)),
		},
	})
}
