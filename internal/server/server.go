package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/speller/internal/audit"
	"github.com/raaihank/speller/internal/config"
	"github.com/raaihank/speller/internal/etl"
	"github.com/raaihank/speller/internal/logger"
	"github.com/raaihank/speller/internal/patch"
	"github.com/raaihank/speller/internal/websocket"
)

// AuditStore persists runs and reports aggregate statistics
type AuditStore interface {
	etl.RunRecorder
	GetStats(ctx context.Context, topN int) (*audit.Stats, error)
}

// Deps holds the collaborators the server delegates to
type Deps struct {
	Checker etl.Checker
	Applier *patch.Applier
	Audit   AuditStore // nil disables /v1/stats and run auditing
	Version string
}

// Server exposes correction over HTTP
type Server struct {
	config    *config.Config
	logger    *logger.Logger
	deps      Deps
	router    *mux.Router
	server    *http.Server
	wsHub     *websocket.Hub
	startedAt time.Time
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger, deps Deps) *Server {
	if deps.Applier == nil {
		deps.Applier = patch.NewApplier(nil)
	}

	s := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		deps:      deps,
		router:    mux.NewRouter(),
		startedAt: time.Now(),
	}

	if cfg.WebSocket.Enabled {
		s.wsHub = websocket.NewHub(&websocket.HubConfig{
			BroadcastProgress:    cfg.WebSocket.Events.BroadcastProgress,
			BroadcastCorrections: cfg.WebSocket.Events.BroadcastCorrections,
			BroadcastRuns:        cfg.WebSocket.Events.BroadcastRuns,
			BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
			Username:             cfg.WebSocket.Username,
			Password:             cfg.WebSocket.Password,
			AllowedOrigins:       cfg.WebSocket.AllowedOrigins,
		}, log.Logger)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	if s.wsHub != nil {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.HandleFunc("/correct", s.handleCorrect).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub, or nil when WebSocket is disabled
func (s *Server) Hub() *websocket.Hub {
	return s.wsHub
}

// Start runs the hub and serves HTTP until Stop is called
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting speller server",
		zap.Int("port", s.config.Server.Port),
		zap.String("provider", s.deps.Checker.Provider()),
		zap.Bool("websocket", s.wsHub != nil),
		zap.Bool("audit", s.deps.Audit != nil))

	if s.wsHub != nil {
		go s.wsHub.Run(ctx)
	}

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping speller server")
	return s.server.Shutdown(ctx)
}
