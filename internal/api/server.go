// Package api provides the HTTP REST API and WebSocket server for punchcore.
//
// It exposes the reader registry, card ledger, and punch event log over
// REST, and carries the persistent reader connections over WebSocket.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/calder-systems/punchcore/internal/card"
	"github.com/calder-systems/punchcore/internal/infrastructure/config"
	"github.com/calder-systems/punchcore/internal/infrastructure/logging"
	"github.com/calder-systems/punchcore/internal/punch"
	"github.com/calder-systems/punchcore/internal/punchlog"
	"github.com/calder-systems/punchcore/internal/reader"
	"github.com/calder-systems/punchcore/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StatusPublisher receives reader status and location changes for
// external fan-out. Implementations must not block.
type StatusPublisher interface {
	PublishReaderStatus(readerID string, online bool)
	PublishReaderLocation(readerID string, loc reader.Location)
}

// StatusTelemetry receives reader status and location changes for
// time-series recording. Implementations must not block.
type StatusTelemetry interface {
	RecordReaderStatus(readerID string, online bool)
	RecordReaderLocation(readerID string, lat, lng float64)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Readers   *reader.Registry
	Cards     *card.Ledger
	Events    punchlog.Repository
	Processor *punch.Processor
	Sessions  *session.Manager
	Publisher StatusPublisher // optional
	Telemetry StatusTelemetry // optional
	Version   string
}

// Server is the HTTP API server for punchcore.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket
// reader sessions. The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	readers   *reader.Registry
	cards     *card.Ledger
	events    punchlog.Repository
	processor *punch.Processor
	sessions  *session.Manager
	publisher StatusPublisher
	telemetry StatusTelemetry
	version   string
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Readers == nil {
		return nil, fmt.Errorf("reader registry is required")
	}
	if deps.Cards == nil {
		return nil, fmt.Errorf("card ledger is required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("event log is required")
	}
	if deps.Processor == nil {
		return nil, fmt.Errorf("punch processor is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		readers:   deps.Readers,
		cards:     deps.Cards,
		events:    deps.Events,
		processor: deps.Processor,
		sessions:  deps.Sessions,
		publisher: deps.Publisher,
		telemetry: deps.Telemetry,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
