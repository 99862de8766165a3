// Package api provides the read-only HTTP status surface for the
// observer.
//
// It exposes broker and recorder health plus query access to recorded
// sessions. The server is config-gated and carries no authentication:
// it is intended for the trusted factory network segment only. Every
// endpoint is a read; nothing here can publish, subscribe or mutate a
// session file.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
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

	"github.com/nerrad567/aps-observer/internal/infrastructure/config"
	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
	"github.com/nerrad567/aps-observer/internal/infrastructure/mqtt"
	"github.com/nerrad567/aps-observer/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BrokerStats reports client health. *mqtt.Client satisfies it.
type BrokerStats interface {
	GetStats() mqtt.Stats
}

// RecorderStats reports recording health. *session.Recorder satisfies it.
type RecorderStats interface {
	Active() []string
	Stats() []session.RecorderStats
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config       config.StatusAPIConfig
	Logger       *logging.Logger
	Broker       BrokerStats
	Recorder     RecorderStats
	SessionsRoot string
	Version      string
}

// Server is the read-only HTTP status server.
type Server struct {
	cfg          config.StatusAPIConfig
	logger       *logging.Logger
	broker       BrokerStats
	recorder     RecorderStats
	sessionsRoot string
	version      string
	server       *http.Server
}

// New creates a status server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, broker and recorder stats)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Broker == nil {
		return nil, fmt.Errorf("broker stats source is required")
	}
	if deps.Recorder == nil {
		return nil, fmt.Errorf("recorder stats source is required")
	}

	return &Server{
		cfg:          deps.Config,
		logger:       deps.Logger.With("component", "status-api"),
		broker:       deps.Broker,
		recorder:     deps.Recorder,
		sessionsRoot: deps.SessionsRoot,
		version:      deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("status API listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server, waiting for in-flight
// requests up to a bounded timeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status API shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status API: %w", err)
	}
	return nil
}
