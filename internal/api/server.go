package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-dynalite/internal/bridges/dynalite"
	"github.com/nerrad567/gray-logic-dynalite/internal/device"
	"github.com/nerrad567/gray-logic-dynalite/internal/host"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dynalite/internal/location"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Bridge is the part of *dynalite.Bridge the API reads.
type Bridge interface {
	Name() string
	Entities() []dynalite.Entity
	GetMetrics() dynalite.BridgeMetrics
}

// PlatformMetrics is implemented by *host.Platform.
type PlatformMetrics interface {
	GetMetrics() host.Metrics
}

// BridgeHandle pairs a bridge with the platform that adopted its entities.
type BridgeHandle struct {
	Bridge   Bridge
	Platform PlatformMetrics // optional
}

// MQTTStatus reports broker connectivity. *mqtt.Client implements it.
type MQTTStatus interface {
	IsConnected() bool
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	DB      *database.DB
	MQTT    MQTTStatus
	Devices *device.Registry
	Areas   location.Repository
	Bridges []BridgeHandle
	Version string
}

// Server is the diagnostics HTTP server of the Dynalite bridge service.
//
// It is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	db        *database.DB
	mqtt      MQTTStatus
	devices   *device.Registry
	areas     location.Repository
	bridges   []BridgeHandle
	version   string
	startTime time.Time
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, database, registries)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Areas == nil {
		return nil, fmt.Errorf("area repository is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		devices:   deps.Devices,
		areas:     deps.Areas,
		bridges:   deps.Bridges,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns so that a port conflict is
// reported to the caller; requests are then served in a background
// goroutine. The server can be stopped with Close().
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
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

// HealthCheck verifies the API server is running.
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
