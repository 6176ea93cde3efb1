package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openwx/ecowitt-core/internal/collector"
	"github.com/openwx/ecowitt-core/internal/infrastructure/config"
	"github.com/openwx/ecowitt-core/internal/infrastructure/influxdb"
	"github.com/openwx/ecowitt-core/internal/infrastructure/logging"
	"github.com/openwx/ecowitt-core/internal/infrastructure/mqtt"
	"github.com/openwx/ecowitt-core/internal/publisher"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Collector *collector.Collector
	Publisher *publisher.Publisher
	MQTT      *mqtt.Client     // optional, reported in health
	InfluxDB  *influxdb.Client // optional, reported in health
	Version   string
}

// Server is the read-only diagnostics HTTP server.
//
// It exposes the driver's health, Prometheus metrics and the latest
// polled state. It never writes to the gateway.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	collector *collector.Collector
	publisher *publisher.Publisher
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	version   string
	server    *http.Server
}

// New creates an API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, collector)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Collector == nil {
		return nil, fmt.Errorf("collector is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		collector: deps.Collector,
		publisher: deps.Publisher,
		mqtt:      deps.MQTT,
		influx:    deps.InfluxDB,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests to complete.
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
