package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lacquerai/blockrt/internal/registry"
)

// Config holds the server configuration
type Config struct {
	Host            string
	Port            int
	EnableMetrics   bool
	EnableCORS      bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            8090,
		EnableMetrics:   true,
		EnableCORS:      true,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server exposes a block registry over HTTP and WebSocket
type Server struct {
	config   *Config
	registry *registry.Registry
	promReg  *prometheus.Registry
	server   *http.Server
	upgrader websocket.Upgrader
}

// New creates a new registry server. promReg is the same registry the
// registry's Metrics were registered against (registry.NewMetrics); it is
// gathered at /metrics instead of prometheus.DefaultGatherer so the
// instruments registered there are actually exposed. A nil promReg falls
// back to prometheus.DefaultGatherer.
func New(config *Config, reg *registry.Registry, promReg *prometheus.Registry) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	return &Server{
		config:   config,
		registry: reg,
		promReg:  promReg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return config.EnableCORS // Allow all origins if CORS enabled
			},
		},
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	// Setup routes
	router := mux.NewRouter()
	router.Use(s.requestIDMiddleware)

	// Apply CORS middleware to all routes if enabled
	if s.config.EnableCORS {
		router.Use(s.corsMiddleware)
	}

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)

	// Block endpoints
	api.HandleFunc("/blocks", s.listBlocks).Methods("GET")
	api.HandleFunc("/blocks/{name}", s.getBlock).Methods("GET")
	api.HandleFunc("/blocks/{name}/execute", s.executeBlock).Methods("POST")
	api.HandleFunc("/blocks/{name}/stream", s.streamEvents).Methods("GET")

	// Handle OPTIONS for CORS preflight
	if s.config.EnableCORS {
		api.Methods("OPTIONS").HandlerFunc(s.handleOptions)
	}

	// Metrics endpoint. Gather from the same *prometheus.Registry the
	// instruments were registered against (registry.NewMetrics), not
	// prometheus.DefaultGatherer — the two are disjoint, so promhttp.Handler()
	// would serve an always-empty page.
	if s.config.EnableMetrics {
		if s.promReg != nil {
			router.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
		} else {
			router.Handle("/metrics", promhttp.Handler())
		}
	}

	// Health check
	router.HandleFunc("/health", s.healthCheck)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	log.Info().
		Str("addr", addr).
		Int("blocks", len(s.registry.Names())).
		Bool("metrics", s.config.EnableMetrics).
		Msg("Starting block registry server")

	// Start server
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	return nil
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Info().Msg("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// StartWithGracefulShutdown starts the server and handles graceful shutdown
func (s *Server) StartWithGracefulShutdown() error {
	if err := s.Start(); err != nil {
		return err
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer shutdownCancel()

		if err := s.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}

		cancel()
	}()

	// Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("Server shutdown complete")
	return nil
}

// GetAddr returns the configured server address. A configured port of 0 is
// not resolved to the port the listener was actually assigned.
func (s *Server) GetAddr() string {
	if s.server != nil && s.config.Port == 0 {
		// The configured address, still carrying port 0
		return s.server.Addr
	}
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// GetBlockCount returns the number of registered blocks
func (s *Server) GetBlockCount() int {
	return len(s.registry.Names())
}

// handleOptions handles CORS preflight requests
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	// CORS headers are already set by middleware
	w.WriteHeader(http.StatusOK)
}
