package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pilotfs/uploadgateway/internal/logger"
	"github.com/pilotfs/uploadgateway/pkg/upload"
)

// ServerConfig controls the HTTP listener, bound from config.ServerConfig.
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// Server hosts the upload gateway's HTTP surface with graceful shutdown.
type Server struct {
	server       *http.Server
	config       ServerConfig
	shutdownOnce sync.Once
}

// NewServer builds a Server bound to coordinator, not yet listening.
func NewServer(cfg ServerConfig, coordinator *upload.Coordinator, build BuildInfo) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}

	router := NewRouter(coordinator, build)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{server: httpServer, config: cfg}
}

// Start listens and blocks until ctx is cancelled or the server fails,
// then performs a graceful shutdown bounded by the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("api server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("api server failed: %w", err)
	}
}

// Stop gracefully shuts down the server; safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("api server shutdown: %w", err)
			logger.Error("api server shutdown error", "error", err)
			return
		}
		logger.Info("api server stopped gracefully")
	})
	return shutdownErr
}
