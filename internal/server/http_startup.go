package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const shutdownTimeout = 30 * time.Second

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	httpServer := s.setupHTTPServer()

	if s.StoreWatcher != nil {
		if err := s.StoreWatcher.Start(); err != nil && s.Logger != nil {
			s.Logger.Warn("Store watcher unavailable, cached queries expire by TTL only", "error", err.Error())
		}
	}

	s.displayServerInfo()

	serverErrors := make(chan error, 1)
	go func() {
		if s.Logger != nil {
			s.Logger.Info("Starting HTTP server", "address", httpServer.Addr)
		}
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.cleanup()
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		if s.Logger != nil {
			s.Logger.Info("Received shutdown signal, starting graceful shutdown")
		}
		return s.performGracefulShutdown(httpServer)
	}
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.cleanup()

	if s.Logger != nil {
		s.Logger.Info("Shutting down HTTP server...")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		if s.Logger != nil {
			s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		}
		return server.Close()
	}

	if s.Logger != nil {
		s.Logger.Info("Server shutdown completed successfully")
	}
	return nil
}

// cleanup stops the store watcher and the rate limiter
func (s *Server) cleanup() {
	if s.StoreWatcher != nil {
		if err := s.StoreWatcher.Stop(); err != nil && s.Logger != nil {
			s.Logger.LogError(err, "Failed to stop store watcher")
		}
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
	}
}
