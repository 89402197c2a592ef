package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aligncv/internal/config"
)

// Start starts the HTTP server with all configured components and blocks
// until SIGINT/SIGTERM or a listener failure.
func (s *Server) Start() error {
	httpServer := s.setupHTTPServer()

	if err := s.startVocabularyWatcher(); err != nil {
		s.Logger.LogError(err, "Failed to start vocabulary watcher, hot reload disabled")
	}
	if err := s.startPromptWatcher(); err != nil {
		s.Logger.LogError(err, "Failed to start prompt watcher, hot reload disabled")
	}

	vaultClient, err := s.initializeVaultClient()
	if err != nil {
		return err
	}
	if err := s.startVaultWatcher(vaultClient); err != nil {
		s.Logger.LogError(err, "Failed to start Vault watcher, API key rotation disabled")
	}

	s.displayServerInfo()

	return s.startWithGracefulShutdown(httpServer)
}

// initializeVaultClient returns nil when Vault is disabled
func (s *Server) initializeVaultClient() (VaultClientInterface, error) {
	if !s.AppConfig.Vault.Enabled || !s.AppConfig.Vault.Watcher.Enabled {
		return nil, nil
	}
	client, err := config.NewVaultClient(s.AppConfig.Vault, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Vault client: %w", err)
	}
	return client, nil
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
	}
}

// startWithGracefulShutdown starts the HTTP server and handles graceful shutdown
func (s *Server) startWithGracefulShutdown(server *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.stopBackground()
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-quit:
		s.Logger.Info("Received shutdown signal, starting graceful shutdown",
			"signal", sig.String())
		return s.performGracefulShutdown(server)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.stopBackground()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// stopBackground stops the watchers and the rate limiter cleanup
func (s *Server) stopBackground() {
	if s.vocabularyWatcher != nil {
		if err := s.vocabularyWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop vocabulary watcher")
		}
	}
	if s.promptWatcher != nil {
		if err := s.promptWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop prompt watcher")
		}
	}
	if s.vaultWatcher != nil {
		if err := s.vaultWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop Vault watcher")
		}
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
