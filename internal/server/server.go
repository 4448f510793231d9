package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/briefing/internal/app"
)

const (
	readTimeout = 15 * time.Second
	// On-demand analysis may wait on the LLM
	writeTimeout = 60 * time.Second
	idleTimeout  = 60 * time.Second
)

// Server serves the briefing HTTP API
type Server struct {
	app    *app.App
	server *http.Server
}

// New builds the server and its routes from the application
func New(application *app.App) *Server {
	s := &Server{app: application}
	addr := net.JoinHostPort(application.Config.Server.Host, strconv.Itoa(application.Config.Server.Port))
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.withMiddleware(s.setupRoutes()),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// Handler returns the routed handler with middleware
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr is the listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start blocks serving HTTP until Shutdown
func (s *Server) Start() error {
	s.app.Logger.Info().Str("address", s.server.Addr).Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}
