// Package server exposes the coordinator over HTTP: link snapshots, event
// injection, the notification journal, a websocket stream and metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/wlcoord/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/wlcoord/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/wlcoord/internal/core/ports"
)

// Options configures a Server.
type Options struct {
	Addr string
	// TokenHash is the bcrypt hash of the bearer token for event injection.
	// Empty disables injection.
	TokenHash []byte
	// EventRate is the number of injected events allowed per minute per client.
	EventRate      int
	AllowedOrigins []string
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	opts   Options
	logger *slog.Logger

	WSManager       *websocket.WSManager
	LinkHandler     *handlers.LinkHandler
	JournalHandler  *handlers.JournalHandler
	DataPathHandler *handlers.DataPathHandler

	srv *http.Server
}

// NewServer creates a new web server. journal may be nil.
func NewServer(opts Options, links ports.LinkDirectory, tables handlers.RegistrationLister, journal handlers.JournalReader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.EventRate <= 0 {
		opts.EventRate = 60
	}
	logger = logger.With("component", "web")
	return &Server{
		opts:            opts,
		logger:          logger,
		WSManager:       websocket.NewWSManager(links, opts.AllowedOrigins, logger),
		LinkHandler:     handlers.NewLinkHandler(links, logger),
		JournalHandler:  handlers.NewJournalHandler(journal, logger),
		DataPathHandler: handlers.NewDataPathHandler(tables),
	}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(SetupRoutes(s), "wlcoord-server")
}

// Run starts the server and the broadcaster, and shuts down when ctx ends.
func (s *Server) Run(ctx context.Context) error {
	s.WSManager.Start(ctx)

	s.srv = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("web server shutdown error", "error", err)
		}
	}()

	s.logger.Info("web server listening", "addr", s.opts.Addr, "injection", len(s.opts.TokenHash) > 0)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
