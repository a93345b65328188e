// Package server implements the room-host's boot sequence (§4.5):
// acquire one Context, construct a Page per configured URL prefix, host
// the HTTP/WS surface, and release the Context on shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/h3ndrk/roomhost/config"
	"github.com/h3ndrk/roomhost/internal/backendctx"
	"github.com/h3ndrk/roomhost/internal/page"
	"github.com/h3ndrk/roomhost/internal/room"
)

// Server owns one Context and every Page built from configuration.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	backend    backendctx.Context
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	backend, err := backendctx.New(backendctx.Config{
		Type:       cfg.Context.Type,
		URL:        cfg.Context.URL,
		LoggerName: cfg.Context.LoggerName,
	})
	if err != nil {
		return nil, fmt.Errorf("server: build context: %w", err)
	}

	return &Server{
		cfg:     cfg,
		logger:  logger,
		backend: backend,
	}, nil
}

// Start acquires the backend Context, builds every configured Page,
// and starts the HTTP listener. It returns once the listener has been
// scheduled; listener errors after that point are logged, not
// returned, matching the boot sequence's "start the listener, then
// wait on the stop event" shape.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Debug("acquiring context")
	if err := s.backend.Acquire(ctx); err != nil {
		return fmt.Errorf("server: acquire context: %w", err)
	}

	dc, ok := s.backend.(*backendctx.DockerContext)
	if !ok {
		return fmt.Errorf("server: unsupported context implementation %T", s.backend)
	}

	router := chi.NewRouter()

	s.logger.Debug("adding pages")
	for url, pageCfg := range s.cfg.Pages {
		s.logger.Debug("adding page", "url", url)
		page.New(router, dc.Engine, url, toRoomConfig(pageCfg), s.logger)
	}
	s.logger.Debug("pages added")

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: router,
	}

	s.logger.Debug("starting server")
	listener, err := newListener(s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}

	go func() {
		s.logger.Info("listening", "address", s.httpServer.Addr)
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()

	return nil
}

// Stop tears the listener down, then releases the backend Context.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shut down http server", "error", err)
		}
	}
	return s.backend.Release(ctx)
}

func toRoomConfig(p config.PageConfig) room.Config {
	return room.Config{
		Type:                     p.Type,
		LoggerNameRoom:           p.LoggerNameRoom,
		LoggerNameRoomConnection: p.LoggerNameRoomConnection,
		Executors:                toExecutorConfigs(p.Executors),
	}
}
