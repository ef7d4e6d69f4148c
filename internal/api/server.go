package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuedeck/cuedeck-agent/internal/controller"
	"github.com/cuedeck/cuedeck-agent/internal/engine"
	"github.com/cuedeck/cuedeck-agent/internal/events"
	"github.com/cuedeck/cuedeck-agent/internal/media"
	"github.com/cuedeck/cuedeck-agent/internal/state"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Controller *controller.Controller
	Repository state.Repository
	Media      *media.Server
	Hub        *events.Hub
	Doctor     *engine.Doctor
	Logger     *slog.Logger
	StartTime  time.Time
	DeviceID   string
	Version    string
	ControlURL string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("0.0.0.0:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
