package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/library"
	"github.com/heimdex/reelcut/internal/planner"
	"github.com/heimdex/reelcut/internal/render"
	"github.com/heimdex/reelcut/internal/timeline"
)

// Planner turns a request into a timeline.
type Planner interface {
	Plan(ctx context.Context, req planner.Request) (*timeline.Timeline, error)
	Defaults() planner.Config
}

// Exporter runs at most one export at a time.
type Exporter interface {
	Export(ctx context.Context, job compose.Job) (*compose.Handle, error)
	Current() *compose.Handle
	Busy() bool
}

// Library records finished exports.
type Library interface {
	Track(ctx context.Context, h *compose.Handle, title, project string) (<-chan *library.Entry, error)
	List(ctx context.Context, limit int) ([]*library.Entry, error)
	Get(ctx context.Context, id string) (*library.Entry, error)
}

type FileServer interface {
	ServeFile(w http.ResponseWriter, r *http.Request, path string) error
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Version        string
	Planner        Planner
	Exporter       Exporter
	Library        Library
	Tokens         TokenStore
	PlaybackServer FileServer
	Doctor         *render.CachedDoctor
	// WorkDir receives in-progress renders before the library moves them.
	WorkDir string
	// BaseContext bounds exports started over HTTP; it must outlive any
	// single request.
	BaseContext context.Context
	Logger      *slog.Logger
	StartTime   time.Time
	DeviceID    string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
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
