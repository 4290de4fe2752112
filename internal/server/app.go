package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchx/internal/repositories"
	"github.com/desertthunder/watchx/internal/shared"
	"github.com/desertthunder/watchx/internal/tasks"
)

const shutdownTimeout = 10 * time.Second

// Options configures a [Server].
type Options struct {
	Addr    string
	Secret  []byte
	CORS    bool
	Workers int
	Logger  *log.Logger
}

// OptionsFromConfig maps the [shared.ServerConfig] onto [Options].
func OptionsFromConfig(config *shared.Config, logger *log.Logger) Options {
	return Options{
		Addr:    config.Server.Addr(),
		Secret:  []byte(config.Server.Secret),
		CORS:    config.Server.CORS,
		Workers: config.Server.HydrateWorkers,
		Logger:  logger,
	}
}

// Server is the watch-status backend: a [BasicRouter] with the watch-status routes,
// backed by SQLite and a content details fetcher for hydrated reads.
type Server struct {
	addr    string
	handler http.Handler
	hub     *Hub
	logger  *log.Logger
}

// New wires repositories, the hydration engine and the event hub into a router.
// details may be nil, in which case hydrated endpoints answer 503.
func New(db *sql.DB, details tasks.DetailsFetcher, opts Options) (*Server, error) {
	if len(opts.Secret) == 0 {
		return nil, fmt.Errorf("%w: server secret is required", shared.ErrInvalidConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = shared.WithLogger(logger, "component", "server")

	hub := NewHub(logger)
	h := &WatchStatusHandler{
		users:   repositories.NewUserRepository(db),
		records: repositories.NewWatchStatusRepository(db),
		engine:  tasks.NewEngine(details, logger),
		hub:     hub,
		hydrate: tasks.HydrateOpts{NumWorkers: opts.Workers},
		secret:  opts.Secret,
		logger:  logger,
	}

	router := NewBasicRouter()
	router.Use(LogMiddleware(logger))
	router.Handler(h)

	return &Server{
		addr:    opts.Addr,
		handler: CORSMiddleware(opts.CORS)(router),
		hub:     hub,
		logger:  logger,
	}, nil
}

// Handler returns the root handler, including CORS.
func (s *Server) Handler() http.Handler { return s.handler }

// Hub returns the event hub used by PUT requests.
func (s *Server) Hub() *Hub { return s.hub }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown does not track hijacked connections, so the event streams are closed here.
	srv.RegisterOnShutdown(s.hub.Close)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
