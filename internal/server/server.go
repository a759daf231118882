package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"medi/connect/internal/activity"
	"medi/connect/internal/config"
	"medi/connect/internal/database"
	"medi/connect/internal/dispatch"
	"medi/connect/internal/emergency"
	"medi/connect/internal/ticketing"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Server wires configuration, dependencies and HTTP routing together.
type Server struct {
	cfg        config.Config
	log        zerolog.Logger
	pool       *pgxpool.Pool
	dispatcher *dispatch.Dispatcher
	films      *ticketing.Catalog
	validate   *validator.Validate
	authMw     *AuthMiddleware
	startedAt  time.Time
	now        func() time.Time
}

// New loads the seed data, picks the journal backend and prepares shared dependencies.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	seed, err := config.LoadSeed(cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	var (
		pool    *pgxpool.Pool
		journal activity.Journal
	)
	if cfg.Database.URL != "" {
		pool, err = database.Connect(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		journal = activity.NewPostgres(pool)
	} else {
		log.Warn().Msg("DB_URL not set, activity journal kept in memory")
		journal = activity.NewMemory(cfg.Dispatch.JournalCapacity)
	}

	fleet := emergency.NewFleet()
	for _, amb := range seed.Ambulances {
		if _, err := fleet.Add(amb.Resource()); err != nil {
			closePool(pool)
			return nil, fmt.Errorf("seeding ambulance %s: %w", amb.ID, err)
		}
	}
	films := ticketing.NewCatalog()
	for _, f := range seed.Films {
		if _, err := films.Add(f); err != nil {
			closePool(pool)
			return nil, fmt.Errorf("seeding film %s: %w", f.ID, err)
		}
	}
	log.Info().Int("ambulances", len(seed.Ambulances)).Int("films", len(seed.Films)).Msg("seed loaded")

	d := dispatch.New(emergency.NewRequestStore(nil), fleet, journal, log, dispatch.Options{
		ETA:          cfg.Dispatch.ETA,
		AutoDispatch: cfg.Dispatch.Auto,
	})

	var authMw *AuthMiddleware
	if cfg.Auth.Enabled {
		authMw, err = NewAuthMiddleware(ctx, cfg.Auth, log)
		if err != nil {
			closePool(pool)
			return nil, fmt.Errorf("init auth middleware: %w", err)
		}
	}

	srv := newServer(cfg, log, d, films)
	srv.pool = pool
	srv.authMw = authMw
	return srv, nil
}

func newServer(cfg config.Config, log zerolog.Logger, d *dispatch.Dispatcher, films *ticketing.Catalog) *Server {
	return &Server{
		cfg:        cfg,
		log:        log,
		dispatcher: d,
		films:      films,
		validate:   newValidator(),
		startedAt:  time.Now().UTC(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func closePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}

// Close releases database and auth resources.
func (s *Server) Close() {
	if s.authMw != nil {
		s.authMw.Close()
	}
	closePool(s.pool)
}

// Run starts the HTTP server and the metrics sync loop and blocks until the
// context is cancelled or either of them fails.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.HTTP.Address,
		Handler:      s.routes(),
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
		IdleTimeout:  s.cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.runMetricsSync(gctx, s.cfg.Dispatch.MetricsInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("graceful shutdown failed")
		}
		return nil
	})

	g.Go(func() error {
		s.log.Info().Str("addr", s.cfg.HTTP.Address).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return g.Wait()
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("latitude", func(fl validator.FieldLevel) bool {
		val, ok := fl.Field().Interface().(float64)
		if !ok {
			return false
		}
		return val >= -90 && val <= 90
	})
	_ = v.RegisterValidation("longitude", func(fl validator.FieldLevel) bool {
		val, ok := fl.Field().Interface().(float64)
		if !ok {
			return false
		}
		return val >= -180 && val <= 180
	})
	return v
}
