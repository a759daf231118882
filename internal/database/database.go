package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medi/connect/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	migrate "github.com/rubenv/sql-migrate"
)

// ErrNoDatabase is returned when no database URL is configured.
var ErrNoDatabase = errors.New("database URL is empty")

// Connect opens the pool backing the activity journal, running migrations first when enabled.
func Connect(ctx context.Context, cfg config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, ErrNoDatabase
	}

	if cfg.Database.RunMigrations {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().Int32("max_conns", poolCfg.MaxConns).Msg("database pool ready")
	return pool, nil
}

func poolConfig(cfg config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	if poolCfg.ConnConfig.RuntimeParams == nil {
		poolCfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	poolCfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	return poolCfg, nil
}

func runMigrations(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	dbConn, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("opening sql connection: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	source := &migrate.FileMigrationSource{Dir: cfg.Database.MigrationsDir}
	n, err := migrate.ExecContext(ctx, dbConn, "postgres", source, migrate.Up)
	if err != nil {
		return fmt.Errorf("applying migrations from %s: %w", cfg.Database.MigrationsDir, err)
	}
	if n > 0 {
		log.Info().Int("applied", n).Str("dir", cfg.Database.MigrationsDir).Msg("migrations executed")
	} else {
		log.Debug().Msg("activity journal schema up to date")
	}
	return nil
}
