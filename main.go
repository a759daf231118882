// Package main wires configuration, dependencies, and HTTP server startup.
//
// @Title MediConnect Dispatch API
// @Version 0.1.0
// @Description Emergency request lifecycle and ambulance dispatch API.
// @Server http://localhost:8080 Local development
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medi/connect/internal/config"
	"medi/connect/internal/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init server")
	}
	defer srv.Close()

	logger.Info().
		Bool("auto_dispatch", cfg.Dispatch.Auto).
		Dur("eta", cfg.Dispatch.ETA).
		Bool("auth", cfg.Auth.Enabled).
		Msg("starting dispatch api")

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		srv.Close()
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("env", cfg.Env).Str("app", cfg.AppName).Logger()
	if cfg.Env == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC822})
	}
	return logger
}
