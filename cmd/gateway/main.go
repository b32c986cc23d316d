package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sir_venger/mediagate/internal/app/gateway"
	"github.com/sir_venger/mediagate/internal/config"
	"github.com/sir_venger/mediagate/internal/observability"
)

// version проставляется при сборке: -ldflags "-X main.version=..."
var version = "dev"

// main поднимает шлюз и обеспечивает корректное завершение по сигналу.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, "gateway")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := gateway.New(ctx, cfg, gateway.Options{Logger: logger, Version: version})
	if err != nil {
		logger.Fatal().Err(err).Msg("build gateway")
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error().Err(err).Msg("close gateway")
		}
	}()

	go func() {
		if err := app.Warmup(ctx); err != nil {
			logger.Warn().Err(err).Msg("warmup finished with errors")
		}
	}()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Сценарий graceful shutdown при получении SIGTERM/SIGINT.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("gateway shutdown")
		}
	}()

	logger.Info().Str("addr", cfg.ListenAddr).Str("version", version).Int("endpoints", len(cfg.Endpoints)).Msg("gateway listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("gateway serve")
	}
}
