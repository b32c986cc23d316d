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

	"github.com/sir_venger/mediagate/internal/app/mediahttp"
	"github.com/sir_venger/mediagate/internal/config"
	"github.com/sir_venger/mediagate/internal/observability"
)

// main запускает media-узел: хранение файлов на диске и протокол сессий.
func main() {
	cfg, err := config.LoadNode()
	if err != nil {
		log.Fatal().Err(err).Msg("load node config")
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, "mediadc")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("create data dir")
	}

	node := mediahttp.New(mediahttp.Options{
		DataDir:        cfg.DataDir,
		DC:             cfg.DC,
		ClusterSecret:  []byte(cfg.ClusterSecret),
		AuthKeys:       cfg.AuthKeys,
		ReadsPerSecond: cfg.ReadsPerKey,
		SessionTTL:     cfg.SessionTTL,
		Logger:         logger,
	})
	stopGC := node.StartGC(cfg.GCInterval)
	defer stopGC()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           node.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("node shutdown")
		}
	}()

	logger.Info().Str("addr", cfg.ListenAddr).Int("dc", cfg.DC).Str("data_dir", cfg.DataDir).Msg("media node listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("node serve")
	}
}
