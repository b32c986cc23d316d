// Package gateway собирает шлюз из конфигурации: каталог, транспорт, пул сессий,
// резолвер, стример и HTTP-сервер.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sir_venger/mediagate/internal/app/gatewayhttp"
	"github.com/sir_venger/mediagate/internal/config"
	"github.com/sir_venger/mediagate/internal/observability"
	"github.com/sir_venger/mediagate/internal/repo"
	"github.com/sir_venger/mediagate/internal/usecase/resolver"
	"github.com/sir_venger/mediagate/internal/usecase/sessions"
	"github.com/sir_venger/mediagate/internal/usecase/streamer"
	"github.com/sir_venger/mediagate/pkg/mediaclient"
	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

const healthTimeout = 2 * time.Second

type Options struct {
	Logger  zerolog.Logger
	Version string
	// HTTP-клиент до media-узлов, по умолчанию с таймаутом cfg.RequestTimeout.
	NodeClient *http.Client
	// S3 подменяет транспорт до S3-endpoint'ов.
	S3 mediaproto.Dialer
}

// App содержит собранный шлюз. Закрывается через Close.
type App struct {
	Handler  http.Handler
	Pool     *sessions.Pool
	Resolver *resolver.Resolver
	Catalog  repo.Store
	Metrics  *observability.Metrics

	stopCleaner func()
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	store, err := repo.Open(ctx, cfg.CatalogDSN)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	log := opts.Logger
	metrics := observability.NewMetrics("mediagate")

	client := opts.NodeClient
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	nodes := mediaclient.NewNodeDialer(mediaclient.NodeOptions{
		HTTPClient:     client,
		SleepThreshold: cfg.SleepThreshold,
		Logger:         log.With().Str("component", "transport").Logger(),
	})
	var s3 mediaproto.Dialer = mediaclient.NewS3Dialer()
	if opts.S3 != nil {
		s3 = opts.S3
	}

	dir := sessions.NewDirectory(cfg.Endpoints...)
	pool := sessions.NewPool(mediaclient.NewKindDialer(nodes, s3), dir, sessions.Options{
		PrimaryDC:    cfg.PrimaryDC,
		PrimaryKey:   mediaproto.AuthKey(cfg.PrimaryAuthKey),
		AuthAttempts: cfg.AuthAttempts,
		Logger:       log.With().Str("component", "sessions").Logger(),
		Metrics:      metrics,
	})

	res := resolver.New(store, resolver.Options{
		Logger:  log.With().Str("component", "resolver").Logger(),
		Metrics: metrics,
	})

	str := streamer.New(pool, streamer.Options{
		Logger:  log.With().Str("component", "streamer").Logger(),
		Metrics: metrics,
	})

	handler, _ := gatewayhttp.NewServer(gatewayhttp.Deps{
		Config:    cfg,
		Resolver:  res,
		Streamer:  str,
		Catalog:   store,
		Sessions:  pool,
		Endpoints: dir,
		Prober:    sessions.NewHealthProber(healthTimeout),
		Metrics:   metrics,
		Logger:    log,
		Version:   opts.Version,
	})

	return &App{
		Handler:     handler,
		Pool:        pool,
		Resolver:    res,
		Catalog:     store,
		Metrics:     metrics,
		stopCleaner: res.StartCleaner(cfg.CacheTTL),
	}, nil
}

// Warmup заранее открывает сессии ко всем известным endpoint'ам.
// Ошибки логируются пулом и не мешают старту.
func (a *App) Warmup(ctx context.Context) error {
	return a.Pool.Warmup(ctx, a.Pool.Directory().IDs()...)
}

func (a *App) Close() error {
	a.stopCleaner()
	return errors.Join(a.Pool.Close(), a.Catalog.Close())
}
