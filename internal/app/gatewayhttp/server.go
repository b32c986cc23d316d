// Package gatewayhttp реализует публичный HTTP-шлюз: отдача файлов по Range, API каталога и админка.
package gatewayhttp

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/sir_venger/mediagate/internal/config"
	"github.com/sir_venger/mediagate/internal/models"
	"github.com/sir_venger/mediagate/internal/observability"
	"github.com/sir_venger/mediagate/internal/repo"
	"github.com/sir_venger/mediagate/internal/usecase/resolver"
	"github.com/sir_venger/mediagate/internal/usecase/sessions"
	"github.com/sir_venger/mediagate/internal/usecase/streamer"
	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

// Resolver находит дескриптор файла по ключу ссылки.
type Resolver interface {
	Resolve(ctx context.Context, key resolver.LookupKey) (models.FileDescriptor, error)
	Purge()
}

// Streamer открывает поток байтов по окну диапазона.
type Streamer interface {
	Open(ctx context.Context, desc models.FileDescriptor, w models.RangeWindow) (*streamer.Stream, error)
}

// Sessions описывает то, что шлюз знает о пуле сессий.
type Sessions interface {
	Live() map[int]bool
	Invalidate(dc int)
}

// Endpoints описывает изменяемый справочник endpoint'ов пула.
type Endpoints interface {
	Add(eps ...mediaproto.Endpoint)
	Set(eps []mediaproto.Endpoint)
	All() []mediaproto.Endpoint
}

type Prober interface {
	Check(ctx context.Context, eps []mediaproto.Endpoint) []sessions.EndpointStatus
}

// Deps содержит зависимости шлюза, собираются в internal/app/gateway.
// Без Endpoints /status и /admin/endpoints работают со статическим списком из Config.
type Deps struct {
	Config    *config.Config
	Resolver  Resolver
	Streamer  Streamer
	Catalog   repo.Store
	Sessions  Sessions
	Endpoints Endpoints
	Prober    Prober
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
	Version   string
	Now       func() time.Time
}

type Server struct {
	cfg       *config.Config
	resolver  Resolver
	streamer  Streamer
	catalog   repo.Store
	sessions  Sessions
	endpoints Endpoints
	prober    Prober
	metrics   *observability.Metrics
	log       zerolog.Logger
	validate  *validator.Validate
	version   string
	now       func() time.Time
	started   time.Time
}

// NewServer конструктор
func NewServer(deps Deps) (http.Handler, *Server) {
	srv := &Server{
		cfg:       deps.Config,
		resolver:  deps.Resolver,
		streamer:  deps.Streamer,
		catalog:   deps.Catalog,
		sessions:  deps.Sessions,
		endpoints: deps.Endpoints,
		prober:    deps.Prober,
		metrics:   deps.Metrics,
		log:       deps.Logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		version:   deps.Version,
		now:       deps.Now,
	}
	if srv.now == nil {
		srv.now = time.Now
	}
	if srv.version == "" {
		srv.version = "dev"
	}
	srv.started = srv.now()

	return srv.routes(), srv
}

func (s *Server) routes() http.Handler {
	rtr := chi.NewRouter()
	rtr.Use(observability.RequestLogger(s.log, s.metrics), observability.Recover)

	// /dl живёт без таймаута: длинная отдача ограничена только клиентом.
	rtr.Get("/dl", s.download)
	rtr.Head("/dl", s.download)
	rtr.Get("/dl/{catalogID}", s.download)
	rtr.Head("/dl/{catalogID}", s.download)

	rtr.Handle("/metrics", s.metrics.Handler())

	rtr.Group(func(r chi.Router) {
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}

		r.Get("/status", s.status)

		r.Get("/stream/latest", s.latest)
		r.Get("/stream/files", s.files)
		r.Get("/stream/movie/{id}.json", s.movieStreams)
		r.Get("/stream/series/{id}:{season}:{episode}.json", s.seriesStreams)
		r.Get("/search", s.search)

		r.Route("/admin", func(ar chi.Router) {
			ar.Post("/catalog", s.postCatalog)
			ar.Post("/files", s.postFile)
			ar.Get("/config", s.getConfig)
			ar.Post("/endpoints", s.addEndpoints)
			ar.Put("/endpoints", s.replaceEndpoints)
			ar.Delete("/sessions/{dc}", s.dropSession)
		})
	})

	return rtr
}
