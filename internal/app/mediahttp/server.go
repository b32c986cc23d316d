package mediahttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sir_venger/mediagate/internal/observability"
	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

// Options задаёт параметры media-узла.
type Options struct {
	DataDir       string
	DC            int
	ClusterSecret []byte
	// заранее авторизованные ключи (ключ основного соединения шлюза)
	AuthKeys       []string
	ReadsPerSecond float64
	SessionTTL     time.Duration
	Logger         zerolog.Logger
}

// Server serves the media node HTTP API on top of the local filesystem.
type Server struct {
	dataDir    string
	dc         int
	secret     []byte
	sessions   *sessionStore
	sessionTTL time.Duration
	log        zerolog.Logger
}

// New создаёт сервер media-узла; хендлер получают через Handler.
func New(opts Options) *Server {
	srv := &Server{
		dataDir:    opts.DataDir,
		dc:         opts.DC,
		secret:     opts.ClusterSecret,
		sessions:   newSessionStore(opts.ReadsPerSecond),
		sessionTTL: opts.SessionTTL,
		log:        opts.Logger.With().Int("dc", opts.DC).Logger(),
	}
	for _, k := range opts.AuthKeys {
		srv.sessions.authorize(mediaproto.AuthKey(k), true)
	}

	return srv
}

func (a *Server) Handler() http.Handler {
	return a.routes()
}

// routes регистрирует обработчики авторизации, файлов, здоровья и GC.
func (a *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(observability.RequestLogger(a.log, nil), observability.Recover)

	r.Post(mediaproto.PathAuthKey, a.createKey)
	r.Post(mediaproto.PathAuthExport, a.exportAuth)
	r.Post(mediaproto.PathAuthImport, a.importAuth)

	r.Route("/files/{mediaID}", func(fr chi.Router) {
		fr.Put("/", a.seedFile)
		fr.Get("/", a.readFile)
		fr.Head("/", a.inspectFile)
	})

	r.Get(mediaproto.PathHealth, a.health)
	r.Post("/admin/gc", a.gcOnce)

	return r
}

// writeProtoError отвечает кодом статуса с машинным кодом ошибки в X-Error.
func writeProtoError(w http.ResponseWriter, status int, code string) {
	if code != "" {
		w.Header().Set(mediaproto.HeaderError, code)
	}
	http.Error(w, http.StatusText(status), status)
}
