package gatewayhttp

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sir_venger/mediagate/internal/models"
	"github.com/sir_venger/mediagate/internal/usecase/resolver"
	"github.com/sir_venger/mediagate/pkg/httperrors"
)

// download отдаёт файл целиком или диапазон из Range.
// Порядок проверок: поиск файла (404), hash (403), Range (400), 416, затем поток.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, err := lookupKey(r)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	desc, err := s.resolver.Resolve(ctx, key)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}
	if desc.ShortHash() != key.Hash {
		httperrors.Write(w, r, fmt.Errorf("%w: %q", models.ErrInvalidHash, key.Hash))
		return
	}

	rng, err := parseRange(r.Header.Get("Range"), desc.Size)
	if errors.Is(err, models.ErrRangeNotSatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", desc.Size))
	}
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	log := zerolog.Ctx(ctx).With().Str("content_id", desc.ContentID).Logger()
	log.Debug().
		Int64("size", desc.Size).
		Int64("from", rng.From).
		Int64("until", rng.Until).
		Bool("partial", rng.Partial).
		Msg("serving file")

	status := http.StatusOK
	if rng.Partial {
		status = http.StatusPartialContent
	}

	// Пустой файл: диапазон невозможен, без Range отдаём 200 с пустым телом.
	if desc.Size == 0 {
		s.writeHeaders(w, desc, rng, 0)
		w.WriteHeader(status)
		return
	}

	win, err := models.NewRangeWindow(rng.From, rng.Until, desc.Size, s.cfg.ChunkSize)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	if r.Method == http.MethodHead {
		s.writeHeaders(w, desc, rng, win.Length())
		w.WriteHeader(status)
		return
	}

	st, err := s.streamer.Open(ctx, desc, win)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}
	defer st.Close()

	s.writeHeaders(w, desc, rng, win.Length())
	w.WriteHeader(status)

	n, err := st.WriteTo(w)
	switch {
	case err == nil && n < win.Length():
		log.Warn().Int64("sent", n).Int64("want", win.Length()).Msg("remote file shorter than declared")
	case errors.Is(err, models.ErrClientDisconnected):
		log.Debug().Int64("sent", n).Msg("client disconnected")
	case err != nil:
		// Заголовки уже ушли, остаётся оборвать тело.
		log.Error().Err(err).Int64("sent", n).Msg("stream aborted")
	}
}

func (s *Server) writeHeaders(w http.ResponseWriter, desc models.FileDescriptor, rng byteRange, length int64) {
	h := w.Header()
	h.Set("Content-Type", contentType(desc))
	if desc.Size > 0 {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.From, rng.Until, desc.Size))
	}
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	h.Set("Content-Disposition", contentDisposition(downloadName(desc)))
	h.Set("Accept-Ranges", "bytes")
}

// lookupKey собирает ключ из /dl/{catalogID}?hash= или /dl?hash=&file_id=.
func lookupKey(r *http.Request) (resolver.LookupKey, error) {
	q := r.URL.Query()
	key := resolver.LookupKey{
		Hash:   strings.TrimSpace(q.Get("hash")),
		FileID: strings.TrimSpace(q.Get("file_id")),
	}
	if key.Hash == "" {
		return key, fmt.Errorf("%w: hash is required", models.ErrInvalidInput)
	}

	if raw := chi.URLParam(r, "catalogID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return key, fmt.Errorf("catalog id %q: %w", raw, models.ErrFileNotFound)
		}
		key.CatalogID = id
		key.FileID = ""
	}
	return key, nil
}
