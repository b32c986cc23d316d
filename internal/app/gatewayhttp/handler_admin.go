package gatewayhttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sir_venger/mediagate/internal/models"
	"github.com/sir_venger/mediagate/pkg/httperrors"
	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

type postFileResp struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
	URL  string `json:"url"`
}

// postCatalog вливает запись в каталог (слияние по сезонам, эпизодам и hash вариантов).
func (s *Server) postCatalog(w http.ResponseWriter, r *http.Request) {
	var rec models.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		httperrors.Write(w, r, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}
	if err := s.validate.Struct(rec); err != nil {
		httperrors.Write(w, r, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	merged, err := s.catalog.UpsertRecord(r.Context(), rec)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}
	// вариант с тем же hash мог сменить location
	s.resolver.Purge()

	writeJSON(w, http.StatusOK, s.recordView(merged))
}

// postFile регистрирует вложение в отдельной коллекции файлов.
func (s *Server) postFile(w http.ResponseWriter, r *http.Request) {
	var att models.Attachment
	if err := json.NewDecoder(r.Body).Decode(&att); err != nil {
		httperrors.Write(w, r, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}
	if err := s.validate.Struct(att); err != nil {
		httperrors.Write(w, r, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}
	if !att.Kind.Valid() {
		httperrors.Write(w, r, fmt.Errorf("%w: unknown attachment kind %q", models.ErrInvalidInput, att.Kind))
		return
	}
	if _, err := models.DecodeLocation(att.LocationToken); err != nil {
		httperrors.Write(w, r, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	now := s.now().UTC()
	saved, err := s.catalog.SaveFile(r.Context(), models.MediaFile{
		ID:          uuid.NewString(),
		FileVariant: att.Variant(now),
		CreatedAt:   now,
	})
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, postFileResp{ID: saved.ID, Hash: saved.Hash, URL: s.fileURL(saved.Hash)})
}

// getConfig отдаёт действующую конфигурацию без секретов.
func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg)
}

type addEndpointsRequest struct {
	Endpoints []mediaproto.Endpoint `json:"endpoints" validate:"required,min=1,dive"`
}

// addEndpoints добавляет endpoint'ы в справочник пула. Известные id не перезаписываются.
func (s *Server) addEndpoints(w http.ResponseWriter, r *http.Request) {
	eps, ok := s.decodeEndpoints(w, r)
	if !ok {
		return
	}
	s.endpoints.Add(eps...)
	w.WriteHeader(http.StatusNoContent)
}

// replaceEndpoints заменяет справочник целиком. Сессии к прежним и новым dc
// закрываются: следующий запрос авторизуется заново по новому адресу.
func (s *Server) replaceEndpoints(w http.ResponseWriter, r *http.Request) {
	eps, ok := s.decodeEndpoints(w, r)
	if !ok {
		return
	}

	stale := s.endpoints.All()
	s.endpoints.Set(eps)
	if s.sessions != nil {
		for _, ep := range append(stale, eps...) {
			s.sessions.Invalidate(ep.ID)
		}
	}

	s.log.Info().Int("endpoints", len(eps)).Msg("endpoint directory replaced")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeEndpoints(w http.ResponseWriter, r *http.Request) ([]mediaproto.Endpoint, bool) {
	if s.endpoints == nil {
		http.Error(w, "endpoint directory is static", http.StatusNotImplemented)
		return nil, false
	}

	var payload addEndpointsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httperrors.Write(w, r, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return nil, false
	}
	if err := s.validate.Struct(payload); err != nil {
		httperrors.Write(w, r, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return nil, false
	}
	return payload.Endpoints, true
}

// dropSession закрывает сессию к dc, следующий запрос поднимет новую.
func (s *Server) dropSession(w http.ResponseWriter, r *http.Request) {
	dc, err := strconv.Atoi(chi.URLParam(r, "dc"))
	if err != nil || dc <= 0 {
		httperrors.Write(w, r, fmt.Errorf("%w: bad dc %q", models.ErrInvalidInput, chi.URLParam(r, "dc")))
		return
	}
	if s.sessions == nil {
		http.Error(w, "no session pool", http.StatusNotImplemented)
		return
	}

	s.sessions.Invalidate(dc)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) knownEndpoints() []mediaproto.Endpoint {
	if s.endpoints != nil {
		return s.endpoints.All()
	}
	return s.cfg.Endpoints
}
