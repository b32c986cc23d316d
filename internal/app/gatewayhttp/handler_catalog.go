package gatewayhttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/sir_venger/mediagate/internal/models"
	"github.com/sir_venger/mediagate/internal/repo"
	"github.com/sir_venger/mediagate/pkg/httperrors"
)

type streamsResp struct {
	ID      string       `json:"tmdb_id"`
	Streams []streamView `json:"streams"`
}

type searchResp struct {
	Page    int          `json:"page"`
	Query   string       `json:"query"`
	Results []recordView `json:"results"`
}

// latest отдаёт последние добавленные записи каталога.
func (s *Server) latest(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	recs, err := s.catalog.LatestRecords(r.Context(), page, repo.DefaultPerPage)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(recs, func(rec models.Record, _ int) recordView { return s.recordView(rec) }))
}

// files отдаёт последние файлы отдельной коллекции со ссылками на скачивание.
func (s *Server) files(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	files, err := s.catalog.LatestFiles(r.Context(), page, repo.DefaultPerPage)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(files, func(f models.MediaFile, _ int) fileView {
		return fileView{MediaFile: f, Name: sourceName, URL: s.fileURL(f.Hash)}
	}))
}

func (s *Server) movieStreams(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recordParam(r)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}
	if rec.Kind != models.KindMovie {
		httperrors.Write(w, r, fmt.Errorf("record %d is not a movie: %w", rec.ID, models.ErrFileNotFound))
		return
	}

	writeJSON(w, http.StatusOK, streamsResp{ID: chi.URLParam(r, "id"), Streams: s.movieStreamViews(rec)})
}

func (s *Server) seriesStreams(w http.ResponseWriter, r *http.Request) {
	season, errS := strconv.Atoi(chi.URLParam(r, "season"))
	episode, errE := strconv.Atoi(chi.URLParam(r, "episode"))
	if errS != nil || errE != nil {
		httperrors.Write(w, r, fmt.Errorf("%w: season and episode must be integers", models.ErrInvalidInput))
		return
	}

	rec, err := s.recordParam(r)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}
	if rec.Kind != models.KindTV {
		httperrors.Write(w, r, fmt.Errorf("record %d is not a series: %w", rec.ID, models.ErrFileNotFound))
		return
	}

	writeJSON(w, http.StatusOK, streamsResp{ID: chi.URLParam(r, "id"), Streams: s.seriesStreamViews(rec, season, episode)})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		httperrors.Write(w, r, fmt.Errorf("%w: query is required", models.ErrInvalidInput))
		return
	}
	page, err := pageParam(r)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	recs, err := s.catalog.SearchRecords(r.Context(), query, page, repo.DefaultPerPage)
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}
	if len(recs) == 0 {
		httperrors.Write(w, r, fmt.Errorf("search %q: %w", query, models.ErrFileNotFound))
		return
	}

	writeJSON(w, http.StatusOK, searchResp{
		Page:    page,
		Query:   query,
		Results: lo.Map(recs, func(rec models.Record, _ int) recordView { return s.recordView(rec) }),
	})
}

func (s *Server) recordParam(r *http.Request) (models.Record, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return models.Record{}, fmt.Errorf("record %q: %w", raw, models.ErrFileNotFound)
	}
	return s.catalog.GetRecord(r.Context(), id)
}

// pageParam читает номер страницы из ?page=, по умолчанию 1.
func pageParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("%w: page must be a positive integer", models.ErrInvalidInput)
	}
	return page, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
