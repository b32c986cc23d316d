package mediahttp

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const (
	dataFileName = "data.bin"
	metaFileName = "meta.json"

	maxReadLimit = 16 << 20
)

// fileRequest содержит вычисленные пути до файла и его метаданных.
type fileRequest struct {
	mediaID int64
	dir     string
	data    string
	meta    string
}

// requireFileRequest валидирует path-параметры; на ошибке отвечает 404.
func (a *Server) requireFileRequest(w http.ResponseWriter, r *http.Request) (*fileRequest, bool) {
	req, err := newFileRequest(a.dataDir, r)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}

	return req, true
}

func newFileRequest(root string, r *http.Request) (*fileRequest, error) {
	mediaID, err := strconv.ParseInt(chi.URLParam(r, "mediaID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid media id: %w", err)
	}
	if mediaID < 0 {
		return nil, fmt.Errorf("invalid media id: must be non-negative")
	}

	// Каждому файлу соответствует собственная директория в dataDir.
	dir := filepath.Join(root, strconv.FormatInt(mediaID, 10))

	return &fileRequest{
		mediaID: mediaID,
		dir:     dir,
		data:    filepath.Join(dir, dataFileName),
		meta:    filepath.Join(dir, metaFileName),
	}, nil
}

// parseWindow читает offset/limit из query.
func parseWindow(r *http.Request) (offset, limit int64, err error) {
	q := r.URL.Query()
	offset, err = strconv.ParseInt(q.Get("offset"), 10, 64)
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("invalid offset")
	}
	limit, err = strconv.ParseInt(q.Get("limit"), 10, 64)
	if err != nil || limit <= 0 || limit > maxReadLimit {
		return 0, 0, fmt.Errorf("invalid limit")
	}
	return offset, limit, nil
}
