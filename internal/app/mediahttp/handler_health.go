package mediahttp

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
)

// healthStats описывает payload ответа /health.
type healthStats struct {
	OK         bool  `json:"ok"`
	DC         int   `json:"dc_id"`
	Files      int   `json:"files"`
	TotalBytes int64 `json:"total_bytes"`
	Sessions   int   `json:"sessions"`
}

// health возвращает агрегированную статистику по данным узла.
func (a *Server) health(w http.ResponseWriter, _ *http.Request) {
	stats := healthStats{OK: true, DC: a.dc, Sessions: a.sessions.len()}

	err := filepath.WalkDir(a.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != dataFileName {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.Files++
		stats.TotalBytes += info.Size()

		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
