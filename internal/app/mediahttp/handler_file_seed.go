package mediahttp

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

// seedFile принимает файл целиком, проверяет размер и хеш и пишет meta.json.
func (a *Server) seedFile(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAuthorized(w, r); !ok {
		return
	}
	req, ok := a.requireFileRequest(w, r)
	if !ok {
		return
	}

	accessHash, err := strconv.ParseInt(r.Header.Get(mediaproto.HeaderAccessHash), 10, 64)
	if err != nil {
		http.Error(w, "invalid access hash header", http.StatusBadRequest)
		return
	}
	size := r.ContentLength

	if err := os.MkdirAll(req.dir, 0o755); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	tmp := req.data + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer os.Remove(tmp)

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r.Body)
	closeErr := f.Close()
	if err != nil || closeErr != nil {
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	if size >= 0 && n != size {
		http.Error(w, "size mismatch", http.StatusBadRequest)
		return
	}
	got := hex.EncodeToString(h.Sum(nil))
	if exp := r.Header.Get(mediaproto.HeaderChecksum); exp != "" && got != exp {
		http.Error(w, "sha256 mismatch", http.StatusConflict)
		return
	}

	if err := os.Rename(tmp, req.data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = writeMeta(req.meta, fileMeta{
		MediaID:    req.mediaID,
		Size:       n,
		AccessHash: accessHash,
		Sha256:     got,
		MimeType:   r.Header.Get("Content-Type"),
		FileName:   r.Header.Get(mediaproto.HeaderFileName),
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	a.log.Info().Int64("media_id", req.mediaID).Int64("size", n).Msg("file stored")
	w.Header().Set(mediaproto.HeaderChecksum, got)
	w.WriteHeader(http.StatusCreated)
}
