package mediahttp

import (
	"net/http"
	"strconv"

	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

// inspectFile отвечает на HEAD-запросы метаданными файла.
func (a *Server) inspectFile(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAuthorized(w, r); !ok {
		return
	}
	req, ok := a.requireFileRequest(w, r)
	if !ok {
		return
	}

	meta, err := readMeta(req.meta)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set(mediaproto.HeaderPartSize, strconv.FormatInt(meta.Size, 10))
	w.Header().Set(mediaproto.HeaderChecksum, meta.Sha256)
	if meta.FileName != "" {
		w.Header().Set(mediaproto.HeaderFileName, meta.FileName)
	}
	if meta.MimeType != "" {
		w.Header().Set("Content-Type", meta.MimeType)
	}
	w.WriteHeader(http.StatusOK)
}
