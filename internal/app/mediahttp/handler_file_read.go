package mediahttp

import (
	"io"
	"math"
	"net/http"
	"os"
	"strconv"

	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

// readFile отдаёт до limit байт файла начиная с offset. За концом файла тело пустое.
func (a *Server) readFile(w http.ResponseWriter, r *http.Request) {
	key := mediaproto.AuthKey(r.Header.Get(mediaproto.HeaderAuthKey))
	_, authorized, limiter := a.sessions.lookup(key)
	if key == "" || !authorized {
		writeProtoError(w, http.StatusUnauthorized, mediaproto.ErrorAuthKeyUnregistered)
		return
	}

	if limiter != nil {
		res := limiter.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			writeProtoError(w, http.StatusTooManyRequests, mediaproto.ErrorFloodWait)
			return
		}
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

	accessHash, err := strconv.ParseInt(r.Header.Get(mediaproto.HeaderAccessHash), 10, 64)
	if err != nil || accessHash != meta.AccessHash {
		writeProtoError(w, http.StatusForbidden, mediaproto.ErrorAccessHashInvalid)
		return
	}

	offset, limit, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n := min(limit, max(meta.Size-offset, 0))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
	if n == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	f, err := os.Open(req.data)
	if err != nil {
		a.log.Error().Err(err).Int64("media_id", req.mediaID).Msg("open data file")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	if _, err = io.Copy(w, io.NewSectionReader(f, offset, n)); err != nil {
		a.log.Debug().Err(err).Int64("media_id", req.mediaID).Msg("chunk write aborted")
	}
}
