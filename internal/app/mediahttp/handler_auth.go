package mediahttp

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"

	"github.com/google/uuid"

	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

type authKeyResponse struct {
	AuthKey string `json:"auth_key"`
}

type exportRequest struct {
	DC int `json:"dc_id"`
}

// createKey выдаёт новый ключ; пользоваться файлами он сможет только после import.
func (a *Server) createKey(w http.ResponseWriter, _ *http.Request) {
	key := mediaproto.AuthKey(uuid.NewString())
	a.sessions.create(key)

	writeJSON(w, http.StatusOK, authKeyResponse{AuthKey: string(key)})
}

// exportAuth выпускает токен авторизации для узла dc_id. Требует авторизованный ключ.
func (a *Server) exportAuth(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAuthorized(w, r); !ok {
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DC <= 0 {
		http.Error(w, "invalid dc_id", http.StatusBadRequest)
		return
	}

	id := rand.Int64()
	writeJSON(w, http.StatusOK, mediaproto.ExportedAuth{
		ID:    id,
		Bytes: signExport(a.secret, req.DC, id),
	})
}

// importAuth авторизует ключ, если токен выпущен для этого узла.
func (a *Server) importAuth(w http.ResponseWriter, r *http.Request) {
	key := mediaproto.AuthKey(r.Header.Get(mediaproto.HeaderAuthKey))
	if known, _, _ := a.sessions.lookup(key); !known {
		writeProtoError(w, http.StatusUnauthorized, mediaproto.ErrorAuthKeyUnregistered)
		return
	}

	var auth mediaproto.ExportedAuth
	if err := json.NewDecoder(r.Body).Decode(&auth); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if !verifyExport(a.secret, a.dc, auth.ID, auth.Bytes) {
		a.log.Warn().Int64("auth_id", auth.ID).Msg("rejected exported authorization")
		writeProtoError(w, http.StatusUnauthorized, mediaproto.ErrorAuthBytesInvalid)
		return
	}

	a.sessions.authorize(key, false)
	w.WriteHeader(http.StatusNoContent)
}

// requireAuthorized проверяет X-Auth-Key и пишет 401, если ключ не авторизован.
func (a *Server) requireAuthorized(w http.ResponseWriter, r *http.Request) (mediaproto.AuthKey, bool) {
	key := mediaproto.AuthKey(r.Header.Get(mediaproto.HeaderAuthKey))
	_, authorized, _ := a.sessions.lookup(key)
	if key == "" || !authorized {
		writeProtoError(w, http.StatusUnauthorized, mediaproto.ErrorAuthKeyUnregistered)
		return "", false
	}
	return key, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
