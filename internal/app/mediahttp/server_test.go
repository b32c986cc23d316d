package mediahttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

var testSecret = []byte("cluster-secret")

func newTestNode(t *testing.T, dc int, rps float64, keys ...string) *Server {
	t.Helper()
	return New(Options{
		DataDir:        t.TempDir(),
		DC:             dc,
		ClusterSecret:  testSecret,
		AuthKeys:       keys,
		ReadsPerSecond: rps,
		SessionTTL:     time.Hour,
		Logger:         zerolog.Nop(),
	})
}

func do(t *testing.T, h http.Handler, method, target, key string, body []byte, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if key != "" {
		req.Header.Set(mediaproto.HeaderAuthKey, key)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, h http.Handler, key string, mediaID, accessHash int64, data []byte) {
	t.Helper()
	rec := do(t, h, http.MethodPut, fmt.Sprintf("/files/%d", mediaID), key, data, map[string]string{
		mediaproto.HeaderAccessHash: strconv.FormatInt(accessHash, 10),
		mediaproto.HeaderFileName:   "clip.mp4",
		"Content-Type":              "video/mp4",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func readURL(mediaID, offset, limit int64) string {
	return fmt.Sprintf("/files/%d?offset=%d&limit=%d", mediaID, offset, limit)
}

func TestReadFile_Chunks(t *testing.T) {
	h := newTestNode(t, 1, 0, "primary").Handler()
	data := []byte("0123456789")
	seed(t, h, "primary", 7, 99, data)

	hdr := map[string]string{mediaproto.HeaderAccessHash: "99"}

	rec := do(t, h, http.MethodGet, readURL(7, 0, 4), "primary", nil, hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0123", rec.Body.String())

	rec = do(t, h, http.MethodGet, readURL(7, 8, 4), "primary", nil, hdr)
	assert.Equal(t, "89", rec.Body.String())

	rec = do(t, h, http.MethodGet, readURL(7, 12, 4), "primary", nil, hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestReadFile_Errors(t *testing.T) {
	h := newTestNode(t, 1, 0, "primary").Handler()
	seed(t, h, "primary", 7, 99, []byte("abc"))

	rec := do(t, h, http.MethodGet, readURL(7, 0, 4), "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, readURL(7, 0, 4), "primary", nil, map[string]string{mediaproto.HeaderAccessHash: "1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, mediaproto.ErrorAccessHashInvalid, rec.Header().Get(mediaproto.HeaderError))

	rec = do(t, h, http.MethodGet, readURL(8, 0, 4), "primary", nil, map[string]string{mediaproto.HeaderAccessHash: "99"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, readURL(7, 0, 0), "primary", nil, map[string]string{mediaproto.HeaderAccessHash: "99"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadFile_FloodWait(t *testing.T) {
	h := newTestNode(t, 1, 1, "primary").Handler()
	seed(t, h, "primary", 7, 99, []byte("abc"))
	hdr := map[string]string{mediaproto.HeaderAccessHash: "99"}

	rec := do(t, h, http.MethodGet, readURL(7, 0, 4), "primary", nil, hdr)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, readURL(7, 0, 4), "primary", nil, hdr)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, mediaproto.ErrorFloodWait, rec.Header().Get(mediaproto.HeaderError))
}

func TestAuth_ExportImport(t *testing.T) {
	primary := newTestNode(t, 1, 0, "primary").Handler()
	remote := newTestNode(t, 2, 0).Handler()

	rec := do(t, remote, http.MethodPost, mediaproto.PathAuthKey, "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var key authKeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &key))
	require.NotEmpty(t, key.AuthKey)

	// свежий ключ ещё не авторизован
	rec = do(t, remote, http.MethodPost, mediaproto.PathAuthExport, key.AuthKey, []byte(`{"dc_id":1}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, primary, http.MethodPost, mediaproto.PathAuthExport, "primary", []byte(`{"dc_id":2}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var exported mediaproto.ExportedAuth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exported))

	tampered := exported
	tampered.Bytes = append([]byte(nil), exported.Bytes...)
	tampered.Bytes[0] ^= 0xff
	body, _ := json.Marshal(tampered)
	rec = do(t, remote, http.MethodPost, mediaproto.PathAuthImport, key.AuthKey, body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, mediaproto.ErrorAuthBytesInvalid, rec.Header().Get(mediaproto.HeaderError))

	body, _ = json.Marshal(exported)
	rec = do(t, remote, http.MethodPost, mediaproto.PathAuthImport, key.AuthKey, body, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	seed(t, remote, key.AuthKey, 3, 5, []byte("remote"))
	rec = do(t, remote, http.MethodGet, readURL(3, 0, 100), key.AuthKey, nil, map[string]string{mediaproto.HeaderAccessHash: "5"})
	assert.Equal(t, "remote", rec.Body.String())
}

func TestAuth_ImportForOtherDC(t *testing.T) {
	remote := newTestNode(t, 3, 0).Handler()
	rec := do(t, remote, http.MethodPost, mediaproto.PathAuthKey, "", nil, nil)
	var key authKeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &key))

	body, _ := json.Marshal(mediaproto.ExportedAuth{ID: 1, Bytes: signExport(testSecret, 2, 1)})
	rec = do(t, remote, http.MethodPost, mediaproto.PathAuthImport, key.AuthKey, body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSeedFile_Checksum(t *testing.T) {
	h := newTestNode(t, 1, 0, "primary").Handler()

	rec := do(t, h, http.MethodPut, "/files/1", "primary", []byte("abc"), map[string]string{
		mediaproto.HeaderAccessHash: "1",
		mediaproto.HeaderChecksum:   "deadbeef",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	seed(t, h, "primary", 1, 1, []byte("abc"))
	rec = do(t, h, http.MethodHead, "/files/1", "primary", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get(mediaproto.HeaderPartSize))
	assert.Equal(t, "clip.mp4", rec.Header().Get(mediaproto.HeaderFileName))
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
}

func TestHealth(t *testing.T) {
	h := newTestNode(t, 4, 0, "primary").Handler()
	seed(t, h, "primary", 1, 1, []byte("abcd"))

	rec := do(t, h, http.MethodGet, mediaproto.PathHealth, "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats healthStats
	require.NoError(t, json.NewDecoder(io.Reader(rec.Body)).Decode(&stats))
	assert.Equal(t, 4, stats.DC)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, int64(4), stats.TotalBytes)
}

func TestSessionStore_Sweep(t *testing.T) {
	s := newSessionStore(0)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	s.authorize("fixed", true)
	s.create("temp")

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, s.sweep(time.Hour))

	known, authorized, _ := s.lookup("fixed")
	assert.True(t, known)
	assert.True(t, authorized)
	known, _, _ = s.lookup("temp")
	assert.False(t, known)
}
