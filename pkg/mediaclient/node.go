// Package mediaclient реализует транспорт до media-endpoint'ов: HTTP-узлы и S3.
package mediaclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sir_venger/mediagate/internal/models"
	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

// NodeOptions задаёт параметры транспорта до HTTP-узлов.
type NodeOptions struct {
	HTTPClient *http.Client
	// максимальный flood wait, который переживаем сном и повтором
	SleepThreshold time.Duration
	Logger         zerolog.Logger
}

// NodeDialer открывает сессии к media-узлам по HTTP.
type NodeDialer struct {
	c              *http.Client
	sleepThreshold time.Duration
	log            zerolog.Logger
	sleep          func(ctx context.Context, d time.Duration) error
}

func NewNodeDialer(opts NodeOptions) *NodeDialer {
	c := opts.HTTPClient
	if c == nil {
		c = &http.Client{Timeout: 30 * time.Second}
	}

	return &NodeDialer{
		c:              c,
		sleepThreshold: opts.SleepThreshold,
		log:            opts.Logger,
		sleep:          sleepCtx,
	}
}

// CreateAuthKey запрашивает у узла новый неавторизованный ключ.
func (d *NodeDialer) CreateAuthKey(ctx context.Context, ep mediaproto.Endpoint) (mediaproto.AuthKey, error) {
	resp, err := d.do(ctx, http.MethodPost, ep.Address+mediaproto.PathAuthKey, "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create auth key on dc %d: %s", ep.ID, resp.Status)
	}

	var out struct {
		AuthKey string `json:"auth_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("create auth key on dc %d: %w", ep.ID, err)
	}
	return mediaproto.AuthKey(out.AuthKey), nil
}

// Dial проверяет доступность узла и возвращает сессию с ключом key.
func (d *NodeDialer) Dial(ctx context.Context, ep mediaproto.Endpoint, key mediaproto.AuthKey) (mediaproto.Session, error) {
	if err := d.Ping(ctx, ep); err != nil {
		return nil, err
	}

	return &nodeSession{d: d, ep: ep, key: key}, nil
}

// Ping дёргает /health узла.
func (d *NodeDialer) Ping(ctx context.Context, ep mediaproto.Endpoint) error {
	resp, err := d.do(ctx, http.MethodGet, ep.Address+mediaproto.PathHealth, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dc %d health: %s", ep.ID, resp.Status)
	}
	return nil
}

func (d *NodeDialer) do(ctx context.Context, method, u string, key mediaproto.AuthKey, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, err
	}
	if key != "" {
		req.Header.Set(mediaproto.HeaderAuthKey, string(key))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.c.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTransientTransport, err)
	}
	return resp, nil
}

type nodeSession struct {
	d    *NodeDialer
	ep   mediaproto.Endpoint
	key  mediaproto.AuthKey
	dead atomic.Bool
}

// ReadChunk читает кусок файла; короткий flood wait пересыпает и повторяет.
func (s *nodeSession) ReadChunk(ctx context.Context, loc models.Location, offset, limit int64) ([]byte, error) {
	for {
		data, wait, err := s.readOnce(ctx, loc, offset, limit)
		if !errors.Is(err, models.ErrFloodWait) {
			return data, err
		}
		if wait > s.d.sleepThreshold {
			return nil, err
		}

		s.d.log.Warn().Int("dc", s.ep.ID).Dur("wait", wait).Msg("flood wait, sleeping")
		if err := s.d.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (s *nodeSession) readOnce(ctx context.Context, loc models.Location, offset, limit int64) ([]byte, time.Duration, error) {
	q := url.Values{}
	q.Set(mediaproto.QueryOffset, strconv.FormatInt(offset, 10))
	q.Set(mediaproto.QueryLimit, strconv.FormatInt(limit, 10))
	u := fmt.Sprintf(mediaproto.FilesPathFormat, s.ep.Address, loc.MediaID) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set(mediaproto.HeaderAuthKey, string(s.key))
	req.Header.Set(mediaproto.HeaderAccessHash, strconv.FormatInt(loc.AccessHash, 10))
	if len(loc.FileReference) > 0 {
		req.Header.Set(mediaproto.HeaderFileReference, base64.RawURLEncoding.EncodeToString(loc.FileReference))
	}

	resp, err := s.d.c.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, fmt.Errorf("%w: dc %d: %v", models.ErrTransientTransport, s.ep.ID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			return nil, 0, fmt.Errorf("%w: dc %d: read body: %v", models.ErrTransientTransport, s.ep.ID, err)
		}
		return data, 0, nil
	case http.StatusUnauthorized:
		s.dead.Store(true)
		return nil, 0, fmt.Errorf("dc %d: %w", s.ep.ID, models.ErrUnauthorized)
	case http.StatusForbidden, http.StatusNotFound:
		return nil, 0, fmt.Errorf("dc %d media %d: %w", s.ep.ID, loc.MediaID, models.ErrFileNotFound)
	case http.StatusTooManyRequests:
		wait := retryAfter(resp.Header.Get("Retry-After"))
		return nil, wait, fmt.Errorf("dc %d: %w (%s)", s.ep.ID, models.ErrFloodWait, wait)
	default:
		return nil, 0, fmt.Errorf("%w: dc %d: unexpected status %s", models.ErrTransientTransport, s.ep.ID, resp.Status)
	}
}

// ExportAuthorization выпускает на этом узле токен для узла dc.
func (s *nodeSession) ExportAuthorization(ctx context.Context, dc int) (mediaproto.ExportedAuth, error) {
	resp, err := s.d.do(ctx, http.MethodPost, s.ep.Address+mediaproto.PathAuthExport, s.key, map[string]int{"dc_id": dc})
	if err != nil {
		return mediaproto.ExportedAuth{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		s.dead.Store(true)
		return mediaproto.ExportedAuth{}, fmt.Errorf("export on dc %d: %w", s.ep.ID, models.ErrUnauthorized)
	default:
		return mediaproto.ExportedAuth{}, fmt.Errorf("export on dc %d: %s", s.ep.ID, resp.Status)
	}

	var auth mediaproto.ExportedAuth
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return mediaproto.ExportedAuth{}, fmt.Errorf("export on dc %d: %w", s.ep.ID, err)
	}
	return auth, nil
}

// ImportAuthorization авторизует ключ сессии экспортированным токеном.
func (s *nodeSession) ImportAuthorization(ctx context.Context, auth mediaproto.ExportedAuth) error {
	resp, err := s.d.do(ctx, http.MethodPost, s.ep.Address+mediaproto.PathAuthImport, s.key, auth)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized && resp.Header.Get(mediaproto.HeaderError) == mediaproto.ErrorAuthBytesInvalid:
		return fmt.Errorf("import on dc %d: %w", s.ep.ID, models.ErrAuthBytesInvalid)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("import on dc %d: %w", s.ep.ID, models.ErrUnauthorized)
	default:
		return fmt.Errorf("import on dc %d: %s", s.ep.ID, resp.Status)
	}
}

func (s *nodeSession) Alive() bool {
	return !s.dead.Load()
}

func (s *nodeSession) Close() error {
	s.dead.Store(true)
	return nil
}

// retryAfter разбирает Retry-After в секундах; без заголовка ждём секунду.
func retryAfter(v string) time.Duration {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return time.Second
	}
	return time.Duration(n) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
