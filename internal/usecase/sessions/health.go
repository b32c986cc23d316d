package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

// EndpointStatus описывает состояние одного endpoint'а для /status.
type EndpointStatus struct {
	ID         int                     `json:"dc_id"`
	Kind       mediaproto.EndpointKind `json:"kind"`
	Checked    bool                    `json:"checked"`
	OK         bool                    `json:"ok"`
	Session    bool                    `json:"session"`
	Files      int                     `json:"files,omitempty"`
	TotalBytes int64                   `json:"total_bytes,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// HealthProber опрашивает health-эндпоинты media-узлов.
type HealthProber struct {
	c *http.Client
}

// NewHealthProber инициализирует проверку доступности с таймаутом на узел.
func NewHealthProber(timeout time.Duration) *HealthProber {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthProber{c: &http.Client{Timeout: timeout}}
}

// Check параллельно проверяет endpoint'ы. S3-endpoint'ы не опрашиваются.
func (h *HealthProber) Check(ctx context.Context, eps []mediaproto.Endpoint) []EndpointStatus {
	out := make([]EndpointStatus, len(eps))

	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range eps {
		out[i] = EndpointStatus{ID: ep.ID, Kind: ep.Kind}
		if !ep.NeedsHandshake() {
			continue
		}
		g.Go(func() error {
			info, err := fetchNodeHealth(gctx, h.c, ep.Address)
			out[i].Checked = true
			if err != nil {
				out[i].Error = err.Error()
				return nil
			}
			out[i].OK = info.OK
			out[i].Files = info.Files
			out[i].TotalBytes = info.TotalBytes
			return nil
		})
	}
	_ = g.Wait()

	return out
}

type nodeHealth struct {
	OK         bool  `json:"ok"`
	Files      int   `json:"files"`
	TotalBytes int64 `json:"total_bytes"`
}

func fetchNodeHealth(ctx context.Context, c *http.Client, base string) (payload nodeHealth, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+mediaproto.PathHealth, nil)
	if err != nil {
		return nodeHealth{}, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nodeHealth{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nodeHealth{}, fmt.Errorf("health check failed: %s", resp.Status)
	}

	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nodeHealth{}, err
	}

	return payload, nil
}
