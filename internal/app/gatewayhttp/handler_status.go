package gatewayhttp

import (
	"net/http"
	"time"

	"github.com/sir_venger/mediagate/internal/usecase/sessions"
)

type statusResp struct {
	ServerStatus string                    `json:"server_status"`
	Uptime       string                    `json:"uptime"`
	Version      string                    `json:"version"`
	Endpoints    []sessions.EndpointStatus `json:"endpoints"`
}

// status отдаёт аптайм, версию и доступность endpoint'ов.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResp{
		ServerStatus: "running",
		Uptime:       s.now().Sub(s.started).Truncate(time.Second).String(),
		Version:      s.version,
		Endpoints:    []sessions.EndpointStatus{},
	}

	if s.prober != nil {
		resp.Endpoints = s.prober.Check(r.Context(), s.knownEndpoints())
	}
	if s.sessions != nil {
		live := s.sessions.Live()
		for i := range resp.Endpoints {
			resp.Endpoints[i].Session = live[resp.Endpoints[i].ID]
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
