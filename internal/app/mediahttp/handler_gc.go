package mediahttp

import (
	"net/http"
	"sync"
	"time"
)

// gcOnce вручную удаляет сессии, простаивающие дольше sessionTTL.
func (a *Server) gcOnce(w http.ResponseWriter, _ *http.Request) {
	if a.sessionTTL > 0 {
		a.sessions.sweep(a.sessionTTL)
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartGC стартует периодическую очистку простаивающих сессий.
func (a *Server) StartGC(every time.Duration) func() {
	if every <= 0 || a.sessionTTL <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(every)
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := a.sessions.sweep(a.sessionTTL); n > 0 {
					a.log.Debug().Int("removed", n).Msg("expired sessions swept")
				}
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			close(stop)
		})
	}
}
