package mediahttp

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

type keyState struct {
	authorized bool
	// permanent ключи из конфигурации не удаляются GC.
	permanent bool
	lastSeen  time.Time
	limiter   *rate.Limiter
}

// sessionStore хранит ключи сессий узла и их состояние авторизации.
type sessionStore struct {
	mu   sync.Mutex
	keys map[mediaproto.AuthKey]*keyState
	rps  float64
	now  func() time.Time
}

func newSessionStore(rps float64) *sessionStore {
	return &sessionStore{
		keys: make(map[mediaproto.AuthKey]*keyState),
		rps:  rps,
		now:  time.Now,
	}
}

func (s *sessionStore) newLimiter() *rate.Limiter {
	if s.rps <= 0 {
		return nil
	}
	burst := int(s.rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.rps), burst)
}

func (s *sessionStore) create(key mediaproto.AuthKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = &keyState{lastSeen: s.now(), limiter: s.newLimiter()}
}

func (s *sessionStore) authorize(key mediaproto.AuthKey, permanent bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.keys[key]
	if !ok {
		if !permanent {
			return false
		}
		st = &keyState{limiter: s.newLimiter()}
		s.keys[key] = st
	}
	st.authorized = true
	st.permanent = st.permanent || permanent
	st.lastSeen = s.now()
	return true
}

// lookup возвращает состояние ключа и отмечает его использование.
func (s *sessionStore) lookup(key mediaproto.AuthKey) (known, authorized bool, limiter *rate.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.keys[key]
	if !ok {
		return false, false, nil
	}
	st.lastSeen = s.now()
	return true, st.authorized, st.limiter
}

// sweep удаляет непостоянные ключи, не использовавшиеся дольше ttl.
func (s *sessionStore) sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, st := range s.keys {
		if st.permanent || now.Sub(st.lastSeen) < ttl {
			continue
		}
		delete(s.keys, k)
		removed++
	}
	return removed
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
