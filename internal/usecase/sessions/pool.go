// Package sessions держит пул авторизованных сессий к media-endpoint'ам:
// не больше одной живой сессии на endpoint, ленивое создание, handshake
// с экспортом авторизации для не-основных endpoint'ов.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sir_venger/mediagate/internal/models"
	"github.com/sir_venger/mediagate/internal/observability"
	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

type Session = mediaproto.Session

const (
	DefaultAuthAttempts = 6
	warmupParallelism   = 4
	maxStaleHandshakes  = 3
)

// Options задаёт параметры пула.
type Options struct {
	PrimaryDC    int
	PrimaryKey   mediaproto.AuthKey
	AuthAttempts int
	Logger       zerolog.Logger
	Metrics      *observability.Metrics
}

// Pool хранит сессии по id endpoint'а. Безопасен для конкурентного использования.
// Поколение dc (gens) растёт при Invalidate: handshake, начатый до сброса, в пул не попадает.
type Pool struct {
	dialer     mediaproto.Dialer
	dir        *Directory
	primaryDC  int
	primaryKey mediaproto.AuthKey
	attempts   int
	log        zerolog.Logger
	metrics    *observability.Metrics

	mu       sync.RWMutex
	sessions map[int]Session
	gens     map[int]uint64
	group    singleflight.Group
}

func NewPool(dialer mediaproto.Dialer, dir *Directory, opts Options) *Pool {
	attempts := opts.AuthAttempts
	if attempts <= 0 {
		attempts = DefaultAuthAttempts
	}

	return &Pool{
		dialer:     dialer,
		dir:        dir,
		primaryDC:  opts.PrimaryDC,
		primaryKey: opts.PrimaryKey,
		attempts:   attempts,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		sessions:   make(map[int]Session),
		gens:       make(map[int]uint64),
	}
}

// Acquire возвращает живую сессию к dc, создавая её при необходимости.
// Конкурентные вызовы для одного dc выполняют ровно один handshake.
func (p *Pool) Acquire(ctx context.Context, dc int) (Session, error) {
	if s := p.cached(dc); s != nil {
		return s, nil
	}

	ch := p.group.DoChan(strconv.Itoa(dc), func() (any, error) {
		if s := p.cached(dc); s != nil {
			return s, nil
		}

		// handshake не должен обрываться отменой запроса, ради которого он начат:
		// его результат ждут и другие запросы.
		return p.handshake(context.WithoutCancel(ctx), dc)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Session), nil
	}
}

func (p *Pool) cached(dc int) Session {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.sessions[dc]
	if !ok || !s.Alive() {
		return nil
	}
	return s
}

// handshake создаёт сессию и кладёт её в пул. Если сессию к dc сбросили,
// пока шёл handshake, результат закрывается и handshake повторяется по
// актуальному endpoint'у.
func (p *Pool) handshake(ctx context.Context, dc int) (Session, error) {
	for attempt := 1; ; attempt++ {
		gen := p.generation(dc)

		s, err := p.create(ctx, dc)
		if err != nil {
			p.metrics.Handshake(dc, "error")
			return nil, err
		}
		if p.store(dc, gen, s) {
			p.metrics.Handshake(dc, "ok")
			return s, nil
		}

		_ = s.Close()
		if attempt >= maxStaleHandshakes {
			p.metrics.Handshake(dc, "error")
			return nil, fmt.Errorf("dc %d: session invalidated during handshake: %w", dc, models.ErrTransientTransport)
		}
		p.log.Debug().Int("dc", dc).Msg("session invalidated during handshake, redialing")
	}
}

func (p *Pool) generation(dc int) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gens[dc]
}

// store кладёт сессию в пул, если с начала handshake её не сбрасывали.
func (p *Pool) store(dc int, gen uint64, s Session) bool {
	p.mu.Lock()
	if p.gens[dc] != gen {
		p.mu.Unlock()
		return false
	}
	old := p.sessions[dc]
	p.sessions[dc] = s
	n := len(p.sessions)
	p.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	p.metrics.SessionsLive(n)
	return true
}

func (p *Pool) create(ctx context.Context, dc int) (Session, error) {
	ep, ok := p.dir.Lookup(dc)
	if !ok {
		return nil, fmt.Errorf("dc %d: %w", dc, models.ErrUnknownEndpoint)
	}
	log := p.log.With().Int("dc", dc).Logger()

	if dc == p.primaryDC || !ep.NeedsHandshake() {
		s, err := p.dialer.Dial(ctx, ep, p.primaryKey)
		if err != nil {
			return nil, fmt.Errorf("dial dc %d: %w", dc, err)
		}
		log.Debug().Msg("local session started")
		return withLimiter(s, ep), nil
	}

	primary, err := p.Acquire(ctx, p.primaryDC)
	if err != nil {
		return nil, fmt.Errorf("%w: dc %d: primary session: %w", models.ErrAuthorization, dc, err)
	}

	key, err := p.dialer.CreateAuthKey(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("create auth key for dc %d: %w", dc, err)
	}
	s, err := p.dialer.Dial(ctx, ep, key)
	if err != nil {
		return nil, fmt.Errorf("dial dc %d: %w", dc, err)
	}

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		var auth mediaproto.ExportedAuth
		auth, lastErr = primary.ExportAuthorization(ctx, dc)
		if lastErr != nil {
			break
		}

		lastErr = s.ImportAuthorization(ctx, auth)
		if lastErr == nil {
			log.Info().Int("attempt", attempt).Msg("remote session authorized")
			return withLimiter(s, ep), nil
		}
		if !errors.Is(lastErr, models.ErrAuthBytesInvalid) {
			break
		}
		log.Debug().Int("attempt", attempt).Err(lastErr).Msg("auth bytes rejected, retrying")
	}

	_ = s.Close()
	log.Warn().Err(lastErr).Msg("remote authorization failed")
	return nil, fmt.Errorf("%w: dc %d: %w", models.ErrAuthorization, dc, lastErr)
}

// Invalidate закрывает и забывает сессию к dc.
func (p *Pool) Invalidate(dc int) {
	p.mu.Lock()
	s, ok := p.sessions[dc]
	delete(p.sessions, dc)
	p.gens[dc]++
	n := len(p.sessions)
	p.mu.Unlock()

	if ok {
		_ = s.Close()
	}
	p.metrics.SessionsLive(n)
}

// Warmup параллельно поднимает сессии к перечисленным dc. Ошибки логируются
// и возвращаются объединёнными; успешные сессии остаются в пуле.
func (p *Pool) Warmup(ctx context.Context, dcs ...int) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmupParallelism)
	for _, dc := range dcs {
		g.Go(func() error {
			if _, err := p.Acquire(gctx, dc); err != nil {
				p.log.Warn().Int("dc", dc).Err(err).Msg("session warmup failed")
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Live возвращает id endpoint'ов с живыми сессиями.
func (p *Pool) Live() map[int]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[int]bool, len(p.sessions))
	for dc, s := range p.sessions {
		out[dc] = s.Alive()
	}
	return out
}

func (p *Pool) Directory() *Directory {
	return p.dir
}

// Close закрывает все сессии пула.
func (p *Pool) Close() error {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[int]Session)
	p.mu.Unlock()

	var errs []error
	for dc, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dc %d: %w", dc, err))
		}
	}
	p.metrics.SessionsLive(0)
	return errors.Join(errs...)
}

// limitedSession ограничивает частоту чтений чанков через сессию.
type limitedSession struct {
	Session
	limiter *rate.Limiter
}

func withLimiter(s Session, ep mediaproto.Endpoint) Session {
	if ep.ReadsPerSecond <= 0 {
		return s
	}
	burst := max(int(ep.ReadsPerSecond), 1)
	return &limitedSession{Session: s, limiter: rate.NewLimiter(rate.Limit(ep.ReadsPerSecond), burst)}
}

func (s *limitedSession) ReadChunk(ctx context.Context, loc models.Location, offset, limit int64) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.Session.ReadChunk(ctx, loc, offset, limit)
}
