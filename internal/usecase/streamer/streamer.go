// Package streamer читает байтовое окно файла последовательными чанками фиксированного
// размера и обрезает первый и последний чанк до точной границы диапазона.
package streamer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sir_venger/mediagate/internal/models"
	"github.com/sir_venger/mediagate/internal/observability"
	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

// SessionSource выдаёт сессию к endpoint'у.
type SessionSource interface {
	Acquire(ctx context.Context, dc int) (mediaproto.Session, error)
}

type Options struct {
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

type Streamer struct {
	sessions SessionSource
	log      zerolog.Logger
	metrics  *observability.Metrics
}

func New(sessions SessionSource, opts Options) *Streamer {
	return &Streamer{sessions: sessions, log: opts.Logger, metrics: opts.Metrics}
}

// Open берёт сессию для desc.Source.DC и готовит поток по окну w.
// Ошибка получения сессии возвращается до того, как отдан хоть один байт.
func (s *Streamer) Open(ctx context.Context, desc models.FileDescriptor, w models.RangeWindow) (*Stream, error) {
	if w.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", w.ChunkSize)
	}

	session, err := s.sessions.Acquire(ctx, desc.Source.DC)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	s.metrics.StreamStarted()

	base := zerolog.Ctx(ctx)
	if base.GetLevel() == zerolog.Disabled {
		base = &s.log
	}

	return &Stream{
		ctx:     sctx,
		cancel:  cancel,
		session: session,
		loc:     desc.Source.Location,
		window:  w,
		offset:  w.Offset,
		log: base.With().
			Str("content_id", desc.ContentID).
			Int("dc", desc.Source.DC).
			Int64("from", w.From).
			Int64("until", w.Until).
			Logger(),
		metrics: s.metrics,
	}, nil
}

// Stream реализует одноразовый pull-итератор по байтам окна:
//
//	for st.Next() { w.Write(st.Bytes()) }
//	if err := st.Err(); err != nil { ... }
//
// Чанки читаются строго по порядку, по одному. Отмена контекста или Close
// завершают поток без ошибки; ошибки транспорта оборачиваются в
// models.ErrTransientTransport и не повторяются.
type Stream struct {
	ctx     context.Context
	cancel  context.CancelFunc
	session mediaproto.Session
	loc     models.Location
	window  models.RangeWindow
	log     zerolog.Logger
	metrics *observability.Metrics

	part   int64
	offset int64
	cur    []byte
	err    error
	done   bool
	once   sync.Once
}

// Next читает следующий чанк. false означает конец потока (см. Err).
func (st *Stream) Next() bool {
	if st.done {
		return false
	}
	if st.part >= st.window.PartCount {
		st.finish()
		return false
	}

	chunk, err := st.session.ReadChunk(st.ctx, st.loc, st.offset, st.window.ChunkSize)
	if err != nil {
		st.fail(err)
		return false
	}
	if len(chunk) == 0 {
		st.metrics.ChunkRead("eof")
		st.log.Debug().Int64("part", st.part).Msg("remote returned empty chunk, stopping")
		st.finish()
		return false
	}
	st.metrics.ChunkRead("ok")

	lo, hi := int64(0), int64(len(chunk))
	if st.part == 0 {
		lo = min(st.window.FirstPartCut, hi)
	}
	if st.part == st.window.PartCount-1 {
		hi = min(st.window.LastPartCut, hi)
	}
	if hi <= lo {
		st.finish()
		return false
	}

	st.cur = chunk[lo:hi]
	st.part++
	st.offset += st.window.ChunkSize
	st.metrics.BytesStreamed(len(st.cur))
	return true
}

func (st *Stream) fail(err error) {
	defer st.finish()

	if st.ctx.Err() != nil || errors.Is(err, context.Canceled) {
		st.metrics.ChunkRead("canceled")
		st.log.Debug().Int64("part", st.part).Msg("stream canceled")
		return
	}

	st.metrics.ChunkRead("error")
	st.log.Warn().Err(err).Int64("part", st.part).Int64("offset", st.offset).Msg("chunk read failed")
	if errors.Is(err, models.ErrTransientTransport) {
		st.err = err
		return
	}
	st.err = fmt.Errorf("%w: %w", models.ErrTransientTransport, err)
}

func (st *Stream) finish() {
	st.done = true
	st.cur = nil
	st.once.Do(func() {
		st.cancel()
		st.metrics.StreamFinished()
	})
}

// Bytes возвращает текущий кусок; действителен до следующего Next.
func (st *Stream) Bytes() []byte {
	return st.cur
}

func (st *Stream) Err() error {
	return st.err
}

// Parts возвращает число уже отданных чанков.
func (st *Stream) Parts() int64 {
	return st.part
}

// Close прерывает поток; чтение в полёте отменяется через контекст.
// Безопасен для вызова из другой горутины и повторно.
func (st *Stream) Close() error {
	st.once.Do(func() {
		st.cancel()
		st.metrics.StreamFinished()
	})
	return nil
}

// WriteTo сливает поток в w. Ошибка записи означает отключение клиента
// и возвращается как models.ErrClientDisconnected.
func (st *Stream) WriteTo(w io.Writer) (int64, error) {
	defer st.Close()

	var n int64
	for st.Next() {
		written, err := w.Write(st.Bytes())
		n += int64(written)
		if err != nil {
			st.cancel()
			return n, fmt.Errorf("%w: %w", models.ErrClientDisconnected, err)
		}
	}
	return n, st.Err()
}
