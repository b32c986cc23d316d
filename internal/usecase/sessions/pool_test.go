package sessions

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sir_venger/mediagate/internal/models"
	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

type fakeSession struct {
	dc          int
	addr        string
	key         mediaproto.AuthKey
	d           *fakeDialer
	closed      atomic.Bool
	importCalls atomic.Int32
	reads       atomic.Int32
}

func (s *fakeSession) ReadChunk(context.Context, models.Location, int64, int64) ([]byte, error) {
	s.reads.Add(1)
	return []byte("x"), nil
}

func (s *fakeSession) ExportAuthorization(_ context.Context, dc int) (mediaproto.ExportedAuth, error) {
	s.d.exports.Add(1)
	return mediaproto.ExportedAuth{ID: int64(dc), Bytes: []byte("ok")}, nil
}

func (s *fakeSession) ImportAuthorization(context.Context, mediaproto.ExportedAuth) error {
	n := int(s.importCalls.Add(1))
	if err, ok := s.d.importErr[s.dc]; ok {
		if n <= s.d.importFailures[s.dc] {
			return err
		}
	}
	return nil
}

func (s *fakeSession) Alive() bool  { return !s.closed.Load() }
func (s *fakeSession) Close() error { s.closed.Store(true); return nil }

type fakeDialer struct {
	mu             sync.Mutex
	createKeys     map[int]int
	dials          map[int]int
	sessions       []*fakeSession
	exports        atomic.Int32
	importErr      map[int]error
	importFailures map[int]int
	// block задерживает Dial для dc до закрытия канала.
	block map[int]chan struct{}
	delay time.Duration
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		createKeys:     map[int]int{},
		dials:          map[int]int{},
		importErr:      map[int]error{},
		importFailures: map[int]int{},
		block:          map[int]chan struct{}{},
	}
}

func (d *fakeDialer) CreateAuthKey(_ context.Context, ep mediaproto.Endpoint) (mediaproto.AuthKey, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createKeys[ep.ID]++
	return mediaproto.AuthKey("key-" + string(rune('0'+ep.ID))), nil
}

func (d *fakeDialer) Dial(_ context.Context, ep mediaproto.Endpoint, key mediaproto.AuthKey) (mediaproto.Session, error) {
	d.mu.Lock()
	block := d.block[ep.ID]
	d.mu.Unlock()
	if block != nil {
		<-block
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials[ep.ID]++
	s := &fakeSession{dc: ep.ID, addr: ep.Address, key: key, d: d}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDialer) count(m map[int]int, dc int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return m[dc]
}

func testPool(d mediaproto.Dialer, eps ...mediaproto.Endpoint) *Pool {
	if len(eps) == 0 {
		eps = []mediaproto.Endpoint{
			{ID: 1, Kind: mediaproto.KindNode, Address: "http://dc1"},
			{ID: 2, Kind: mediaproto.KindNode, Address: "http://dc2"},
			{ID: 3, Kind: mediaproto.KindNode, Address: "http://dc3"},
			{ID: 4, Kind: mediaproto.KindNode, Address: "http://dc4"},
			{ID: 7, Kind: mediaproto.KindS3, Bucket: "b", Region: "r"},
		}
	}
	return NewPool(d, NewDirectory(eps...), Options{
		PrimaryDC:  1,
		PrimaryKey: "primary",
		Logger:     zerolog.Nop(),
	})
}

func TestAcquire_LocalUsesPrimaryKey(t *testing.T) {
	d := newFakeDialer()
	p := testPool(d)

	s, err := p.Acquire(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, mediaproto.AuthKey("primary"), s.(*fakeSession).key)
	assert.Zero(t, d.count(d.createKeys, 1))
	assert.Zero(t, d.exports.Load())

	again, err := p.Acquire(context.Background(), 1)
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, 1, d.count(d.dials, 1))
}

func TestAcquire_S3SkipsHandshake(t *testing.T) {
	d := newFakeDialer()
	p := testPool(d)

	_, err := p.Acquire(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, d.count(d.createKeys, 7))
	assert.Zero(t, d.exports.Load())
}

func TestAcquire_ConcurrentSingleHandshake(t *testing.T) {
	d := newFakeDialer()
	d.delay = 20 * time.Millisecond
	p := testPool(d)

	const workers = 50
	results := make([]Session, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Acquire(context.Background(), 2)
			assert.NoError(t, err)
			results[i] = s
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, d.count(d.createKeys, 2))
	assert.Equal(t, 1, d.count(d.dials, 2))
	assert.Equal(t, int32(1), d.exports.Load())
	for _, s := range results {
		assert.Same(t, results[0], s)
	}
}

func TestAcquire_RetriesAuthBytesInvalid(t *testing.T) {
	d := newFakeDialer()
	d.importErr[2] = models.ErrAuthBytesInvalid
	d.importFailures[2] = 3
	p := testPool(d)

	s, err := p.Acquire(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int32(4), s.(*fakeSession).importCalls.Load())
	assert.Equal(t, int32(4), d.exports.Load())
}

func TestAcquire_AuthorizationExhausted(t *testing.T) {
	d := newFakeDialer()
	d.importErr[2] = models.ErrAuthBytesInvalid
	d.importFailures[2] = 100
	p := testPool(d)

	_, err := p.Acquire(context.Background(), 2)
	require.ErrorIs(t, err, models.ErrAuthorization)
	assert.ErrorIs(t, err, models.ErrAuthBytesInvalid)
	assert.Equal(t, int32(DefaultAuthAttempts), d.exports.Load())

	d.mu.Lock()
	failed := d.sessions[len(d.sessions)-1]
	d.mu.Unlock()
	assert.True(t, failed.closed.Load(), "failed session must be closed")

	// неудача не кешируется: следующий вызов делает новый handshake
	_, err = p.Acquire(context.Background(), 2)
	require.Error(t, err)
	assert.Equal(t, 2, d.count(d.createKeys, 2))

	// основной endpoint не пострадал
	_, err = p.Acquire(context.Background(), 1)
	assert.NoError(t, err)
}

func TestAcquire_OtherImportErrorNotRetried(t *testing.T) {
	d := newFakeDialer()
	d.importErr[2] = errors.New("connection reset")
	d.importFailures[2] = 100
	p := testPool(d)

	_, err := p.Acquire(context.Background(), 2)
	require.ErrorIs(t, err, models.ErrAuthorization)
	assert.Equal(t, int32(1), d.exports.Load())
}

func TestAcquire_DeadSessionRecreated(t *testing.T) {
	d := newFakeDialer()
	p := testPool(d)

	s, err := p.Acquire(context.Background(), 3)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	fresh, err := p.Acquire(context.Background(), 3)
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
	assert.True(t, fresh.Alive())
	assert.Equal(t, 2, d.count(d.createKeys, 3))
}

func TestAcquire_UnknownEndpoint(t *testing.T) {
	p := testPool(newFakeDialer())

	_, err := p.Acquire(context.Background(), 99)
	assert.ErrorIs(t, err, models.ErrUnknownEndpoint)
}

func TestAcquire_UnrelatedEndpointsDoNotBlock(t *testing.T) {
	d := newFakeDialer()
	release := make(chan struct{})
	d.block[3] = release
	p := testPool(d)

	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), 3)
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := p.Acquire(ctx, 4)
	require.NoError(t, err, "dc 4 must not wait for dc 3")

	close(release)
	require.NoError(t, <-done)
}

func TestAcquire_CallerCancelDoesNotAbortHandshake(t *testing.T) {
	d := newFakeDialer()
	release := make(chan struct{})
	d.block[2] = release
	p := testPool(d)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx, 2)
		errc <- err
	}()

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(release)
	s, err := p.Acquire(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, s.Alive())
	assert.Equal(t, 1, d.count(d.createKeys, 2))
}

func TestPool_WarmupInvalidateClose(t *testing.T) {
	d := newFakeDialer()
	p := testPool(d)

	err := p.Warmup(context.Background(), 1, 2, 3, 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnknownEndpoint)
	assert.Len(t, p.Live(), 3)

	s, err := p.Acquire(context.Background(), 2)
	require.NoError(t, err)
	p.Invalidate(2)
	assert.False(t, s.Alive())
	assert.Len(t, p.Live(), 2)

	require.NoError(t, p.Close())
	assert.Empty(t, p.Live())
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, fs := range d.sessions {
		assert.True(t, fs.closed.Load())
	}
}

func TestAcquire_InvalidateDuringHandshakeRedials(t *testing.T) {
	d := newFakeDialer()
	release := make(chan struct{})
	d.block[3] = release
	p := testPool(d)

	type result struct {
		s   Session
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := p.Acquire(context.Background(), 3)
		done <- result{s, err}
	}()

	// handshake дошёл до Dial и ждёт
	require.Eventually(t, func() bool { return d.count(d.createKeys, 3) == 1 }, time.Second, time.Millisecond)

	p.Directory().Set([]mediaproto.Endpoint{
		{ID: 1, Kind: mediaproto.KindNode, Address: "http://dc1"},
		{ID: 3, Kind: mediaproto.KindNode, Address: "http://dc3-moved"},
	})
	p.Invalidate(3)
	close(release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "http://dc3-moved", res.s.(*fakeSession).addr)
	assert.Equal(t, 2, d.count(d.dials, 3))

	cached, err := p.Acquire(context.Background(), 3)
	require.NoError(t, err)
	assert.Same(t, res.s, cached)

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, fs := range d.sessions {
		if fs.dc == 3 && fs.addr == "http://dc3" {
			assert.True(t, fs.closed.Load(), "stale session must be closed")
		}
	}
}

func TestLimitedSession_RespectsContext(t *testing.T) {
	d := newFakeDialer()
	p := testPool(d, mediaproto.Endpoint{ID: 1, Kind: mediaproto.KindNode, Address: "http://dc1", ReadsPerSecond: 0.001})

	s, err := p.Acquire(context.Background(), 1)
	require.NoError(t, err)

	_, err = s.ReadChunk(context.Background(), models.Location{}, 0, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ReadChunk(ctx, models.Location{}, 0, 1)
	assert.Error(t, err)
}

func TestDirectory(t *testing.T) {
	dir := NewDirectory(mediaproto.Endpoint{ID: 3}, mediaproto.Endpoint{ID: 1}, mediaproto.Endpoint{ID: 0})
	dir.Add(mediaproto.Endpoint{ID: 1, Address: "dup"}, mediaproto.Endpoint{ID: 2})

	assert.Equal(t, []int{1, 2, 3}, dir.IDs())
	ep, ok := dir.Lookup(1)
	require.True(t, ok)
	assert.Empty(t, ep.Address)

	dir.Set([]mediaproto.Endpoint{{ID: 5}})
	assert.Equal(t, []int{5}, dir.IDs())
}
