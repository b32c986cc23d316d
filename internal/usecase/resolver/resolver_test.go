package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sir_venger/mediagate/internal/models"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetRecord(ctx context.Context, id int64) (models.Record, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Record), args.Error(1)
}

func (m *mockCatalog) GetFile(ctx context.Context, idOrHash string) (models.MediaFile, error) {
	args := m.Called(ctx, idOrHash)
	return args.Get(0).(models.MediaFile), args.Error(1)
}

var loc = models.Location{DC: 4, MediaID: 77, AccessHash: 5}

func movie() models.Record {
	return models.Record{ID: 10, Kind: models.KindMovie, Title: "Film", Files: []models.FileVariant{{
		Hash:          "AgADxy",
		UniqueID:      "AgADxyZZZ",
		FileName:      "film.mkv",
		FileSize:      3000,
		MimeType:      "video/x-matroska",
		LocationToken: models.EncodeLocation(loc),
	}}}
}

func TestResolve_CatalogModeCaches(t *testing.T) {
	cat := &mockCatalog{}
	cat.On("GetRecord", mock.Anything, int64(10)).Return(movie(), nil).Once()
	r := New(cat, Options{Logger: zerolog.Nop()})

	desc, err := r.Resolve(context.Background(), LookupKey{CatalogID: 10, Hash: "AgADxy"})
	require.NoError(t, err)
	assert.Equal(t, "10", desc.ContentID)
	assert.Equal(t, int64(3000), desc.Size)
	assert.Equal(t, "film.mkv", desc.FileName)
	assert.Equal(t, 4, desc.Source.DC)
	assert.Equal(t, loc, desc.Source.Location)
	assert.Equal(t, "AgADxy", desc.ShortHash())

	again, err := r.Resolve(context.Background(), LookupKey{CatalogID: 10, Hash: "AgADxy"})
	require.NoError(t, err)
	assert.Equal(t, desc, again)

	cat.AssertNumberOfCalls(t, "GetRecord", 1)
	assert.Equal(t, 1, r.Len())
}

func TestResolve_ConcurrentMissesCollapse(t *testing.T) {
	cat := &mockCatalog{}
	cat.On("GetRecord", mock.Anything, int64(10)).
		After(50*time.Millisecond).
		Return(movie(), nil)
	r := New(cat, Options{Logger: zerolog.Nop()})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), LookupKey{CatalogID: 10, Hash: "AgADxy"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cat.AssertNumberOfCalls(t, "GetRecord", 1)
}

func TestResolve_NotFound(t *testing.T) {
	cat := &mockCatalog{}
	cat.On("GetRecord", mock.Anything, int64(10)).Return(movie(), nil)
	cat.On("GetRecord", mock.Anything, int64(11)).Return(models.Record{}, models.ErrFileNotFound)
	r := New(cat, Options{Logger: zerolog.Nop()})

	_, err := r.Resolve(context.Background(), LookupKey{CatalogID: 11, Hash: "AgADxy"})
	assert.ErrorIs(t, err, models.ErrFileNotFound)

	_, err = r.Resolve(context.Background(), LookupKey{CatalogID: 10, Hash: "zzzzzz"})
	assert.ErrorIs(t, err, models.ErrFileNotFound)

	_, err = r.Resolve(context.Background(), LookupKey{CatalogID: 10})
	assert.ErrorIs(t, err, models.ErrFileNotFound)

	// ошибки не кешируются
	assert.Zero(t, r.Len())
}

func TestResolve_BadLocationToken(t *testing.T) {
	rec := movie()
	rec.Files[0].LocationToken = "%%%"
	cat := &mockCatalog{}
	cat.On("GetRecord", mock.Anything, int64(10)).Return(rec, nil)
	r := New(cat, Options{Logger: zerolog.Nop()})

	_, err := r.Resolve(context.Background(), LookupKey{CatalogID: 10, Hash: "AgADxy"})
	assert.ErrorIs(t, err, models.ErrFileNotFound)
}

func TestResolve_FileMode(t *testing.T) {
	file := models.MediaFile{ID: "f-1", FileVariant: movie().Files[0]}
	cat := &mockCatalog{}
	cat.On("GetFile", mock.Anything, "f-1").Return(file, nil).Once()
	cat.On("GetFile", mock.Anything, "AgADxy").Return(file, nil).Once()
	r := New(cat, Options{Logger: zerolog.Nop()})

	desc, err := r.Resolve(context.Background(), LookupKey{FileID: "f-1", Hash: "AgADxy"})
	require.NoError(t, err)
	assert.Equal(t, "f-1", desc.ContentID)

	desc, err = r.Resolve(context.Background(), LookupKey{Hash: "AgADxy"})
	require.NoError(t, err)
	assert.Equal(t, "f-1", desc.ContentID)

	_, err = r.Resolve(context.Background(), LookupKey{})
	assert.ErrorIs(t, err, models.ErrFileNotFound)

	cat.AssertExpectations(t)
}

func TestResolve_CallerCancel(t *testing.T) {
	cat := &mockCatalog{}
	cat.On("GetRecord", mock.Anything, int64(10)).After(100*time.Millisecond).Return(movie(), nil)
	r := New(cat, Options{Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, LookupKey{CatalogID: 10, Hash: "AgADxy"})
	assert.ErrorIs(t, err, context.Canceled)

	// загрузка доводится до конца и кладёт результат в кеш
	assert.Eventually(t, func() bool { return r.Len() == 1 }, time.Second, 10*time.Millisecond)
}

// slowCatalog задерживает первый GetRecord до закрытия release.
type slowCatalog struct {
	mu      sync.Mutex
	rec     models.Record
	calls   int
	started chan struct{}
	release chan struct{}
}

func (c *slowCatalog) GetRecord(context.Context, int64) (models.Record, error) {
	c.mu.Lock()
	c.calls++
	first := c.calls == 1
	rec := c.rec.Clone()
	c.mu.Unlock()

	if first {
		close(c.started)
		<-c.release
	}
	return rec, nil
}

func (c *slowCatalog) GetFile(context.Context, string) (models.MediaFile, error) {
	return models.MediaFile{}, models.ErrFileNotFound
}

func (c *slowCatalog) set(rec models.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec = rec
}

func TestResolve_PurgeDuringLoad(t *testing.T) {
	cat := &slowCatalog{rec: movie(), started: make(chan struct{}), release: make(chan struct{})}
	r := New(cat, Options{Logger: zerolog.Nop()})
	key := LookupKey{CatalogID: 10, Hash: "AgADxy"}

	done := make(chan models.FileDescriptor, 1)
	go func() {
		desc, err := r.Resolve(context.Background(), key)
		assert.NoError(t, err)
		done <- desc
	}()
	<-cat.started

	moved := movie()
	movedLoc := models.Location{DC: 5, MediaID: 78, AccessHash: 6}
	moved.Files[0].LocationToken = models.EncodeLocation(movedLoc)
	cat.set(moved)
	r.Purge()

	// после сброса запрос не ждёт старую загрузку
	fresh, err := r.Resolve(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, movedLoc, fresh.Source.Location)

	close(cat.release)
	stale := <-done
	assert.Equal(t, loc, stale.Source.Location)

	cached, err := r.Resolve(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, movedLoc, cached.Source.Location, "stale load must not overwrite the cache")
	assert.Equal(t, 2, cat.calls)
}

func TestStartCleaner(t *testing.T) {
	cat := &mockCatalog{}
	cat.On("GetRecord", mock.Anything, int64(10)).Return(movie(), nil)
	r := New(cat, Options{Logger: zerolog.Nop()})

	_, err := r.Resolve(context.Background(), LookupKey{CatalogID: 10, Hash: "AgADxy"})
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())

	stop := r.StartCleaner(10 * time.Millisecond)
	defer stop()

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	stop()
	stop()
}
