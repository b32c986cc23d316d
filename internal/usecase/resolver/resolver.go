// Package resolver превращает (id записи, hash) или (id файла | hash) в FileDescriptor
// с кешем в памяти, который целиком сбрасывается раз в cache_ttl.
package resolver

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/sir_venger/mediagate/internal/models"
	"github.com/sir_venger/mediagate/internal/observability"
)

// Catalog отдаёт записи и файлы.
type Catalog interface {
	GetRecord(ctx context.Context, id int64) (models.Record, error)
	GetFile(ctx context.Context, idOrHash string) (models.MediaFile, error)
}

// LookupKey задаёт файл в одном из двух режимов: запись каталога + hash
// (CatalogID != 0) или отдельная коллекция файлов по FileID, а без него по Hash.
type LookupKey struct {
	CatalogID int64
	FileID    string
	Hash      string
}

func (k LookupKey) cacheKey() string {
	if k.CatalogID != 0 {
		return "c:" + strconv.FormatInt(k.CatalogID, 10) + ":" + k.Hash
	}
	if k.FileID != "" {
		return "f:" + k.FileID
	}
	return "f:" + k.Hash
}

type Options struct {
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

type Resolver struct {
	catalog Catalog
	log     zerolog.Logger
	metrics *observability.Metrics

	mu    sync.RWMutex
	cache map[string]models.FileDescriptor
	epoch uint64
	group singleflight.Group
}

func New(catalog Catalog, opts Options) *Resolver {
	return &Resolver{
		catalog: catalog,
		log:     opts.Logger,
		metrics: opts.Metrics,
		cache:   make(map[string]models.FileDescriptor),
	}
}

// Resolve возвращает дескриптор из кеша или из каталога. Для отсутствующего файла возвращается models.ErrFileNotFound.
func (r *Resolver) Resolve(ctx context.Context, key LookupKey) (models.FileDescriptor, error) {
	ck := key.cacheKey()

	r.mu.RLock()
	desc, ok := r.cache[ck]
	epoch := r.epoch
	r.mu.RUnlock()
	r.metrics.CacheLookup(ok)
	if ok {
		return desc, nil
	}

	// загрузка, начатая до Purge, не делится с запросами после него
	// и не пишет в кеш устаревший дескриптор
	ch := r.group.DoChan(ck+"@"+strconv.FormatUint(epoch, 10), func() (any, error) {
		desc, err := r.load(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		if r.epoch == epoch {
			r.cache[ck] = desc
		}
		r.mu.Unlock()
		return desc, nil
	})

	select {
	case <-ctx.Done():
		return models.FileDescriptor{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.FileDescriptor{}, res.Err
		}
		return res.Val.(models.FileDescriptor), nil
	}
}

func (r *Resolver) load(ctx context.Context, key LookupKey) (models.FileDescriptor, error) {
	var (
		contentID string
		variant   models.FileVariant
	)

	if key.CatalogID != 0 {
		if key.Hash == "" {
			return models.FileDescriptor{}, fmt.Errorf("record %d: empty hash: %w", key.CatalogID, models.ErrFileNotFound)
		}
		rec, err := r.catalog.GetRecord(ctx, key.CatalogID)
		if err != nil {
			return models.FileDescriptor{}, err
		}
		v, ok := rec.FindVariant(key.Hash)
		if !ok {
			return models.FileDescriptor{}, fmt.Errorf("record %d has no variant %q: %w", key.CatalogID, key.Hash, models.ErrFileNotFound)
		}
		contentID, variant = strconv.FormatInt(key.CatalogID, 10), v
	} else {
		lookup := key.FileID
		if lookup == "" {
			lookup = key.Hash
		}
		if lookup == "" {
			return models.FileDescriptor{}, fmt.Errorf("empty file lookup: %w", models.ErrFileNotFound)
		}
		f, err := r.catalog.GetFile(ctx, lookup)
		if err != nil {
			return models.FileDescriptor{}, err
		}
		contentID, variant = f.ID, f.FileVariant
	}

	loc, err := models.DecodeLocation(variant.LocationToken)
	if err != nil {
		return models.FileDescriptor{}, fmt.Errorf("%w: %w", models.ErrFileNotFound, err)
	}

	return models.FileDescriptor{
		ContentID: contentID,
		UniqueID:  variant.UniqueID,
		Size:      variant.FileSize,
		MimeType:  variant.MimeType,
		FileName:  variant.FileName,
		Source:    models.ChunkSource{DC: loc.DC, Location: loc},
	}, nil
}

// Purge сбрасывает кеш целиком.
func (r *Resolver) Purge() {
	r.mu.Lock()
	n := len(r.cache)
	r.cache = make(map[string]models.FileDescriptor)
	r.epoch++
	r.mu.Unlock()

	if n > 0 {
		r.log.Debug().Int("entries", n).Msg("descriptor cache purged")
	}
}

func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// StartCleaner раз в every сбрасывает кеш. Возвращает функцию остановки.
func (r *Resolver) StartCleaner(every time.Duration) func() {
	if every <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(every)
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case <-ticker.C:
				r.Purge()
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
