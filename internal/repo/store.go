// Package repo хранит каталог: записи фильмов/сериалов и отдельную коллекцию файлов.
package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/sir_venger/mediagate/internal/models"
)

const DefaultPerPage = 20

// Store хранит каталог записей и файлов. Для отсутствующей записи методы возвращают models.ErrFileNotFound.
type Store interface {
	GetRecord(ctx context.Context, id int64) (models.Record, error)
	// UpsertRecord вливает запись в существующую (models.MergeRecord) или создаёт новую.
	UpsertRecord(ctx context.Context, r models.Record) (models.Record, error)
	LatestRecords(ctx context.Context, page, perPage int) ([]models.Record, error)
	SearchRecords(ctx context.Context, query string, page, perPage int) ([]models.Record, error)

	// GetFile ищет файл по id, а если не нашёл, то по hash.
	GetFile(ctx context.Context, idOrHash string) (models.MediaFile, error)
	SaveFile(ctx context.Context, f models.MediaFile) (models.MediaFile, error)
	LatestFiles(ctx context.Context, page, perPage int) ([]models.MediaFile, error)

	Close() error
}

// Open выбирает реализацию по схеме DSN: memory://, postgres://, badger://<path>.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "" || strings.HasPrefix(dsn, "memory://"):
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		if err := ApplyMigrations(ctx, dsn); err != nil {
			return nil, fmt.Errorf("migrate catalog: %w", err)
		}
		return NewPGStore(ctx, dsn)
	case strings.HasPrefix(dsn, "badger://"):
		return OpenBadger(strings.TrimPrefix(dsn, "badger://"))
	default:
		return nil, fmt.Errorf("unsupported catalog dsn %q", dsn)
	}
}

func notFoundRecord(id int64) error {
	return fmt.Errorf("record %d: %w", id, models.ErrFileNotFound)
}

func notFoundFile(key string) error {
	return fmt.Errorf("file %q: %w", key, models.ErrFileNotFound)
}

// pageBounds переводит номер страницы (с 1) в границы среза длины n.
func pageBounds(n, page, perPage int) (int, int) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		page = 1
	}
	from := min((page-1)*perPage, n)
	return from, min(from+perPage, n)
}

func normalizePage(page, perPage int) (int, int) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return max(page, 1), perPage
}
