package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sir_venger/mediagate/internal/models"
)

const (
	recordsTable = "catalog_records"
	filesTable   = "media_files"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGStore хранит каталог в Postgres; записи лежат JSONB-документами.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore создаёт пул подключений к Postgres. Схему готовит ApplyMigrations.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("catalog dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return &PGStore{pool: pool}, nil
}

func (s *PGStore) GetRecord(ctx context.Context, id int64) (models.Record, error) {
	sqlStr, args, err := psql.Select("payload").From(recordsTable).Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return models.Record{}, fmt.Errorf("build select: %w", err)
	}

	return scanRecord(s.pool.QueryRow(ctx, sqlStr, args...), id)
}

func scanRecord(row pgx.Row, id int64) (models.Record, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Record{}, notFoundRecord(id)
		}
		return models.Record{}, fmt.Errorf("scan record row: %w", err)
	}

	var r models.Record
	if err := json.Unmarshal(payload, &r); err != nil {
		return models.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return r, nil
}

// UpsertRecord читает запись под FOR UPDATE, сливает и сохраняет в одной транзакции.
func (s *PGStore) UpsertRecord(ctx context.Context, r models.Record) (models.Record, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sqlStr, args, err := psql.Select("payload").From(recordsTable).
		Where(sq.Eq{"id": r.ID}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return models.Record{}, fmt.Errorf("build select: %w", err)
	}

	merged := r.Clone()
	existing, err := scanRecord(tx.QueryRow(ctx, sqlStr, args...), r.ID)
	switch {
	case err == nil:
		merged = models.MergeRecord(existing, r)
	case !errors.Is(err, models.ErrFileNotFound):
		return models.Record{}, err
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(merged)
	if err != nil {
		return models.Record{}, fmt.Errorf("marshal record: %w", err)
	}

	sqlStr, args, err = psql.Insert(recordsTable).
		Columns("id", "kind", "title", "payload", "created_at").
		Values(merged.ID, string(merged.Kind), merged.Title, payload, merged.CreatedAt).
		Suffix(`
			ON CONFLICT (id) DO UPDATE
			SET kind       = EXCLUDED.kind,
			    title      = EXCLUDED.title,
			    payload    = EXCLUDED.payload,
			    updated_at = now()`).
		ToSql()
	if err != nil {
		return models.Record{}, fmt.Errorf("build upsert sql: %w", err)
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		return models.Record{}, fmt.Errorf("exec upsert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Record{}, err
	}
	return merged, nil
}

func (s *PGStore) LatestRecords(ctx context.Context, page, perPage int) ([]models.Record, error) {
	return s.listRecords(ctx, nil, page, perPage)
}

// SearchRecords ищет слова запроса в названии в заданном порядке (ILIKE '%w1%w2%').
func (s *PGStore) SearchRecords(ctx context.Context, query string, page, perPage int) ([]models.Record, error) {
	words := strings.Fields(query)
	if len(words) == 0 {
		return s.listRecords(ctx, nil, page, perPage)
	}

	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	for i, w := range words {
		words[i] = escaper.Replace(w)
	}
	return s.listRecords(ctx, sq.ILike{"title": "%" + strings.Join(words, "%") + "%"}, page, perPage)
}

func (s *PGStore) listRecords(ctx context.Context, where sq.Sqlizer, page, perPage int) ([]models.Record, error) {
	page, perPage = normalizePage(page, perPage)

	b := psql.Select("payload").From(recordsTable).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(perPage)).Offset(uint64((page - 1) * perPage))
	if where != nil {
		b = b.Where(where)
	}
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	payloads, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("collect records: %w", err)
	}

	out := make([]models.Record, 0, len(payloads))
	for _, p := range payloads {
		var r models.Record
		if err := json.Unmarshal(p, &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *PGStore) GetFile(ctx context.Context, idOrHash string) (models.MediaFile, error) {
	sqlStr, args, err := psql.Select("payload").From(filesTable).
		Where(sq.Or{sq.Eq{"id": idOrHash}, sq.Eq{"hash": idOrHash}}).
		OrderByClause("(id = ?) DESC", idOrHash).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return models.MediaFile{}, fmt.Errorf("build select: %w", err)
	}

	var payload []byte
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.MediaFile{}, notFoundFile(idOrHash)
		}
		return models.MediaFile{}, fmt.Errorf("scan file row: %w", err)
	}

	var f models.MediaFile
	if err := json.Unmarshal(payload, &f); err != nil {
		return models.MediaFile{}, fmt.Errorf("unmarshal file: %w", err)
	}
	return f, nil
}

func (s *PGStore) SaveFile(ctx context.Context, f models.MediaFile) (models.MediaFile, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(f)
	if err != nil {
		return models.MediaFile{}, fmt.Errorf("marshal file: %w", err)
	}

	sqlStr, args, err := psql.Insert(filesTable).
		Columns("id", "hash", "payload", "created_at").
		Values(f.ID, f.Hash, payload, f.CreatedAt).
		Suffix(`
			ON CONFLICT (id) DO UPDATE
			SET hash    = EXCLUDED.hash,
			    payload = EXCLUDED.payload`).
		ToSql()
	if err != nil {
		return models.MediaFile{}, fmt.Errorf("build upsert sql: %w", err)
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return models.MediaFile{}, fmt.Errorf("exec upsert: %w", err)
	}
	return f, nil
}

func (s *PGStore) LatestFiles(ctx context.Context, page, perPage int) ([]models.MediaFile, error) {
	page, perPage = normalizePage(page, perPage)

	sqlStr, args, err := psql.Select("payload").From(filesTable).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(perPage)).Offset(uint64((page - 1) * perPage)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	payloads, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}

	out := make([]models.MediaFile, 0, len(payloads))
	for _, p := range payloads {
		var f models.MediaFile
		if err := json.Unmarshal(p, &f); err != nil {
			return nil, fmt.Errorf("unmarshal file: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Close освобождает подключения пула.
func (s *PGStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
