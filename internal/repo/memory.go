package repo

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sir_venger/mediagate/internal/models"
)

// MemoryStore хранит каталог только в оперативной памяти; удобно для тестов.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]models.Record
	files   map[string]models.MediaFile
	now     func() time.Time
}

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[int64]models.Record{},
		files:   map[string]models.MediaFile{},
		now:     time.Now,
	}
}

func (s *MemoryStore) GetRecord(_ context.Context, id int64) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return models.Record{}, notFoundRecord(id)
	}
	return r.Clone(), nil
}

func (s *MemoryStore) UpsertRecord(_ context.Context, r models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := r.Clone()
	if existing, ok := s.records[r.ID]; ok {
		merged = models.MergeRecord(existing, r)
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = s.now().UTC()
	}
	s.records[r.ID] = merged
	return merged.Clone(), nil
}

func (s *MemoryStore) sortedRecords(keep func(models.Record) bool) []models.Record {
	s.mu.RLock()
	out := make([]models.Record, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	sortRecords(out)
	return out
}

func (s *MemoryStore) LatestRecords(_ context.Context, page, perPage int) ([]models.Record, error) {
	all := s.sortedRecords(func(models.Record) bool { return true })
	from, to := pageBounds(len(all), page, perPage)
	return all[from:to], nil
}

func (s *MemoryStore) SearchRecords(_ context.Context, query string, page, perPage int) ([]models.Record, error) {
	all := s.sortedRecords(func(r models.Record) bool { return r.MatchesQuery(query) })
	from, to := pageBounds(len(all), page, perPage)
	return all[from:to], nil
}

func (s *MemoryStore) GetFile(_ context.Context, idOrHash string) (models.MediaFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f, ok := s.files[idOrHash]; ok {
		return f, nil
	}
	for _, f := range s.files {
		if f.Hash == idOrHash {
			return f, nil
		}
	}
	return models.MediaFile{}, notFoundFile(idOrHash)
}

func (s *MemoryStore) SaveFile(_ context.Context, f models.MediaFile) (models.MediaFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now().UTC()
	}
	s.files[f.ID] = f
	return f, nil
}

func (s *MemoryStore) LatestFiles(_ context.Context, page, perPage int) ([]models.MediaFile, error) {
	s.mu.RLock()
	all := make([]models.MediaFile, 0, len(s.files))
	for _, f := range s.files {
		all = append(all, f)
	}
	s.mu.RUnlock()

	sortFiles(all)
	from, to := pageBounds(len(all), page, perPage)
	return all[from:to], nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// sortRecords упорядочивает записи от новых к старым.
func sortRecords(records []models.Record) {
	slices.SortFunc(records, func(a, b models.Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

func sortFiles(files []models.MediaFile) {
	slices.SortFunc(files, func(a, b models.MediaFile) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
