package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/sir_venger/mediagate/internal/models"
)

const (
	recordPrefix    = "rec:"
	filePrefix      = "file:id:"
	fileHashPrefix  = "file:hash:"
	recordKeyFormat = recordPrefix + "%020d"
)

// BadgerStore хранит каталог во встраиваемой BadgerDB, для одиночных инсталляций.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger открывает базу в каталоге path; пустой path или ":memory:" даёт базу в памяти.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" || path == ":memory:" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func recordKey(id int64) []byte {
	return []byte(fmt.Sprintf(recordKeyFormat, id))
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(b []byte) error {
		return json.Unmarshal(b, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, b)
}

func (s *BadgerStore) GetRecord(_ context.Context, id int64) (models.Record, error) {
	var r models.Record
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, recordKey(id), &r)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.Record{}, notFoundRecord(id)
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("get record %d: %w", id, err)
	}
	return r, nil
}

func (s *BadgerStore) UpsertRecord(_ context.Context, r models.Record) (models.Record, error) {
	var merged models.Record
	err := s.db.Update(func(txn *badger.Txn) error {
		merged = r.Clone()

		var existing models.Record
		switch err := getJSON(txn, recordKey(r.ID), &existing); {
		case err == nil:
			merged = models.MergeRecord(existing, r)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if merged.CreatedAt.IsZero() {
			merged.CreatedAt = time.Now().UTC()
		}
		return setJSON(txn, recordKey(r.ID), merged)
	})
	if err != nil {
		return models.Record{}, fmt.Errorf("upsert record %d: %w", r.ID, err)
	}
	return merged, nil
}

// scanRecords читает все записи, подходящие под keep, в порядке добавления (новые первыми).
func (s *BadgerStore) scanRecords(keep func(models.Record) bool) ([]models.Record, error) {
	var out []models.Record
	prefix := []byte(recordPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var r models.Record
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &r) }); err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}
			if keep(r) {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortRecords(out)
	return out, nil
}

func (s *BadgerStore) LatestRecords(_ context.Context, page, perPage int) ([]models.Record, error) {
	all, err := s.scanRecords(func(models.Record) bool { return true })
	if err != nil {
		return nil, err
	}
	from, to := pageBounds(len(all), page, perPage)
	return all[from:to], nil
}

func (s *BadgerStore) SearchRecords(_ context.Context, query string, page, perPage int) ([]models.Record, error) {
	all, err := s.scanRecords(func(r models.Record) bool { return r.MatchesQuery(query) })
	if err != nil {
		return nil, err
	}
	from, to := pageBounds(len(all), page, perPage)
	return all[from:to], nil
}

func (s *BadgerStore) GetFile(_ context.Context, idOrHash string) (models.MediaFile, error) {
	var f models.MediaFile
	err := s.db.View(func(txn *badger.Txn) error {
		err := getJSON(txn, []byte(filePrefix+idOrHash), &f)
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		// по hash: индекс file:hash:<hash>:<id>
		prefix := []byte(fileHashPrefix + idOrHash + ":")
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(prefix)
		if !it.ValidForPrefix(prefix) {
			return badger.ErrKeyNotFound
		}
		id := string(it.Item().Key()[len(prefix):])
		return getJSON(txn, []byte(filePrefix+id), &f)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.MediaFile{}, notFoundFile(idOrHash)
	}
	if err != nil {
		return models.MediaFile{}, fmt.Errorf("get file %q: %w", idOrHash, err)
	}
	return f, nil
}

func (s *BadgerStore) SaveFile(_ context.Context, f models.MediaFile) (models.MediaFile, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		var prev models.MediaFile
		switch err := getJSON(txn, []byte(filePrefix+f.ID), &prev); {
		case err == nil:
			if err := txn.Delete([]byte(fileHashPrefix + prev.Hash + ":" + prev.ID)); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := setJSON(txn, []byte(filePrefix+f.ID), f); err != nil {
			return err
		}
		return txn.Set([]byte(fileHashPrefix+f.Hash+":"+f.ID), []byte{})
	})
	if err != nil {
		return models.MediaFile{}, fmt.Errorf("save file %q: %w", f.ID, err)
	}
	return f, nil
}

func (s *BadgerStore) LatestFiles(_ context.Context, page, perPage int) ([]models.MediaFile, error) {
	var all []models.MediaFile
	prefix := []byte(filePrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var f models.MediaFile
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &f) }); err != nil {
				return fmt.Errorf("unmarshal file: %w", err)
			}
			all = append(all, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortFiles(all)
	from, to := pageBounds(len(all), page, perPage)
	return all[from:to], nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
