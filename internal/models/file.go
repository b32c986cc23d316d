package models

import (
	"strings"
	"time"
)

type RecordKind string

const (
	KindMovie RecordKind = "movie"
	KindTV    RecordKind = "tv"
)

// FileVariant описывает один сохранённый файл (качество/релиз) фильма или эпизода.
type FileVariant struct {
	Hash          string `json:"hash" validate:"required"`
	UniqueID      string `json:"file_unique_id"`
	FileName      string `json:"file_name,omitempty"`
	FileSize      int64  `json:"file_size"`
	MimeType      string `json:"mime_type,omitempty"`
	Quality       string `json:"quality,omitempty"`
	LocationToken string `json:"file_id" validate:"required"`
}

// Episode хранит варианты файлов одной серии.
type Episode struct {
	Number   int           `json:"episode_number"`
	Title    string        `json:"title,omitempty"`
	Date     string        `json:"date,omitempty"`
	Duration int           `json:"duration,omitempty"`
	Files    []FileVariant `json:"file_info" validate:"dive"`
}

type Season struct {
	Number   int       `json:"season_number"`
	Episodes []Episode `json:"episodes" validate:"dive"`
}

// Record описывает запись каталога: фильм (Files) или сериал (Seasons).
type Record struct {
	ID          int64         `json:"tmdb_id" validate:"gt=0"`
	Kind        RecordKind    `json:"type" validate:"required,oneof=movie tv"`
	Title       string        `json:"title"`
	Rating      float64       `json:"rating,omitempty"`
	Runtime     int           `json:"runtime,omitempty"`
	ReleaseDate string        `json:"release_date,omitempty"`
	Country     string        `json:"country,omitempty"`
	Language    string        `json:"language,omitempty"`
	Genres      []string      `json:"genres,omitempty"`
	Files       []FileVariant `json:"file_info,omitempty" validate:"dive"`
	Seasons     []Season      `json:"seasons,omitempty" validate:"dive"`
	CreatedAt   time.Time     `json:"created_at"`
}

// MediaFile описывает файл из отдельной коллекции, не привязанный к записи каталога.
type MediaFile struct {
	ID string `json:"id"`
	FileVariant
	CreatedAt time.Time `json:"created_at"`
}

// Clone возвращает глубокую копию, чтобы не делиться внутренними слайсами.
func (r Record) Clone() Record {
	out := r
	out.Genres = append([]string(nil), r.Genres...)
	out.Files = append([]FileVariant(nil), r.Files...)
	out.Seasons = nil
	for _, s := range r.Seasons {
		cs := Season{Number: s.Number, Episodes: make([]Episode, 0, len(s.Episodes))}
		for _, e := range s.Episodes {
			ce := e
			ce.Files = append([]FileVariant(nil), e.Files...)
			cs.Episodes = append(cs.Episodes, ce)
		}
		out.Seasons = append(out.Seasons, cs)
	}
	return out
}

// FindVariant ищет вариант файла по hash, обходя сезоны/эпизоды для сериалов.
func (r Record) FindVariant(hash string) (FileVariant, bool) {
	if r.Kind == KindTV {
		for _, s := range r.Seasons {
			for _, e := range s.Episodes {
				for _, f := range e.Files {
					if f.Hash == hash {
						return f, true
					}
				}
			}
		}
		return FileVariant{}, false
	}

	for _, f := range r.Files {
		if f.Hash == hash {
			return f, true
		}
	}
	return FileVariant{}, false
}

// MatchesQuery проверяет, что слова запроса встречаются в названии в заданном порядке, без учёта регистра.
func (r Record) MatchesQuery(query string) bool {
	title := strings.ToLower(r.Title)
	pos := 0
	for _, w := range strings.Fields(strings.ToLower(query)) {
		i := strings.Index(title[pos:], w)
		if i < 0 {
			return false
		}
		pos += i + len(w)
	}
	return true
}
