package gatewayhttp

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/sir_venger/mediagate/internal/models"
)

// метка источника в списках потоков
const sourceName = "mediagate"

type streamView struct {
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Season   int    `json:"season,omitempty"`
	Episode  int    `json:"episode,omitempty"`
	Date     string `json:"date,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Quality  string `json:"quality,omitempty"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

type recordView struct {
	ID       int64        `json:"tmdb_id"`
	Title    string       `json:"title"`
	Type     string       `json:"type"`
	Country  string       `json:"country,omitempty"`
	Language string       `json:"language,omitempty"`
	Date     string       `json:"date,omitempty"`
	Duration int          `json:"duration,omitempty"`
	Files    []streamView `json:"files"`
}

type fileView struct {
	models.MediaFile
	Name string `json:"name"`
	URL  string `json:"url"`
}

// streamURL строит ссылку <base>/dl/<id>?hash=<hash>.
func (s *Server) streamURL(id int64, hash string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/dl/" + strconv.FormatInt(id, 10) + "?hash=" + url.QueryEscape(hash)
}

// fileURL строит ссылку <base>/dl?hash=<hash> для отдельной коллекции файлов.
func (s *Server) fileURL(hash string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/dl?hash=" + url.QueryEscape(hash)
}

func (s *Server) recordView(r models.Record) recordView {
	v := recordView{
		ID:       r.ID,
		Title:    r.Title,
		Type:     string(r.Kind),
		Country:  r.Country,
		Language: r.Language,
		Files:    []streamView{},
	}

	if r.Kind == models.KindTV {
		for _, season := range r.Seasons {
			for _, ep := range season.Episodes {
				v.Files = append(v.Files, s.episodeStreams(r.ID, season.Number, ep)...)
			}
		}
		return v
	}

	v.Date, v.Duration = r.ReleaseDate, r.Runtime
	v.Files = lo.Map(r.Files, func(f models.FileVariant, _ int) streamView {
		sv := s.variantStream(r.ID, f)
		sv.Mode = "movies"
		return sv
	})
	return v
}

func (s *Server) variantStream(id int64, f models.FileVariant) streamView {
	return streamView{
		Name:    sourceName,
		Title:   f.FileName,
		Quality: f.Quality,
		Size:    f.FileSize,
		URL:     s.streamURL(id, f.Hash),
	}
}

func (s *Server) episodeStreams(id int64, season int, ep models.Episode) []streamView {
	return lo.Map(ep.Files, func(f models.FileVariant, _ int) streamView {
		sv := s.variantStream(id, f)
		sv.Mode = "tv"
		sv.Season, sv.Episode = season, ep.Number
		sv.Date, sv.Duration = ep.Date, ep.Duration
		return sv
	})
}

// movieStreamViews собирает потоки фильма для /stream/movie/{id}.json.
func (s *Server) movieStreamViews(r models.Record) []streamView {
	return lo.Map(r.Files, func(f models.FileVariant, _ int) streamView {
		sv := s.variantStream(r.ID, f)
		sv.Date, sv.Duration = r.ReleaseDate, r.Runtime
		return sv
	})
}

// seriesStreamViews собирает варианты одного эпизода.
func (s *Server) seriesStreamViews(r models.Record, season, episode int) []streamView {
	out := []streamView{}
	for _, sn := range r.Seasons {
		if sn.Number != season {
			continue
		}
		for _, ep := range sn.Episodes {
			if ep.Number == episode {
				out = append(out, s.episodeStreams(r.ID, season, ep)...)
			}
		}
	}
	return out
}
