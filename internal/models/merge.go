package models

import "github.com/samber/lo"

// MergeRecord вливает incoming в existing обходом дерева сезоны → эпизоды → файлы.
// Сезоны и эпизоды сопоставляются по номеру, варианты файлов по hash:
// найденный вариант обновляется на месте, новый добавляется в конец.
// Скалярные поля записи берутся из incoming, если они заданы.
func MergeRecord(existing, incoming Record) Record {
	out := existing.Clone()

	if incoming.Title != "" {
		out.Title = incoming.Title
	}
	if incoming.Kind != "" {
		out.Kind = incoming.Kind
	}
	if incoming.Rating != 0 {
		out.Rating = incoming.Rating
	}
	if incoming.Runtime != 0 {
		out.Runtime = incoming.Runtime
	}
	if incoming.ReleaseDate != "" {
		out.ReleaseDate = incoming.ReleaseDate
	}
	if incoming.Country != "" {
		out.Country = incoming.Country
	}
	if incoming.Language != "" {
		out.Language = incoming.Language
	}
	if len(incoming.Genres) > 0 {
		out.Genres = append([]string(nil), incoming.Genres...)
	}

	out.Files = mergeVariants(out.Files, incoming.Files)

	for _, season := range incoming.Seasons {
		_, idx, ok := lo.FindIndexOf(out.Seasons, func(s Season) bool { return s.Number == season.Number })
		if !ok {
			out.Seasons = append(out.Seasons, season)
			continue
		}
		out.Seasons[idx].Episodes = mergeEpisodes(out.Seasons[idx].Episodes, season.Episodes)
	}

	return out
}

func mergeEpisodes(existing, incoming []Episode) []Episode {
	for _, ep := range incoming {
		_, idx, ok := lo.FindIndexOf(existing, func(e Episode) bool { return e.Number == ep.Number })
		if !ok {
			existing = append(existing, ep)
			continue
		}
		existing[idx].Files = mergeVariants(existing[idx].Files, ep.Files)
	}
	return existing
}

func mergeVariants(existing, incoming []FileVariant) []FileVariant {
	for _, v := range incoming {
		_, idx, ok := lo.FindIndexOf(existing, func(f FileVariant) bool { return f.Hash == v.Hash })
		if ok {
			existing[idx] = v
			continue
		}
		existing = append(existing, v)
	}
	return existing
}
