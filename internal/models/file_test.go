package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationToken_RoundTrip(t *testing.T) {
	loc := Location{DC: 4, MediaID: 5_000_000_123, AccessHash: -77, FileReference: []byte{1, 2, 3}}

	got, err := DecodeLocation(EncodeLocation(loc))
	require.NoError(t, err)
	assert.Equal(t, loc, got)

	empty := Location{DC: 1, MediaID: 9}
	got, err = DecodeLocation(EncodeLocation(empty))
	require.NoError(t, err)
	assert.Equal(t, empty, got)
}

func TestDecodeLocation_Garbage(t *testing.T) {
	for _, token := range []string{"", "%%%", "AQ", EncodeLocation(Location{DC: 1}) + "AAAA"} {
		_, err := DecodeLocation(token)
		assert.Error(t, err, "token %q", token)
	}
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "AgADbc", ShortHash("AgADbcXYZ"))
	assert.Equal(t, "abc", ShortHash("abc"))
}

func TestRecord_FindVariant(t *testing.T) {
	movie := Record{Kind: KindMovie, Files: []FileVariant{{Hash: "aaaaaa"}, {Hash: "bbbbbb", FileName: "b.mkv"}}}
	v, ok := movie.FindVariant("bbbbbb")
	require.True(t, ok)
	assert.Equal(t, "b.mkv", v.FileName)

	show := Record{Kind: KindTV, Seasons: []Season{
		{Number: 1, Episodes: []Episode{{Number: 1, Files: []FileVariant{{Hash: "s1e1aa"}}}}},
		{Number: 2, Episodes: []Episode{{Number: 3, Files: []FileVariant{{Hash: "s2e3aa", FileName: "x.mp4"}}}}},
	}}
	v, ok = show.FindVariant("s2e3aa")
	require.True(t, ok)
	assert.Equal(t, "x.mp4", v.FileName)

	_, ok = show.FindVariant("nope00")
	assert.False(t, ok)
}

func TestRecord_MatchesQuery(t *testing.T) {
	r := Record{Title: "From Dusk Till Dawn"}
	assert.True(t, r.MatchesQuery("from"))
	assert.True(t, r.MatchesQuery("FROM dawn"))
	assert.False(t, r.MatchesQuery("dawn from"))
	assert.True(t, r.MatchesQuery(""))
}

func TestMergeRecord_SeriesTreeWalk(t *testing.T) {
	existing := Record{ID: 1, Kind: KindTV, Title: "Show", Seasons: []Season{
		{Number: 1, Episodes: []Episode{{Number: 1, Files: []FileVariant{{Hash: "aaaaaa", Quality: "720p"}}}}},
	}}
	incoming := Record{ID: 1, Kind: KindTV, Seasons: []Season{
		{Number: 1, Episodes: []Episode{
			{Number: 1, Files: []FileVariant{{Hash: "aaaaaa", Quality: "1080p"}, {Hash: "bbbbbb"}}},
			{Number: 2, Files: []FileVariant{{Hash: "cccccc"}}},
		}},
		{Number: 2, Episodes: []Episode{{Number: 1, Files: []FileVariant{{Hash: "dddddd"}}}}},
	}}

	merged := MergeRecord(existing, incoming)

	require.Len(t, merged.Seasons, 2)
	require.Len(t, merged.Seasons[0].Episodes, 2)
	files := merged.Seasons[0].Episodes[0].Files
	require.Len(t, files, 2)
	assert.Equal(t, "1080p", files[0].Quality)
	assert.Equal(t, "bbbbbb", files[1].Hash)
	assert.Equal(t, "Show", merged.Title)

	// existing не мутирует
	assert.Equal(t, "720p", existing.Seasons[0].Episodes[0].Files[0].Quality)
}

func TestMergeRecord_Movie(t *testing.T) {
	existing := Record{ID: 2, Kind: KindMovie, Title: "Old", Files: []FileVariant{}}
	merged := MergeRecord(existing, Record{ID: 2, Title: "New", Files: []FileVariant{{Hash: "abc123"}}})

	assert.Equal(t, "New", merged.Title)
	require.Len(t, merged.Files, 1)
	assert.Equal(t, "abc123", merged.Files[0].Hash)
}

func TestMergeRecord_ScalarFields(t *testing.T) {
	existing := Record{ID: 3, Kind: KindMovie, Title: "Film", Country: "US", Language: "en", Rating: 6.1}

	merged := MergeRecord(existing, Record{ID: 3, Country: "FR", Language: "fr"})
	assert.Equal(t, "FR", merged.Country)
	assert.Equal(t, "fr", merged.Language)
	assert.Equal(t, "Film", merged.Title)
	assert.Equal(t, 6.1, merged.Rating)

	kept := MergeRecord(existing, Record{ID: 3, Title: "Film (2024)"})
	assert.Equal(t, "US", kept.Country)
	assert.Equal(t, "en", kept.Language)
}

func TestAttachment_Name(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	assert.Equal(t, "movie.mkv", Attachment{Kind: AttachmentDocument, FileName: "movie.mkv"}.Name(now))
	assert.Equal(t, "video-2024-05-06_07-08-09.mp4", Attachment{Kind: AttachmentVideo}.Name(now))
	assert.Equal(t, "document-2024-05-06_07-08-09", Attachment{Kind: AttachmentDocument}.Name(now))

	v := Attachment{Kind: AttachmentVideo, UniqueID: "AgADxyz123", Height: 1080, LocationToken: "tok"}.Variant(now)
	assert.Equal(t, "AgADxy", v.Hash)
	assert.Equal(t, "1080p", v.Quality)
	assert.True(t, AttachmentSticker.Valid())
	assert.False(t, AttachmentKind("gif").Valid())
}
