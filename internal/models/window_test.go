package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRangeWindow_Arithmetic(t *testing.T) {
	w, err := NewRangeWindow(500, 2500, 3000, 1024)
	require.NoError(t, err)

	assert.Equal(t, int64(0), w.Offset)
	assert.Equal(t, int64(500), w.FirstPartCut)
	assert.Equal(t, int64(453), w.LastPartCut)
	assert.Equal(t, int64(3), w.PartCount)
	assert.Equal(t, int64(2001), w.Length())
	assert.Equal(t, "bytes 500-2500/3000", w.ContentRange(3000))
}

func TestNewRangeWindow_Cases(t *testing.T) {
	cases := []struct {
		name                string
		from, until, size   int64
		chunk               int64
		offset, first, last int64
		parts               int64
	}{
		{"single byte", 0, 0, 10, 4, 0, 0, 1, 1},
		{"inside one chunk", 5, 6, 10, 4, 4, 1, 3, 1},
		{"chunk aligned", 4, 7, 10, 4, 4, 0, 4, 1},
		{"whole file", 0, 9, 10, 4, 0, 0, 2, 3},
		{"tail", 9, 9, 10, 4, 8, 1, 2, 1},
		{"spans boundary", 3, 4, 10, 4, 0, 3, 1, 2},
		{"default chunk", 0, 3*DefaultChunkSize - 1, 3 * DefaultChunkSize, DefaultChunkSize, 0, 0, DefaultChunkSize, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := NewRangeWindow(tc.from, tc.until, tc.size, tc.chunk)
			require.NoError(t, err)
			assert.Equal(t, tc.offset, w.Offset, "offset")
			assert.Equal(t, tc.first, w.FirstPartCut, "first cut")
			assert.Equal(t, tc.last, w.LastPartCut, "last cut")
			assert.Equal(t, tc.parts, w.PartCount, "part count")
		})
	}
}

func TestNewRangeWindow_NotSatisfiable(t *testing.T) {
	for _, tc := range []struct{ from, until, size int64 }{
		{-1, 5, 10},
		{6, 5, 10},
		{0, 10, 10},
		{10, 12, 10},
		{0, 0, 0},
	} {
		_, err := NewRangeWindow(tc.from, tc.until, tc.size, 4)
		assert.ErrorIs(t, err, ErrRangeNotSatisfiable, "from=%d until=%d size=%d", tc.from, tc.until, tc.size)
	}
}

func TestNewRangeWindow_BadChunkSize(t *testing.T) {
	_, err := NewRangeWindow(0, 1, 2, 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRangeNotSatisfiable)
}
