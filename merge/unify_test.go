package merge_test

import (
	"testing"

	"github.com/automoto/tmxjoin/merge"
	"github.com/automoto/tmxjoin/shared/mapdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firstGIDs(tilesets []*mapdata.Tileset) map[string]uint32 {
	out := make(map[string]uint32, len(tilesets))
	for _, ts := range tilesets {
		out[ts.Key] = ts.FirstGID
	}
	return out
}

func TestUnifyStride(t *testing.T) {
	sources := []merge.Source{
		{Map: smallMap("a", [][]mapdata.GID{{1}}, tileset("grass", 1, 4), tileset("rock", 5, 100))},
		{Map: smallMap("b", [][]mapdata.GID{{1}}, tileset("water", 1, 512))},
	}
	uni, err := merge.Unify(sources, merge.Options{Stride: 512})
	require.NoError(t, err)

	assert.Equal(t, map[string]uint32{"grass": 1, "rock": 513, "water": 1025}, firstGIDs(uni.Tilesets))

	got, ok := uni.Tables[0].Translate(6)
	require.True(t, ok)
	assert.Equal(t, mapdata.GID(514), got)
}

func TestUnifyStrideTooSmall(t *testing.T) {
	sources := []merge.Source{
		{Map: smallMap("a", [][]mapdata.GID{{1}}, tileset("grass", 1, 600))},
	}
	_, err := merge.Unify(sources, merge.Options{Stride: 512})
	require.ErrorIs(t, err, merge.ErrStrideTooSmall)
}

func TestUnifyPinned(t *testing.T) {
	sources := []merge.Source{
		{Map: smallMap("a", [][]mapdata.GID{{1}}, tileset("grass", 1, 4))},
		{Map: smallMap("b", [][]mapdata.GID{{1}}, tileset("water", 1, 4), tileset("collision", 5, 2))},
	}
	uni, err := merge.Unify(sources, merge.Options{Pinned: []string{"collision", "unused"}})
	require.NoError(t, err)

	require.Len(t, uni.Tilesets, 3)
	assert.Equal(t, "collision", uni.Tilesets[0].Key)
	assert.Equal(t, map[string]uint32{"collision": 1, "grass": 3, "water": 7}, firstGIDs(uni.Tilesets))
}

func TestUnifyOverlappingRanges(t *testing.T) {
	sources := []merge.Source{
		{Map: smallMap("a", [][]mapdata.GID{{1}}, tileset("grass", 1, 8), tileset("rock", 5, 4))},
	}
	_, err := merge.Unify(sources, merge.Options{})
	require.ErrorIs(t, err, merge.ErrOverlappingTilesets)
}

func TestUnifyEmptyTileset(t *testing.T) {
	sources := []merge.Source{
		{Map: smallMap("a", [][]mapdata.GID{{1}}, tileset("grass", 1, 0))},
	}
	_, err := merge.Unify(sources, merge.Options{})
	require.ErrorIs(t, err, merge.ErrEmptyTileset)
}

func TestUnifyDoesNotMutateSources(t *testing.T) {
	ts := tileset("grass", 9, 4)
	sources := []merge.Source{
		{Map: smallMap("a", [][]mapdata.GID{{1}}, tileset("rock", 1, 8), ts)},
		{Map: smallMap("b", [][]mapdata.GID{{1}}, tileset("grass", 1, 4))},
	}
	uni, err := merge.Unify(sources, merge.Options{})
	require.NoError(t, err)

	assert.Equal(t, uint32(9), ts.FirstGID)
	assert.Equal(t, uint32(9), firstGIDs(uni.Tilesets)["grass"])
}

func TestTableTranslate(t *testing.T) {
	sources := []merge.Source{
		{Map: smallMap("a", [][]mapdata.GID{{1}}, tileset("grass", 1, 4))},
		{Map: smallMap("b", [][]mapdata.GID{{1}}, tileset("water", 1, 2), tileset("grass", 10, 4))},
	}
	uni, err := merge.Unify(sources, merge.Options{})
	require.NoError(t, err)
	table := uni.Tables[1]

	tests := []struct {
		in   mapdata.GID
		want mapdata.GID
		ok   bool
	}{
		{in: 0, want: 0, ok: true},
		{in: 1, want: 5, ok: true},
		{in: 2, want: 6, ok: true},
		{in: 3, ok: false},
		{in: 10, want: 1, ok: true},
		{in: 13, want: 4, ok: true},
		{in: 14, ok: false},
		{in: mapdata.FlagVertical | 11, want: mapdata.FlagVertical | 2, ok: true},
		{in: mapdata.FlagVertical, want: 0, ok: true},
	}
	for _, tc := range tests {
		got, ok := table.Translate(tc.in)
		assert.Equal(t, tc.ok, ok, "translate %d", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "translate %d", tc.in)
		}
	}

	assert.Equal(t, []merge.Range{
		{Key: "water", Local: 1, Count: 2, Global: 5},
		{Key: "grass", Local: 10, Count: 4, Global: 1},
	}, table.Ranges())
}
