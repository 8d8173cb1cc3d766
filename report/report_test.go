package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/automoto/tmxjoin/merge"
	"github.com/automoto/tmxjoin/report"
	"github.com/automoto/tmxjoin/shared/mapdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func small(name string, data []mapdata.GID, tilesets ...*mapdata.Tileset) *mapdata.TileMap {
	l := mapdata.NewLayer("Ground", len(data), 1)
	copy(l.Data, data)
	return &mapdata.TileMap{
		Name:       name,
		Width:      len(data),
		Height:     1,
		TileWidth:  16,
		TileHeight: 16,
		Tilesets:   tilesets,
		Layers:     []*mapdata.Layer{l},
	}
}

func ts(key string, first uint32, count int) *mapdata.Tileset {
	return &mapdata.Tileset{FirstGID: first, TileCount: count, Key: key, Name: key}
}

func merged(t *testing.T) (*merge.Result, []merge.Source) {
	t.Helper()
	sources := []merge.Source{
		{Name: "maps/a.tmx", Map: small("a", []mapdata.GID{1, 2}, ts("grass", 1, 4))},
		{Name: "maps/b.tmx", Map: small("b", []mapdata.GID{1, 3}, ts("water", 1, 2), ts("grass", 3, 4)),
			Offset: merge.Offset{X: 1}},
	}
	res, err := merge.Merge(merge.Target{Name: "world", Width: 3, Height: 1, TileWidth: 16, TileHeight: 16}, sources, merge.Options{})
	require.NoError(t, err)
	return res, sources
}

func TestBuild(t *testing.T) {
	res, sources := merged(t)

	r, err := report.Build(res, sources, []byte("<map/>"))
	require.NoError(t, err)

	assert.Equal(t, "world", r.Map)
	assert.Equal(t, 3, r.Width)
	assert.Equal(t, []report.Tileset{
		{FirstGID: 1, TileCount: 4, Name: "grass", Key: "grass"},
		{FirstGID: 5, TileCount: 2, Name: "water", Key: "water"},
	}, r.Tilesets)

	require.Len(t, r.Sources, 2)
	assert.Equal(t, "maps/b.tmx", r.Sources[1].Name)
	assert.Equal(t, 1, r.Sources[1].X)
	assert.Equal(t, []merge.Range{
		{Key: "water", Local: 1, Count: 2, Global: 5},
		{Key: "grass", Local: 3, Count: 4, Global: 1},
	}, r.Sources[1].Ranges)

	require.Len(t, r.Layers, 1)
	assert.Equal(t, merge.LayerStats{Name: "Ground", Sources: 2, Written: 4, Overwritten: 1}, r.Layers[0])
}

func TestBuildDigest(t *testing.T) {
	res, sources := merged(t)

	a, err := report.Build(res, sources, []byte("<map/>"))
	require.NoError(t, err)
	b, err := report.Build(res, sources, []byte("<map/>"))
	require.NoError(t, err)
	c, err := report.Build(res, sources, []byte("<map></map>"))
	require.NoError(t, err)

	assert.NotEmpty(t, a.Digest)
	assert.Equal(t, a.Digest, b.Digest)
	assert.NotEqual(t, a.Digest, c.Digest)
}

func TestBuildSourceMismatch(t *testing.T) {
	res, sources := merged(t)
	_, err := report.Build(res, sources[:1], nil)
	assert.Error(t, err)
}

func TestWriteFormats(t *testing.T) {
	res, sources := merged(t)
	r, err := report.Build(res, sources, []byte("<map/>"))
	require.NoError(t, err)

	for _, format := range []string{report.FormatYAML, report.FormatJSON, report.FormatMsgpack} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, r.Write(&buf, format))

			back, err := report.Read(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, r, back)
		})
	}
}

func TestWriteYAMLLayout(t *testing.T) {
	res, sources := merged(t)
	r, err := report.Build(res, sources, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, ""))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "map: world\n"), out)
	assert.Contains(t, out, "  - firstgid: 5\n    tilecount: 2\n")
}

func TestParseFormat(t *testing.T) {
	got, err := report.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, report.FormatYAML, got)

	_, err = report.ParseFormat("xml")
	assert.Error(t, err)

	var buf bytes.Buffer
	r := &report.Report{}
	assert.Error(t, r.Write(&buf, "xml"))
}
