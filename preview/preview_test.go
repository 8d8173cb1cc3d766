package preview_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"github.com/automoto/tmxjoin/preview"
	"github.com/automoto/tmxjoin/shared/mapdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// twoTiles is a 16x8 sheet: a red tile then a blue tile.
func twoTiles(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			c := red
			if x >= 8 {
				c = blue
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func mergedDoc(t *testing.T) []byte {
	t.Helper()
	ground := mapdata.NewLayer("Ground", 3, 1)
	ground.Data = []mapdata.GID{2, 0, 1}
	m := &mapdata.TileMap{
		Name:       "world",
		Width:      3,
		Height:     1,
		TileWidth:  8,
		TileHeight: 8,
		Tilesets: []*mapdata.Tileset{{
			FirstGID:   1,
			TileCount:  2,
			Name:       "colors",
			BaseDir:    "tiles",
			TileWidth:  8,
			TileHeight: 8,
			Columns:    2,
			Image:      &mapdata.Image{Source: "colors.png", Width: 16, Height: 8},
		}},
		Layers:       []*mapdata.Layer{ground},
		NextLayerID:  2,
		NextObjectID: 1,
	}
	doc, err := mapdata.Marshal(m, mapdata.EncodeOptions{Dir: "out"})
	require.NoError(t, err)
	return doc
}

func nrgba(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestRender(t *testing.T) {
	fsys := fstest.MapFS{"tiles/colors.png": {Data: twoTiles(t)}}

	img, err := preview.Render(fsys, "out", mergedDoc(t), 1)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 24, 8), img.Bounds())
	assert.Equal(t, blue, nrgba(img, 3, 3))
	assert.Equal(t, uint8(0), nrgba(img, 11, 3).A)
	assert.Equal(t, red, nrgba(img, 19, 3))
}

func TestRenderMissingImage(t *testing.T) {
	_, err := preview.Render(fstest.MapFS{}, "out", mergedDoc(t), 1)
	assert.Error(t, err)
}

func TestScale(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 4))

	cases := []struct {
		factor float64
		want   image.Rectangle
	}{
		{1, image.Rect(0, 0, 10, 4)},
		{2, image.Rect(0, 0, 20, 8)},
		{0.5, image.Rect(0, 0, 5, 2)},
		{0.01, image.Rect(0, 0, 1, 1)},
	}
	for _, tc := range cases {
		got, err := preview.Scale(src, tc.factor)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Bounds(), "factor %v", tc.factor)
	}

	_, err := preview.Scale(src, 0)
	assert.Error(t, err)
	_, err = preview.Scale(src, -1)
	assert.Error(t, err)
}

func TestScaleKeepsPixelEdges(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, red)
	src.SetNRGBA(1, 0, blue)

	got, err := preview.Scale(src, 4)
	require.NoError(t, err)
	assert.Equal(t, red, nrgba(got, 3, 2))
	assert.Equal(t, blue, nrgba(got, 4, 2))
}

func TestWrite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	var buf bytes.Buffer
	require.NoError(t, preview.Write(&buf, src))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), decoded.Bounds())
}
