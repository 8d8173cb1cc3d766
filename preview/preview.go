// Package preview renders an encoded map document to a PNG image.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"math"

	"github.com/lafriks/go-tiled"
	"github.com/lafriks/go-tiled/render"
	"golang.org/x/image/draw"
)

// Render decodes doc as if it lived in dir inside fsys, draws its visible
// tile layers and scales the result by scale.
func Render(fsys fs.FS, dir string, doc []byte, scale float64) (image.Image, error) {
	levelMap, err := tiled.LoadReader(dir, bytes.NewReader(doc), tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("decode merged map: %w", err)
	}

	renderer, err := render.NewRendererWithFileSystem(levelMap, fsys)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	if err := renderer.RenderVisibleLayers(); err != nil {
		return nil, fmt.Errorf("render layers: %w", err)
	}
	return Scale(renderer.Result, scale)
}

// Scale resizes img by factor. Upscaling keeps hard pixel edges; shrinking
// is filtered with Catmull-Rom.
func Scale(img image.Image, factor float64) (image.Image, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("preview scale %v must be positive", factor)
	}
	if factor == 1 {
		return img, nil
	}

	b := img.Bounds()
	w := max(1, int(math.Round(float64(b.Dx())*factor)))
	h := max(1, int(math.Round(float64(b.Dy())*factor)))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	var scaler draw.Scaler = draw.CatmullRom
	if factor > 1 {
		scaler = draw.NearestNeighbor
	}
	scaler.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst, nil
}

// Write encodes img as PNG.
func Write(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
