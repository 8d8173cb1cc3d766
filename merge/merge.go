// Package merge joins small tile maps into one big map: it unifies the
// sources' tilesets into a single id space and composites their layers and
// object groups at tile offsets.
package merge

import (
	"fmt"

	"github.com/automoto/tmxjoin/shared/mapdata"
)

// Offset is a placement in big-map tile coordinates.
type Offset struct {
	X, Y int
}

// Source is one small map and where it goes. Name labels the source in
// errors and reports; it defaults to the map's name.
type Source struct {
	Name   string
	Map    *mapdata.TileMap
	Offset Offset
}

func (s Source) label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Map != nil {
		return s.Map.Name
	}
	return "<nil>"
}

// Target describes the big map being built.
type Target struct {
	Name       string
	Width      int
	Height     int
	TileWidth  int
	TileHeight int
}

// Options tune a merge run.
type Options struct {
	// Stride reserves a fixed block of ids per output tileset when > 0.
	Stride int
	// Pinned content keys are placed first in the output tileset list.
	Pinned []string
	// Parallel composites output layers concurrently, at most Jobs at once.
	Parallel bool
	Jobs     int
}

// LayerStats summarises how one output layer was filled.
type LayerStats struct {
	Name        string `yaml:"name" json:"name" msgpack:"name"`
	Sources     int    `yaml:"sources" json:"sources" msgpack:"sources"`
	Written     int    `yaml:"written" json:"written" msgpack:"written"`
	Overwritten int    `yaml:"overwritten" json:"overwritten" msgpack:"overwritten"`
}

// Result is a finished merge.
type Result struct {
	Map         *mapdata.TileMap
	Unification *Unification
	Layers      []LayerStats
	Objects     int
}

// Merge runs the whole pipeline. Any error aborts the run and no result is
// returned.
func Merge(target Target, sources []Source, opts Options) (*Result, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no source maps", ErrInvalidTarget)
	}
	for _, src := range sources {
		if src.Map == nil {
			return nil, fmt.Errorf("%w: %s", mapdata.ErrSourceNotFound, src.label())
		}
		if src.Map.TileWidth != target.TileWidth || src.Map.TileHeight != target.TileHeight {
			return nil, &TileSizeError{
				Source:       src.label(),
				TileWidth:    src.Map.TileWidth,
				TileHeight:   src.Map.TileHeight,
				TargetWidth:  target.TileWidth,
				TargetHeight: target.TileHeight,
			}
		}
		if err := CheckBounds(target, src); err != nil {
			return nil, err
		}
	}

	uni, err := Unify(sources, opts)
	if err != nil {
		return nil, err
	}
	layers, stats, err := Composite(target, sources, uni, opts)
	if err != nil {
		return nil, err
	}
	groups, err := CompositeObjects(target, sources, uni)
	if err != nil {
		return nil, err
	}

	out := &mapdata.TileMap{
		Name:         target.Name,
		Width:        target.Width,
		Height:       target.Height,
		TileWidth:    target.TileWidth,
		TileHeight:   target.TileHeight,
		Orientation:  "orthogonal",
		RenderOrder:  "right-down",
		Tilesets:     uni.Tilesets,
		Layers:       layers,
		ObjectGroups: groups,
	}
	if target.Name != "" {
		out.Properties = []mapdata.Property{{Name: "name", Value: target.Name}}
	}

	var layerID uint32
	for _, l := range out.Layers {
		layerID++
		l.ID = layerID
	}
	var objectID uint32
	objects := 0
	for _, og := range out.ObjectGroups {
		layerID++
		og.ID = layerID
		for _, o := range og.Objects {
			objectID = max(objectID, o.ID)
			objects++
		}
	}
	out.NextLayerID = layerID + 1
	out.NextObjectID = objectID + 1

	return &Result{Map: out, Unification: uni, Layers: stats, Objects: objects}, nil
}

func (t Target) validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidTarget, t.Width, t.Height)
	}
	if t.TileWidth <= 0 || t.TileHeight <= 0 {
		return fmt.Errorf("%w: tile size %dx%d", ErrInvalidTarget, t.TileWidth, t.TileHeight)
	}
	return nil
}

// CheckBounds verifies that the whole placement rectangle of src lies inside
// the target, empty cells included.
func CheckBounds(target Target, src Source) error {
	w, h := src.Map.Width, src.Map.Height
	x0, y0 := src.Offset.X, src.Offset.Y
	x1, y1 := x0+w-1, y0+h-1
	if x0 >= 0 && y0 >= 0 && x1 < target.Width && y1 < target.Height {
		return nil
	}

	cellX, cellY := x0, y0
	switch {
	case x0 < 0 || y0 < 0:
	case x1 >= target.Width:
		cellX = target.Width
	default:
		cellY = target.Height
	}
	return &BoundsError{
		Source:       src.label(),
		Offset:       src.Offset,
		Width:        w,
		Height:       h,
		TargetWidth:  target.Width,
		TargetHeight: target.Height,
		CellX:        cellX,
		CellY:        cellY,
	}
}
