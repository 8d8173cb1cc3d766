package mapdata

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path"
	"runtime"
	"sort"
	"strings"

	"fortio.org/safecast"
	"github.com/lafriks/go-tiled"
	"golang.org/x/sync/errgroup"
)

// LoadOptions controls how source documents are decoded.
type LoadOptions struct {
	KeyMode KeyMode
	// Jobs bounds concurrent decodes in LoadAll; <= 0 means GOMAXPROCS.
	Jobs int
}

// Load decodes the TMX document at name inside fsys. It takes an fs.FS so
// callers can pass os.DirFS or an in-memory file system in tests.
func Load(fsys fs.FS, name string, opts LoadOptions) (*TileMap, error) {
	name = path.Clean(name)
	scan, err := scanDocument(fsys, name)
	if err != nil {
		return nil, err
	}
	if err := scan.supported(name); err != nil {
		return nil, err
	}

	levelMap, err := tiled.LoadFile(name, tiled.WithFileSystem(fsys))
	if err != nil {
		if errors.Is(err, tiled.ErrInvalidTileGID) {
			if ue := scan.unresolved(name); ue != nil {
				return nil, ue
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrUnresolvedTileReference, name, err)
		}
		return nil, fmt.Errorf("load TMX %s: %w", name, err)
	}
	m, err := fromTiled(fsys, levelMap, name)
	if err != nil {
		return nil, err
	}
	scan.markPoints(m)
	if err := assignKeys(fsys, m, opts.KeyMode); err != nil {
		return nil, fmt.Errorf("key tilesets of %s: %w", name, err)
	}
	return m, nil
}

// LoadAll decodes every named document. The result is index-aligned with
// names; the first failure in names order is returned.
func LoadAll(ctx context.Context, fsys fs.FS, names []string, opts LoadOptions) ([]*TileMap, error) {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	maps := make([]*TileMap, len(names))
	errs := make([]error, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(names))))
	for i, name := range names {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				errs[i] = gctx.Err()
				return gctx.Err()
			default:
			}
			m, err := Load(fsys, name, opts)
			if err != nil {
				errs[i] = err
				return err
			}
			maps[i] = m
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		return maps, nil
	}

	// Report the earliest real failure, not whichever goroutine lost the race.
	var cancelled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			cancelled = err
			continue
		}
		return nil, err
	}
	if cancelled != nil {
		return nil, cancelled
	}
	return maps, nil
}

func fromTiled(fsys fs.FS, levelMap *tiled.Map, name string) (*TileMap, error) {
	m := &TileMap{
		Name:        strings.TrimSuffix(path.Base(name), path.Ext(name)),
		Dir:         path.Dir(name),
		Width:       levelMap.Width,
		Height:      levelMap.Height,
		TileWidth:   levelMap.TileWidth,
		TileHeight:  levelMap.TileHeight,
		Orientation: "orthogonal",
		RenderOrder: levelMap.RenderOrder,
	}
	if levelMap.Properties != nil {
		m.Properties = fromProperties(*levelMap.Properties)
	}

	for _, ts := range levelMap.Tilesets {
		if err := loadExternal(fsys, ts, m.Dir); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		m.Tilesets = append(m.Tilesets, fromTileset(ts, m.Dir))
	}
	sort.SliceStable(m.Tilesets, func(i, j int) bool {
		return m.Tilesets[i].FirstGID < m.Tilesets[j].FirstGID
	})
	for _, layer := range levelMap.Layers {
		l, err := fromLayer(layer, m.Width, m.Height)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		m.Layers = append(m.Layers, l)
	}

	for _, og := range levelMap.ObjectGroups {
		m.ObjectGroups = append(m.ObjectGroups, fromObjectGroup(og, m.Dir))
	}

	if len(levelMap.ImageLayers) > 0 {
		log.Printf("[loader] %s: skipping %d image layer(s)", name, len(levelMap.ImageLayers))
	}
	if len(levelMap.Groups) > 0 {
		log.Printf("[loader] %s: skipping %d group layer(s)", name, len(levelMap.Groups))
	}
	return m, nil
}

// loadExternal decodes the .tsx of an external tileset go-tiled left
// unloaded. go-tiled only reads a tsx once some tile references it.
func loadExternal(fsys fs.FS, ts *tiled.Tileset, dir string) error {
	if ts.Source == "" || ts.SourceLoaded {
		return nil
	}
	p := path.Join(dir, ts.Source)
	f, err := fsys.Open(p)
	if err != nil {
		return fmt.Errorf("open tileset %s: %w", p, err)
	}
	defer f.Close()
	if err := xml.NewDecoder(f).Decode(ts); err != nil {
		return fmt.Errorf("read tileset %s: %w", p, err)
	}
	ts.SetBaseDir(path.Dir(p))
	ts.SourceLoaded = true
	return nil
}

func fromTileset(ts *tiled.Tileset, dir string) *Tileset {
	out := &Tileset{
		FirstGID:   ts.FirstGID,
		TileCount:  ts.TileCount,
		Name:       ts.Name,
		Source:     ts.Source,
		BaseDir:    dir,
		TileWidth:  ts.TileWidth,
		TileHeight: ts.TileHeight,
		Spacing:    ts.Spacing,
		Margin:     ts.Margin,
		Columns:    ts.Columns,
	}
	if ts.Image != nil {
		out.Image = &Image{
			Source: ts.Image.Source,
			Width:  ts.Image.Width,
			Height: ts.Image.Height,
		}
	}
	if out.TileCount <= 0 {
		out.TileCount = deriveTileCount(out)
	}
	return out
}

// deriveTileCount computes the tile count of a tileset that does not declare
// one from its image geometry.
func deriveTileCount(ts *Tileset) int {
	if ts.Image == nil || ts.TileWidth <= 0 || ts.TileHeight <= 0 {
		return 0
	}
	cols := (ts.Image.Width - 2*ts.Margin + ts.Spacing) / (ts.TileWidth + ts.Spacing)
	rows := (ts.Image.Height - 2*ts.Margin + ts.Spacing) / (ts.TileHeight + ts.Spacing)
	if cols <= 0 || rows <= 0 {
		return 0
	}
	return cols * rows
}

func fromLayer(layer *tiled.Layer, width, height int) (*Layer, error) {
	l := &Layer{
		ID:         layer.ID,
		Name:       layer.Name,
		Width:      width,
		Height:     height,
		Data:       make([]GID, width*height),
		Visible:    layer.Visible,
		Opacity:    float64(layer.Opacity),
		Properties: fromProperties(layer.Properties),
	}
	if len(layer.Tiles) == 0 {
		return l, nil
	}
	if len(layer.Tiles) != width*height {
		return nil, fmt.Errorf("layer %q has %d cells, want %d", layer.Name, len(layer.Tiles), width*height)
	}
	for i, tile := range layer.Tiles {
		if tile == nil || tile.IsNil() || tile.Tileset == nil {
			continue
		}
		id, err := safecast.Conv[uint32](uint64(tile.Tileset.FirstGID) + uint64(tile.ID))
		if err != nil || id > MaxID {
			return nil, fmt.Errorf("layer %q cell %d: tile id out of range", layer.Name, i)
		}
		v := GID(id)
		if tile.HorizontalFlip {
			v |= FlagHorizontal
		}
		if tile.VerticalFlip {
			v |= FlagVertical
		}
		if tile.DiagonalFlip {
			v |= FlagDiagonal
		}
		l.Data[i] = v
	}
	return l, nil
}

func fromObjectGroup(og *tiled.ObjectGroup, dir string) *ObjectGroup {
	group := &ObjectGroup{
		ID:         og.ID,
		Name:       og.Name,
		Visible:    og.Visible,
		Opacity:    float64(og.Opacity),
		Properties: fromProperties(og.Properties),
	}
	for _, o := range og.Objects {
		objType := o.Class
		if objType == "" {
			objType = o.Type //nolint:staticcheck // TMX uses type= attribute
		}
		obj := &Object{
			ID:         o.ID,
			Name:       o.Name,
			Type:       objType,
			X:          o.X,
			Y:          o.Y,
			Width:      o.Width,
			Height:     o.Height,
			Rotation:   o.Rotation,
			GID:        GID(o.GID),
			Visible:    o.Visible,
			Properties: fromProperties(o.Properties),
			Ellipse:    len(o.Ellipses) > 0,
			Text:       fromText(o.Text),
		}
		if o.TemplateSource != "" {
			obj.Template = path.Join(dir, o.TemplateSource)
		}
		if len(o.Polygons) > 0 && o.Polygons[0].Points != nil {
			for _, p := range *o.Polygons[0].Points {
				obj.Polygon = append(obj.Polygon, Point{X: p.X, Y: p.Y})
			}
		}
		if len(o.PolyLines) > 0 && o.PolyLines[0].Points != nil {
			for _, p := range *o.PolyLines[0].Points {
				obj.Polyline = append(obj.Polyline, Point{X: p.X, Y: p.Y})
			}
		}
		group.Objects = append(group.Objects, obj)
	}
	return group
}

func fromText(t *tiled.Text) *Text {
	if t == nil {
		return nil
	}
	out := &Text{
		Text:       t.Text,
		FontFamily: t.FontFamily,
		PixelSize:  t.Size,
		Wrap:       t.Wrap,
		Bold:       t.Bold,
		Italic:     t.Italic,
		Underline:  t.Underline,
		Strikeout:  t.Strikethrough,
		Kerning:    t.Kerning,
		HAlign:     t.HAlign,
		VAlign:     t.VAlign,
	}
	// go-tiled leaves an absent color fully transparent; Tiled's default is black.
	if t.Color != nil {
		if _, _, _, a := t.Color.RGBA(); a != 0 {
			out.Color = t.Color.String()
		}
	}
	return out
}

func fromProperties(props tiled.Properties) []Property {
	if len(props) == 0 {
		return nil
	}
	out := make([]Property, 0, len(props))
	for _, p := range props {
		out = append(out, Property{Name: p.Name, Type: p.Type, Value: p.Value})
	}
	return out
}
