// Package mapdata holds the typed tile-map records shared by the loader, the
// merge core and the encoder. Decoding goes through go-tiled; nothing here
// depends on a renderer.
package mapdata

import "path"

// Flag bits Tiled stores in the top of every tile value.
const (
	FlagHorizontal GID = 0x80000000
	FlagVertical   GID = 0x40000000
	FlagDiagonal   GID = 0x20000000
	FlagHexRotate  GID = 0x10000000

	flagMask GID = FlagHorizontal | FlagVertical | FlagDiagonal | FlagHexRotate

	// MaxID is the largest tile ID that fits below the flag bits.
	MaxID = uint32(^flagMask)
)

// GID is a raw TMX tile value: a global tile ID plus flip flags. 0 is empty.
type GID uint32

func (g GID) ID() uint32 { return uint32(g &^ flagMask) }

func (g GID) Flags() GID { return g & flagMask }

// WithID keeps the flags of g and replaces its ID.
func (g GID) WithID(id uint32) GID { return g.Flags() | GID(id) }

func (g GID) IsEmpty() bool { return g.ID() == 0 }

// Property is a Tiled custom property.
type Property struct {
	Name  string `yaml:"name" json:"name" msgpack:"name"`
	Type  string `yaml:"type,omitempty" json:"type,omitempty" msgpack:"type,omitempty"`
	Value string `yaml:"value" json:"value" msgpack:"value"`
}

// Image is a tileset image reference.
type Image struct {
	Source string
	Width  int
	Height int
}

// Tileset is one ID range of a map. Two tilesets with the same Key are the
// same tileset regardless of their FirstGID.
type Tileset struct {
	FirstGID  uint32
	TileCount int
	Key       string

	Name       string
	Source     string // external .tsx reference, "" when embedded
	BaseDir    string // directory Source and Image.Source are relative to
	TileWidth  int
	TileHeight int
	Spacing    int
	Margin     int
	Columns    int
	Image      *Image
}

// Contains reports whether the global tile id falls in the tileset's range.
func (t *Tileset) Contains(id uint32) bool {
	return id >= t.FirstGID && uint64(id) < uint64(t.FirstGID)+uint64(t.TileCount)
}

// Path returns the resolved slash path identifying the tileset on disk: the
// tsx file for external tilesets, the image otherwise.
func (t *Tileset) Path() string {
	if t.Source != "" {
		return path.Join(t.BaseDir, t.Source)
	}
	return t.ImagePath()
}

// ImagePath returns the resolved slash path of the tileset image.
func (t *Tileset) ImagePath() string {
	if t.Image == nil || t.Image.Source == "" {
		return ""
	}
	dir := t.BaseDir
	if t.Source != "" {
		dir = path.Dir(path.Join(t.BaseDir, t.Source))
	}
	return path.Join(dir, t.Image.Source)
}

// Layer is a tile grid stored row-major.
type Layer struct {
	ID         uint32
	Name       string
	Width      int
	Height     int
	Data       []GID
	Visible    bool
	Opacity    float64
	Properties []Property
}

// NewLayer returns an empty visible layer of the given size.
func NewLayer(name string, width, height int) *Layer {
	return &Layer{
		Name:    name,
		Width:   width,
		Height:  height,
		Data:    make([]GID, width*height),
		Visible: true,
		Opacity: 1,
	}
}

func (l *Layer) At(x, y int) GID { return l.Data[y*l.Width+x] }

func (l *Layer) Set(x, y int, v GID) { l.Data[y*l.Width+x] = v }

// Count returns the number of non-empty cells.
func (l *Layer) Count() int {
	n := 0
	for _, v := range l.Data {
		if !v.IsEmpty() {
			n++
		}
	}
	return n
}

// Point is a polygon or polyline vertex relative to its object.
type Point struct {
	X, Y float64
}

// Object is a single map object. GID is non-zero for tile objects. At most
// one of Ellipse, Point, Polygon, Polyline and Text describes its shape; with
// none set it is a rectangle.
type Object struct {
	ID         uint32
	Name       string
	Type       string
	X, Y       float64
	Width      float64
	Height     float64
	Rotation   float64
	GID        GID
	Visible    bool
	Template   string // resolved slash path of the .tx template, if any
	Properties []Property
	Ellipse    bool
	Point      bool
	Polygon    []Point
	Polyline   []Point
	Text       *Text
}

// Text is the content and styling of a text object.
type Text struct {
	Text       string
	FontFamily string
	PixelSize  int
	Wrap       bool
	Color      string // #RRGGBB or #AARRGGBB, "" for the default
	Bold       bool
	Italic     bool
	Underline  bool
	Strikeout  bool
	Kerning    bool
	HAlign     string
	VAlign     string
}

// ObjectGroup is an object layer.
type ObjectGroup struct {
	ID         uint32
	Name       string
	Visible    bool
	Opacity    float64
	Properties []Property
	Objects    []*Object
}

// TileMap is a decoded orthogonal TMX map.
type TileMap struct {
	Name         string
	Dir          string // slash directory of the document inside its file system
	Width        int
	Height       int
	TileWidth    int
	TileHeight   int
	Orientation  string
	RenderOrder  string
	Properties   []Property
	Tilesets     []*Tileset
	Layers       []*Layer
	ObjectGroups []*ObjectGroup
	NextLayerID  uint32
	NextObjectID uint32
}

// Layer returns the tile layer with the given name, or nil.
func (m *TileMap) Layer(name string) *Layer {
	for _, l := range m.Layers {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// TilesetFor returns the tileset owning the tile value, or nil.
func (m *TileMap) TilesetFor(v GID) *Tileset {
	id := v.ID()
	for _, ts := range m.Tilesets {
		if ts.Contains(id) {
			return ts
		}
	}
	return nil
}
