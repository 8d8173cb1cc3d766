// Package description reads run descriptions: the big map's name and size,
// a global offset, and the ordered list of small maps to place.
package description

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultMapsDir is where small maps live unless a description says otherwise.
const DefaultMapsDir = "maps"

// Point is a tile coordinate pair.
type Point struct {
	X int `toml:"x" yaml:"x"`
	Y int `toml:"y" yaml:"y"`
}

// MapEntry names one small map and its placement before the global offset.
type MapEntry struct {
	Name string `toml:"name" yaml:"name"`
	X    int    `toml:"x" yaml:"x"`
	Y    int    `toml:"y" yaml:"y"`
}

// MergeSettings are optional per-run merge overrides.
type MergeSettings struct {
	Key         string   `toml:"key" yaml:"key"`
	Stride      int      `toml:"stride" yaml:"stride"`
	Pinned      []string `toml:"pinned" yaml:"pinned"`
	Encoding    string   `toml:"encoding" yaml:"encoding"`
	Compression string   `toml:"compression" yaml:"compression"`
}

// Description is a parsed run description.
type Description struct {
	Name     string        `toml:"name" yaml:"name"`
	Width    int           `toml:"width" yaml:"width"`
	Height   int           `toml:"height" yaml:"height"`
	TileSize int           `toml:"tilesize" yaml:"tilesize"`
	MapsDir  string        `toml:"maps_dir" yaml:"maps_dir"`
	Output   string        `toml:"output" yaml:"output"`
	Offset   Point         `toml:"offset" yaml:"offset"`
	Maps     []MapEntry    `toml:"maps" yaml:"maps"`
	Merge    MergeSettings `toml:"merge" yaml:"merge"`
}

// Placement is a resolved map path and its final big-map offset.
type Placement struct {
	Name string
	Path string
	X, Y int
}

// Parse decodes data in the format implied by the file name's extension:
// .toml, .yaml/.yml, or the legacy line format for anything else.
func Parse(name string, data []byte) (*Description, error) {
	var (
		d   *Description
		err error
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".toml":
		d, err = parseTOML(data)
	case ".yaml", ".yml":
		d, err = parseYAML(data)
	default:
		d, err = parseLegacy(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if d.MapsDir == "" {
		d.MapsDir = DefaultMapsDir
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func parseTOML(data []byte) (*Description, error) {
	var d Description
	meta, err := toml.Decode(string(data), &d)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	return &d, nil
}

func parseYAML(data []byte) (*Description, error) {
	var d Description
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks the fields every format must provide.
func (d *Description) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("big map name is required"))
	}
	if d.Width <= 0 || d.Height <= 0 {
		errs = append(errs, fmt.Errorf("big map size %dx%d must be positive", d.Width, d.Height))
	}
	if d.TileSize < 0 {
		errs = append(errs, fmt.Errorf("tile size %d must not be negative", d.TileSize))
	}
	if len(d.Maps) == 0 {
		errs = append(errs, errors.New("no maps listed"))
	}
	for i, m := range d.Maps {
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("map %d has no name", i+1))
		}
	}
	return errors.Join(errs...)
}

// Placements resolves every map entry, in order, to its document path under
// MapsDir and its offset with the global offset applied.
func (d *Description) Placements() []Placement {
	out := make([]Placement, len(d.Maps))
	for i, m := range d.Maps {
		file := m.Name
		if path.Ext(file) == "" {
			file += ".tmx"
		}
		out[i] = Placement{
			Name: m.Name,
			Path: path.Join(d.MapsDir, file),
			X:    m.X + d.Offset.X,
			Y:    m.Y + d.Offset.Y,
		}
	}
	return out
}

// OutputPath is where the merged map goes: the explicit output, or the big
// map's name inside MapsDir.
func (d *Description) OutputPath() string {
	if d.Output != "" {
		return path.Clean(d.Output)
	}
	return path.Join(d.MapsDir, d.Name+".tmx")
}
