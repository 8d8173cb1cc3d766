package mapdata

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// docScan holds what a TMX document says that go-tiled does not keep: the
// infinite flag, point object markers, and raw tile values for locating a
// reference go-tiled rejected.
type docScan struct {
	XMLName      xml.Name    `xml:"map"`
	Orientation  string      `xml:"orientation,attr"`
	Infinite     string      `xml:"infinite,attr"`
	Tilesets     []scanTS    `xml:"tileset"`
	Layers       []scanLayer `xml:"layer"`
	ObjectGroups []scanGroup `xml:"objectgroup"`
}

type scanTS struct {
	FirstGID uint32 `xml:"firstgid,attr"`
}

type scanLayer struct {
	Name  string   `xml:"name,attr"`
	Width int      `xml:"width,attr"`
	Data  scanData `xml:"data"`
}

type scanData struct {
	Encoding    string     `xml:"encoding,attr"`
	Compression string     `xml:"compression,attr"`
	Text        string     `xml:",chardata"`
	Tiles       []scanTile `xml:"tile"`
}

type scanTile struct {
	GID uint32 `xml:"gid,attr"`
}

type scanGroup struct {
	Name    string       `xml:"name,attr"`
	Objects []scanObject `xml:"object"`
}

type scanObject struct {
	ID    uint32    `xml:"id,attr"`
	GID   uint32    `xml:"gid,attr"`
	Point *struct{} `xml:"point"`
}

func scanDocument(fsys fs.FS, name string) (*docScan, error) {
	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	var s docScan
	if err := xml.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("read TMX %s: %w", name, err)
	}
	return &s, nil
}

// supported rejects documents the merge cannot represent.
func (s *docScan) supported(name string) error {
	if s.Infinite == "1" || s.Infinite == "true" {
		return fmt.Errorf("%w: %s is an infinite map", ErrUnsupportedMap, name)
	}
	if o := s.Orientation; o != "" && o != "orthogonal" {
		return fmt.Errorf("%w: %s has %s orientation", ErrUnsupportedMap, name, o)
	}
	return nil
}

// markPoints sets Object.Point from the raw document. Groups and objects are
// index-aligned with go-tiled's decode order.
func (s *docScan) markPoints(m *TileMap) {
	for i, og := range m.ObjectGroups {
		if i >= len(s.ObjectGroups) {
			return
		}
		raw := s.ObjectGroups[i].Objects
		for j, o := range og.Objects {
			if j < len(raw) && raw[j].Point != nil {
				o.Point = true
			}
		}
	}
}

// unresolved finds the first tile value below every firstgid, layers before
// objects, or returns nil.
func (s *docScan) unresolved(mapName string) *UnresolvedTileError {
	lowest := uint32(math.MaxUint32)
	for _, ts := range s.Tilesets {
		lowest = min(lowest, ts.FirstGID)
	}
	bad := func(v uint32) bool {
		id := GID(v).ID()
		return id != 0 && id < lowest
	}

	for _, l := range s.Layers {
		values, err := l.Data.values()
		if err != nil || l.Width <= 0 {
			continue
		}
		for i, v := range values {
			if bad(v) {
				return &UnresolvedTileError{Map: mapName, Layer: l.Name, X: i % l.Width, Y: i / l.Width, Value: GID(v)}
			}
		}
	}
	for _, g := range s.ObjectGroups {
		for _, o := range g.Objects {
			if bad(o.GID) {
				return &UnresolvedTileError{Map: mapName, Layer: g.Name, ObjectID: o.ID, Value: GID(o.GID)}
			}
		}
	}
	return nil
}

// values decodes raw layer data in any of Tiled's fixed-grid encodings.
func (d scanData) values() ([]uint32, error) {
	switch d.Encoding {
	case "":
		out := make([]uint32, len(d.Tiles))
		for i, t := range d.Tiles {
			out[i] = t.GID
		}
		return out, nil
	case EncodingCSV:
		fields := strings.FieldsFunc(d.Text, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
		out := make([]uint32, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, err
			}
			out[i] = uint32(v)
		}
		return out, nil
	case EncodingBase64:
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(d.Text))
		if err != nil {
			return nil, err
		}
		var r io.Reader = bytes.NewReader(raw)
		switch d.Compression {
		case CompressionNone:
		case CompressionZlib:
			if r, err = zlib.NewReader(r); err != nil {
				return nil, err
			}
		case CompressionGzip:
			if r, err = gzip.NewReader(r); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unsupported compression %q", d.Compression)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		out := make([]uint32, len(data)/4)
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown encoding %q", d.Encoding)
}
