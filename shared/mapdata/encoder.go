package mapdata

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	EncodingCSV    = "csv"
	EncodingBase64 = "base64"

	CompressionNone = ""
	CompressionZlib = "zlib"
	CompressionGzip = "gzip"
)

// EncodeOptions controls TMX output.
type EncodeOptions struct {
	// Dir is the slash directory the document will be written to, inside the
	// same file system the tilesets were resolved in. Tileset and image
	// references are rewritten relative to it.
	Dir         string
	Encoding    string
	Compression string
}

func (o EncodeOptions) validate() error {
	switch o.Encoding {
	case "", EncodingCSV:
		if o.Compression != CompressionNone {
			return fmt.Errorf("compression %q requires base64 encoding", o.Compression)
		}
	case EncodingBase64:
		switch o.Compression {
		case CompressionNone, CompressionZlib, CompressionGzip:
		default:
			return fmt.Errorf("unknown compression %q", o.Compression)
		}
	default:
		return fmt.Errorf("unknown layer encoding %q", o.Encoding)
	}
	return nil
}

type xmlMap struct {
	XMLName      xml.Name         `xml:"map"`
	Version      string           `xml:"version,attr"`
	Orientation  string           `xml:"orientation,attr"`
	RenderOrder  string           `xml:"renderorder,attr"`
	Width        int              `xml:"width,attr"`
	Height       int              `xml:"height,attr"`
	TileWidth    int              `xml:"tilewidth,attr"`
	TileHeight   int              `xml:"tileheight,attr"`
	Infinite     int              `xml:"infinite,attr"`
	NextLayerID  uint32           `xml:"nextlayerid,attr"`
	NextObjectID uint32           `xml:"nextobjectid,attr"`
	Properties   *xmlProperties   `xml:"properties"`
	Tilesets     []xmlTileset     `xml:"tileset"`
	Layers       []xmlLayer       `xml:"layer"`
	ObjectGroups []xmlObjectGroup `xml:"objectgroup"`
}

type xmlProperties struct {
	Property []xmlProperty `xml:"property"`
}

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:"value,attr"`
}

type xmlTileset struct {
	FirstGID   uint32    `xml:"firstgid,attr"`
	Source     string    `xml:"source,attr,omitempty"`
	Name       string    `xml:"name,attr,omitempty"`
	TileWidth  int       `xml:"tilewidth,attr,omitempty"`
	TileHeight int       `xml:"tileheight,attr,omitempty"`
	Spacing    int       `xml:"spacing,attr,omitempty"`
	Margin     int       `xml:"margin,attr,omitempty"`
	TileCount  int       `xml:"tilecount,attr,omitempty"`
	Columns    int       `xml:"columns,attr,omitempty"`
	Image      *xmlImage `xml:"image"`
}

type xmlImage struct {
	Source string `xml:"source,attr"`
	Width  int    `xml:"width,attr,omitempty"`
	Height int    `xml:"height,attr,omitempty"`
}

type xmlLayer struct {
	ID         uint32         `xml:"id,attr"`
	Name       string         `xml:"name,attr"`
	Width      int            `xml:"width,attr"`
	Height     int            `xml:"height,attr"`
	Visible    string         `xml:"visible,attr,omitempty"`
	Opacity    string         `xml:"opacity,attr,omitempty"`
	Properties *xmlProperties `xml:"properties"`
	Data       xmlData        `xml:"data"`
}

type xmlData struct {
	Encoding    string `xml:"encoding,attr"`
	Compression string `xml:"compression,attr,omitempty"`
	Text        string `xml:",innerxml"`
}

type xmlObjectGroup struct {
	ID         uint32         `xml:"id,attr"`
	Name       string         `xml:"name,attr"`
	Visible    string         `xml:"visible,attr,omitempty"`
	Opacity    string         `xml:"opacity,attr,omitempty"`
	Properties *xmlProperties `xml:"properties"`
	Objects    []xmlObject    `xml:"object"`
}

type xmlObject struct {
	ID         uint32         `xml:"id,attr"`
	Template   string         `xml:"template,attr,omitempty"`
	Name       string         `xml:"name,attr,omitempty"`
	Type       string         `xml:"type,attr,omitempty"`
	GID        uint32         `xml:"gid,attr,omitempty"`
	X          string         `xml:"x,attr"`
	Y          string         `xml:"y,attr"`
	Width      string         `xml:"width,attr,omitempty"`
	Height     string         `xml:"height,attr,omitempty"`
	Rotation   string         `xml:"rotation,attr,omitempty"`
	Visible    string         `xml:"visible,attr,omitempty"`
	Properties *xmlProperties `xml:"properties"`
	Ellipse    *struct{}      `xml:"ellipse"`
	Point      *struct{}      `xml:"point"`
	Polygon    *xmlPoints     `xml:"polygon"`
	Polyline   *xmlPoints     `xml:"polyline"`
	Text       *xmlText       `xml:"text"`
}

// xmlText writes only attributes that differ from Tiled's defaults.
type xmlText struct {
	FontFamily string `xml:"fontfamily,attr,omitempty"`
	PixelSize  string `xml:"pixelsize,attr,omitempty"`
	Wrap       string `xml:"wrap,attr,omitempty"`
	Color      string `xml:"color,attr,omitempty"`
	Bold       string `xml:"bold,attr,omitempty"`
	Italic     string `xml:"italic,attr,omitempty"`
	Underline  string `xml:"underline,attr,omitempty"`
	Strikeout  string `xml:"strikeout,attr,omitempty"`
	Kerning    string `xml:"kerning,attr,omitempty"`
	HAlign     string `xml:"halign,attr,omitempty"`
	VAlign     string `xml:"valign,attr,omitempty"`
	Text       string `xml:",chardata"`
}

type xmlPoints struct {
	Points string `xml:"points,attr"`
}

// Marshal returns the TMX document for m.
func Marshal(m *TileMap, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, m, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes m as a TMX document. The output depends only on m and opts.
func Encode(w io.Writer, m *TileMap, opts EncodeOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	doc, err := toXML(m, opts)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", " ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode TMX: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func toXML(m *TileMap, opts EncodeOptions) (*xmlMap, error) {
	renderOrder := m.RenderOrder
	if renderOrder == "" {
		renderOrder = "right-down"
	}
	doc := &xmlMap{
		Version:      "1.10",
		Orientation:  "orthogonal",
		RenderOrder:  renderOrder,
		Width:        m.Width,
		Height:       m.Height,
		TileWidth:    m.TileWidth,
		TileHeight:   m.TileHeight,
		NextLayerID:  m.NextLayerID,
		NextObjectID: m.NextObjectID,
		Properties:   toXMLProperties(m.Properties),
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	for _, ts := range m.Tilesets {
		xts, err := toXMLTileset(ts, dir)
		if err != nil {
			return nil, fmt.Errorf("tileset %q: %w", ts.Name, err)
		}
		doc.Tilesets = append(doc.Tilesets, xts)
	}

	for _, l := range m.Layers {
		if len(l.Data) != l.Width*l.Height {
			return nil, fmt.Errorf("layer %q: %d cells for %dx%d", l.Name, len(l.Data), l.Width, l.Height)
		}
		data, err := encodeData(l, opts)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", l.Name, err)
		}
		doc.Layers = append(doc.Layers, xmlLayer{
			ID:         l.ID,
			Name:       l.Name,
			Width:      l.Width,
			Height:     l.Height,
			Visible:    visibleAttr(l.Visible),
			Opacity:    opacityAttr(l.Opacity),
			Properties: toXMLProperties(l.Properties),
			Data:       data,
		})
	}

	for _, og := range m.ObjectGroups {
		group := xmlObjectGroup{
			ID:         og.ID,
			Name:       og.Name,
			Visible:    visibleAttr(og.Visible),
			Opacity:    opacityAttr(og.Opacity),
			Properties: toXMLProperties(og.Properties),
		}
		for _, o := range og.Objects {
			template, err := relPath(dir, o.Template)
			if err != nil {
				return nil, fmt.Errorf("object %d: %w", o.ID, err)
			}
			group.Objects = append(group.Objects, xmlObject{
				ID:         o.ID,
				Template:   template,
				Name:       o.Name,
				Type:       o.Type,
				GID:        uint32(o.GID),
				X:          formatFloat(o.X),
				Y:          formatFloat(o.Y),
				Width:      omitZero(o.Width),
				Height:     omitZero(o.Height),
				Rotation:   omitZero(o.Rotation),
				Visible:    visibleAttr(o.Visible),
				Properties: toXMLProperties(o.Properties),
				Ellipse:    marker(o.Ellipse),
				Point:      marker(o.Point),
				Polygon:    toXMLPoints(o.Polygon),
				Polyline:   toXMLPoints(o.Polyline),
				Text:       toXMLText(o.Text),
			})
		}
		doc.ObjectGroups = append(doc.ObjectGroups, group)
	}
	return doc, nil
}

func toXMLTileset(ts *Tileset, dir string) (xmlTileset, error) {
	if ts.Source != "" {
		source, err := relPath(dir, ts.Path())
		return xmlTileset{FirstGID: ts.FirstGID, Source: source}, err
	}
	out := xmlTileset{
		FirstGID:   ts.FirstGID,
		Name:       ts.Name,
		TileWidth:  ts.TileWidth,
		TileHeight: ts.TileHeight,
		Spacing:    ts.Spacing,
		Margin:     ts.Margin,
		TileCount:  ts.TileCount,
		Columns:    ts.Columns,
	}
	if ts.Image != nil {
		source, err := relPath(dir, ts.ImagePath())
		if err != nil {
			return out, err
		}
		out.Image = &xmlImage{
			Source: source,
			Width:  ts.Image.Width,
			Height: ts.Image.Height,
		}
	}
	return out, nil
}

func encodeData(l *Layer, opts EncodeOptions) (xmlData, error) {
	if opts.Encoding == EncodingBase64 {
		text, err := encodeBase64(l.Data, opts.Compression)
		if err != nil {
			return xmlData{}, err
		}
		return xmlData{Encoding: EncodingBase64, Compression: opts.Compression, Text: "\n   " + text + "\n  "}, nil
	}
	return xmlData{Encoding: EncodingCSV, Text: encodeCSV(l)}, nil
}

// encodeCSV lays rows out the way Tiled does: every row but the last ends
// with a trailing comma.
func encodeCSV(l *Layer) string {
	var b strings.Builder
	b.WriteByte('\n')
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			if x > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatUint(uint64(l.At(x, y)), 10))
		}
		if y < l.Height-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func encodeBase64(data []GID, compression string) (string, error) {
	raw := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[4*i:], uint32(v))
	}

	var buf bytes.Buffer
	switch compression {
	case CompressionNone:
		buf.Write(raw)
	case CompressionZlib:
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return "", err
		}
		if err := zw.Close(); err != nil {
			return "", err
		}
	case CompressionGzip:
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(raw); err != nil {
			return "", err
		}
		if err := gw.Close(); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown compression %q", compression)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func toXMLProperties(props []Property) *xmlProperties {
	if len(props) == 0 {
		return nil
	}
	out := &xmlProperties{Property: make([]xmlProperty, len(props))}
	for i, p := range props {
		out.Property[i] = xmlProperty{Name: p.Name, Type: p.Type, Value: p.Value}
	}
	return out
}

func toXMLPoints(points []Point) *xmlPoints {
	if len(points) == 0 {
		return nil
	}
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = formatFloat(p.X) + "," + formatFloat(p.Y)
	}
	return &xmlPoints{Points: strings.Join(parts, " ")}
}

func visibleAttr(visible bool) string {
	if visible {
		return ""
	}
	return "0"
}

func opacityAttr(opacity float64) string {
	if opacity >= 1 {
		return ""
	}
	return formatFloat(opacity)
}

func omitZero(f float64) string {
	if f == 0 {
		return ""
	}
	return formatFloat(f)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// relPath rewrites target, a slash path in the source file system, relative
// to dir. Both must stay inside the file system.
func relPath(dir, target string) (string, error) {
	if target == "" {
		return "", nil
	}
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(target))
	if err != nil {
		return "", fmt.Errorf("cannot reference %s from %s: %w", target, dir, err)
	}
	return filepath.ToSlash(rel), nil
}

func marker(set bool) *struct{} {
	if !set {
		return nil
	}
	return &struct{}{}
}

func toXMLText(t *Text) *xmlText {
	if t == nil {
		return nil
	}
	out := &xmlText{
		Wrap:      flagAttr(t.Wrap),
		Color:     t.Color,
		Bold:      flagAttr(t.Bold),
		Italic:    flagAttr(t.Italic),
		Underline: flagAttr(t.Underline),
		Strikeout: flagAttr(t.Strikeout),
		Text:      t.Text,
	}
	if t.FontFamily != "" && t.FontFamily != "sans-serif" {
		out.FontFamily = t.FontFamily
	}
	if t.PixelSize != 0 && t.PixelSize != 16 {
		out.PixelSize = strconv.Itoa(t.PixelSize)
	}
	if !t.Kerning {
		out.Kerning = "0"
	}
	if t.HAlign != "" && t.HAlign != "left" {
		out.HAlign = t.HAlign
	}
	if t.VAlign != "" && t.VAlign != "top" {
		out.VAlign = t.VAlign
	}
	return out
}

func flagAttr(b bool) string {
	if b {
		return "1"
	}
	return ""
}
