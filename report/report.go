// Package report describes a finished merge: the output tilesets, how each
// source's tile ids were translated, and how every layer was filled.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/automoto/tmxjoin/merge"
	"github.com/automoto/tmxjoin/shared/mapdata"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

const (
	FormatYAML    = "yaml"
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Tileset is one entry of the output tileset list.
type Tileset struct {
	FirstGID  uint32 `yaml:"firstgid" json:"firstgid" msgpack:"firstgid"`
	TileCount int    `yaml:"tilecount" json:"tilecount" msgpack:"tilecount"`
	Name      string `yaml:"name" json:"name" msgpack:"name"`
	Key       string `yaml:"key" json:"key" msgpack:"key"`
}

// Source is one placed map and its translation ranges.
type Source struct {
	Name   string        `yaml:"name" json:"name" msgpack:"name"`
	X      int           `yaml:"x" json:"x" msgpack:"x"`
	Y      int           `yaml:"y" json:"y" msgpack:"y"`
	Ranges []merge.Range `yaml:"ranges" json:"ranges" msgpack:"ranges"`
}

// Report is the serializable summary of a merge.
type Report struct {
	Map      string             `yaml:"map" json:"map" msgpack:"map"`
	Width    int                `yaml:"width" json:"width" msgpack:"width"`
	Height   int                `yaml:"height" json:"height" msgpack:"height"`
	Digest   string             `yaml:"digest" json:"digest" msgpack:"digest"`
	Tilesets []Tileset          `yaml:"tilesets" json:"tilesets" msgpack:"tilesets"`
	Sources  []Source           `yaml:"sources" json:"sources" msgpack:"sources"`
	Layers   []merge.LayerStats `yaml:"layers" json:"layers" msgpack:"layers"`
	Objects  int                `yaml:"objects" json:"objects" msgpack:"objects"`
}

// Build summarises res. sources must be the slice passed to merge.Merge;
// doc is the encoded output document the digest is taken over.
func Build(res *merge.Result, sources []merge.Source, doc []byte) (*Report, error) {
	if len(sources) != len(res.Unification.Tables) {
		return nil, fmt.Errorf("report: %d sources for %d translation tables", len(sources), len(res.Unification.Tables))
	}
	digest, err := mapdata.Hash(doc)
	if err != nil {
		return nil, fmt.Errorf("report: digest: %w", err)
	}

	r := &Report{
		Map:     res.Map.Name,
		Width:   res.Map.Width,
		Height:  res.Map.Height,
		Digest:  strconv.FormatUint(digest, 16),
		Layers:  res.Layers,
		Objects: res.Objects,
	}
	for _, ts := range res.Unification.Tilesets {
		r.Tilesets = append(r.Tilesets, Tileset{
			FirstGID:  ts.FirstGID,
			TileCount: ts.TileCount,
			Name:      ts.Name,
			Key:       ts.Key,
		})
	}
	for i, src := range sources {
		name := src.Name
		if name == "" && src.Map != nil {
			name = src.Map.Name
		}
		r.Sources = append(r.Sources, Source{
			Name:   name,
			X:      src.Offset.X,
			Y:      src.Offset.Y,
			Ranges: res.Unification.Tables[i].Ranges(),
		})
	}
	return r, nil
}

// ParseFormat validates a report format name; "" selects YAML.
func ParseFormat(s string) (string, error) {
	switch s {
	case "":
		return FormatYAML, nil
	case FormatYAML, FormatJSON, FormatMsgpack:
		return s, nil
	}
	return "", fmt.Errorf("unknown report format %q (want yaml, json or msgpack)", s)
}

// Write encodes r to w in the given format.
func (r *Report) Write(w io.Writer, format string) error {
	format, err := ParseFormat(format)
	if err != nil {
		return err
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(r)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}
}

// Read decodes a report written by Write.
func Read(rd io.Reader, format string) (*Report, error) {
	format, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	var r Report
	switch format {
	case FormatJSON:
		err = json.NewDecoder(rd).Decode(&r)
	case FormatMsgpack:
		err = msgpack.NewDecoder(rd).Decode(&r)
	default:
		err = yaml.NewDecoder(rd).Decode(&r)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s report: %w", format, err)
	}
	return &r, nil
}
