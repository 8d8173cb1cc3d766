package config

import "github.com/automoto/tmxjoin/shared/mapdata"

// MergeConfig holds the defaults a merge run starts from. Description merge
// settings override them, command-line flags override both.
type MergeConfig struct {
	KeyMode     mapdata.KeyMode
	Stride      int // 0 packs tilesets back to back
	Encoding    string
	Compression string
	Parallel    bool
	Jobs        int // 0 means GOMAXPROCS
}

// OutputConfig holds defaults for the artifacts written next to the map.
type OutputConfig struct {
	PreviewScale float64
	ReportFormat string
	FileMode     uint32
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Quiet bool
	Color string // auto, on or off
}

var Merge MergeConfig
var Output OutputConfig
var Log LogConfig

func init() {
	Merge = MergeConfig{
		KeyMode:     mapdata.KeySource,
		Stride:      0,
		Encoding:    mapdata.EncodingCSV,
		Compression: mapdata.CompressionNone,
		Parallel:    false,
		Jobs:        0,
	}

	Output = OutputConfig{
		PreviewScale: 1.0,
		ReportFormat: "yaml",
		FileMode:     0o644,
	}

	Log = LogConfig{
		Quiet: false,
		Color: "auto",
	}
}
