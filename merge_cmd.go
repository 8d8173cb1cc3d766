package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/automoto/tmxjoin/config"
	"github.com/automoto/tmxjoin/description"
	"github.com/automoto/tmxjoin/merge"
	"github.com/automoto/tmxjoin/preview"
	"github.com/automoto/tmxjoin/report"
	"github.com/automoto/tmxjoin/shared/mapdata"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/viant/afs"
)

type mergeFlags struct {
	root         string
	out          string
	key          string
	stride       int
	pins         []string
	encoding     string
	compression  string
	parallel     bool
	jobs         int
	preview      string
	previewScale float64
	report       string
	reportFormat string
	dryRun       bool
}

// runSettings is the merge configuration after flags, description settings
// and config defaults have been layered.
type runSettings struct {
	key         mapdata.KeyMode
	stride      int
	pinned      []string
	encoding    string
	compression string
	parallel    bool
	jobs        int
}

func newMergeCmd() *cobra.Command {
	opts := &mergeFlags{}
	cmd := &cobra.Command{
		Use:   "merge DESCRIPTION",
		Short: "Merge the maps listed in a run description",
		Long: `Merge reads a run description (legacy line format, .toml or .yaml),
loads every listed map, and writes the joined map. Nothing is written
unless the whole run succeeds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.root, "root", "", "directory maps and tilesets resolve in (default: the description's directory)")
	f.StringVarP(&opts.out, "out", "o", "", "output map path inside --root")
	f.StringVar(&opts.key, "key", string(config.Merge.KeyMode), "tileset identity: source, image, name or content")
	f.IntVar(&opts.stride, "stride", config.Merge.Stride, "reserve this many tile ids per tileset (0 packs them)")
	f.StringArrayVar(&opts.pins, "pin", nil, "tileset key to place first in the output (repeatable)")
	f.StringVar(&opts.encoding, "encoding", config.Merge.Encoding, "layer data encoding: csv or base64")
	f.StringVar(&opts.compression, "compression", "none", "base64 layer compression: none, zlib or gzip")
	f.BoolVar(&opts.parallel, "parallel", config.Merge.Parallel, "composite layers concurrently")
	f.IntVarP(&opts.jobs, "jobs", "j", config.Merge.Jobs, "maximum concurrent loads and layers (0: one per CPU)")
	f.StringVar(&opts.preview, "preview", "", "write a PNG preview of the merged map")
	f.Float64Var(&opts.previewScale, "preview-scale", config.Output.PreviewScale, "preview scale factor")
	f.StringVar(&opts.report, "report", "", "write a merge report")
	f.StringVar(&opts.reportFormat, "report-format", config.Output.ReportFormat, "report format: yaml, json or msgpack")
	f.BoolVarP(&opts.dryRun, "dry-run", "n", false, "run the merge without writing anything")
	return cmd
}

// resolveSettings layers flags over description settings over config
// defaults. changed reports whether a flag was set explicitly.
func resolveSettings(opts *mergeFlags, d description.MergeSettings, changed func(string) bool) (runSettings, error) {
	s := runSettings{
		key:         config.Merge.KeyMode,
		stride:      config.Merge.Stride,
		encoding:    config.Merge.Encoding,
		compression: config.Merge.Compression,
		parallel:    opts.parallel,
		jobs:        opts.jobs,
	}

	key := d.Key
	if changed("key") {
		key = opts.key
	}
	if key != "" {
		mode, err := mapdata.ParseKeyMode(key)
		if err != nil {
			return s, err
		}
		s.key = mode
	}

	if d.Stride != 0 {
		s.stride = d.Stride
	}
	if changed("stride") {
		s.stride = opts.stride
	}
	if s.stride < 0 {
		return s, fmt.Errorf("stride %d must not be negative", s.stride)
	}

	s.pinned = d.Pinned
	if changed("pin") {
		s.pinned = opts.pins
	}

	if d.Encoding != "" {
		s.encoding = d.Encoding
	}
	if changed("encoding") {
		s.encoding = opts.encoding
	}
	if d.Compression != "" {
		s.compression = d.Compression
	}
	if changed("compression") {
		s.compression = opts.compression
	}
	if s.compression == "none" {
		s.compression = mapdata.CompressionNone
	}
	return s, nil
}

func runMerge(cmd *cobra.Command, descPath string, opts *mergeFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	fs := afs.New()

	data, err := fs.DownloadWithURL(ctx, location(descPath))
	if err != nil {
		return fmt.Errorf("read description: %w", err)
	}
	desc, err := description.Parse(descPath, data)
	if err != nil {
		return err
	}
	settings, err := resolveSettings(opts, desc.Merge, cmd.Flags().Changed)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(opts.reportFormat)
	if err != nil {
		return err
	}

	root := opts.root
	if root == "" {
		if strings.Contains(descPath, "://") {
			return fmt.Errorf("--root is required for remote description %s", descPath)
		}
		root = filepath.Dir(descPath)
	}
	outPath := desc.OutputPath()
	if opts.out != "" {
		outPath = opts.out
	}
	if outPath, err = insideRoot(root, outPath); err != nil {
		return err
	}
	fsys := os.DirFS(root)

	placements := desc.Placements()
	names := make([]string, len(placements))
	for i, p := range placements {
		names[i] = p.Path
	}
	log.Printf("[tmxjoin] loading %d maps from %s", len(names), root)
	maps, err := mapdata.LoadAll(ctx, fsys, names, mapdata.LoadOptions{KeyMode: settings.key, Jobs: settings.jobs})
	if err != nil {
		return err
	}

	sources := make([]merge.Source, len(placements))
	for i, p := range placements {
		sources[i] = merge.Source{
			Name:   p.Path,
			Map:    maps[i],
			Offset: merge.Offset{X: p.X, Y: p.Y},
		}
	}
	target := merge.Target{
		Name:       desc.Name,
		Width:      desc.Width,
		Height:     desc.Height,
		TileWidth:  desc.TileSize,
		TileHeight: desc.TileSize,
	}
	if desc.TileSize == 0 {
		target.TileWidth, target.TileHeight = maps[0].TileWidth, maps[0].TileHeight
	}

	res, err := merge.Merge(target, sources, merge.Options{
		Stride:   settings.stride,
		Pinned:   settings.pinned,
		Parallel: settings.parallel,
		Jobs:     settings.jobs,
	})
	if err != nil {
		return err
	}
	doc, err := mapdata.Marshal(res.Map, mapdata.EncodeOptions{
		Dir:         path.Dir(outPath),
		Encoding:    settings.encoding,
		Compression: settings.compression,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", outPath, err)
	}

	// Build every artifact before the first write.
	var previewPNG, reportData bytes.Buffer
	if opts.preview != "" {
		img, err := preview.Render(fsys, path.Dir(outPath), doc, opts.previewScale)
		if err != nil {
			return fmt.Errorf("preview: %w", err)
		}
		if err := preview.Write(&previewPNG, img); err != nil {
			return fmt.Errorf("preview: %w", err)
		}
	}
	if opts.report != "" {
		rep, err := report.Build(res, sources, doc)
		if err != nil {
			return err
		}
		if err := rep.Write(&reportData, format); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}

	if opts.dryRun {
		log.Printf("[tmxjoin] dry run, skipping %s", outPath)
	} else {
		// The map goes last so a failed side artifact leaves no merged map.
		mode := os.FileMode(config.Output.FileMode)
		uploads := []struct {
			name string
			data []byte
		}{
			{opts.preview, previewPNG.Bytes()},
			{opts.report, reportData.Bytes()},
			{filepath.Join(root, filepath.FromSlash(outPath)), doc},
		}
		for _, u := range uploads {
			if u.name == "" {
				continue
			}
			if err := fs.Upload(ctx, location(u.name), mode, bytes.NewReader(u.data)); err != nil {
				return fmt.Errorf("write %s: %w", u.name, err)
			}
		}
	}

	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		printSummary(cmd, outPath, res, len(sources))
	}
	return nil
}

func printSummary(cmd *cobra.Command, outPath string, res *merge.Result, sources int) {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(out, "merged %d maps", sources)
	fmt.Fprintf(out, " into %s (%dx%d, %d tilesets, %d layers, %d objects)\n",
		outPath, res.Map.Width, res.Map.Height, len(res.Map.Tilesets), len(res.Map.Layers), res.Objects)
	for _, st := range res.Layers {
		line := fmt.Sprintf("  %-16s %6d cells from %d maps", st.Name, st.Written, st.Sources)
		if st.Overwritten > 0 {
			line += color.YellowString(", %d overwritten", st.Overwritten)
		}
		fmt.Fprintln(out, line)
	}
}

// insideRoot turns p into a slash path relative to root, rejecting paths
// that leave it.
func insideRoot(root, p string) (string, error) {
	if filepath.IsAbs(p) {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return "", err
		}
		if p, err = filepath.Rel(absRoot, p); err != nil {
			return "", err
		}
	}
	p = filepath.ToSlash(filepath.Clean(p))
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("output %s is outside %s", p, root)
	}
	return p, nil
}

// location turns a local path into an absolute one; URLs pass through.
func location(p string) string {
	if strings.Contains(p, "://") {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
