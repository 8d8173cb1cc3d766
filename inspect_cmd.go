package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/automoto/tmxjoin/config"
	"github.com/automoto/tmxjoin/report"
	"github.com/automoto/tmxjoin/shared/mapdata"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/viant/afs"
)

func newInspectCmd() *cobra.Command {
	var root, key string
	cmd := &cobra.Command{
		Use:   "inspect MAP.tmx|REPORT...",
		Short: "Print the tilesets and layers of TMX maps or merge reports",
		Long: `Inspect prints a summary of each argument. Files ending in .yaml, .yml,
.json, .msgpack or .mp are read as merge reports, anything else as a TMX map
inside --root.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			mode, err := mapdata.ParseKeyMode(key)
			if err != nil {
				return err
			}
			fsys := os.DirFS(root)
			for _, arg := range args {
				if format, ok := reportFormat(arg); ok {
					rep, err := readReport(ctx, arg, format)
					if err != nil {
						return err
					}
					printReport(cmd.OutOrStdout(), arg, rep)
					continue
				}
				name, err := insideRoot(root, arg)
				if err != nil {
					return err
				}
				m, err := mapdata.Load(fsys, name, mapdata.LoadOptions{KeyMode: mode})
				if err != nil {
					return err
				}
				printMap(cmd.OutOrStdout(), name, m)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "directory maps and tilesets resolve in")
	cmd.Flags().StringVar(&key, "key", string(config.Merge.KeyMode), "tileset identity to print: source, image, name or content")
	return cmd
}

func reportFormat(name string) (string, bool) {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return report.FormatYAML, true
	case ".json":
		return report.FormatJSON, true
	case ".msgpack", ".mp":
		return report.FormatMsgpack, true
	}
	return "", false
}

func readReport(ctx context.Context, name, format string) (*report.Report, error) {
	data, err := afs.New().DownloadWithURL(ctx, location(name))
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	rep, err := report.Read(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", name, err)
	}
	return rep, nil
}

func printMap(out io.Writer, name string, m *mapdata.TileMap) {
	bold := color.New(color.Bold)
	bold.Fprintf(out, "%s", name)
	fmt.Fprintf(out, ": %dx%d tiles of %dx%d\n", m.Width, m.Height, m.TileWidth, m.TileHeight)
	for _, ts := range m.Tilesets {
		fmt.Fprintf(out, "  tileset %-16s firstgid %-6d count %-6d key %s\n", ts.Name, ts.FirstGID, ts.TileCount, ts.Key)
	}
	for _, l := range m.Layers {
		fmt.Fprintf(out, "  layer   %-16s cells %d\n", l.Name, l.Count())
	}
	for _, og := range m.ObjectGroups {
		fmt.Fprintf(out, "  objects %-16s count %d\n", og.Name, len(og.Objects))
	}
}

func printReport(out io.Writer, name string, rep *report.Report) {
	bold := color.New(color.Bold)
	bold.Fprintf(out, "%s", name)
	fmt.Fprintf(out, ": report for %s, %dx%d tiles, digest %s\n", rep.Map, rep.Width, rep.Height, rep.Digest)
	for _, ts := range rep.Tilesets {
		fmt.Fprintf(out, "  tileset %-16s firstgid %-6d count %-6d key %s\n", ts.Name, ts.FirstGID, ts.TileCount, ts.Key)
	}
	for _, src := range rep.Sources {
		fmt.Fprintf(out, "  source  %-16s at (%d,%d)\n", src.Name, src.X, src.Y)
		for _, r := range src.Ranges {
			fmt.Fprintf(out, "    %d+%d -> %d %s\n", r.Local, r.Count, r.Global, r.Key)
		}
	}
	for _, st := range rep.Layers {
		fmt.Fprintf(out, "  layer   %-16s cells %d\n", st.Name, st.Written)
	}
	fmt.Fprintf(out, "  objects %d\n", rep.Objects)
}
