package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/automoto/tmxjoin/description"
	"github.com/automoto/tmxjoin/merge"
	"github.com/automoto/tmxjoin/report"
	"github.com/automoto/tmxjoin/shared/mapdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const worldRun = `tilesize 32
continent world 4 3
map a 0 0
map b 2 2
`

// workspace copies the loader fixtures into a temp dir next to desc.
func workspace(t *testing.T, desc string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.CopyFS(dir, os.DirFS("shared/mapdata/testdata")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "world.txt"), []byte(desc), 0o644))
	return dir
}

func writePNG(t *testing.T, name string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{G: 200, A: 255})
		}
	}
	f, err := os.Create(name)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--color", "off"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func descriptionSettings(key string, stride int, encoding, compression string) description.MergeSettings {
	return description.MergeSettings{Key: key, Stride: stride, Encoding: encoding, Compression: compression}
}

func TestMergeCommand(t *testing.T) {
	dir := workspace(t, worldRun)

	out, err := execute("merge", filepath.Join(dir, "world.txt"), "--key", "image")
	require.NoError(t, err, out)
	assert.Contains(t, out, "merged 2 maps into maps/world.tmx (4x3, 2 tilesets, 2 layers, 1 objects)")

	m, err := mapdata.Load(os.DirFS(dir), "maps/world.tmx", mapdata.LoadOptions{KeyMode: mapdata.KeyImage})
	require.NoError(t, err)

	require.Len(t, m.Tilesets, 2)
	assert.Equal(t, "tiles/grass.png", m.Tilesets[0].Key)
	assert.Equal(t, uint32(1), m.Tilesets[0].FirstGID)
	assert.Equal(t, "tiles/rock.png", m.Tilesets[1].Key)
	assert.Equal(t, uint32(5), m.Tilesets[1].FirstGID)

	ground := m.Layer("Ground")
	require.NotNil(t, ground)
	assert.Equal(t, []mapdata.GID{
		1, 2, 0, 0,
		3, mapdata.FlagHorizontal | 4, 0, 0,
		0, 0, 1, 5,
	}, ground.Data)

	fringe := m.Layer("Fringe")
	require.NotNil(t, fringe)
	assert.False(t, fringe.Visible)
	assert.InDelta(t, 0.5, fringe.Opacity, 1e-6)
	assert.Equal(t, []mapdata.GID{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4}, fringe.Data)

	require.Len(t, m.ObjectGroups, 1)
	require.Len(t, m.ObjectGroups[0].Objects, 1)
	chest := m.ObjectGroups[0].Objects[0]
	assert.Equal(t, "chest", chest.Name)
	assert.Equal(t, mapdata.GID(2), chest.GID)
	assert.Equal(t, uint32(1), chest.ID)

	require.Len(t, m.Properties, 1)
	assert.Equal(t, "name", m.Properties[0].Name)
	assert.Equal(t, "world", m.Properties[0].Value)
}

func TestMergeCommandArtifacts(t *testing.T) {
	dir := workspace(t, worldRun)
	writePNG(t, filepath.Join(dir, "tiles", "grass.png"), 64, 64)
	writePNG(t, filepath.Join(dir, "tiles", "rock.png"), 64, 32)
	previewPath := filepath.Join(dir, "world.png")
	reportPath := filepath.Join(dir, "world.json")

	out, err := execute("merge", filepath.Join(dir, "world.txt"),
		"--key", "image",
		"--encoding", "base64", "--compression", "zlib",
		"--preview", previewPath, "--preview-scale", "0.5",
		"--report", reportPath, "--report-format", "json",
		"--out", "build/world.tmx",
		"--parallel")
	require.NoError(t, err, out)

	_, err = mapdata.Load(os.DirFS(dir), "build/world.tmx", mapdata.LoadOptions{KeyMode: mapdata.KeyImage})
	require.NoError(t, err)

	f, err := os.Open(previewPath)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	rep, err := report.Read(bytes.NewReader(data), report.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "world", rep.Map)
	require.Len(t, rep.Sources, 2)
	assert.Equal(t, "maps/b.tmx", rep.Sources[1].Name)
	assert.NotEmpty(t, rep.Digest)
}

func TestMergeCommandDryRun(t *testing.T) {
	dir := workspace(t, worldRun)

	out, err := execute("merge", filepath.Join(dir, "world.txt"), "--key", "image", "--dry-run")
	require.NoError(t, err, out)
	assert.NoFileExists(t, filepath.Join(dir, "maps", "world.tmx"))
}

func TestMergeCommandWritesNothingOnError(t *testing.T) {
	dir := workspace(t, "continent world 3 3\nmap a 0 0\nmap b 2 2\n")

	_, err := execute("merge", filepath.Join(dir, "world.txt"), "--key", "image")
	require.Error(t, err)

	var bounds *merge.BoundsError
	require.True(t, errors.As(err, &bounds), "%v", err)
	assert.Equal(t, "maps/b.tmx", bounds.Source)
	assert.Equal(t, 3, bounds.CellX)
	assert.NoFileExists(t, filepath.Join(dir, "maps", "world.tmx"))
}

func TestMergeCommandSourceKeysDiffer(t *testing.T) {
	dir := workspace(t, worldRun)

	// With source keys a's embedded grass and b's grass.tsx are distinct.
	out, err := execute("merge", filepath.Join(dir, "world.txt"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "3 tilesets")
}

func TestMergeCommandRejectsOutsideRoot(t *testing.T) {
	dir := workspace(t, worldRun)

	_, err := execute("merge", filepath.Join(dir, "world.txt"), "--out", "../world.tmx")
	assert.ErrorContains(t, err, "outside")
}

func TestMergeCommandRejectsDescriptionOutsideRoot(t *testing.T) {
	dir := workspace(t, worldRun)
	desc := filepath.Join(dir, "world.yaml")
	data := "name: world\nwidth: 4\nheight: 3\ntilesize: 32\noutput: ../escaped.tmx\nmaps:\n  - {name: a.tmx, x: 0, y: 0}\n"
	require.NoError(t, os.WriteFile(desc, []byte(data), 0o644))

	_, err := execute("merge", desc)
	assert.ErrorContains(t, err, "outside")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "escaped.tmx"))
}

func TestMergeCommandWritesMapLast(t *testing.T) {
	dir := workspace(t, worldRun)
	// world.txt is a file, so nothing can be created beneath it.
	reportPath := filepath.Join(dir, "world.txt", "report.yaml")

	_, err := execute("merge", filepath.Join(dir, "world.txt"), "--key", "image", "--report", reportPath)
	assert.ErrorContains(t, err, "write "+reportPath)
	assert.NoFileExists(t, filepath.Join(dir, "maps", "world.tmx"))
}

func TestMergeCommandMissingSource(t *testing.T) {
	dir := workspace(t, "continent world 4 4\nmap nowhere 0 0\n")

	_, err := execute("merge", filepath.Join(dir, "world.txt"))
	assert.ErrorIs(t, err, mapdata.ErrSourceNotFound)
}

func TestInspectCommand(t *testing.T) {
	out, err := execute("inspect", "--root", "shared/mapdata/testdata", "maps/b.tmx")
	require.NoError(t, err)
	assert.Contains(t, out, "maps/b.tmx: 2x1 tiles of 32x32")
	assert.Contains(t, out, "key tiles/grass.tsx")
	assert.Contains(t, out, "cells 1")
}

func TestInspectReport(t *testing.T) {
	dir := workspace(t, worldRun)
	reportPath := filepath.Join(dir, "world-report.yaml")

	out, err := execute("merge", filepath.Join(dir, "world.txt"), "--key", "image", "--report", reportPath)
	require.NoError(t, err, out)

	out, err = execute("inspect", reportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "report for world, 4x3 tiles")
	assert.Contains(t, out, "key tiles/rock.png")
	assert.Contains(t, out, "source  maps/b.tmx")
	assert.Contains(t, out, "at (2,2)")
	assert.Contains(t, out, "objects 1")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute("version")
	require.NoError(t, err)
	assert.Contains(t, out, "tmxjoin "+version)
}

func TestResolveSettings(t *testing.T) {
	opts := &mergeFlags{key: "name", stride: 64, encoding: "base64", compression: "none"}
	changed := func(set ...string) func(string) bool {
		return func(name string) bool {
			for _, s := range set {
				if s == name {
					return true
				}
			}
			return false
		}
	}

	s, err := resolveSettings(opts, descriptionSettings("image", 512, "base64", "gzip"), changed())
	require.NoError(t, err)
	assert.Equal(t, mapdata.KeyImage, s.key)
	assert.Equal(t, 512, s.stride)
	assert.Equal(t, "gzip", s.compression)

	s, err = resolveSettings(opts, descriptionSettings("image", 512, "base64", "gzip"), changed("key", "stride", "compression"))
	require.NoError(t, err)
	assert.Equal(t, mapdata.KeyName, s.key)
	assert.Equal(t, 64, s.stride)
	assert.Equal(t, mapdata.CompressionNone, s.compression)

	s, err = resolveSettings(opts, descriptionSettings("", 0, "", ""), changed())
	require.NoError(t, err)
	assert.Equal(t, mapdata.KeySource, s.key)
	assert.Equal(t, 0, s.stride)
	assert.Equal(t, mapdata.EncodingCSV, s.encoding)

	_, err = resolveSettings(&mergeFlags{key: "bogus"}, descriptionSettings("", 0, "", ""), changed("key"))
	assert.Error(t, err)
}
