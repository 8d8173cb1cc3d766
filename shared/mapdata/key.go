package mapdata

import (
	"fmt"
	"io/fs"
	"strconv"

	"github.com/minio/highwayhash"
)

// KeyMode selects the attribute that identifies a tileset across documents.
type KeyMode string

const (
	KeySource  KeyMode = "source"
	KeyImage   KeyMode = "image"
	KeyName    KeyMode = "name"
	KeyContent KeyMode = "content"
)

var hashKey = []byte("tmxjoin-tileset-content-key-0001")

// ParseKeyMode validates a key mode name; "" selects KeySource.
func ParseKeyMode(s string) (KeyMode, error) {
	switch KeyMode(s) {
	case "":
		return KeySource, nil
	case KeySource, KeyImage, KeyName, KeyContent:
		return KeyMode(s), nil
	}
	return "", fmt.Errorf("unknown key mode %q (want source, image, name or content)", s)
}

// Hash returns the highwayhash-64 of data.
func Hash(data []byte) (uint64, error) {
	hash, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0, err
	}
	_, err = hash.Write(data)
	return hash.Sum64(), err
}

func assignKeys(fsys fs.FS, m *TileMap, mode KeyMode) error {
	for _, ts := range m.Tilesets {
		key, err := tilesetKey(fsys, ts, mode)
		if err != nil {
			return err
		}
		if key == "" {
			return fmt.Errorf("tileset %q (firstgid %d) has no %s key", ts.Name, ts.FirstGID, mode)
		}
		ts.Key = key
	}
	return nil
}

func tilesetKey(fsys fs.FS, ts *Tileset, mode KeyMode) (string, error) {
	switch mode {
	case KeySource, "":
		return ts.Path(), nil
	case KeyImage:
		return ts.ImagePath(), nil
	case KeyName:
		return ts.Name, nil
	case KeyContent:
		p := ts.Path()
		if p == "" {
			return "", nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return "", fmt.Errorf("read tileset %s: %w", p, err)
		}
		sum, err := Hash(data)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(sum, 16), nil
	}
	return "", fmt.Errorf("unknown key mode %q", mode)
}
