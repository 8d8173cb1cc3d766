package mapdata

import (
	"errors"
	"fmt"
)

var (
	ErrSourceNotFound          = errors.New("source map not found")
	ErrUnsupportedMap          = errors.New("unsupported map")
	ErrUnresolvedTileReference = errors.New("unresolved tile reference")
)

// UnresolvedTileError reports a tile value no tileset of its map owns.
// ObjectID is set when the value came from a tile object instead of a layer.
type UnresolvedTileError struct {
	Map      string
	Layer    string
	X, Y     int
	ObjectID uint32
	Value    GID
}

func (e *UnresolvedTileError) Error() string {
	if e.ObjectID != 0 {
		return fmt.Sprintf("%s: %s object group %q object %d: gid %d",
			ErrUnresolvedTileReference, e.Map, e.Layer, e.ObjectID, e.Value.ID())
	}
	return fmt.Sprintf("%s: %s layer %q cell (%d,%d): gid %d",
		ErrUnresolvedTileReference, e.Map, e.Layer, e.X, e.Y, e.Value.ID())
}

func (e *UnresolvedTileError) Unwrap() error { return ErrUnresolvedTileReference }
