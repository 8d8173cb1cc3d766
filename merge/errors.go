package merge

import (
	"errors"
	"fmt"

	"github.com/automoto/tmxjoin/shared/mapdata"
)

var (
	ErrBoundsViolation         = errors.New("bounds violation")
	ErrTilesetConflict         = errors.New("tileset conflict")
	ErrUnresolvedTileReference = mapdata.ErrUnresolvedTileReference
	ErrTileSizeMismatch        = errors.New("tile size mismatch")
	ErrOverlappingTilesets     = errors.New("overlapping tileset ranges")
	ErrEmptyTileset            = errors.New("tileset has no tiles")
	ErrStrideTooSmall          = errors.New("gid stride too small")
	ErrGIDOverflow             = errors.New("global tile id overflow")
	ErrInvalidTarget           = errors.New("invalid target map")
)

// BoundsError reports a source placement that leaves the big map.
type BoundsError struct {
	Source        string
	Offset        Offset
	Width, Height int
	TargetWidth   int
	TargetHeight  int
	// CellX, CellY is the first destination cell outside the big map.
	CellX, CellY int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s: %s %dx%d at (%d,%d) leaves the %dx%d map at cell (%d,%d)",
		ErrBoundsViolation, e.Source, e.Width, e.Height, e.Offset.X, e.Offset.Y,
		e.TargetWidth, e.TargetHeight, e.CellX, e.CellY)
}

func (e *BoundsError) Unwrap() error { return ErrBoundsViolation }

// TilesetRef locates one tileset declaration in a source map.
type TilesetRef struct {
	Map       string
	Name      string
	FirstGID  uint32
	TileCount int
}

func (r TilesetRef) String() string {
	return fmt.Sprintf("%s tileset %q (firstgid %d, tilecount %d)", r.Map, r.Name, r.FirstGID, r.TileCount)
}

// TilesetConflictError reports two declarations of the same content key with
// different tile counts.
type TilesetConflictError struct {
	Key    string
	First  TilesetRef
	Second TilesetRef
}

func (e *TilesetConflictError) Error() string {
	return fmt.Sprintf("%s: key %q: %s vs %s", ErrTilesetConflict, e.Key, e.First, e.Second)
}

func (e *TilesetConflictError) Unwrap() error { return ErrTilesetConflict }

// UnresolvedTileError reports a tile value no tileset of its map owns. The
// loader returns the same type for values go-tiled itself cannot place.
type UnresolvedTileError = mapdata.UnresolvedTileError

// TileSizeError reports a source whose tiles differ from the big map's.
type TileSizeError struct {
	Source                    string
	TileWidth, TileHeight     int
	TargetWidth, TargetHeight int
}

func (e *TileSizeError) Error() string {
	return fmt.Sprintf("%s: %s uses %dx%d tiles, big map uses %dx%d",
		ErrTileSizeMismatch, e.Source, e.TileWidth, e.TileHeight, e.TargetWidth, e.TargetHeight)
}

func (e *TileSizeError) Unwrap() error { return ErrTileSizeMismatch }
