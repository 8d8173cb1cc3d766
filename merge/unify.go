package merge

import (
	"fmt"
	"log"
	"sort"

	"fortio.org/safecast"
	"github.com/automoto/tmxjoin/shared/mapdata"
)

// Unification is the output tileset list plus one translation table per
// source, index-aligned with the sources passed to Unify.
type Unification struct {
	Tilesets []*mapdata.Tileset
	Tables   []*Table
}

type registered struct {
	out    *mapdata.Tileset
	origin TilesetRef
}

// registry assigns output firstgids in first-seen order. It is the single
// serialized point of a merge run.
type registry struct {
	byKey  map[string]*registered
	list   []*mapdata.Tileset
	next   uint64
	stride int
}

func newRegistry(stride int) *registry {
	return &registry{
		byKey:  make(map[string]*registered),
		next:   1,
		stride: stride,
	}
}

func (r *registry) register(mapName string, ts *mapdata.Tileset) (*mapdata.Tileset, error) {
	ref := TilesetRef{Map: mapName, Name: ts.Name, FirstGID: ts.FirstGID, TileCount: ts.TileCount}
	if ts.TileCount <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTileset, ref)
	}
	if seen, ok := r.byKey[ts.Key]; ok {
		if seen.out.TileCount != ts.TileCount {
			return nil, &TilesetConflictError{Key: ts.Key, First: seen.origin, Second: ref}
		}
		return seen.out, nil
	}

	first := r.next
	advance := uint64(ts.TileCount)
	if r.stride > 0 {
		if ts.TileCount > r.stride {
			return nil, fmt.Errorf("%w: %s needs %d ids, stride is %d", ErrStrideTooSmall, ref, ts.TileCount, r.stride)
		}
		s := uint64(r.stride)
		first = 1 + (first-1+s-1)/s*s
		advance = s
	}
	if first+uint64(ts.TileCount)-1 > uint64(mapdata.MaxID) {
		return nil, fmt.Errorf("%w: %s", ErrGIDOverflow, ref)
	}
	firstGID, err := safecast.Conv[uint32](first)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrGIDOverflow, ref, err)
	}

	out := *ts
	out.FirstGID = firstGID
	r.byKey[ts.Key] = &registered{out: &out, origin: ref}
	r.list = append(r.list, &out)
	r.next = first + advance
	return &out, nil
}

// Unify builds the output tileset list and the per-source translation
// tables. Sources are scanned in order, each one's tilesets in ascending
// firstgid, so the same inputs always give the same ids.
func Unify(sources []Source, opts Options) (*Unification, error) {
	reg := newRegistry(opts.Stride)

	if err := registerPinned(reg, sources, opts.Pinned); err != nil {
		return nil, err
	}

	tables := make([]*Table, len(sources))
	for i, src := range sources {
		name := src.label()
		tilesets := sortedTilesets(src.Map)
		table := &Table{ranges: make([]Range, 0, len(tilesets))}
		for j, ts := range tilesets {
			if j > 0 {
				prev := tilesets[j-1]
				if uint64(prev.FirstGID)+uint64(prev.TileCount) > uint64(ts.FirstGID) {
					return nil, fmt.Errorf("%w: %s and %s", ErrOverlappingTilesets,
						TilesetRef{Map: name, Name: prev.Name, FirstGID: prev.FirstGID, TileCount: prev.TileCount},
						TilesetRef{Map: name, Name: ts.Name, FirstGID: ts.FirstGID, TileCount: ts.TileCount})
				}
			}
			out, err := reg.register(name, ts)
			if err != nil {
				return nil, err
			}
			table.ranges = append(table.ranges, Range{
				Key:    ts.Key,
				Local:  ts.FirstGID,
				Count:  ts.TileCount,
				Global: out.FirstGID,
			})
		}
		tables[i] = table
	}

	return &Unification{Tilesets: reg.list, Tables: tables}, nil
}

func registerPinned(reg *registry, sources []Source, pinned []string) error {
	for _, key := range pinned {
		if _, done := reg.byKey[key]; done {
			continue
		}
		found := false
		for _, src := range sources {
			for _, ts := range sortedTilesets(src.Map) {
				if ts.Key != key {
					continue
				}
				if _, err := reg.register(src.label(), ts); err != nil {
					return err
				}
				found = true
				break
			}
			if found {
				break
			}
		}
		if !found {
			log.Printf("[merge] pinned tileset %q is not used by any source", key)
		}
	}
	return nil
}

func sortedTilesets(m *mapdata.TileMap) []*mapdata.Tileset {
	out := append([]*mapdata.Tileset(nil), m.Tilesets...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FirstGID < out[j].FirstGID })
	return out
}
