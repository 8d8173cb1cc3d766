package merge

import (
	"sort"

	"github.com/automoto/tmxjoin/shared/mapdata"
)

// Range maps Count consecutive local tile IDs starting at Local onto the
// global IDs starting at Global.
type Range struct {
	Key    string `yaml:"key" json:"key" msgpack:"key"`
	Local  uint32 `yaml:"local" json:"local" msgpack:"local"`
	Count  int    `yaml:"count" json:"count" msgpack:"count"`
	Global uint32 `yaml:"global" json:"global" msgpack:"global"`
}

func (r Range) contains(id uint32) bool {
	return id >= r.Local && uint64(id) < uint64(r.Local)+uint64(r.Count)
}

// Table translates one source map's tile values into output tile values.
type Table struct {
	ranges []Range // ascending Local, non-overlapping
}

// Translate maps v to its output value. 0 maps to 0 and flag bits are kept.
// ok is false when no range owns v.
func (t *Table) Translate(v mapdata.GID) (mapdata.GID, bool) {
	id := v.ID()
	if id == 0 {
		return 0, true
	}
	i := sort.Search(len(t.ranges), func(i int) bool { return t.ranges[i].Local > id }) - 1
	if i < 0 || !t.ranges[i].contains(id) {
		return v, false
	}
	r := t.ranges[i]
	return v.WithID(r.Global + (id - r.Local)), true
}

// Ranges returns a copy of the table's ranges in ascending local order.
func (t *Table) Ranges() []Range {
	return append([]Range(nil), t.ranges...)
}
