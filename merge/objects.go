package merge

import (
	"github.com/automoto/tmxjoin/shared/mapdata"
)

// CompositeObjects merges object groups by name in first-seen order. Objects
// move by their source's pixel offset, get fresh sequential ids, and tile
// objects have their gid translated like layer cells.
func CompositeObjects(target Target, sources []Source, uni *Unification) ([]*mapdata.ObjectGroup, error) {
	var groups []*mapdata.ObjectGroup
	byName := make(map[string]*mapdata.ObjectGroup)
	var nextID uint32 = 1

	for i, src := range sources {
		table := uni.Tables[i]
		dx := float64(src.Offset.X * target.TileWidth)
		dy := float64(src.Offset.Y * target.TileHeight)

		for _, og := range src.Map.ObjectGroups {
			group, ok := byName[og.Name]
			if !ok {
				group = &mapdata.ObjectGroup{
					Name:       og.Name,
					Visible:    og.Visible,
					Opacity:    og.Opacity,
					Properties: og.Properties,
				}
				byName[og.Name] = group
				groups = append(groups, group)
			}

			for _, o := range og.Objects {
				obj := *o
				obj.ID = nextID
				obj.X += dx
				obj.Y += dy
				if o.GID != 0 {
					gv, ok := table.Translate(o.GID)
					if !ok {
						return nil, &UnresolvedTileError{
							Map:      src.label(),
							Layer:    og.Name,
							ObjectID: o.ID,
							Value:    o.GID,
						}
					}
					obj.GID = gv
				}
				obj.Polygon = append([]mapdata.Point(nil), o.Polygon...)
				obj.Polyline = append([]mapdata.Point(nil), o.Polyline...)
				group.Objects = append(group.Objects, &obj)
				nextID++
			}
		}
	}
	return groups, nil
}
