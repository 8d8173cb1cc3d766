package merge

import (
	"runtime"

	"github.com/automoto/tmxjoin/shared/mapdata"
	"golang.org/x/sync/errgroup"
)

// layerNames returns every tile layer name across sources, first-seen.
func layerNames(sources []Source) []string {
	seen := make(map[string]bool)
	var names []string
	for _, src := range sources {
		for _, l := range src.Map.Layers {
			if !seen[l.Name] {
				seen[l.Name] = true
				names = append(names, l.Name)
			}
		}
	}
	return names
}

// Composite builds one output layer per distinct source layer name. Sources
// are applied in order, so on overlap the later source wins. Empty source
// cells never write. Merge rejects bad placements up front with CheckBounds;
// a cell landing outside the target still fails here with a BoundsError.
func Composite(target Target, sources []Source, uni *Unification, opts Options) ([]*mapdata.Layer, []LayerStats, error) {
	names := layerNames(sources)
	layers := make([]*mapdata.Layer, len(names))
	stats := make([]LayerStats, len(names))

	if !opts.Parallel || len(names) < 2 {
		for i, name := range names {
			l, st, err := compositeLayer(target, sources, uni, name)
			if err != nil {
				return nil, nil, err
			}
			layers[i], stats[i] = l, st
		}
		return layers, stats, nil
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	// Each worker owns one grid; errors are kept per layer so the one
	// reported matches the sequential run.
	errs := make([]error, len(names))
	var g errgroup.Group
	g.SetLimit(min(jobs, len(names)))
	for i, name := range names {
		g.Go(func() error {
			layers[i], stats[i], errs[i] = compositeLayer(target, sources, uni, name)
			return errs[i]
		})
	}
	if err := g.Wait(); err == nil {
		return layers, stats, nil
	}
	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}
	return layers, stats, nil
}

func compositeLayer(target Target, sources []Source, uni *Unification, name string) (*mapdata.Layer, LayerStats, error) {
	out := mapdata.NewLayer(name, target.Width, target.Height)
	st := LayerStats{Name: name}
	attrs := false

	for i, src := range sources {
		table := uni.Tables[i]
		for _, l := range src.Map.Layers {
			if l.Name != name {
				continue
			}
			if !attrs {
				out.Visible = l.Visible
				out.Opacity = l.Opacity
				out.Properties = l.Properties
				attrs = true
			}
			st.Sources++
			for sy := 0; sy < l.Height; sy++ {
				for sx := 0; sx < l.Width; sx++ {
					v := l.At(sx, sy)
					if v.IsEmpty() {
						continue
					}
					gv, ok := table.Translate(v)
					if !ok {
						return nil, LayerStats{}, &UnresolvedTileError{
							Map:   src.label(),
							Layer: name,
							X:     sx,
							Y:     sy,
							Value: v,
						}
					}
					dx, dy := src.Offset.X+sx, src.Offset.Y+sy
					if dx < 0 || dy < 0 || dx >= target.Width || dy >= target.Height {
						return nil, LayerStats{}, &BoundsError{
							Source:       src.label(),
							Offset:       src.Offset,
							Width:        l.Width,
							Height:       l.Height,
							TargetWidth:  target.Width,
							TargetHeight: target.Height,
							CellX:        dx,
							CellY:        dy,
						}
					}
					if !out.At(dx, dy).IsEmpty() {
						st.Overwritten++
					}
					out.Set(dx, dy, gv)
					st.Written++
				}
			}
		}
	}
	return out, st, nil
}
