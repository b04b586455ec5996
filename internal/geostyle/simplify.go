package geostyle

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// minRingVertices is the fewest vertices a thinned ring may keep.
const minRingVertices = 3

// Simplify thins Polygon and MultiPolygon rings to the given detail level in
// (0, 1): every 1/detail-th vertex is kept, along with each ring's first and
// last vertex. Rings left with fewer than three vertices are dropped, and a
// polygon that would lose every ring keeps its rings unchanged. A detail
// outside (0, 1) leaves fc untouched. Simplify returns the number of vertices
// removed.
func Simplify(fc *geojson.FeatureCollection, detail float64) int {
	if fc == nil || detail <= 0 || detail >= 1 {
		return 0
	}
	step := max(1, int(1/detail))
	if step == 1 {
		return 0
	}

	removed := 0
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		before := len(f.Geometry.FlatCoords())
		f.Geometry = thinGeometry(f.Geometry, step)
		removed += (before - len(f.Geometry.FlatCoords())) / f.Geometry.Stride()
	}
	return removed
}

func thinGeometry(g geom.T, step int) geom.T {
	switch g := g.(type) {
	case *geom.Polygon:
		flat, ends := thinRings(nil, g.FlatCoords(), 0, g.Ends(), g.Stride(), step)
		if len(ends) == 0 {
			return g
		}
		return geom.NewPolygonFlat(g.Layout(), flat, ends)

	case *geom.MultiPolygon:
		src := g.FlatCoords()
		var (
			flat  []float64
			endss [][]int
			start int
		)
		for _, ends := range g.Endss() {
			if len(ends) == 0 {
				continue
			}
			mark := len(flat)
			var kept []int
			flat, kept = thinRings(flat, src, start, ends, g.Stride(), step)
			if len(kept) == 0 {
				flat = append(flat, src[start:ends[len(ends)-1]]...)
				for _, end := range ends {
					kept = append(kept, mark+end-start)
				}
			}
			endss = append(endss, kept)
			start = ends[len(ends)-1]
		}
		if len(endss) == 0 {
			return g
		}
		return geom.NewMultiPolygonFlat(g.Layout(), flat, endss)

	default:
		return g
	}
}

// thinRings appends the thinned rings of src, which start at offset start and
// end at ends, to dst. It returns dst and the end offsets of the kept rings.
func thinRings(dst, src []float64, start int, ends []int, stride, step int) ([]float64, []int) {
	var kept []int
	for _, end := range ends {
		n := (end - start) / stride
		mark := len(dst)
		for i := 0; i < n; i++ {
			if i%step == 0 || i == n-1 {
				dst = append(dst, src[start+i*stride:start+(i+1)*stride]...)
			}
		}
		if (len(dst)-mark)/stride >= minRingVertices {
			kept = append(kept, len(dst))
		} else {
			dst = dst[:mark]
		}
		start = end
	}
	return dst, kept
}
