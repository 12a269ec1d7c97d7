package flowline

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// spatialIndex answers point queries over the triangulated lines using an
// R-tree of line bounds.
type spatialIndex struct {
	rtree *rtreego.Rtree
}

// indexedLine wraps a rendered line for R-tree storage.
type indexedLine struct {
	order   int // position in the rebuild, preserves collection order
	graphic Graphic
	path    orb.LineString
	bound   orb.Bound
}

// minIndexedExtent keeps horizontal and vertical lines from producing
// zero-width rectangles, which the R-tree rejects.
const minIndexedExtent = 1e-9

// Bounds implements rtreego.Spatial.
func (l *indexedLine) Bounds() rtreego.Rect {
	return boundRect(l.bound)
}

func boundRect(b orb.Bound) rtreego.Rect {
	point := rtreego.Point{b.Min[0], b.Min[1]}
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w < minIndexedExtent {
		w = minIndexedExtent
	}
	if h < minIndexedExtent {
		h = minIndexedExtent
	}
	rect, _ := rtreego.NewRect(point, []float64{w, h})
	return rect
}

func newSpatialIndex(lines []*indexedLine) *spatialIndex {
	rtree := rtreego.NewTree(2, 25, 50)
	for _, l := range lines {
		rtree.Insert(l)
	}
	return &spatialIndex{rtree: rtree}
}

// near returns the graphics whose rendered line passes within tolerance map
// units of p, in collection order.
func (s *spatialIndex) near(p orb.Point, tolerance float64) []Graphic {
	if s == nil || s.rtree == nil {
		return nil
	}
	query := orb.Bound{Min: p, Max: p}.Pad(tolerance)
	spatials := s.rtree.SearchIntersect(boundRect(query))

	hits := make([]*indexedLine, 0, len(spatials))
	for _, sp := range spatials {
		l := sp.(*indexedLine)
		if planar.DistanceFrom(l.path, p) <= tolerance {
			hits = append(hits, l)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].order < hits[j].order })

	out := make([]Graphic, len(hits))
	for i, h := range hits {
		out[i] = h.graphic
	}
	return out
}
