package flowline

import (
	"math"

	"github.com/paulmach/orb"
)

// DefaultMergeTolerance accepts any join that is not a full reversal.
const DefaultMergeTolerance = 1.0

// CombinePaths repeatedly merges pairs of paths that share an endpoint and
// continue in nearly the same direction through it, until no pair can be
// merged.
//
// Pairs (i, j), i < j, are scanned in list order. The first mergeable pair is
// removed from the list, the merged path is appended at the end and the scan
// restarts from the beginning. Endpoints must be exactly equal. The join is
// accepted when |cos(a) + 1| <= tolerance, where a is the angle between the
// last segment of the earlier path and the reversed first segment of the
// later one; 0 only accepts perfectly straight joins and 2 accepts any join.
//
// The input slice and its paths are not modified.
func CombinePaths(paths []orb.LineString, tolerance float64) []orb.LineString {
	merged := make([]orb.LineString, len(paths))
	copy(merged, paths)

	for {
		i, j, joined, ok := findMerge(merged, tolerance)
		if !ok {
			return merged
		}
		// Remove j first so i stays valid.
		merged = append(merged[:j], merged[j+1:]...)
		merged = append(merged[:i], merged[i+1:]...)
		merged = append(merged, joined)
	}
}

// findMerge returns the first mergeable pair in scan order.
func findMerge(paths []orb.LineString, tolerance float64) (i, j int, joined orb.LineString, ok bool) {
	for i = 0; i < len(paths); i++ {
		for j = i + 1; j < len(paths); j++ {
			if joined, ok = mergePair(paths[i], paths[j], tolerance); ok {
				return i, j, joined, true
			}
		}
	}
	return 0, 0, nil, false
}

// mergePair joins a and b when one starts where the other ends. A path that
// starts at b's end is checked first, so the result is b followed by a.
func mergePair(a, b orb.LineString, tolerance float64) (orb.LineString, bool) {
	if len(a) < 2 || len(b) < 2 {
		return nil, false
	}
	switch {
	case a[0] == b[len(b)-1]:
		if !sameDirection(b, a, tolerance) {
			return nil, false
		}
		return concatPaths(b, a), true
	case b[0] == a[len(a)-1]:
		if !sameDirection(a, b, tolerance) {
			return nil, false
		}
		return concatPaths(a, b), true
	}
	return nil, false
}

// concatPaths returns first followed by second without the shared point.
func concatPaths(first, second orb.LineString) orb.LineString {
	out := make(orb.LineString, 0, len(first)+len(second)-1)
	out = append(out, first[:len(first)-1]...)
	return append(out, second...)
}

// sameDirection reports whether the path continues nearly straight from the
// end of first into the start of second.
func sameDirection(first, second orb.LineString, tolerance float64) bool {
	a, b := first[len(first)-2], first[len(first)-1]
	c, d := second[0], second[1]

	v1x, v1y := b[0]-a[0], b[1]-a[1]
	// Reversed outgoing direction: a straight join gives cos = -1.
	v2x, v2y := c[0]-d[0], c[1]-d[1]

	len1 := math.Sqrt(v1x*v1x + v1y*v1y)
	len2 := math.Sqrt(v2x*v2x + v2y*v2y)
	if len1 == 0 || len2 == 0 {
		return false
	}
	cos := (v1x*v2x + v1y*v2y) / (len1 * len2)
	return math.Abs(cos+1) <= tolerance
}
