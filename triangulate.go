package flowline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Vertex is one GPU vertex of a flowline ribbon. Two are emitted per source
// point, with opposite offsets.
//
//	| Position | Offset   | Distance | TrailCount | Color  |
//	| x,y      | x,y      | d        | n          | rgba   |
//	| 2*4bytes | 2*4bytes | 4bytes   | 4bytes     | 4bytes |
type Vertex struct {
	// Position is the source point relative to Buffers.Center, in map units.
	Position [2]float32
	// Offset is the miter extrusion direction, scaled by 1/cos(half turn).
	Offset [2]float32
	// Distance is the arc length from the start of the line.
	Distance float32
	// TrailCount is Distance/TrailLength, or the normalized short-line value.
	TrailCount float32
	Color      [4]uint8
}

// Vertex attribute layout in bytes.
const (
	VertexStride           = 28
	VertexPositionOffset   = 0
	VertexOffsetOffset     = 8
	VertexDistanceOffset   = 16
	VertexTrailCountOffset = 20
	VertexColorOffset      = 24
)

// Line is a resolved polyline ready for triangulation.
type Line struct {
	Path  orb.LineString
	Color RGB
}

// LineRange locates one line inside Buffers.
type LineRange struct {
	FirstVertex int
	VertexCount int
	FirstIndex  int
	IndexCount  int
	// Length is the total arc length of the line in map units.
	Length float64
}

// Buffers holds a triangulated set of lines. For lines of N points there are
// 2N vertices and 6(N-1) indices each.
type Buffers struct {
	// Center is the map point all vertex positions are relative to.
	Center   orb.Point
	Vertices []Vertex
	Indices  []uint32
	Lines    []LineRange
}

// TriangulateOptions controls vertex attribute generation.
type TriangulateOptions struct {
	Center      orb.Point
	TrailLength float64
	TrailMinNum float64
	// MiterLimit clamps the miter scale when positive.
	MiterLimit float64
}

// Triangulation errors. They are wrapped with the offending line index.
var (
	ErrTooFewPoints      = errors.New("flowline: polyline needs at least 2 points")
	ErrZeroLengthSegment = errors.New("flowline: polyline has a zero-length segment")
)

// reversalEpsilon is the bisector length below which a join is treated as a
// full reversal.
const reversalEpsilon = 1e-10

// joinState is the running state of the triangulation of a single line.
type joinState struct {
	current   orb.Point
	normal    Vec2
	hasNormal bool
	distance  float64
}

// Triangulator builds flowline buffers, reusing its storage between calls
// (high-water mark, never shrinks). The Buffers returned by Triangulate are
// only valid until the next call.
type Triangulator struct {
	buf Buffers
}

// Triangulate is a convenience wrapper around a one-shot Triangulator.
func Triangulate(lines []Line, opts TriangulateOptions) (*Buffers, error) {
	var t Triangulator
	return t.Triangulate(lines, opts)
}

// Triangulate converts lines into a ribbon vertex buffer and a triangle index
// buffer. Every line is validated before any vertex is written.
func (t *Triangulator) Triangulate(lines []Line, opts TriangulateOptions) (*Buffers, error) {
	numVerts, numInds, err := countLines(lines)
	if err != nil {
		return nil, err
	}
	if opts.TrailLength <= 0 {
		opts.TrailLength = DefaultTrailLength
	}
	if opts.TrailMinNum <= 0 {
		opts.TrailMinNum = DefaultTrailMinNum
	}

	b := &t.buf
	b.Center = opts.Center
	if cap(b.Vertices) < numVerts {
		b.Vertices = make([]Vertex, 0, numVerts)
	}
	b.Vertices = b.Vertices[:0]
	if cap(b.Indices) < numInds {
		b.Indices = make([]uint32, 0, numInds)
	}
	b.Indices = b.Indices[:0]
	if cap(b.Lines) < len(lines) {
		b.Lines = make([]LineRange, 0, len(lines))
	}
	b.Lines = b.Lines[:0]

	for i := range lines {
		b.appendLine(&lines[i], &opts)
	}
	return b, nil
}

// countLines validates every line and returns the buffer sizes they need.
func countLines(lines []Line) (numVerts, numInds int, err error) {
	for i := range lines {
		path := lines[i].Path
		if len(path) < 2 {
			return 0, 0, fmt.Errorf("line %d: %w", i, ErrTooFewPoints)
		}
		for j := 1; j < len(path); j++ {
			if path[j] == path[j-1] {
				return 0, 0, fmt.Errorf("line %d, point %d: %w", i, j, ErrZeroLengthSegment)
			}
		}
		numVerts += 2 * len(path)
		numInds += 6 * (len(path) - 1)
	}
	return numVerts, numInds, nil
}

func (b *Buffers) appendLine(l *Line, opts *TriangulateOptions) {
	lr := LineRange{FirstVertex: len(b.Vertices), FirstIndex: len(b.Indices)}
	color := l.Color.RGBA()

	var s joinState
	for j, p := range l.Path {
		if j == 0 {
			s.current = p
			continue
		}
		dx := p[0] - s.current[0]
		dy := p[1] - s.current[1]
		segLen := math.Sqrt(dx*dx + dy*dy)
		// Rotating the direction by 90 degrees gives the segment normal.
		normal := Vec2{X: -dy / segLen, Y: dx / segLen}

		offset := normal
		if s.hasNormal {
			offset = miterOffset(s.normal, normal, opts.MiterLimit)
		}
		b.appendPair(s.current, offset, s.distance, opts.TrailLength, color)

		// From the third point on, the previous pair and this pair bracket
		// a segment.
		if j >= 2 {
			b.appendQuad()
		}

		s.normal = normal
		s.hasNormal = true
		s.distance += segLen
		s.current = p
	}

	// The last point has no next segment: reuse the last normal.
	b.appendPair(s.current, s.normal, s.distance, opts.TrailLength, color)
	b.appendQuad()

	lr.VertexCount = len(b.Vertices) - lr.FirstVertex
	lr.IndexCount = len(b.Indices) - lr.FirstIndex
	lr.Length = s.distance

	// Lines shorter than one trail still show at least TrailMinNum trails.
	if opts.TrailLength >= s.distance {
		verts := b.Vertices[lr.FirstVertex : lr.FirstVertex+lr.VertexCount]
		for k := range verts {
			verts[k].TrailCount = float32(float64(verts[k].Distance) / s.distance * opts.TrailMinNum)
		}
	}

	b.Lines = append(b.Lines, lr)
}

// miterOffset returns the bisector of two unit normals scaled so the
// extruded edges stay parallel to both segments.
func miterOffset(prev, next Vec2, limit float64) Vec2 {
	bx := prev.X + next.X
	by := prev.Y + next.Y
	bl := math.Sqrt(bx*bx + by*by)
	if bl < reversalEpsilon {
		return prev
	}
	bx /= bl
	by /= bl
	// cos(half turn) is the projection of the previous normal on the bisector.
	scale := 1 / (prev.X*bx + prev.Y*by)
	if limit > 0 && scale > limit {
		scale = limit
	}
	return Vec2{X: bx * scale, Y: by * scale}
}

func (b *Buffers) appendPair(p orb.Point, offset Vec2, distance, trailLength float64, color [4]uint8) {
	pos := [2]float32{float32(p[0] - b.Center[0]), float32(p[1] - b.Center[1])}
	d := float32(distance)
	n := float32(distance / trailLength)
	b.Vertices = append(b.Vertices,
		Vertex{Position: pos, Offset: [2]float32{float32(offset.X), float32(offset.Y)}, Distance: d, TrailCount: n, Color: color},
		Vertex{Position: pos, Offset: [2]float32{float32(-offset.X), float32(-offset.Y)}, Distance: d, TrailCount: n, Color: color},
	)
}

// appendQuad emits two triangles over the last four vertices.
func (b *Buffers) appendQuad() {
	v := uint32(len(b.Vertices))
	b.Indices = append(b.Indices,
		v-4, v-3, v-2,
		v-3, v-1, v-2,
	)
}

// VertexBytes packs the vertices into the 28-byte GPU layout (little endian).
func (b *Buffers) VertexBytes() []byte {
	out := make([]byte, len(b.Vertices)*VertexStride)
	for i := range b.Vertices {
		v := &b.Vertices[i]
		o := out[i*VertexStride:]
		le := binary.LittleEndian
		le.PutUint32(o[0:], math.Float32bits(v.Position[0]))
		le.PutUint32(o[4:], math.Float32bits(v.Position[1]))
		le.PutUint32(o[8:], math.Float32bits(v.Offset[0]))
		le.PutUint32(o[12:], math.Float32bits(v.Offset[1]))
		le.PutUint32(o[16:], math.Float32bits(v.Distance))
		le.PutUint32(o[20:], math.Float32bits(v.TrailCount))
		copy(o[24:28], v.Color[:])
	}
	return out
}

// IndexBytes packs the indices as little-endian uint32.
func (b *Buffers) IndexBytes() []byte {
	out := make([]byte, len(b.Indices)*4)
	for i, idx := range b.Indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}

// DecodeVertices unpacks bytes produced by VertexBytes, appending to dst.
func DecodeVertices(dst []Vertex, data []byte) ([]Vertex, error) {
	if len(data)%VertexStride != 0 {
		return dst, fmt.Errorf("flowline: vertex data length %d is not a multiple of %d", len(data), VertexStride)
	}
	le := binary.LittleEndian
	f := func(o []byte) float32 { return math.Float32frombits(le.Uint32(o)) }
	for i := 0; i < len(data); i += VertexStride {
		o := data[i : i+VertexStride]
		var v Vertex
		v.Position = [2]float32{f(o[0:]), f(o[4:])}
		v.Offset = [2]float32{f(o[8:]), f(o[12:])}
		v.Distance = f(o[16:])
		v.TrailCount = f(o[20:])
		copy(v.Color[:], o[24:28])
		dst = append(dst, v)
	}
	return dst, nil
}

// DecodeIndices unpacks bytes produced by IndexBytes, appending to dst.
func DecodeIndices(dst []uint32, data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return dst, fmt.Errorf("flowline: index data length %d is not a multiple of 4", len(data))
	}
	for i := 0; i < len(data); i += 4 {
		dst = append(dst, binary.LittleEndian.Uint32(data[i:]))
	}
	return dst, nil
}
