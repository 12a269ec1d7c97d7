package flowline

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// Clock is the animation time source. Elapsed must be monotonic.
type Clock interface {
	Elapsed() time.Duration
}

type monotonicClock struct {
	start time.Time
}

func (c monotonicClock) Elapsed() time.Duration {
	return time.Since(c.start)
}

// LayerStats summarizes the work done by a layer.
type LayerStats struct {
	Graphics    int // graphics in the last rebuild, skipped included
	Skipped     int // graphics dropped as unrenderable
	Lines       int
	Vertices    int
	Indices     int
	Rebuilds    int
	Frames      int
	LastRebuild time.Duration
}

// Layer renders a GraphicsCollection as animated flowlines. It owns its GPU
// buffers from Attach to Detach and rebuilds them only inside Render.
type Layer struct {
	graphics *GraphicsCollection
	config   LayerConfig
	fallback RGB

	ctx      Context
	host     Host
	sub      Subscription
	program  Program
	vertices Buffer
	indices  Buffer
	attached bool
	detached bool

	frame      *FrameState
	tri        Triangulator
	buffers    *Buffers
	indexCount int
	index      *spatialIndex
	lastView   ViewState

	clock Clock
	debug bool
	stats LayerStats
}

// NewLayer creates a detached layer over graphics. Zero config fields take
// their defaults; an unparsable DefaultColor falls back to white.
func NewLayer(graphics *GraphicsCollection, cfg LayerConfig) *Layer {
	if graphics == nil {
		graphics = NewGraphicsCollection()
	}
	cfg = cfg.withDefaults()
	fallback, ok := ParseHex(cfg.DefaultColor)
	if !ok {
		Logger().Warn("flowline: invalid default color, using white", "color", cfg.DefaultColor)
		fallback = RGB{255, 255, 255}
	}
	return &Layer{
		graphics: graphics,
		config:   cfg,
		fallback: fallback,
		clock:    monotonicClock{start: time.Now()},
	}
}

// Graphics returns the collection the layer renders.
func (l *Layer) Graphics() *GraphicsCollection { return l.graphics }

// Config returns the effective configuration.
func (l *Layer) Config() LayerConfig { return l.config }

// SetClock replaces the animation clock.
func (l *Layer) SetClock(c Clock) { l.clock = c }

// SetDebugMode enables per-rebuild stats at debug level.
func (l *Layer) SetDebugMode(enabled bool) { l.debug = enabled }

// Attach compiles the shader program, creates empty buffers and starts
// listening for graphics changes. view supplies the initial center.
// A shader compile failure is returned wrapped in ErrShaderCompile.
func (l *Layer) Attach(ctx Context, host Host, view ViewState) error {
	if l.attached {
		return fmt.Errorf("flowline: layer already attached")
	}

	program, err := ctx.CompileProgram(FlowlineShader())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrShaderCompile, err)
	}
	vb, err := ctx.CreateBuffer(ArrayBuffer)
	if err != nil {
		ctx.DeleteProgram(program)
		return fmt.Errorf("flowline: create vertex buffer: %w", err)
	}
	ib, err := ctx.CreateBuffer(ElementArrayBuffer)
	if err != nil {
		ctx.DeleteBuffer(vb)
		ctx.DeleteProgram(program)
		return fmt.Errorf("flowline: create index buffer: %w", err)
	}

	l.ctx = ctx
	l.host = host
	l.program = program
	l.vertices = vb
	l.indices = ib
	l.indexCount = 0
	l.buffers = nil
	l.index = nil
	l.attached = true
	l.detached = false

	frame := NewFrameState(view.Center)
	l.frame = frame
	// The listener may run on any goroutine: it only flags and schedules.
	l.sub = l.graphics.On(func(ChangeEvent) {
		frame.MarkStale()
		host.RequestRender()
	})
	host.RequestRender()

	Logger().Info("flowline: layer attached", "graphics", l.graphics.Len())
	return nil
}

// Detach stops listening for changes and releases GPU resources. Detaching
// a layer that is not attached is a no-op.
func (l *Layer) Detach() {
	if !l.attached {
		return
	}
	l.sub.Remove()
	l.sub = Subscription{}
	l.ctx.DeleteBuffer(l.vertices)
	l.ctx.DeleteBuffer(l.indices)
	l.ctx.DeleteProgram(l.program)
	l.ctx = nil
	l.host = nil
	l.buffers = nil
	l.index = nil
	l.indexCount = 0
	l.attached = false
	l.detached = true
	Logger().Info("flowline: layer detached")
}

// Attached reports whether the layer is attached.
func (l *Layer) Attached() bool { return l.attached }

// Frame returns the frame state, nil before the first Attach.
func (l *Layer) Frame() *FrameState { return l.frame }

// Buffers returns the CPU copy of the last uploaded buffers, or nil.
func (l *Layer) Buffers() *Buffers { return l.buffers }

// Stats returns counters for the layer.
func (l *Layer) Stats() LayerStats { return l.stats }

// Render runs one frame: it advances the frame state (rebuilding buffers if
// needed), recomputes the transforms and issues the draw call. It requests
// another frame whenever something is drawn, since the trails animate.
func (l *Layer) Render(view ViewState) error {
	if !l.attached {
		if l.detached {
			return ErrDetached
		}
		return ErrNotAttached
	}
	l.lastView = view

	switch l.frame.Advance(view) {
	case ActionPan:
		l.host.RequestRender()
	case ActionRebuild:
		if err := l.rebuild(); err != nil {
			return err
		}
	}

	if l.indexCount == 0 || view.Resolution <= 0 || view.Size.X <= 0 || view.Size.Y <= 0 {
		return nil
	}

	l.frame.UpdateTransforms(view, l.config.TrailWidth)
	call := DrawCall{
		Program:    l.program,
		Vertices:   l.vertices,
		Indices:    l.indices,
		IndexCount: l.indexCount,
		Uniforms: Uniforms{
			Transform:   affineMat3(l.frame.Transform()),
			Extrude:     affineMat3(l.frame.Extrude()),
			Display:     affineMat3(l.frame.Display()),
			CurrentTime: float32(l.clock.Elapsed().Seconds()),
			TrailSpeed:  float32(l.config.TrailSpeed),
			TrailLength: float32(l.config.TrailLength),
		},
	}
	if err := l.ctx.DrawIndexed(call); err != nil {
		return fmt.Errorf("flowline: draw: %w", err)
	}
	l.stats.Frames++

	l.host.RequestRender()
	return nil
}

// QueryAt returns the graphics whose rendered line passes within px pixels
// of the map point p at the resolution of the last rendered frame.
func (l *Layer) QueryAt(p orb.Point, px float64) []Graphic {
	tolerance := px
	if l.lastView.Resolution > 0 {
		tolerance *= l.lastView.Resolution
	}
	return l.index.near(p, tolerance)
}

// rebuild retriangulates every graphic around the frame center and uploads
// the result. The buffers are complete on the CPU before anything is
// uploaded. Any failure leaves nothing drawable and the layer stale, since
// Advance has already moved the center away from the old buffers.
func (l *Layer) rebuild() error {
	t0 := time.Now()

	items := l.graphics.Items()
	lines, sources := l.prepareLines(items)
	bufs, err := l.tri.Triangulate(lines, TriangulateOptions{
		Center:      l.frame.Center(),
		TrailLength: l.config.TrailLength,
		TrailMinNum: l.config.TrailMinNum,
		MiterLimit:  l.config.MiterLimit,
	})
	l.indexCount = 0
	if err != nil {
		l.frame.MarkStale()
		return fmt.Errorf("flowline: rebuild: %w", err)
	}

	if err := l.ctx.UploadBuffer(l.vertices, bufs.VertexBytes()); err != nil {
		l.frame.MarkStale()
		return fmt.Errorf("flowline: upload vertices: %w", err)
	}
	if err := l.ctx.UploadBuffer(l.indices, bufs.IndexBytes()); err != nil {
		l.frame.MarkStale()
		return fmt.Errorf("flowline: upload indices: %w", err)
	}
	l.indexCount = len(bufs.Indices)
	l.buffers = bufs

	indexed := make([]*indexedLine, len(lines))
	for i := range lines {
		indexed[i] = &indexedLine{
			order:   i,
			graphic: items[sources[i]],
			path:    lines[i].Path,
			bound:   lines[i].Path.Bound(),
		}
	}
	l.index = newSpatialIndex(indexed)

	l.stats.Graphics = len(items)
	l.stats.Skipped = len(items) - len(lines)
	l.stats.Lines = len(lines)
	l.stats.Vertices = len(bufs.Vertices)
	l.stats.Indices = len(bufs.Indices)
	l.stats.Rebuilds++
	l.stats.LastRebuild = time.Since(t0)
	if l.debug {
		l.debugLog()
	}
	return nil
}

// prepareLines turns graphics into triangulator input. Consecutive duplicate
// points are dropped both before and after the optional simplification, so a
// closed loop that simplifies down to its endpoints is skipped rather than
// handed to the triangulator as a zero-length segment. sources maps each line
// back to its graphic.
func (l *Layer) prepareLines(items []Graphic) (lines []Line, sources []int) {
	lines = make([]Line, 0, len(items))
	sources = make([]int, 0, len(items))
	for i := range items {
		g := &items[i]
		path := dedupePoints(g.Geometry)
		if l.config.SimplifyTolerance > 0 && len(path) > 2 {
			path = dedupePoints(simplify.DouglasPeucker(l.config.SimplifyTolerance).LineString(path))
		}
		if len(path) < 2 {
			Logger().Warn("flowline: skipping graphic with fewer than 2 distinct points",
				"index", i, "points", len(g.Geometry))
			continue
		}
		color, ok := g.Color.Resolve()
		if !ok {
			if g.Color.Kind != ColorUnset {
				Logger().Warn("flowline: invalid color, using default", "index", i, "color", g.Color.String())
			}
			color = l.fallback
		}
		lines = append(lines, Line{Path: path, Color: color})
		sources = append(sources, i)
	}
	return lines, sources
}

// dedupePoints returns a copy of ls without consecutive duplicate points.
func dedupePoints(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, 0, len(ls))
	for i, p := range ls {
		if i > 0 && p == ls[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
