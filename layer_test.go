package flowline

import (
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

// fakeContext records calls and keeps uploaded bytes.
type fakeContext struct {
	next       uint32
	buffers    map[Buffer][]byte
	programs   map[Program]bool
	compileErr error
	uploadErr  error
	uploads    int
	draws      []DrawCall
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		buffers:  make(map[Buffer][]byte),
		programs: make(map[Program]bool),
	}
}

func (c *fakeContext) CreateBuffer(BufferTarget) (Buffer, error) {
	c.next++
	b := Buffer(c.next)
	c.buffers[b] = nil
	return b, nil
}

func (c *fakeContext) UploadBuffer(b Buffer, data []byte) error {
	if c.uploadErr != nil {
		return c.uploadErr
	}
	if _, ok := c.buffers[b]; !ok {
		return errors.New("unknown buffer")
	}
	c.uploads++
	c.buffers[b] = append([]byte(nil), data...)
	return nil
}

func (c *fakeContext) DeleteBuffer(b Buffer) { delete(c.buffers, b) }

func (c *fakeContext) CompileProgram(src ShaderSource) (Program, error) {
	if c.compileErr != nil {
		return 0, c.compileErr
	}
	if src.Vertex == "" || src.Fragment == "" || src.Kage == "" {
		return 0, errors.New("missing stage")
	}
	c.next++
	p := Program(c.next)
	c.programs[p] = true
	return p, nil
}

func (c *fakeContext) DeleteProgram(p Program) { delete(c.programs, p) }

func (c *fakeContext) DrawIndexed(call DrawCall) error {
	c.draws = append(c.draws, call)
	return nil
}

type fakeHost struct {
	requests int
}

func (h *fakeHost) RequestRender() { h.requests++ }

type fakeClock struct {
	t time.Duration
}

func (c *fakeClock) Elapsed() time.Duration { return c.t }

func layerView(center orb.Point, stationary bool) ViewState {
	return ViewState{
		Center:     center,
		Resolution: 1,
		PixelRatio: 1,
		Size:       Vec2{X: 100, Y: 100},
		Stationary: stationary,
	}
}

func attachedLayer(t *testing.T, gs ...Graphic) (*Layer, *fakeContext, *fakeHost) {
	t.Helper()
	l := NewLayer(NewGraphicsCollection(gs...), LayerConfig{})
	ctx := newFakeContext()
	host := &fakeHost{}
	if err := l.Attach(ctx, host, layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	return l, ctx, host
}

func TestLayerAttachRenderDetach(t *testing.T) {
	l, ctx, host := attachedLayer(t,
		Graphic{Geometry: orb.LineString{{0, 0}, {10, 0}, {10, 10}}, Color: HexColor("#ff0000")},
		Graphic{Geometry: orb.LineString{{-5, 0}, {-5, 5}}},
	)
	if len(ctx.buffers) != 2 || len(ctx.programs) != 1 {
		t.Fatalf("after Attach: %d buffers, %d programs", len(ctx.buffers), len(ctx.programs))
	}
	if host.requests != 1 {
		t.Errorf("Attach requests = %d, want 1", host.requests)
	}

	if err := l.Render(layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	if len(ctx.draws) != 1 {
		t.Fatalf("draws = %d, want 1", len(ctx.draws))
	}
	call := ctx.draws[0]
	if call.IndexCount != 6*3 {
		t.Errorf("IndexCount = %d, want 18", call.IndexCount)
	}
	if got := len(ctx.buffers[call.Vertices]); got != 2*5*VertexStride {
		t.Errorf("vertex bytes = %d, want %d", got, 2*5*VertexStride)
	}
	if got := len(ctx.buffers[call.Indices]); got != 18*4 {
		t.Errorf("index bytes = %d, want 72", got)
	}
	if host.requests < 2 {
		t.Error("Render did not request the next frame")
	}

	stats := l.Stats()
	if stats.Rebuilds != 1 || stats.Lines != 2 || stats.Vertices != 10 || stats.Frames != 1 {
		t.Errorf("stats = %+v", stats)
	}

	l.Detach()
	if len(ctx.buffers) != 0 || len(ctx.programs) != 0 {
		t.Errorf("after Detach: %d buffers, %d programs", len(ctx.buffers), len(ctx.programs))
	}
	if err := l.Render(layerView(orb.Point{}, true)); !errors.Is(err, ErrDetached) {
		t.Errorf("Render after Detach = %v, want ErrDetached", err)
	}
	l.Detach() // no-op
}

func TestLayerRenderBeforeAttach(t *testing.T) {
	l := NewLayer(nil, LayerConfig{})
	if err := l.Render(layerView(orb.Point{}, true)); !errors.Is(err, ErrNotAttached) {
		t.Errorf("Render = %v, want ErrNotAttached", err)
	}
}

func TestLayerShaderCompileError(t *testing.T) {
	l := NewLayer(nil, LayerConfig{})
	ctx := newFakeContext()
	ctx.compileErr = errors.New("syntax error")
	err := l.Attach(ctx, &fakeHost{}, layerView(orb.Point{}, true))
	if !errors.Is(err, ErrShaderCompile) || !errors.Is(err, ctx.compileErr) {
		t.Fatalf("Attach = %v, want ErrShaderCompile wrapping the cause", err)
	}
	if len(ctx.buffers) != 0 {
		t.Errorf("buffers created despite compile failure")
	}
	if l.Attached() {
		t.Error("layer attached after compile failure")
	}
}

func TestLayerRebuildsOnChange(t *testing.T) {
	l, ctx, host := attachedLayer(t, Graphic{Geometry: orb.LineString{{0, 0}, {1, 0}}})
	view := layerView(orb.Point{}, true)
	if err := l.Render(view); err != nil {
		t.Fatal(err)
	}

	// Settled frames reuse the buffers.
	if err := l.Render(view); err != nil {
		t.Fatal(err)
	}
	if l.Stats().Rebuilds != 1 {
		t.Fatalf("rebuilds = %d, want 1", l.Stats().Rebuilds)
	}

	before := host.requests
	l.Graphics().Add(Graphic{Geometry: orb.LineString{{0, 5}, {3, 5}, {3, 8}}})
	if host.requests != before+1 {
		t.Errorf("change did not request a render")
	}
	if l.Frame().Phase(true) != PhaseStale {
		t.Errorf("phase = %v, want stale", l.Frame().Phase(true))
	}
	if l.Stats().Rebuilds != 1 {
		t.Error("listener rebuilt outside Render")
	}

	if err := l.Render(view); err != nil {
		t.Fatal(err)
	}
	if l.Stats().Rebuilds != 2 {
		t.Errorf("rebuilds = %d, want 2", l.Stats().Rebuilds)
	}
	last := ctx.draws[len(ctx.draws)-1]
	if last.IndexCount != 6*3 {
		t.Errorf("IndexCount = %d, want 18", last.IndexCount)
	}
}

func TestLayerPanAndRecenter(t *testing.T) {
	l, ctx, _ := attachedLayer(t, Graphic{Geometry: orb.LineString{{0, 0}, {10, 0}}})
	if err := l.Render(layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	uploads := ctx.uploads

	if err := l.Render(layerView(orb.Point{4, 2}, false)); err != nil {
		t.Fatal(err)
	}
	if ctx.uploads != uploads {
		t.Error("panning uploaded buffers")
	}
	tr := l.Frame().TranslationToCenter()
	if tr.X != -4 || tr.Y != -2 {
		t.Errorf("translation = %v, want (-4, -2)", tr)
	}
	// The translation reaches the transform uniform.
	m := ctx.draws[len(ctx.draws)-1].Uniforms.Transform.Affine()
	x, y := transformPoint(m, 0, 0)
	assertNear(t, "x", x, 46)
	assertNear(t, "y", y, 52)

	if err := l.Render(layerView(orb.Point{4, 2}, true)); err != nil {
		t.Fatal(err)
	}
	if l.Stats().Rebuilds != 2 {
		t.Errorf("rebuilds = %d, want 2", l.Stats().Rebuilds)
	}
	if l.Buffers().Center != (orb.Point{4, 2}) {
		t.Errorf("buffers center = %v, want (4, 2)", l.Buffers().Center)
	}
	if p := l.Buffers().Vertices[0].Position; p != [2]float32{-4, -2} {
		t.Errorf("first position = %v, want (-4, -2)", p)
	}
}

func TestLayerUniforms(t *testing.T) {
	l := NewLayer(NewGraphicsCollection(Graphic{Geometry: orb.LineString{{0, 0}, {1, 0}}}),
		LayerConfig{TrailSpeed: 2.5, TrailLength: 40})
	clock := &fakeClock{t: 1500 * time.Millisecond}
	l.SetClock(clock)
	ctx := newFakeContext()
	if err := l.Attach(ctx, &fakeHost{}, layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	if err := l.Render(layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	u := ctx.draws[0].Uniforms
	if u.CurrentTime != 1.5 || u.TrailSpeed != 2.5 || u.TrailLength != 40 {
		t.Errorf("uniforms = %+v", u)
	}
	assertMatrix(t, "display", u.Display.Affine(), [6]float64{0.02, 0, 0, -0.02, -1, 1})
}

func TestLayerSkipsUnusableGraphics(t *testing.T) {
	l, ctx, _ := attachedLayer(t,
		Graphic{Geometry: orb.LineString{{0, 0}}},
		Graphic{Geometry: orb.LineString{{1, 1}, {1, 1}, {1, 1}}},
		Graphic{Geometry: orb.LineString{{0, 0}, {0, 0}, {5, 0}, {5, 0}, {5, 5}}},
	)
	if err := l.Render(layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	s := l.Stats()
	if s.Graphics != 3 || s.Skipped != 2 || s.Lines != 1 {
		t.Errorf("stats = %+v", s)
	}
	// Duplicates removed: 3 distinct points.
	if s.Vertices != 6 || ctx.draws[0].IndexCount != 12 {
		t.Errorf("vertices = %d, indices = %d", s.Vertices, ctx.draws[0].IndexCount)
	}
}

func TestLayerDefaultColor(t *testing.T) {
	l := NewLayer(NewGraphicsCollection(
		Graphic{Geometry: orb.LineString{{0, 0}, {1, 0}}},
		Graphic{Geometry: orb.LineString{{0, 1}, {1, 1}}, Color: HexColor("nope")},
		Graphic{Geometry: orb.LineString{{0, 2}, {1, 2}}, Color: RGBColor(0, 0, 255)},
	), LayerConfig{DefaultColor: "#00ff00"})
	if err := l.Attach(newFakeContext(), &fakeHost{}, layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	if err := l.Render(layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	v := l.Buffers().Vertices
	want := [][4]uint8{{0, 255, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}}
	for i, w := range want {
		if got := v[i*4].Color; got != w {
			t.Errorf("line %d color = %v, want %v", i, got, w)
		}
	}
}

func TestLayerEmptyDoesNotDraw(t *testing.T) {
	l, ctx, _ := attachedLayer(t)
	if err := l.Render(layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	if len(ctx.draws) != 0 {
		t.Errorf("draws = %d, want 0", len(ctx.draws))
	}
}

func TestLayerUploadFailureRetries(t *testing.T) {
	l, ctx, _ := attachedLayer(t, Graphic{Geometry: orb.LineString{{0, 0}, {1, 0}}})
	ctx.uploadErr = errors.New("out of memory")
	if err := l.Render(layerView(orb.Point{}, true)); !errors.Is(err, ctx.uploadErr) {
		t.Fatalf("Render = %v, want upload error", err)
	}
	if len(ctx.draws) != 0 {
		t.Error("drew after failed upload")
	}
	if l.Frame().Phase(true) != PhaseStale {
		t.Error("layer not stale after failed upload")
	}

	ctx.uploadErr = nil
	if err := l.Render(layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	if len(ctx.draws) != 1 {
		t.Errorf("draws = %d, want 1 after retry", len(ctx.draws))
	}
}

func TestLayerSimplify(t *testing.T) {
	l := NewLayer(NewGraphicsCollection(
		Graphic{Geometry: orb.LineString{{0, 0}, {1, 0.01}, {2, 0}, {3, 0.01}, {4, 0}}},
		// A small closed loop simplifies down to its two identical endpoints.
		Graphic{Geometry: orb.LineString{{0, 10}, {0.05, 10}, {0.05, 10.05}, {0, 10.05}, {0, 10}}},
	), LayerConfig{SimplifyTolerance: 0.1})
	if err := l.Attach(newFakeContext(), &fakeHost{}, layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	if err := l.Render(layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	st := l.Stats()
	if st.Vertices != 4 {
		t.Errorf("vertices = %d, want 4 after simplification", st.Vertices)
	}
	if st.Lines != 1 || st.Skipped != 1 {
		t.Errorf("lines = %d skipped = %d, want 1 and 1", st.Lines, st.Skipped)
	}
}

func TestLayerCollapsedLineKeepsBuffersCentered(t *testing.T) {
	gc := NewGraphicsCollection(Graphic{Geometry: orb.LineString{{0, 0}, {100, 0}}})
	l := NewLayer(gc, LayerConfig{SimplifyTolerance: 5})
	ctx := newFakeContext()
	if err := l.Attach(ctx, &fakeHost{}, layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}
	if err := l.Render(layerView(orb.Point{}, true)); err != nil {
		t.Fatal(err)
	}

	gc.Add(Graphic{Geometry: orb.LineString{{100, 100}, {101, 100}, {100, 100}}})
	center := orb.Point{50, 50}
	if err := l.Render(layerView(center, true)); err != nil {
		t.Fatalf("Render after adding collapsing line = %v", err)
	}
	if l.Frame().Center() != center || l.Buffers().Center != center {
		t.Fatalf("frame center %v buffers center %v, want both %v",
			l.Frame().Center(), l.Buffers().Center, center)
	}
	if p := l.Buffers().Vertices[0].Position; p != [2]float32{-50, -50} {
		t.Errorf("first vertex = %v, want (-50, -50)", p)
	}
	if st := l.Stats(); st.Lines != 1 || st.Skipped != 1 {
		t.Errorf("lines = %d skipped = %d, want 1 and 1", st.Lines, st.Skipped)
	}
	if len(ctx.draws) != 2 {
		t.Errorf("draws = %d, want 2", len(ctx.draws))
	}
	if p := l.Frame().Phase(true); p != PhaseSettled {
		t.Errorf("phase = %v, want settled", p)
	}
}

func TestDedupePoints(t *testing.T) {
	got := dedupePoints(orb.LineString{{0, 0}, {0, 0}, {1, 0}, {1, 0}, {0, 0}})
	want := orb.LineString{{0, 0}, {1, 0}, {0, 0}}
	if !got.Equal(want) {
		t.Errorf("dedupePoints = %v, want %v", got, want)
	}
}

func TestLayerQueryAt(t *testing.T) {
	a := Graphic{Geometry: orb.LineString{{0, 0}, {100, 0}}, Attributes: map[string]any{"id": "a"}}
	b := Graphic{Geometry: orb.LineString{{0, 50}, {100, 50}}, Attributes: map[string]any{"id": "b"}}
	l, _, _ := attachedLayer(t, a, b)

	if got := l.QueryAt(orb.Point{50, 1}, 3); got != nil {
		t.Errorf("query before first frame = %v, want nil", got)
	}

	view := layerView(orb.Point{}, true)
	view.Resolution = 2
	if err := l.Render(view); err != nil {
		t.Fatal(err)
	}

	got := l.QueryAt(orb.Point{50, 4}, 3) // 3 px = 6 map units
	if len(got) != 1 || got[0].Attributes["id"] != "a" {
		t.Errorf("QueryAt near a = %v", got)
	}
	if got := l.QueryAt(orb.Point{50, 25}, 3); len(got) != 0 {
		t.Errorf("QueryAt between lines = %v", got)
	}
	if got := l.QueryAt(orb.Point{50, 25}, 13); len(got) != 2 {
		t.Errorf("QueryAt wide = %d hits, want 2", len(got))
	}
}

func TestLayerConfigDefaults(t *testing.T) {
	l := NewLayer(nil, LayerConfig{TrailWidth: 3})
	cfg := l.Config()
	if cfg.TrailWidth != 3 || cfg.TrailSpeed != DefaultTrailSpeed || cfg.TrailLength != DefaultTrailLength ||
		cfg.TrailMinNum != DefaultTrailMinNum || cfg.DefaultColor != DefaultColorHex {
		t.Errorf("config = %+v", cfg)
	}
}
