// Package ebitenctx draws flowline layers with Ebitengine.
//
// Ebitengine shaders are fragment-only, so the Context applies the layer's
// vertex-stage transforms on the CPU each frame and hands the projected
// triangles to a Kage shader that animates the trails.
package ebitenctx

import (
	"errors"
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/flowline"
)

var (
	errNoTarget      = errors.New("ebitenctx: no target image")
	errUnknownBuffer = errors.New("ebitenctx: unknown buffer")
	errNoKage        = errors.New("ebitenctx: shader source has no Kage stage")
)

type buffer struct {
	target   flowline.BufferTarget
	vertices []flowline.Vertex
	indices  []uint32
}

// Context implements flowline.Context on top of an ebiten.Image. Buffers
// are decoded once on upload and kept on the CPU.
type Context struct {
	target   *ebiten.Image
	next     uint32
	buffers  map[flowline.Buffer]*buffer
	programs map[flowline.Program]*ebiten.Shader

	verts    []ebiten.Vertex
	op       ebiten.DrawTrianglesShaderOptions
	uniforms map[string]any
}

// New creates a Context drawing into target. The target may be replaced
// each frame with SetTarget.
func New(target *ebiten.Image) *Context {
	c := &Context{
		target:   target,
		buffers:  make(map[flowline.Buffer]*buffer),
		programs: make(map[flowline.Program]*ebiten.Shader),
		uniforms: make(map[string]any, 2),
	}
	c.op.Blend = ebiten.BlendSourceOver
	c.op.Uniforms = c.uniforms
	return c
}

// SetTarget sets the image subsequent draws render into.
func (c *Context) SetTarget(target *ebiten.Image) {
	c.target = target
}

func (c *Context) handle() uint32 {
	c.next++
	return c.next
}

// CreateBuffer implements flowline.Context.
func (c *Context) CreateBuffer(target flowline.BufferTarget) (flowline.Buffer, error) {
	b := flowline.Buffer(c.handle())
	c.buffers[b] = &buffer{target: target}
	return b, nil
}

// UploadBuffer implements flowline.Context.
func (c *Context) UploadBuffer(b flowline.Buffer, data []byte) error {
	buf := c.buffers[b]
	if buf == nil {
		return fmt.Errorf("%w: %d", errUnknownBuffer, b)
	}
	var err error
	switch buf.target {
	case flowline.ArrayBuffer:
		buf.vertices, err = flowline.DecodeVertices(buf.vertices[:0], data)
	case flowline.ElementArrayBuffer:
		buf.indices, err = flowline.DecodeIndices(buf.indices[:0], data)
	}
	return err
}

// DeleteBuffer implements flowline.Context.
func (c *Context) DeleteBuffer(b flowline.Buffer) {
	delete(c.buffers, b)
}

// CompileProgram implements flowline.Context. Only the Kage stage is used.
func (c *Context) CompileProgram(src flowline.ShaderSource) (flowline.Program, error) {
	if src.Kage == "" {
		return 0, errNoKage
	}
	s, err := ebiten.NewShader([]byte(src.Kage))
	if err != nil {
		return 0, err
	}
	p := flowline.Program(c.handle())
	c.programs[p] = s
	return p, nil
}

// DeleteProgram implements flowline.Context.
func (c *Context) DeleteProgram(p flowline.Program) {
	if s := c.programs[p]; s != nil {
		s.Deallocate()
	}
	delete(c.programs, p)
}

// DrawIndexed implements flowline.Context.
func (c *Context) DrawIndexed(call flowline.DrawCall) error {
	if c.target == nil {
		return errNoTarget
	}
	shader := c.programs[call.Program]
	if shader == nil {
		return fmt.Errorf("ebitenctx: unknown program %d", call.Program)
	}
	vb, ib := c.buffers[call.Vertices], c.buffers[call.Indices]
	if vb == nil || ib == nil {
		return errUnknownBuffer
	}
	if call.IndexCount > len(ib.indices) {
		return fmt.Errorf("ebitenctx: index count %d exceeds buffer of %d", call.IndexCount, len(ib.indices))
	}
	if call.IndexCount == 0 {
		return nil
	}

	b := c.target.Bounds()
	c.verts = projectVertices(c.verts[:0], vb.vertices, &call.Uniforms, float64(b.Dx()), float64(b.Dy()))

	c.uniforms["CurrentTime"] = call.Uniforms.CurrentTime
	c.uniforms["TrailSpeed"] = call.Uniforms.TrailSpeed
	c.target.DrawTrianglesShader32(c.verts, ib.indices[:call.IndexCount], shader, &c.op)
	return nil
}

// projectVertices runs the vertex stage on the CPU: map position and
// extruded offset to pixels, pixels to clip space, then clip space to the
// w x h target. dst is reused when it has capacity.
func projectVertices(dst []ebiten.Vertex, src []flowline.Vertex, u *flowline.Uniforms, w, h float64) []ebiten.Vertex {
	for i := range src {
		v := &src[i]
		px, py := u.Transform.Apply(float64(v.Position[0]), float64(v.Position[1]), 1)
		ox, oy := u.Extrude.Apply(float64(v.Offset[0]), float64(v.Offset[1]), 0)
		cx, cy := u.Display.Apply(px+ox, py+oy, 1)
		dst = append(dst, ebiten.Vertex{
			DstX:    float32((cx + 1) / 2 * w),
			DstY:    float32((1 - cy) / 2 * h),
			ColorR:  float32(v.Color[0]) / 255,
			ColorG:  float32(v.Color[1]) / 255,
			ColorB:  float32(v.Color[2]) / 255,
			ColorA:  float32(v.Color[3]) / 255,
			Custom0: v.TrailCount,
		})
	}
	return dst
}
