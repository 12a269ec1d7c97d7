package flowline

import "errors"

// BufferTarget selects what a GPU buffer holds.
type BufferTarget uint8

const (
	ArrayBuffer        BufferTarget = iota // vertex attributes
	ElementArrayBuffer                     // triangle indices
)

// Buffer is an opaque GPU buffer handle issued by a Context.
type Buffer uint32

// Program is an opaque linked shader program handle issued by a Context.
type Program uint32

// ShaderSource is the flowline shader in the forms backends understand.
// A backend compiles the one it supports.
type ShaderSource struct {
	// Vertex and Fragment are GLSL ES 1.00 stages.
	Vertex   string
	Fragment string
	// Kage is a single fragment-stage Ebitengine shader. Backends using it
	// apply the vertex-stage transforms themselves.
	Kage string
}

// Uniforms are the per-frame shader inputs.
type Uniforms struct {
	Transform Mat3
	Extrude   Mat3
	Display   Mat3
	// CurrentTime is elapsed seconds on the layer clock.
	CurrentTime float32
	TrailSpeed  float32
	TrailLength float32
}

// DrawCall is one indexed triangle draw.
type DrawCall struct {
	Program    Program
	Vertices   Buffer
	Indices    Buffer
	IndexCount int
	Uniforms   Uniforms
}

// Context is the GPU capability a Layer consumes. Implementations are only
// called from the render callback.
type Context interface {
	CreateBuffer(target BufferTarget) (Buffer, error)
	// UploadBuffer replaces the whole content of b.
	UploadBuffer(b Buffer, data []byte) error
	DeleteBuffer(b Buffer)
	// CompileProgram compiles and links src. Errors are fatal for the layer.
	CompileProgram(src ShaderSource) (Program, error)
	DeleteProgram(p Program)
	// DrawIndexed draws call.IndexCount indices as triangles, blending
	// premultiplied color over the target.
	DrawIndexed(call DrawCall) error
}

// Layer lifecycle errors.
var (
	ErrShaderCompile = errors.New("flowline: shader compile failed")
	ErrNotAttached   = errors.New("flowline: layer is not attached")
	ErrDetached      = errors.New("flowline: layer is detached")
)
