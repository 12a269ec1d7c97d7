package flowline

// Vertex attribute locations bound before linking.
const (
	AttribPosition   = 0
	AttribOffset     = 1
	AttribDistance   = 2
	AttribTrailCount = 3
	AttribColor      = 4
)

const flowlineVertexSrc = `precision highp float;

uniform mat3 u_transform;
uniform mat3 u_extrude;
uniform mat3 u_display;

attribute vec2 a_position;
attribute vec2 a_offset;
attribute float a_trail_count;
attribute vec4 a_color;

varying float v_trail_count;
varying vec4 v_color;

void main(void) {
	gl_Position.xy = (u_display * (u_transform * vec3(a_position, 1.0) + u_extrude * vec3(a_offset, 0.0))).xy;
	gl_Position.zw = vec2(0.0, 1.0);
	v_trail_count = a_trail_count;
	v_color = a_color;
}
`

const flowlineFragmentSrc = `precision highp float;

uniform float u_current_time;
uniform float u_trail_speed;

varying float v_trail_count;
varying vec4 v_color;

void main(void) {
	float a = fract(v_trail_count - u_current_time * u_trail_speed);
	gl_FragColor = v_color * a;
}
`

// The trail count arrives in custom.x; the color is premultiplied.
const flowlineKageSrc = `//kage:unit pixels
package main

var CurrentTime float
var TrailSpeed float

func Fragment(dst vec4, src vec2, color vec4, custom vec4) vec4 {
	a := fract(custom.x - CurrentTime*TrailSpeed)
	return color * a
}
`

// FlowlineShader returns the flowline shader sources.
func FlowlineShader() ShaderSource {
	return ShaderSource{
		Vertex:   flowlineVertexSrc,
		Fragment: flowlineFragmentSrc,
		Kage:     flowlineKageSrc,
	}
}
