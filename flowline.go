package flowline

import "github.com/paulmach/orb"

// Vec2 is a 2D vector in screen or offset space. Map-space coordinates use
// orb.Point instead.
type Vec2 struct {
	X, Y float64
}

// IsZero reports whether both components are exactly zero.
func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// ViewState is the host view polled once per frame.
type ViewState struct {
	// Center is the map-unit point at the middle of the viewport.
	Center orb.Point
	// Resolution is map units per CSS pixel.
	Resolution float64
	// Rotation is the clockwise view rotation in degrees.
	Rotation float64
	// PixelRatio is device pixels per CSS pixel.
	PixelRatio float64
	// Size is the viewport size in CSS pixels.
	Size Vec2
	// Stationary is false while the host is panning, zooming or animating.
	Stationary bool
}

// Host is the map host a Layer is attached to.
type Host interface {
	// RequestRender schedules another frame. Requesting while a frame is
	// already scheduled is a no-op.
	RequestRender()
}

// LayerConfig configures a flowline Layer. Zero fields take the defaults
// documented on each field.
type LayerConfig struct {
	// TrailWidth is the ribbon width in pixels (default 6).
	TrailWidth float64 `yaml:"trail_width" json:"trailWidth"`
	// TrailSpeed is trail cycles per second (default 1).
	TrailSpeed float64 `yaml:"trail_speed" json:"trailSpeed"`
	// TrailLength is the distance covered by one trail, in map units
	// (default 10).
	TrailLength float64 `yaml:"trail_length" json:"trailLength"`
	// TrailMinNum is the minimum number of trails on a line shorter than
	// TrailLength (default 1).
	TrailMinNum float64 `yaml:"trail_min_num" json:"trailMinNum"`
	// MiterLimit caps the miter scale at joins. Zero or negative leaves
	// miters unclamped.
	MiterLimit float64 `yaml:"miter_limit" json:"miterLimit"`
	// SimplifyTolerance runs Douglas-Peucker over each line before
	// triangulation when positive (map units).
	SimplifyTolerance float64 `yaml:"simplify_tolerance" json:"simplifyTolerance"`
	// DefaultColor is used for graphics without a usable color
	// (default "#ffffff").
	DefaultColor string `yaml:"default_color" json:"defaultColor"`
}

// Default layer configuration values.
const (
	DefaultTrailWidth  = 6
	DefaultTrailSpeed  = 1
	DefaultTrailLength = 10
	DefaultTrailMinNum = 1
	DefaultColorHex    = "#ffffff"
)

// DefaultLayerConfig returns a LayerConfig with every default applied.
func DefaultLayerConfig() LayerConfig {
	return LayerConfig{}.withDefaults()
}

func (c LayerConfig) withDefaults() LayerConfig {
	if c.TrailWidth <= 0 {
		c.TrailWidth = DefaultTrailWidth
	}
	if c.TrailSpeed == 0 {
		c.TrailSpeed = DefaultTrailSpeed
	}
	if c.TrailLength <= 0 {
		c.TrailLength = DefaultTrailLength
	}
	if c.TrailMinNum <= 0 {
		c.TrailMinNum = DefaultTrailMinNum
	}
	if c.DefaultColor == "" {
		c.DefaultColor = DefaultColorHex
	}
	return c
}
