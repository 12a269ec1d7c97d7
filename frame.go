package flowline

import (
	"math"
	"sync/atomic"

	"github.com/paulmach/orb"
)

// FramePhase is the observable state of a FrameState between frames.
type FramePhase uint8

const (
	PhaseStale   FramePhase = iota // next Advance rebuilds: geometry changed or a pan came to rest
	PhasePanning                   // view moving, buffers reused with a translation
	PhaseSettled                   // view stationary and centered, nothing to do
)

// String implements fmt.Stringer.
func (p FramePhase) String() string {
	switch p {
	case PhaseStale:
		return "stale"
	case PhasePanning:
		return "panning"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// FrameAction is what Advance decided for the current frame.
type FrameAction uint8

const (
	ActionNone    FrameAction = iota // reuse buffers and transforms as they are
	ActionPan                        // translation updated, another frame requested
	ActionRebuild                    // retriangulate around the view center and upload
)

// FrameState tracks the view state of a layer between frames: the center
// vertex positions are stored relative to, the pending translation since
// that center was recorded, and the transforms handed to the shader stage.
//
// MarkStale may be called from any goroutine. Everything else runs on the
// render callback.
type FrameState struct {
	needsUpdate atomic.Bool

	centerAtLastUpdate  orb.Point
	translationToCenter Vec2

	transform [6]float64 // map units (relative to center) -> device pixels
	extrude   [6]float64 // offset vectors -> device pixels
	display   [6]float64 // device pixels -> clip space
}

// NewFrameState returns a stale FrameState centered on center.
func NewFrameState(center orb.Point) *FrameState {
	f := &FrameState{
		centerAtLastUpdate: center,
		transform:          identityTransform,
		extrude:            identityTransform,
		display:            identityTransform,
	}
	f.needsUpdate.Store(true)
	return f
}

// MarkStale flags the geometry as changed. The rebuild happens on the next
// Advance; buffers are never touched here.
func (f *FrameState) MarkStale() {
	f.needsUpdate.Store(true)
}

// Phase reports the current phase for a view with the given stationary flag.
// A stationary view with a pending translation is stale, since the next
// Advance recenters and rebuilds.
func (f *FrameState) Phase(stationary bool) FramePhase {
	switch {
	case f.needsUpdate.Load():
		return PhaseStale
	case !stationary:
		return PhasePanning
	case !f.translationToCenter.IsZero():
		return PhaseStale
	default:
		return PhaseSettled
	}
}

// Center returns the map point vertex positions are relative to.
func (f *FrameState) Center() orb.Point {
	return f.centerAtLastUpdate
}

// TranslationToCenter returns the pan accumulated since the last rebuild.
func (f *FrameState) TranslationToCenter() Vec2 {
	return f.translationToCenter
}

// Advance decides the work for one frame:
//
//   - stale: rebuild, recenter on the view, reset the translation
//   - moving: only update the translation and ask for another frame
//   - stationary after a pan: rebuild to recenter, even with unchanged
//     geometry, so the next pan starts from a fresh center
//   - stationary and centered: nothing
//
// On ActionRebuild the state is already recentered; the caller must rebuild
// relative to Center().
func (f *FrameState) Advance(view ViewState) FrameAction {
	if !f.needsUpdate.Load() {
		if !view.Stationary {
			f.translationToCenter = Vec2{
				X: f.centerAtLastUpdate[0] - view.Center[0],
				Y: f.centerAtLastUpdate[1] - view.Center[1],
			}
			return ActionPan
		}
		if f.translationToCenter.IsZero() {
			return ActionNone
		}
	}

	f.centerAtLastUpdate = view.Center
	f.translationToCenter = Vec2{}
	f.needsUpdate.Store(false)
	return ActionRebuild
}

// UpdateTransforms recomputes the three shader transforms from the view.
// trailWidth is the ribbon width in pixels.
func (f *FrameState) UpdateTransforms(view ViewState, trailWidth float64) {
	pr := view.PixelRatio
	if pr <= 0 {
		pr = 1
	}
	rotation := math.Pi * view.Rotation / 180

	// Map units -> pixels: center of the screen, view rotation, resolution
	// with Y up, then the pending pan.
	t := translateAffine(identityTransform, pr*view.Size.X/2, pr*view.Size.Y/2)
	t = rotateAffine(t, rotation)
	t = scaleAffine(t, pr/view.Resolution, -pr/view.Resolution)
	f.transform = translateAffine(t, f.translationToCenter.X, f.translationToCenter.Y)

	// Offsets rotate with the view but keep a constant pixel width.
	halfWidth := trailWidth / 2
	e := rotateAffine(identityTransform, rotation)
	f.extrude = scaleAffine(e, halfWidth, -halfWidth)

	// Pixels -> clip space, Y down on screen is Y down in clip space.
	f.display = [6]float64{2 / (pr * view.Size.X), 0, 0, -2 / (pr * view.Size.Y), -1, 1}
}

// Transform returns the map-to-pixel transform.
func (f *FrameState) Transform() [6]float64 { return f.transform }

// Extrude returns the offset-to-pixel transform.
func (f *FrameState) Extrude() [6]float64 { return f.extrude }

// Display returns the pixel-to-clip transform.
func (f *FrameState) Display() [6]float64 { return f.display }

// ScreenPosition returns the device-pixel position of a vertex under the
// current transforms, as the vertex stage computes it before the display
// transform.
func (f *FrameState) ScreenPosition(v Vertex) Vec2 {
	x, y := transformPoint(f.transform, float64(v.Position[0]), float64(v.Position[1]))
	ox, oy := transformVector(f.extrude, float64(v.Offset[0]), float64(v.Offset[1]))
	return Vec2{X: x + ox, Y: y + oy}
}
