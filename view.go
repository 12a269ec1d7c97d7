package flowline

import (
	"math"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// viewAnim holds the active tweens of a ScrollTo or ZoomTo.
type viewAnim struct {
	tweenX   *gween.Tween
	tweenY   *gween.Tween
	tweenRes *gween.Tween
	doneX    bool
	doneY    bool
	doneRes  bool
}

func (a *viewAnim) done() bool {
	return a.doneX && a.doneY && a.doneRes
}

// MapView is a minimal map host: it owns the view center, resolution and
// rotation, tracks whether the view is moving and collects render requests.
// It is not safe for concurrent use except for RequestRender.
type MapView struct {
	// Center is the map point at the middle of the viewport.
	Center orb.Point
	// Resolution is map units per CSS pixel.
	Resolution float64
	// Rotation is the clockwise rotation in degrees.
	Rotation float64
	// PixelRatio is device pixels per CSS pixel.
	PixelRatio float64
	// Size is the viewport size in CSS pixels.
	Size Vec2

	// MinResolution and MaxResolution bound ZoomTo and ZoomBy when positive.
	MinResolution float64
	MaxResolution float64

	panning bool
	jumped  bool
	anim    *viewAnim
	pending atomic.Bool
}

// NewMapView creates a view centered on center.
func NewMapView(center orb.Point, resolution float64, size Vec2) *MapView {
	return &MapView{
		Center:     center,
		Resolution: resolution,
		PixelRatio: 1,
		Size:       size,
	}
}

// RequestRender schedules a frame. It may be called from any goroutine.
func (v *MapView) RequestRender() {
	v.pending.Store(true)
}

// TakeRenderRequest reports whether a frame was requested since the last
// call and clears the request.
func (v *MapView) TakeRenderRequest() bool {
	return v.pending.Swap(false)
}

// Stationary reports whether the view is neither being dragged nor
// animating.
func (v *MapView) Stationary() bool {
	return !v.panning && v.anim == nil
}

// Animating reports whether a ScrollTo or ZoomTo is in progress.
func (v *MapView) Animating() bool {
	return v.anim != nil
}

// State returns the view as polled by a Layer. After an immediate jump
// (ZoomBy, FitBound) the first State reports the view as moving so that
// layers see the change before it settles.
func (v *MapView) State() ViewState {
	stationary := v.Stationary() && !v.jumped
	if v.jumped {
		v.jumped = false
		v.RequestRender()
	}
	return ViewState{
		Center:     v.Center,
		Resolution: v.Resolution,
		Rotation:   v.Rotation,
		PixelRatio: v.PixelRatio,
		Size:       v.Size,
		Stationary: stationary,
	}
}

// ScrollTo animates the center to p over duration seconds.
func (v *MapView) ScrollTo(p orb.Point, duration float32, easeFn ease.TweenFunc) {
	v.animate(p, v.Resolution, duration, easeFn)
}

// ZoomTo animates the resolution to res over duration seconds, keeping the
// center.
func (v *MapView) ZoomTo(res float64, duration float32, easeFn ease.TweenFunc) {
	v.animate(v.Center, v.clampResolution(res), duration, easeFn)
}

// ZoomBy multiplies the resolution by factor immediately, keeping the map
// point under the screen position (sx, sy) fixed.
func (v *MapView) ZoomBy(factor, sx, sy float64) {
	if factor <= 0 {
		return
	}
	anchor := v.ScreenToMap(sx, sy)
	v.Resolution = v.clampResolution(v.Resolution * factor)
	moved := v.ScreenToMap(sx, sy)
	v.Center = orb.Point{
		v.Center[0] + anchor[0] - moved[0],
		v.Center[1] + anchor[1] - moved[1],
	}
	v.jumped = true
	v.RequestRender()
}

func (v *MapView) animate(p orb.Point, res float64, duration float32, easeFn ease.TweenFunc) {
	if easeFn == nil {
		easeFn = ease.Linear
	}
	v.anim = &viewAnim{
		tweenX:   gween.New(float32(v.Center[0]), float32(p[0]), duration, easeFn),
		tweenY:   gween.New(float32(v.Center[1]), float32(p[1]), duration, easeFn),
		tweenRes: gween.New(float32(v.Resolution), float32(res), duration, easeFn),
	}
	v.RequestRender()
}

// BeginPan starts a drag. The view is not stationary until EndPan.
func (v *MapView) BeginPan() {
	v.panning = true
	v.anim = nil
}

// PanBy moves the view so that the content follows a drag of (dx, dy)
// screen pixels.
func (v *MapView) PanBy(dx, dy float64) {
	mx, my := transformVector(v.screenToMapLinear(), dx, dy)
	v.Center = orb.Point{v.Center[0] - mx, v.Center[1] - my}
	v.RequestRender()
}

// EndPan ends a drag and schedules the frame that settles the view.
func (v *MapView) EndPan() {
	v.panning = false
	v.RequestRender()
}

// Update advances any running animation by dt seconds.
func (v *MapView) Update(dt float32) {
	a := v.anim
	if a == nil {
		return
	}
	if !a.doneX {
		val, done := a.tweenX.Update(dt)
		v.Center[0] = float64(val)
		a.doneX = done
	}
	if !a.doneY {
		val, done := a.tweenY.Update(dt)
		v.Center[1] = float64(val)
		a.doneY = done
	}
	if !a.doneRes {
		val, done := a.tweenRes.Update(dt)
		v.Resolution = float64(val)
		a.doneRes = done
	}
	if a.done() {
		v.anim = nil
	}
	v.RequestRender()
}

// viewMatrix maps map units to CSS pixels:
//
//	Translate(size/2) * Rotate(rotation) * Scale(1/res, -1/res) * Translate(-center)
func (v *MapView) viewMatrix() [6]float64 {
	m := translateAffine(identityTransform, v.Size.X/2, v.Size.Y/2)
	m = rotateAffine(m, v.Rotation*math.Pi/180)
	m = scaleAffine(m, 1/v.Resolution, -1/v.Resolution)
	return translateAffine(m, -v.Center[0], -v.Center[1])
}

func (v *MapView) screenToMapLinear() [6]float64 {
	m := invertAffine(v.viewMatrix())
	m[4], m[5] = 0, 0
	return m
}

// MapToScreen converts a map point to CSS pixels.
func (v *MapView) MapToScreen(p orb.Point) (sx, sy float64) {
	return transformPoint(v.viewMatrix(), p[0], p[1])
}

// ScreenToMap converts CSS pixels to a map point.
func (v *MapView) ScreenToMap(sx, sy float64) orb.Point {
	x, y := transformPoint(invertAffine(v.viewMatrix()), sx, sy)
	return orb.Point{x, y}
}

// VisibleBound returns the map-space bound of the viewport.
func (v *MapView) VisibleBound() orb.Bound {
	b := orb.Bound{Min: v.ScreenToMap(0, 0), Max: v.ScreenToMap(0, 0)}
	b = b.Extend(v.ScreenToMap(v.Size.X, 0))
	b = b.Extend(v.ScreenToMap(v.Size.X, v.Size.Y))
	return b.Extend(v.ScreenToMap(0, v.Size.Y))
}

// FitBound centers the view on b and picks the resolution that fits it in
// the viewport with padding pixels on each side.
func (v *MapView) FitBound(b orb.Bound, padding float64) {
	w := v.Size.X - 2*padding
	h := v.Size.Y - 2*padding
	if w <= 0 || h <= 0 {
		return
	}
	res := math.Max((b.Max[0]-b.Min[0])/w, (b.Max[1]-b.Min[1])/h)
	if res > 0 {
		v.Resolution = v.clampResolution(res)
	}
	v.Center = b.Center()
	v.jumped = true
	v.RequestRender()
}

func (v *MapView) clampResolution(res float64) float64 {
	if v.MinResolution > 0 && res < v.MinResolution {
		res = v.MinResolution
	}
	if v.MaxResolution > 0 && res > v.MaxResolution {
		res = v.MaxResolution
	}
	return res
}
