package flowline

import (
	"sync"

	"github.com/paulmach/orb"
)

// Graphic is a single flowline: one polyline in map units plus its color.
type Graphic struct {
	Geometry   orb.LineString
	Color      ColorValue
	Attributes map[string]any
}

// ChangeEvent describes a mutation of a GraphicsCollection.
type ChangeEvent struct {
	Added   int
	Removed int
}

// GraphicsCollection is an ordered, goroutine-safe list of graphics with
// change notification. Listeners run synchronously on the mutating goroutine
// after the lock is released.
type GraphicsCollection struct {
	mu        sync.RWMutex
	items     []Graphic
	listeners []changeListener
	nextID    uint32
}

type changeListener struct {
	id uint32
	fn func(ChangeEvent)
}

// Subscription allows removing a change listener.
type Subscription struct {
	id uint32
	c  *GraphicsCollection
}

// Remove unregisters the listener. Calling Remove more than once, or on a
// zero Subscription, is a no-op.
func (s Subscription) Remove() {
	if s.c == nil {
		return
	}
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	for i, l := range s.c.listeners {
		if l.id == s.id {
			s.c.listeners = append(s.c.listeners[:i], s.c.listeners[i+1:]...)
			return
		}
	}
}

// NewGraphicsCollection creates a collection holding a copy of gs.
func NewGraphicsCollection(gs ...Graphic) *GraphicsCollection {
	c := &GraphicsCollection{}
	c.items = append(c.items, gs...)
	return c
}

// On registers fn to be called after every mutation.
func (c *GraphicsCollection) On(fn func(ChangeEvent)) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.listeners = append(c.listeners, changeListener{id: c.nextID, fn: fn})
	return Subscription{id: c.nextID, c: c}
}

// Len returns the number of graphics.
func (c *GraphicsCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Items returns a snapshot of the graphics in order. The slice is owned by
// the caller; geometries are shared and must not be mutated.
func (c *GraphicsCollection) Items() []Graphic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Graphic, len(c.items))
	copy(out, c.items)
	return out
}

// Add appends a graphic.
func (c *GraphicsCollection) Add(g Graphic) {
	c.AddMany(g)
}

// AddMany appends several graphics and emits a single change event.
func (c *GraphicsCollection) AddMany(gs ...Graphic) {
	if len(gs) == 0 {
		return
	}
	c.mu.Lock()
	c.items = append(c.items, gs...)
	c.mu.Unlock()
	c.emit(ChangeEvent{Added: len(gs)})
}

// RemoveAt removes the graphic at index i. Out-of-range indices are ignored.
func (c *GraphicsCollection) RemoveAt(i int) {
	c.mu.Lock()
	if i < 0 || i >= len(c.items) {
		c.mu.Unlock()
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.mu.Unlock()
	c.emit(ChangeEvent{Removed: 1})
}

// Clear removes every graphic.
func (c *GraphicsCollection) Clear() {
	c.Replace(nil)
}

// Replace swaps the whole content for gs.
func (c *GraphicsCollection) Replace(gs []Graphic) {
	c.mu.Lock()
	removed := len(c.items)
	c.items = append([]Graphic(nil), gs...)
	c.mu.Unlock()
	if removed == 0 && len(gs) == 0 {
		return
	}
	c.emit(ChangeEvent{Added: len(gs), Removed: removed})
}

func (c *GraphicsCollection) emit(ev ChangeEvent) {
	c.mu.RLock()
	ls := make([]changeListener, len(c.listeners))
	copy(ls, c.listeners)
	c.mu.RUnlock()
	for _, l := range ls {
		l.fn(ev)
	}
}
