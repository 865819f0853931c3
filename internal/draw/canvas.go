// Package draw coordinates the drawing interaction surface with the
// parcel session: a single-geometry-at-a-time state machine between the
// draw widget's native events and the analysis pipeline.
package draw

import (
	"sync"

	"github.com/paulmach/orb/geojson"
)

// Mode is a drawing interaction mode of the widget, e.g. "draw_polygon".
type Mode string

const (
	ModePolygon   Mode = "draw_polygon"
	ModeRectangle Mode = "draw_rectangle"
)

// Canvas is the boundary to the draw widget. Drafts are in-progress,
// unsubmitted geometries, distinct from committed parcel records.
type Canvas interface {
	// Drafts returns the current draft set in its current order.
	Drafts() []*geojson.Feature
	// AddDrafts renders a collection as drafts.
	AddDrafts(fc *geojson.FeatureCollection)
	// DeleteAll clears every draft.
	DeleteAll()
	// SetMode switches the widget's interaction mode.
	SetMode(mode Mode)
}

// MemoryCanvas is an in-memory Canvas mirroring the browser widget's
// draft set for the server-side session.
type MemoryCanvas struct {
	mu     sync.Mutex
	drafts []*geojson.Feature
	mode   Mode
}

// NewMemoryCanvas creates an empty canvas.
func NewMemoryCanvas() *MemoryCanvas {
	return &MemoryCanvas{}
}

// Drafts returns a copy of the draft set in arrival order.
func (c *MemoryCanvas) Drafts() []*geojson.Feature {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*geojson.Feature, len(c.drafts))
	copy(out, c.drafts)
	return out
}

// AddDrafts appends every feature of the collection to the draft set.
func (c *MemoryCanvas) AddDrafts(fc *geojson.FeatureCollection) {
	if fc == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range fc.Features {
		if f != nil {
			c.drafts = append(c.drafts, f)
		}
	}
}

// DeleteAll clears the draft set.
func (c *MemoryCanvas) DeleteAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drafts = nil
}

// SetMode records the widget mode.
func (c *MemoryCanvas) SetMode(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
}

// Mode returns the last mode set.
func (c *MemoryCanvas) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}
