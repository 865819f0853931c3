package draw

import (
	"context"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/andesmap/predial/internal/logger"
	"github.com/andesmap/predial/internal/overlay"
	"github.com/andesmap/predial/internal/session"
)

// State is the controller's interaction state.
type State int

const (
	StateIdle State = iota
	StateDrawing
	StateFeatureEdited
)

func (s State) String() string {
	switch s {
	case StateDrawing:
		return "drawing"
	case StateFeatureEdited:
		return "feature_edited"
	default:
		return "idle"
	}
}

// Controller is the drawing session state machine. The widget's native
// events arrive as two abstract signals, create-or-update and
// delete-all; the controller forwards at most one geometry at a time to
// the session store.
type Controller struct {
	store   *session.Store
	canvas  Canvas
	overlay *overlay.Synchronizer

	mu        sync.Mutex
	state     State
	mode      Mode
	analyzing bool
	lastErr   error
}

// NewController wires a controller over the store, canvas and overlay.
func NewController(store *session.Store, canvas Canvas, ov *overlay.Synchronizer) *Controller {
	return &Controller{store: store, canvas: canvas, overlay: ov}
}

// StartDrawing forces the parcels layer visible, discards any
// unsubmitted draft and enters the drawing state. It does not cancel an
// already-dispatched analysis batch.
func (c *Controller) StartDrawing(mode Mode) {
	c.overlay.ForceParcelsVisible()
	c.canvas.DeleteAll()
	c.canvas.SetMode(mode)

	c.mu.Lock()
	c.state = StateDrawing
	c.mode = mode
	c.lastErr = nil
	c.mu.Unlock()

	logger.L().Debug("drawing started", "mode", string(mode))
}

// Cancel discards the draft canvas and returns to idle.
func (c *Controller) Cancel() {
	c.canvas.DeleteAll()

	c.mu.Lock()
	c.state = StateIdle
	c.mode = ""
	c.mu.Unlock()
}

// HandleCreateOrUpdate processes a create-or-update signal from the
// widget. When the signal carries the changed feature, that one is
// submitted; otherwise the last draft in the set's current order is
// used as a best-effort tie-break. Other drafts stay on the canvas
// untouched. A signal with no draft at all degrades to the delete-all
// no-op.
func (c *Controller) HandleCreateOrUpdate(ctx context.Context, changed *geojson.Feature) ([]session.Parcel, error) {
	target := changed
	if target == nil {
		drafts := c.canvas.Drafts()
		if len(drafts) == 0 {
			c.HandleDeleteAll()
			return nil, nil
		}
		target = drafts[len(drafts)-1]
	}

	c.mu.Lock()
	c.state = StateFeatureEdited
	c.analyzing = true
	c.lastErr = nil
	c.mu.Unlock()

	return c.submit(ctx, target)
}

// HandleDeleteAll processes the widget's delete-all signal: no active
// feature remains, so analyzing and error state reset without touching
// the store.
func (c *Controller) HandleDeleteAll() {
	c.mu.Lock()
	c.state = StateIdle
	c.mode = ""
	c.analyzing = false
	c.lastErr = nil
	c.mu.Unlock()
}

// SubmitUpload renders an uploaded collection as drafts, fits the view
// to its combined bounds and submits the whole collection as one batch,
// bypassing the drawing state entirely.
func (c *Controller) SubmitUpload(ctx context.Context, fc *geojson.FeatureCollection) ([]session.Parcel, error) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, nil
	}

	c.canvas.DeleteAll()
	c.canvas.AddDrafts(fc)
	c.overlay.FitTo(fc)

	c.mu.Lock()
	c.analyzing = true
	c.lastErr = nil
	c.mu.Unlock()

	return c.submit(ctx, fc.Features...)
}

// submit runs one store batch and settles the controller state. On
// success the draft canvas is cleared; the committed geometry is
// re-rendered from the store, not left as a draft duplicate.
func (c *Controller) submit(ctx context.Context, features ...*geojson.Feature) ([]session.Parcel, error) {
	created, err := c.store.Append(ctx, features...)

	c.mu.Lock()
	c.analyzing = false
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		return nil, err
	}
	c.state = StateIdle
	c.mode = ""
	c.mu.Unlock()

	if len(created) > 0 {
		c.canvas.DeleteAll()
		c.overlay.ForceParcelsVisible()
		c.overlay.Sync()
	}
	return created, nil
}

// State returns the current interaction state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveMode returns the current drawing mode, empty when idle.
func (c *Controller) ActiveMode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Analyzing reports whether a batch is in flight.
func (c *Controller) Analyzing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analyzing
}

// Err returns the last batch failure, cleared by the next signal.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
