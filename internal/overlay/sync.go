package overlay

import (
	"context"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/andesmap/predial/internal/logger"
	"github.com/andesmap/predial/internal/report"
	"github.com/andesmap/predial/internal/session"
)

// Synchronizer keeps the rendering engine in step with the parcel
// session: one geometry layer rebuilt from the store on every change,
// plus the per-layer visibility flags. Requests arriving before the
// render target signals ready are deferred, not dropped.
type Synchronizer struct {
	store    *session.Store
	catalog  report.Catalog
	renderer Renderer

	mu      sync.Mutex
	ready   bool
	pending []func()
	visible map[string]bool
}

// NewSynchronizer creates a synchronizer over the given store and
// renderer with the default visibility flags.
func NewSynchronizer(store *session.Store, cat report.Catalog, renderer Renderer) *Synchronizer {
	return &Synchronizer{
		store:    store,
		catalog:  cat,
		renderer: renderer,
		visible:  DefaultVisibility(),
	}
}

// Ready delivers the one-time ready signal from the rendering surface
// and flushes every deferred operation in arrival order. Later calls
// are no-ops.
func (s *Synchronizer) Ready() {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return
	}
	s.ready = true
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()

	logger.L().Debug("render target ready", "deferred", len(queued))
	for _, op := range queued {
		op()
	}
}

// run executes op now, or queues it until Ready.
func (s *Synchronizer) run(op func()) {
	s.mu.Lock()
	if !s.ready {
		s.pending = append(s.pending, op)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	op()
}

// Sync rebuilds the parcels layer from the store's current contents.
// Idempotent: the same store state always produces the same feature
// list, so repeated calls are safe.
func (s *Synchronizer) Sync() {
	s.run(func() {
		fc := ParcelCollection(s.store.Records(), s.catalog)
		s.renderer.SetLayerData(LayerTerrenos, fc)
	})
}

// SetVisible toggles one layer's visibility flag. Flags are
// independent: no other layer is touched.
func (s *Synchronizer) SetVisible(layerID string, visible bool) {
	s.mu.Lock()
	s.visible[layerID] = visible
	s.mu.Unlock()

	s.run(func() {
		s.renderer.SetLayerVisibility(layerID, visible)
	})
}

// ForceParcelsVisible switches the parcels layer on. Called whenever a
// parcel is added or a drawing session starts.
func (s *Synchronizer) ForceParcelsVisible() {
	s.SetVisible(LayerTerrenos, true)
}

// Visible returns a copy of the current flag state.
func (s *Synchronizer) Visible() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.visible))
	for k, v := range s.visible {
		out[k] = v
	}
	return out
}

// FitTo asks the renderer to fit the view to the combined bounds of a
// feature collection. Collections without geometry are ignored.
func (s *Synchronizer) FitTo(fc *geojson.FeatureCollection) {
	if fc == nil || len(fc.Features) == 0 {
		return
	}
	var bound orb.Bound
	first := true
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		if first {
			bound = b
			first = false
		} else {
			bound = bound.Union(b)
		}
	}
	if first {
		return
	}
	s.run(func() {
		s.renderer.FitBounds(bound)
	})
}

// Watch resynchronizes on store change events until ctx is done. Run it
// in its own goroutine.
func (s *Synchronizer) Watch(ctx context.Context, bus *session.EventBus) {
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Resource == "parcels" {
				if ev.Action == "appended" {
					s.ForceParcelsVisible()
				}
				s.Sync()
			}
		}
	}
}
