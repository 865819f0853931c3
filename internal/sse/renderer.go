package sse

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Renderer command names, matched by the browser map shim.
const (
	CmdSetLayerData       = "map-set-layer-data"
	CmdSetLayerVisibility = "map-set-layer-visibility"
	CmdFitBounds          = "map-fit-bounds"
)

// Command carries a renderer instruction to SSE subscribers.
type Command struct {
	Name    string
	Payload map[string]any
}

// Renderer implements the overlay renderer boundary over SSE: every
// call becomes a command fanned out to the connected clients. The last
// layer data and visibility are retained so clients that connect later
// catch up with the current map state.
type Renderer struct {
	mu       sync.RWMutex
	subs     map[chan Command]struct{}
	lastData map[string]*geojson.FeatureCollection
	lastVis  map[string]bool
}

// NewRenderer creates a renderer with no subscribers.
func NewRenderer() *Renderer {
	return &Renderer{
		subs:     make(map[chan Command]struct{}),
		lastData: make(map[string]*geojson.FeatureCollection),
		lastVis:  make(map[string]bool),
	}
}

// SetLayerData replaces a layer's feature list on every client.
func (r *Renderer) SetLayerData(layerID string, fc *geojson.FeatureCollection) {
	r.mu.Lock()
	r.lastData[layerID] = fc
	r.mu.Unlock()
	r.broadcast(Command{Name: CmdSetLayerData, Payload: map[string]any{
		"layer": layerID,
		"data":  fc,
	}})
}

// SetLayerVisibility toggles one layer on every client.
func (r *Renderer) SetLayerVisibility(layerID string, visible bool) {
	r.mu.Lock()
	r.lastVis[layerID] = visible
	r.mu.Unlock()
	r.broadcast(Command{Name: CmdSetLayerVisibility, Payload: map[string]any{
		"layer":   layerID,
		"visible": visible,
	}})
}

// FitBounds asks every client to fit its view.
func (r *Renderer) FitBounds(b orb.Bound) {
	r.broadcast(Command{Name: CmdFitBounds, Payload: map[string]any{
		"bounds": []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
	}})
}

// Subscribe returns a buffered command channel primed with the current
// map state, so a late-joining client renders what everyone else sees.
func (r *Renderer) Subscribe() chan Command {
	ch := make(chan Command, 64)

	r.mu.Lock()
	for id, fc := range r.lastData {
		ch <- Command{Name: CmdSetLayerData, Payload: map[string]any{"layer": id, "data": fc}}
	}
	for id, visible := range r.lastVis {
		ch <- Command{Name: CmdSetLayerVisibility, Payload: map[string]any{"layer": id, "visible": visible}}
	}
	r.subs[ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (r *Renderer) Unsubscribe(ch chan Command) {
	r.mu.Lock()
	delete(r.subs, ch)
	r.mu.Unlock()
	close(ch)
}

func (r *Renderer) broadcast(cmd Command) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for ch := range r.subs {
		select {
		case ch <- cmd:
		default:
			// subscriber too slow, skip
		}
	}
}
