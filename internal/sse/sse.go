// Package sse bridges Huma streaming responses with the Datastar SSE
// protocol and carries map commands from the overlay synchronizer to
// connected browsers.
package sse

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"
)

// Stream wraps a Datastar SSE generator with the few patterns the app
// uses: signal patches and custom events.
type Stream struct {
	*datastar.ServerSentEventGenerator
}

// New creates a Datastar SSE helper from a Huma streaming context.
func New(ctx huma.Context) Stream {
	r, w := humago.Unwrap(ctx)
	return Stream{datastar.NewSSE(w, r)}
}

// Signals sends arbitrary signals to the UI.
func (s Stream) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Error sends an error signal to the UI.
func (s Stream) Error(msg string) {
	s.Signals(map[string]any{"error": msg})
}

// Command dispatches a named custom event with a payload; the browser
// map shim listens for these and drives the rendering engine.
func (s Stream) Command(name string, payload any) {
	s.DispatchCustomEvent(name, payload)
}
