package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/andesmap/predial/internal/sse"
)

// RegisterEvents registers the SSE stream that drives the browser map.
func (h *APIHandler) RegisterEvents(api huma.API) {
	huma.Get(api, "/api/v1/events", h.Events, huma.OperationTags("events"))
}

// Events streams renderer commands and session change notifications to
// the client. A new connection first receives the current map state,
// then live updates until it disconnects.
func (h *APIHandler) Events(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			stream := sse.New(humaCtx)

			cmds := h.svc.Renderer.Subscribe()
			defer h.svc.Renderer.Unsubscribe(cmds)
			events := h.svc.Bus.Subscribe()
			defer h.svc.Bus.Unsubscribe(events)

			for {
				select {
				case <-humaCtx.Context().Done():
					return
				case cmd, ok := <-cmds:
					if !ok {
						return
					}
					stream.Command(cmd.Name, cmd.Payload)
				case ev, ok := <-events:
					if !ok {
						return
					}
					stream.Command("session-changed", map[string]any{
						"resource": ev.Resource,
						"action":   ev.Action,
						"id":       ev.ID,
					})
				}
			}
		},
	}, nil
}
