package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// LayerIDInput addresses one reference layer.
type LayerIDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"areas_protegidas"`
}

// LayersOutput is the full visibility flag state.
type LayersOutput struct {
	Body map[string]bool
}

// VisibilityBody sets one layer's visibility.
type VisibilityBody struct {
	Visible bool `json:"visible" doc:"Whether the layer is shown"`
}

// RegisterLayers registers the visibility flag routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{id}", h.PutLayer, huma.OperationTags("layers"))
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	return &LayersOutput{Body: h.svc.Overlay.Visible()}, nil
}

func (h *APIHandler) PutLayer(ctx context.Context, input *struct {
	LayerIDInput
	Body VisibilityBody
}) (*LayersOutput, error) {
	h.svc.Overlay.SetVisible(input.ID, input.Body.Visible)
	return &LayersOutput{Body: h.svc.Overlay.Visible()}, nil
}
