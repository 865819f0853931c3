package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/andesmap/predial/internal/analyze"
	"github.com/andesmap/predial/internal/draw"
)

// StartDrawingBody selects the widget interaction mode.
type StartDrawingBody struct {
	Mode string `json:"mode" doc:"Draw widget mode" example:"draw_polygon" default:"draw_polygon"`
}

// DrawStateBody reports the controller's interaction state.
type DrawStateBody struct {
	State     string `json:"state" doc:"Controller state" example:"drawing"`
	Mode      string `json:"mode,omitempty" doc:"Active draw mode"`
	Analyzing bool   `json:"analyzing" doc:"Whether an analysis batch is in flight"`
	Error     string `json:"error,omitempty" doc:"Last batch failure, if any"`
}

// DrawFeatureInput is the create-or-update signal from the widget. The
// body optionally carries the changed feature; without one the last
// draft is used.
type DrawFeatureInput struct {
	RawBody []byte `contentType:"application/json"`
}

// RegisterDrawing registers the drawing session routes.
func (h *APIHandler) RegisterDrawing(api huma.API) {
	huma.Post(api, "/api/v1/draw/start", h.StartDrawing, huma.OperationTags("drawing"))
	huma.Post(api, "/api/v1/draw/feature", h.DrawFeature, huma.OperationTags("drawing"),
		func(o *huma.Operation) { o.SkipValidateBody = true })
	huma.Post(api, "/api/v1/draw/clear", h.DrawClear, huma.OperationTags("drawing"))
	huma.Post(api, "/api/v1/draw/cancel", h.DrawCancel, huma.OperationTags("drawing"))
	huma.Get(api, "/api/v1/draw/state", h.DrawState, huma.OperationTags("drawing"))
	huma.Post(api, "/api/v1/map/ready", h.MapReady, huma.OperationTags("drawing"))
}

func (h *APIHandler) drawState() DrawStateBody {
	c := h.svc.Controller
	body := DrawStateBody{
		State:     c.State().String(),
		Mode:      string(c.ActiveMode()),
		Analyzing: c.Analyzing(),
	}
	if err := c.Err(); err != nil {
		body.Error = analysisFailedMsg
	}
	return body
}

func (h *APIHandler) StartDrawing(ctx context.Context, input *struct{ Body StartDrawingBody }) (*struct{ Body DrawStateBody }, error) {
	mode := draw.Mode(input.Body.Mode)
	if mode == "" {
		mode = draw.ModePolygon
	}
	h.svc.Controller.StartDrawing(mode)
	return &struct{ Body DrawStateBody }{Body: h.drawState()}, nil
}

func (h *APIHandler) DrawFeature(ctx context.Context, input *DrawFeatureInput) (*ParcelsOutput, error) {
	features, err := ParseFeatures(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	// The signal carries at most one changed feature; an empty body
	// means no identifiable feature, so the last draft is used.
	var target *geojson.Feature
	if len(features) > 0 {
		target = features[len(features)-1]
	}

	created, err := h.svc.Controller.HandleCreateOrUpdate(ctx, target)
	if err != nil {
		if errors.Is(err, analyze.ErrAnalysisFailed) {
			return nil, huma.Error502BadGateway(analysisFailedMsg)
		}
		return nil, huma.Error500InternalServerError(analysisFailedMsg)
	}

	out := &ParcelsOutput{}
	out.Body.Parcels = make([]ParcelView, len(created))
	for i, p := range created {
		out.Body.Parcels[i] = parcelView(p, h.svc.Catalog)
	}
	out.Body.Count = len(created)
	return out, nil
}

func (h *APIHandler) DrawClear(ctx context.Context, input *struct{}) (*struct{ Body DrawStateBody }, error) {
	h.svc.Controller.HandleDeleteAll()
	return &struct{ Body DrawStateBody }{Body: h.drawState()}, nil
}

func (h *APIHandler) DrawCancel(ctx context.Context, input *struct{}) (*struct{ Body DrawStateBody }, error) {
	h.svc.Controller.Cancel()
	return &struct{ Body DrawStateBody }{Body: h.drawState()}, nil
}

func (h *APIHandler) DrawState(ctx context.Context, input *struct{}) (*struct{ Body DrawStateBody }, error) {
	return &struct{ Body DrawStateBody }{Body: h.drawState()}, nil
}

// MapReady delivers the rendering surface's one-time ready signal;
// deferred synchronizations flush here.
func (h *APIHandler) MapReady(ctx context.Context, input *struct{}) (*struct{ Body MessageBody }, error) {
	h.svc.Overlay.Ready()
	h.svc.Overlay.Sync()
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Renderer ready"}}, nil
}
