// Package api defines the Huma API routes and handlers.
package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/andesmap/predial/internal/analyze"
	"github.com/andesmap/predial/internal/draw"
	"github.com/andesmap/predial/internal/overlay"
	"github.com/andesmap/predial/internal/report"
	"github.com/andesmap/predial/internal/session"
	"github.com/andesmap/predial/internal/sse"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Store      *session.Store
	Controller *draw.Controller
	Overlay    *overlay.Synchronizer
	Uploader   analyze.Uploader
	Catalog    report.Catalog
	Renderer   *sse.Renderer
	Bus        *session.EventBus
}

// HealthBody reports service liveness.
type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// MessageBody is a generic result message.
type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

// APIHandler holds all REST API handlers.
type APIHandler struct {
	svc *Services
}

// NewAPIHandler creates the handler set over the given services.
func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every route on the API.
func RegisterRoutes(api huma.API, svc *Services) {
	h := NewAPIHandler(svc)
	h.RegisterHealth(api)
	h.RegisterParcels(api)
	h.RegisterLayers(api)
	h.RegisterDrawing(api)
	h.RegisterEvents(api)
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}
