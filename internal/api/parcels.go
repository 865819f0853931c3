package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/andesmap/predial/internal/analyze"
	"github.com/andesmap/predial/internal/report"
	"github.com/andesmap/predial/internal/session"
)

// analysisFailedMsg is shown to the user when a batch fails; the
// session is back in its pre-batch state and a retry is safe.
const analysisFailedMsg = "Hubo un error al procesar la solicitud espacial. Intenta nuevamente."

// ParcelView is one accumulated parcel with its derived metrics,
// rounded for display.
type ParcelView struct {
	ID                int64                                `json:"id" doc:"Session-unique record ID"`
	Name              string                               `json:"featureName" doc:"Display label" example:"Terreno 1"`
	AreaTotalHa       float64                              `json:"area_total_ha" doc:"Parcel area in hectares"`
	RestrictedHa      float64                              `json:"area_restringida_ha" doc:"Restricted area, clamped to the parcel area"`
	FreeHa            float64                              `json:"area_libre_ha" doc:"Unrestricted area"`
	PercentRestricted float64                              `json:"porcentaje_restringido" doc:"Restricted share of the parcel, percent"`
	HasRestrictions   bool                                 `json:"tiene_restricciones" doc:"True when any category matched"`
	DPA               report.DPA                           `json:"dpa" doc:"Administrative divisions the parcel spans"`
	CategoryAreas     map[report.Category]float64         `json:"areas_por_categoria" doc:"Summed overlap per category"`
	Ecosystems        []report.FormationGroup             `json:"ecosistemas" doc:"Ecosystem records grouped by formation"`
	Restrictions      map[report.Category][]report.Record `json:"restricciones" doc:"Raw intersection records per category"`
}

// ParcelsOutput lists the session contents.
type ParcelsOutput struct {
	Body struct {
		Parcels []ParcelView `json:"parcels"`
		Count   int          `json:"count"`
	}
}

// AnalyzeInput carries one GeoJSON Feature or FeatureCollection to
// analyze as a single batch.
type AnalyzeInput struct {
	RawBody []byte `contentType:"application/json"`
}

// parcelView projects one record for display; metrics are derived fresh
// and rounded only here, at the presentation boundary.
func parcelView(p session.Parcel, cat report.Catalog) ParcelView {
	sum := report.Summarize(p.Report, cat)

	areas := make(map[report.Category]float64, len(sum.CategoryAreas))
	for c, v := range sum.CategoryAreas {
		areas[c] = report.RoundHa(v)
	}
	groups := make([]report.FormationGroup, len(sum.Ecosystems))
	for i, g := range sum.Ecosystems {
		entries := make([]report.FormationEntry, len(g.Entries))
		for j, e := range g.Entries {
			e.AreaHa = report.RoundHa(e.AreaHa)
			entries[j] = e
		}
		groups[i] = report.FormationGroup{
			Formation: g.Formation,
			AreaHa:    report.RoundHa(g.AreaHa),
			Entries:   entries,
		}
	}

	return ParcelView{
		ID:                p.ID,
		Name:              p.Name,
		AreaTotalHa:       report.RoundHa(sum.AreaTotalHa),
		RestrictedHa:      report.RoundHa(sum.TotalRestricted),
		FreeHa:            report.RoundHa(sum.FreeArea),
		PercentRestricted: report.RoundPct(sum.PercentRestricted),
		HasRestrictions:   sum.HasRestrictions,
		DPA:               p.Report.DPA,
		CategoryAreas:     areas,
		Ecosystems:        groups,
		Restrictions:      p.Report.Restrictions,
	}
}

// RegisterParcels registers the session routes.
func (h *APIHandler) RegisterParcels(api huma.API) {
	huma.Get(api, "/api/v1/parcels", h.GetParcels, huma.OperationTags("parcels"))
	huma.Post(api, "/api/v1/parcels", h.AnalyzeParcels, huma.OperationTags("parcels"),
		func(o *huma.Operation) { o.SkipValidateBody = true })
	huma.Delete(api, "/api/v1/parcels", h.ClearParcels, huma.OperationTags("parcels"))
}

func (h *APIHandler) GetParcels(ctx context.Context, input *struct{}) (*ParcelsOutput, error) {
	out := &ParcelsOutput{}
	records := h.svc.Store.Records()
	out.Body.Parcels = make([]ParcelView, len(records))
	for i, p := range records {
		out.Body.Parcels[i] = parcelView(p, h.svc.Catalog)
	}
	out.Body.Count = len(records)
	return out, nil
}

func (h *APIHandler) AnalyzeParcels(ctx context.Context, input *AnalyzeInput) (*ParcelsOutput, error) {
	features, err := ParseFeatures(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	created, err := h.svc.Store.Append(ctx, features...)
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

func (h *APIHandler) ClearParcels(ctx context.Context, input *struct{}) (*struct{ Body MessageBody }, error) {
	h.svc.Store.Clear()
	h.svc.Overlay.Sync()
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Session cleared"}}, nil
}

// ParseFeatures normalizes a raw GeoJSON body, Feature or
// FeatureCollection, into its list of features. An empty body yields an
// empty batch.
func ParseFeatures(data []byte) ([]*geojson.Feature, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid geojson: %w", err)
	}

	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("invalid feature collection: %w", err)
		}
		return fc.Features, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("invalid feature: %w", err)
		}
		return []*geojson.Feature{f}, nil
	default:
		return nil, fmt.Errorf("unsupported geojson type %q", probe.Type)
	}
}
