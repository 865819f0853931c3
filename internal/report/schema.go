// Package report defines the restriction report returned by the spatial
// analysis service and the pure aggregation that derives display metrics
// from it.
package report

import "encoding/json"

// Category identifies one reference layer the analysis service
// intersects parcels against.
type Category string

const (
	SitiosPrioritarios        Category = "sitios_prioritarios"
	AreasProtegidas           Category = "areas_protegidas"
	ConcesionesAcuicultura    Category = "concesiones_acuicultura"
	ECMPO                     Category = "ecmpo"
	ConcesionesMinerasConst   Category = "concesiones_mineras_const"
	ConcesionesMinerasTramite Category = "concesiones_mineras_tramite"
	Ecosistemas               Category = "ecosistemas"
)

// Categories lists every category in display order.
var Categories = []Category{
	AreasProtegidas,
	SitiosPrioritarios,
	ConcesionesAcuicultura,
	ECMPO,
	ConcesionesMinerasConst,
	ConcesionesMinerasTramite,
	Ecosistemas,
}

// RestrictedCategories are the categories whose overlap counts toward
// the restricted-area total. Ecosystems describe vegetation cover, not a
// land-use restriction, so they are reported but not summed.
var RestrictedCategories = []Category{
	AreasProtegidas,
	SitiosPrioritarios,
	ConcesionesAcuicultura,
	ECMPO,
	ConcesionesMinerasConst,
	ConcesionesMinerasTramite,
}

// Record is one intersection between the parcel and an object in a
// reference layer. The descriptive columns vary per layer, so everything
// beyond the overlap area is kept as an opaque property bag.
type Record struct {
	// AreaHa is the overlap with this specific object in hectares.
	AreaHa float64
	// Props holds the layer-specific descriptive columns as decoded.
	Props map[string]any
}

// UnmarshalJSON decodes a record, pulling out area_interseccion_ha and
// keeping the remaining columns verbatim. A missing or null area
// defaults to zero.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rec := Record{Props: raw}
	if v, ok := raw["area_interseccion_ha"]; ok {
		if f, ok := toFloat(v); ok {
			rec.AreaHa = f
		}
	}
	*r = rec
	return nil
}

// MarshalJSON re-emits the property bag with the overlap area included.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Props)+1)
	for k, v := range r.Props {
		out[k] = v
	}
	out["area_interseccion_ha"] = r.AreaHa
	return json.Marshal(out)
}

// String returns a string property, or empty string if absent or not a
// string.
func (r Record) String(key string) string {
	if v, ok := r.Props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// DPA is the administrative-division membership of a parcel. A parcel
// may span several divisions at each level.
type DPA struct {
	Region    []string `json:"Region"`
	Provincia []string `json:"Provincia"`
	Comuna    []string `json:"Comuna"`
}

// Report is the restriction report for one analyzed parcel, as returned
// by the analysis service. Producers are permissive about absent fields,
// so callers should Normalize before reading.
type Report struct {
	Estado       string                `json:"estado,omitempty"`
	AreaTotalHa  float64               `json:"area_total_ha"`
	DPA          DPA                   `json:"dpa"`
	Restrictions map[Category][]Record `json:"restricciones"`
}

// Normalize fills in what a permissive producer may omit: every category
// list defaults to empty and every DPA set defaults to empty. Safe to
// call more than once.
func (r *Report) Normalize() {
	if r.Restrictions == nil {
		r.Restrictions = make(map[Category][]Record, len(Categories))
	}
	for _, c := range Categories {
		if r.Restrictions[c] == nil {
			r.Restrictions[c] = []Record{}
		}
	}
	if r.DPA.Region == nil {
		r.DPA.Region = []string{}
	}
	if r.DPA.Provincia == nil {
		r.DPA.Provincia = []string{}
	}
	if r.DPA.Comuna == nil {
		r.DPA.Comuna = []string{}
	}
}

// Category returns the record list for a category, nil-safe.
func (r Report) Category(c Category) []Record {
	if r.Restrictions == nil {
		return nil
	}
	return r.Restrictions[c]
}
