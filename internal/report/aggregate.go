package report

import "math"

// UnknownLabel is used when neither the record nor the catalog can name
// a formation or piso.
const UnknownLabel = "desconocido"

// Summary holds the metrics derived from one restriction report. It is
// recomputed on demand and never stored alongside the report, so the
// report stays the single source of truth.
type Summary struct {
	AreaTotalHa float64
	// CategoryAreas is the summed overlap per category, unclamped.
	CategoryAreas map[Category]float64
	// TotalRestricted is the non-ecosystem overlap sum, clamped to
	// [0, AreaTotalHa]. Intersected polygons may overlap each other
	// inside the parcel, so the raw sum can exceed the parcel area.
	TotalRestricted   float64
	FreeArea          float64
	PercentRestricted float64
	// HasRestrictions is true when any category matched at all, even if
	// the summed overlap rounds to zero.
	HasRestrictions bool
	Ecosystems      []FormationGroup
}

// FormationGroup aggregates the ecosystem records of one formation.
type FormationGroup struct {
	Formation string           `json:"formacion"`
	AreaHa    float64          `json:"area_ha"`
	Entries   []FormationEntry `json:"pisos"`
}

// FormationEntry is one unique (piso, code) combination within a
// formation. Duplicate combinations merge by area addition.
type FormationEntry struct {
	Piso   string  `json:"piso"`
	Code   string  `json:"codigo"`
	AreaHa float64 `json:"area_ha"`
}

// Summarize derives display metrics from one report. It is pure: the
// report is not modified and the same input always yields the same
// output. The catalog may be nil.
func Summarize(rep Report, cat Catalog) Summary {
	sum := Summary{
		AreaTotalHa:   rep.AreaTotalHa,
		CategoryAreas: make(map[Category]float64, len(Categories)),
	}

	for _, c := range Categories {
		var total float64
		for _, rec := range rep.Category(c) {
			total += rec.AreaHa
		}
		sum.CategoryAreas[c] = total
		if len(rep.Category(c)) > 0 {
			sum.HasRestrictions = true
		}
	}

	var restricted float64
	for _, c := range RestrictedCategories {
		restricted += sum.CategoryAreas[c]
	}
	sum.TotalRestricted = clamp(restricted, 0, rep.AreaTotalHa)
	sum.FreeArea = math.Max(0, rep.AreaTotalHa-sum.TotalRestricted)
	if rep.AreaTotalHa > 0 {
		sum.PercentRestricted = sum.TotalRestricted / rep.AreaTotalHa * 100
	}
	if sum.TotalRestricted > 0 {
		sum.HasRestrictions = true
	}

	sum.Ecosystems = groupEcosystems(rep.Category(Ecosistemas), cat)
	return sum
}

// groupEcosystems builds the per-formation grouping. Group and entry
// order follow first appearance in the record list; per-triple totals
// are independent of record order.
func groupEcosystems(records []Record, cat Catalog) []FormationGroup {
	var groups []FormationGroup
	index := make(map[string]int)

	for _, rec := range records {
		formation, piso := ecosystemLabels(rec, cat)
		code := rec.String("codigo")

		gi, ok := index[formation]
		if !ok {
			gi = len(groups)
			index[formation] = gi
			groups = append(groups, FormationGroup{Formation: formation})
		}
		groups[gi].AreaHa += rec.AreaHa

		merged := false
		for i, e := range groups[gi].Entries {
			if e.Piso == piso && e.Code == code {
				groups[gi].Entries[i].AreaHa += rec.AreaHa
				merged = true
				break
			}
		}
		if !merged {
			groups[gi].Entries = append(groups[gi].Entries, FormationEntry{
				Piso:   piso,
				Code:   code,
				AreaHa: rec.AreaHa,
			})
		}
	}
	return groups
}

// ecosystemLabels resolves the formation and piso labels for a record,
// preferring the catalog entry for its code and falling back to the
// record's own columns.
func ecosystemLabels(rec Record, cat Catalog) (formation, piso string) {
	formation = rec.String("formacion")
	piso = rec.String("piso")
	if code := rec.String("codigo"); code != "" && cat != nil {
		if entry, ok := cat[code]; ok {
			if entry.Formation != "" {
				formation = entry.Formation
			}
			if entry.Piso != "" {
				piso = entry.Piso
			}
		}
	}
	if formation == "" {
		formation = UnknownLabel
	}
	if piso == "" {
		piso = UnknownLabel
	}
	return formation, piso
}

// RoundHa rounds a hectare figure for display, two decimal places.
// Derived values are computed from unrounded inputs so repeated
// aggregation does not compound rounding error.
func RoundHa(v float64) float64 {
	return math.Round(v*100) / 100
}

// RoundPct rounds a percentage for display, one decimal place.
func RoundPct(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
