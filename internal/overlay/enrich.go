package overlay

import (
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/andesmap/predial/internal/report"
	"github.com/andesmap/predial/internal/session"
)

// ParcelFeature projects one parcel record into a renderable feature.
// The derived metrics are computed fresh from the record's report on
// every call; nothing is cached on the record. Feature identity comes
// from the record ID so re-renders stay stable.
func ParcelFeature(p session.Parcel, cat report.Catalog) *geojson.Feature {
	sum := report.Summarize(p.Report, cat)

	f := geojson.NewFeature(p.Feature.Geometry)
	f.ID = p.ID
	f.Properties = geojson.Properties{
		"id":                     p.ID,
		"nombre":                 p.Name,
		"regiones":               strings.Join(p.Report.DPA.Region, ", "),
		"provincias":             strings.Join(p.Report.DPA.Provincia, ", "),
		"comunas":                strings.Join(p.Report.DPA.Comuna, ", "),
		"area_total_ha":          report.RoundHa(sum.AreaTotalHa),
		"area_restringida_ha":    report.RoundHa(sum.TotalRestricted),
		"area_libre_ha":          report.RoundHa(sum.FreeArea),
		"porcentaje_restringido": report.RoundPct(sum.PercentRestricted),
		"tiene_restricciones":    restrictionLabel(sum.HasRestrictions),
	}
	return f
}

// ParcelCollection projects the whole session in arrival order.
func ParcelCollection(records []session.Parcel, cat report.Catalog) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range records {
		fc.Append(ParcelFeature(p, cat))
	}
	return fc
}

func restrictionLabel(has bool) string {
	if has {
		return "Sí"
	}
	return "No"
}
