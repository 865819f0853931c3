// Package export serializes the parcel session for download: a GeoJSON
// feature collection with the enriched display properties, and a flat
// delimited table with one row per parcel.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/andesmap/predial/internal/overlay"
	"github.com/andesmap/predial/internal/report"
	"github.com/andesmap/predial/internal/session"
)

// GeoJSON renders the session as a feature collection carrying the same
// enriched property set the map overlay shows.
func GeoJSON(records []session.Parcel, cat report.Catalog) ([]byte, error) {
	fc := overlay.ParcelCollection(records, cat)
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode session geojson: %w", err)
	}
	return data, nil
}

// csvHeader matches the enriched property set, one column per property.
var csvHeader = []string{
	"id",
	"nombre",
	"regiones",
	"provincias",
	"comunas",
	"area_total_ha",
	"area_restringida_ha",
	"area_libre_ha",
	"porcentaje_restringido",
	"tiene_restricciones",
}

// CSV writes the session as a delimited table, one row per parcel.
func CSV(w io.Writer, records []session.Parcel, cat report.Catalog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, p := range records {
		sum := report.Summarize(p.Report, cat)
		row := []string{
			fmt.Sprintf("%d", p.ID),
			p.Name,
			strings.Join(p.Report.DPA.Region, ", "),
			strings.Join(p.Report.DPA.Provincia, ", "),
			strings.Join(p.Report.DPA.Comuna, ", "),
			formatHa(sum.AreaTotalHa),
			formatHa(sum.TotalRestricted),
			formatHa(sum.FreeArea),
			formatPct(sum.PercentRestricted),
			restrictionLabel(sum.HasRestrictions),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatHa(v float64) string {
	return fmt.Sprintf("%.2f", report.RoundHa(v))
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.1f", report.RoundPct(v))
}

func restrictionLabel(has bool) string {
	if has {
		return "Sí"
	}
	return "No"
}
