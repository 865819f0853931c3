package report

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(area float64, props map[string]any) Record {
	if props == nil {
		props = map[string]any{}
	}
	return Record{AreaHa: area, Props: props}
}

func TestSummarizeClampsToParcelArea(t *testing.T) {
	rep := Report{
		AreaTotalHa: 10,
		Restrictions: map[Category][]Record{
			AreasProtegidas:    {rec(4, nil)},
			SitiosPrioritarios: {rec(8, nil)},
		},
	}
	rep.Normalize()

	sum := Summarize(rep, nil)
	assert.Equal(t, 10.0, sum.TotalRestricted, "raw sum 12 must clamp to parcel area")
	assert.Equal(t, 0.0, sum.FreeArea)
	assert.Equal(t, 100.0, sum.PercentRestricted)
	assert.True(t, sum.HasRestrictions)
}

func TestSummarizeEmptyReport(t *testing.T) {
	rep := Report{AreaTotalHa: 5}
	rep.Normalize()

	sum := Summarize(rep, nil)
	assert.False(t, sum.HasRestrictions)
	assert.Equal(t, 0.0, sum.TotalRestricted)
	assert.Equal(t, 0.0, sum.PercentRestricted)
	assert.Equal(t, 5.0, sum.FreeArea)
}

func TestSummarizeZeroAreaParcel(t *testing.T) {
	rep := Report{
		AreaTotalHa: 0,
		Restrictions: map[Category][]Record{
			AreasProtegidas: {rec(3, nil)},
		},
	}
	sum := Summarize(rep, nil)
	assert.Equal(t, 0.0, sum.TotalRestricted)
	assert.Equal(t, 0.0, sum.PercentRestricted)
	// A match with zero summed area still counts as restricted for
	// display branching.
	assert.True(t, sum.HasRestrictions)
}

func TestSummarizeEcosystemsExcludedFromRestrictedTotal(t *testing.T) {
	rep := Report{
		AreaTotalHa: 20,
		Restrictions: map[Category][]Record{
			Ecosistemas:     {rec(15, map[string]any{"formacion": "Bosque caducifolio"})},
			AreasProtegidas: {rec(2, nil)},
		},
	}
	sum := Summarize(rep, nil)
	assert.Equal(t, 2.0, sum.TotalRestricted)
	assert.Equal(t, 18.0, sum.FreeArea)
	assert.Equal(t, 15.0, sum.CategoryAreas[Ecosistemas])
}

func TestSummarizeHasRestrictionsOnRecordsOnly(t *testing.T) {
	// Record present but overlap sums to zero: still a restriction hit.
	rep := Report{
		AreaTotalHa: 5,
		Restrictions: map[Category][]Record{
			ECMPO: {rec(0, nil)},
		},
	}
	sum := Summarize(rep, nil)
	assert.Equal(t, 0.0, sum.TotalRestricted)
	assert.True(t, sum.HasRestrictions)
}

func ecoRec(area float64, formation, piso, code string) Record {
	return rec(area, map[string]any{
		"formacion": formation,
		"piso":      piso,
		"codigo":    code,
	})
}

func TestGroupEcosystemsMergesDuplicateTriples(t *testing.T) {
	records := []Record{
		ecoRec(1.5, "Bosque esclerofilo", "Piso 1", "BE-1"),
		ecoRec(2.5, "Bosque esclerofilo", "Piso 1", "BE-1"),
		ecoRec(3.0, "Bosque esclerofilo", "Piso 2", "BE-2"),
		ecoRec(4.0, "Matorral desertico", "Piso 1", "MD-1"),
	}
	groups := groupEcosystems(records, nil)
	require.Len(t, groups, 2)

	be := groups[0]
	assert.Equal(t, "Bosque esclerofilo", be.Formation)
	assert.Equal(t, 7.0, be.AreaHa)
	require.Len(t, be.Entries, 2)
	assert.Equal(t, FormationEntry{Piso: "Piso 1", Code: "BE-1", AreaHa: 4.0}, be.Entries[0])
	assert.Equal(t, FormationEntry{Piso: "Piso 2", Code: "BE-2", AreaHa: 3.0}, be.Entries[1])

	assert.Equal(t, "Matorral desertico", groups[1].Formation)
	assert.Equal(t, 4.0, groups[1].AreaHa)
}

func TestGroupEcosystemsOrderIndependentTotals(t *testing.T) {
	records := []Record{
		ecoRec(1, "A", "p1", "c1"),
		ecoRec(2, "A", "p1", "c1"),
		ecoRec(3, "A", "p2", "c2"),
		ecoRec(4, "B", "p1", "c3"),
		ecoRec(5, "B", "p1", "c3"),
	}

	type triple struct{ f, p, c string }
	totals := func(groups []FormationGroup) map[triple]float64 {
		out := make(map[triple]float64)
		for _, g := range groups {
			for _, e := range g.Entries {
				out[triple{g.Formation, e.Piso, e.Code}] = e.AreaHa
			}
		}
		return out
	}

	want := totals(groupEcosystems(records, nil))
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := append([]Record(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.Equal(t, want, totals(groupEcosystems(shuffled, nil)))
	}
}

func TestGroupEcosystemsCatalogFallback(t *testing.T) {
	cat := Catalog{
		"BE-1": {Formation: "Bosque esclerofilo mediterraneo", Piso: "Piso andino"},
	}
	records := []Record{
		ecoRec(1, "Bosque esclerofilo", "Piso 1", "BE-1"), // catalog wins
		ecoRec(2, "Matorral", "Piso 3", "XX-9"),           // unknown code, record labels kept
		ecoRec(3, "", "", ""),                             // nothing known at all
	}
	groups := groupEcosystems(records, cat)
	require.Len(t, groups, 3)
	assert.Equal(t, "Bosque esclerofilo mediterraneo", groups[0].Formation)
	assert.Equal(t, "Piso andino", groups[0].Entries[0].Piso)
	assert.Equal(t, "Matorral", groups[1].Formation)
	assert.Equal(t, UnknownLabel, groups[2].Formation)
	assert.Equal(t, UnknownLabel, groups[2].Entries[0].Piso)
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 1.23, RoundHa(1.2349))
	assert.Equal(t, 1.24, RoundHa(1.2351))
	assert.Equal(t, 99.9, RoundPct(99.94))
	assert.Equal(t, 100.0, RoundPct(99.96))
}

func TestSummarizeDoesNotRound(t *testing.T) {
	rep := Report{
		AreaTotalHa: 1,
		Restrictions: map[Category][]Record{
			AreasProtegidas: {rec(0.333333, nil), rec(0.333333, nil)},
		},
	}
	sum := Summarize(rep, nil)
	// Stored values stay unrounded; rounding happens only at display.
	assert.InDelta(t, 0.666666, sum.TotalRestricted, 1e-9)
	assert.Equal(t, 0.67, RoundHa(sum.TotalRestricted))
}
