package overlay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andesmap/predial/internal/report"
	"github.com/andesmap/predial/internal/session"
)

// fakeRenderer records every call in order.
type fakeRenderer struct {
	mu         sync.Mutex
	layerData  map[string]*geojson.FeatureCollection
	visibility []string
	visible    map[string]bool
	fits       []orb.Bound
	dataCalls  int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		layerData: make(map[string]*geojson.FeatureCollection),
		visible:   make(map[string]bool),
	}
}

func (r *fakeRenderer) SetLayerData(id string, fc *geojson.FeatureCollection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layerData[id] = fc
	r.dataCalls++
}

func (r *fakeRenderer) SetLayerVisibility(id string, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visibility = append(r.visibility, id)
	r.visible[id] = visible
}

func (r *fakeRenderer) FitBounds(b orb.Bound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fits = append(r.fits, b)
}

type stubAnalyzer struct{ rep report.Report }

func (a stubAnalyzer) Analyze(ctx context.Context, f *geojson.Feature) (report.Report, error) {
	rep := a.rep
	rep.Normalize()
	return rep, nil
}

func storeWith(t *testing.T, rep report.Report, n int) *session.Store {
	t.Helper()
	s := session.NewStore(stubAnalyzer{rep: rep}, nil)
	feats := make([]*geojson.Feature, n)
	for i := range feats {
		feats[i] = geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
	}
	_, err := s.Append(context.Background(), feats...)
	require.NoError(t, err)
	return s
}

func TestSyncIsIdempotent(t *testing.T) {
	rep := report.Report{AreaTotalHa: 10}
	store := storeWith(t, rep, 2)
	r := newFakeRenderer()
	s := NewSynchronizer(store, nil, r)
	s.Ready()

	s.Sync()
	first := r.layerData[LayerTerrenos]
	s.Sync()
	second := r.layerData[LayerTerrenos]

	f1, _ := first.MarshalJSON()
	f2, _ := second.MarshalJSON()
	assert.Equal(t, string(f1), string(f2), "same store state must render identically")
}

func TestSyncUsesRecordIDsForFeatureIdentity(t *testing.T) {
	store := storeWith(t, report.Report{AreaTotalHa: 3}, 3)
	r := newFakeRenderer()
	s := NewSynchronizer(store, nil, r)
	s.Ready()
	s.Sync()

	fc := r.layerData[LayerTerrenos]
	require.Len(t, fc.Features, 3)
	ids := map[any]bool{}
	for i, f := range fc.Features {
		require.NotNil(t, f.ID, "feature %d has no id", i)
		assert.False(t, ids[f.ID], "duplicate feature id %v", f.ID)
		ids[f.ID] = true
	}
}

func TestSyncEnrichesProperties(t *testing.T) {
	rep := report.Report{
		AreaTotalHa: 10,
		DPA: report.DPA{
			Region: []string{"Los Lagos"},
			Comuna: []string{"Ancud", "Quemchi"},
		},
		Restrictions: map[report.Category][]report.Record{
			report.AreasProtegidas: {{AreaHa: 2.345}},
		},
	}
	store := storeWith(t, rep, 1)
	r := newFakeRenderer()
	s := NewSynchronizer(store, nil, r)
	s.Ready()
	s.Sync()

	f := r.layerData[LayerTerrenos].Features[0]
	assert.Equal(t, "Terreno 1", f.Properties["nombre"])
	assert.Equal(t, "Los Lagos", f.Properties["regiones"])
	assert.Equal(t, "Ancud, Quemchi", f.Properties["comunas"])
	assert.Equal(t, 2.35, f.Properties["area_restringida_ha"], "displayed hectares round to 2 dp")
	assert.Equal(t, 23.5, f.Properties["porcentaje_restringido"])
	assert.Equal(t, "Sí", f.Properties["tiene_restricciones"])
}

func TestDeferredUntilReady(t *testing.T) {
	store := storeWith(t, report.Report{AreaTotalHa: 1}, 1)
	r := newFakeRenderer()
	s := NewSynchronizer(store, nil, r)

	s.Sync()
	s.SetVisible(LayerEcosistemas, true)
	assert.Zero(t, r.dataCalls, "nothing may reach the renderer before ready")
	assert.Empty(t, r.visibility)

	s.Ready()
	assert.Equal(t, 1, r.dataCalls, "deferred sync must flush on ready")
	assert.Equal(t, []string{LayerEcosistemas}, r.visibility)

	// Ready is one-time; a second signal must not replay anything.
	s.Ready()
	assert.Equal(t, 1, r.dataCalls)
}

func TestVisibilityTogglesAreIndependent(t *testing.T) {
	store := storeWith(t, report.Report{}, 1)
	r := newFakeRenderer()
	s := NewSynchronizer(store, nil, r)
	s.Ready()

	s.SetVisible(LayerRegiones, true)
	s.SetVisible(LayerComunas, true)
	s.SetVisible(LayerRegiones, false)

	flags := s.Visible()
	assert.False(t, flags[LayerRegiones])
	assert.True(t, flags[LayerComunas])
	assert.False(t, flags[LayerEcosistemas])
}

func TestDynamicLayerIDsAccepted(t *testing.T) {
	store := storeWith(t, report.Report{}, 1)
	s := NewSynchronizer(store, nil, newFakeRenderer())
	s.Ready()

	s.SetVisible("areas_marinas", true)
	assert.True(t, s.Visible()["areas_marinas"])
}

func TestFitToUnionsBounds(t *testing.T) {
	store := storeWith(t, report.Report{}, 1)
	r := newFakeRenderer()
	s := NewSynchronizer(store, nil, r)
	s.Ready()

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{0, 0}))
	fc.Append(geojson.NewFeature(orb.Point{10, 5}))
	s.FitTo(fc)

	require.Len(t, r.fits, 1)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 5}}, r.fits[0])

	// Empty collections are ignored.
	s.FitTo(geojson.NewFeatureCollection())
	assert.Len(t, r.fits, 1)
}

func TestWatchResyncsOnStoreEvents(t *testing.T) {
	bus := session.NewEventBus()
	store := session.NewStore(stubAnalyzer{}, bus)
	r := newFakeRenderer()
	s := NewSynchronizer(store, nil, r)
	s.Ready()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx, bus)
	time.Sleep(10 * time.Millisecond)

	_, err := store.Append(context.Background(), geojson.NewFeature(orb.Point{0, 0}))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.dataCalls > 0 && r.visible[LayerTerrenos]
	}, time.Second, 10*time.Millisecond, "append must force the parcels layer on and resync")
}

func TestRegisterProtocolRunsOnce(t *testing.T) {
	calls := 0
	err := RegisterProtocol("test-proto", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	err = RegisterProtocol("test-proto", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// A failing install is remembered, not retried.
	boom := errors.New("boom")
	_ = RegisterProtocol("bad-proto", func() error { return boom })
	err = RegisterProtocol("bad-proto", func() error { return nil })
	assert.ErrorIs(t, err, boom)
}
