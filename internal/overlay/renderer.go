// Package overlay projects the parcel session onto the rendering
// engine: one geometry layer for the accumulated parcels plus an
// independent visibility flag per reference layer.
package overlay

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Renderer is the boundary to the rendering engine. The synchronizer
// only ever calls these operations; tile compositing and vector
// drawing live on the other side.
type Renderer interface {
	SetLayerData(layerID string, fc *geojson.FeatureCollection)
	SetLayerVisibility(layerID string, visible bool)
	FitBounds(b orb.Bound)
}

// Reference layer IDs. The map may introduce further IDs at runtime;
// the synchronizer accepts any.
const (
	LayerAreasProtegidas    = "areas_protegidas"
	LayerSitiosPrioritarios = "sitios_prioritarios"
	LayerEcosistemas        = "ecosistemas"
	LayerRegiones           = "regiones"
	LayerProvincias         = "provincias"
	LayerComunas            = "comunas"
	LayerTerrenos           = "terrenos"
)

// DefaultVisibility is the flag state at session start. Everything is
// hidden; the parcels layer switches on as soon as a parcel arrives or
// a drawing session starts.
func DefaultVisibility() map[string]bool {
	return map[string]bool{
		LayerAreasProtegidas:    false,
		LayerSitiosPrioritarios: false,
		LayerEcosistemas:        false,
		LayerRegiones:           false,
		LayerProvincias:         false,
		LayerComunas:            false,
		LayerTerrenos:           false,
	}
}
