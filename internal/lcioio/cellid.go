// Package lcioio reads calorimeter events and background bunch crossings
// from LCIO files and writes reconstructed candidates back to LCIO.
package lcioio

import (
	"github.com/fcal-reco/beamcal/internal/config"
	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/reco"
)

// CellFields names the cell-ID fields holding the pad coordinates.
type CellFields struct {
	Side   string
	Layer  string
	Ring   string
	Sector string
	// LayerOffset is subtracted from the decoded layer.
	LayerOffset int
}

// DefaultCellFields matches the usual BeamCal encoding, which counts
// layers from 1.
var DefaultCellFields = CellFields{Side: "barrel", Layer: "layer", Ring: "cylinder", Sector: "phi", LayerOffset: 1}

// FieldsFromConfig returns the cell-ID field names configured in lc.
func FieldsFromConfig(lc *config.LCIOConfig) CellFields {
	return CellFields{
		Side:        lc.GetSideField(),
		Layer:       lc.GetLayerField(),
		Ring:        lc.GetRingField(),
		Sector:      lc.GetSectorField(),
		LayerOffset: lc.GetLayerOffset(),
	}
}

// SideFromCell maps the encoded side value: 1 is the left (+z) side, 2 and
// -1 the right side. Anything else is invalid and the hit will be dropped.
func SideFromCell(v int64) geometry.Side {
	switch v {
	case 1:
		return geometry.Left
	case 2, -1:
		return geometry.Right
	}
	return geometry.Side(-1)
}

// decodeHit builds a hit from a field lookup.
func (f CellFields) decodeHit(get func(field string) int64, energy float64) reco.Hit {
	return reco.Hit{
		Side:   SideFromCell(get(f.Side)),
		Layer:  int(get(f.Layer)) - f.LayerOffset,
		Ring:   int(get(f.Ring)),
		Sector: int(get(f.Sector)),
		Energy: energy,
	}
}
