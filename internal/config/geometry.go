package config

import "github.com/fcal-reco/beamcal/internal/geometry"

var (
	defaultRingRadii      = []float64{20, 33, 46, 59, 72, 85, 98, 111, 124, 137, 150}
	defaultSectorsPerRing = []int{8, 8, 12, 12, 16, 16, 20, 20, 24, 24}
)

func (c *TuningConfig) geom() *GeometryConfig {
	if c.Geometry == nil {
		return &GeometryConfig{}
	}
	return c.Geometry
}

// GetLayers returns the number of layers per side.
func (g *GeometryConfig) GetLayers() int {
	if g.Layers == nil {
		return 40
	}
	return *g.Layers
}

// GetRingRadii returns the ring edges in mm.
func (g *GeometryConfig) GetRingRadii() []float64 {
	if len(g.RingRadii) == 0 {
		return defaultRingRadii
	}
	return g.RingRadii
}

// GetSectorsPerRing returns the azimuthal segmentation of each ring.
func (g *GeometryConfig) GetSectorsPerRing() []int {
	if len(g.SectorsPerRing) == 0 {
		return defaultSectorsPerRing
	}
	return g.SectorsPerRing
}

// GetZDistanceMM returns the distance from the interaction point to the
// front face.
func (g *GeometryConfig) GetZDistanceMM() float64 {
	if g.ZDistanceMM == nil {
		return 3595
	}
	return *g.ZDistanceMM
}

// GetCrossingAngleMrad returns the full beam crossing angle.
func (g *GeometryConfig) GetCrossingAngleMrad() float64 {
	if g.CrossingAngleMrad == nil {
		return 14
	}
	return *g.CrossingAngleMrad
}

func (g *GeometryConfig) GetPhiOffsetDeg() float64 {
	if g.PhiOffsetDeg == nil {
		return 0
	}
	return *g.PhiOffsetDeg
}

func (g *GeometryConfig) GetLayerThicknessMM() float64 {
	if g.LayerThicknessMM == nil {
		return 4
	}
	return *g.LayerThicknessMM
}

// GeometryParams builds the pad layout.
func (c *TuningConfig) GeometryParams() geometry.Params {
	g := c.geom()
	return geometry.Params{
		Layers:            g.GetLayers(),
		RingEdges:         g.GetRingRadii(),
		SectorsPerRing:    g.GetSectorsPerRing(),
		ZDistance:         g.GetZDistanceMM(),
		CrossingAngleMrad: g.GetCrossingAngleMrad(),
		PhiOffsetDeg:      g.GetPhiOffsetDeg(),
	}
}

// NewGeometry builds a validated geometry from the configuration.
func (c *TuningConfig) NewGeometry() (*geometry.Cached, error) {
	return geometry.NewCached(c.GeometryParams())
}
