package cluster

import (
	"fmt"

	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/padgrid"
)

// Tower is a connected set of accepted pads, before acceptance cuts.
type Tower struct {
	Side   geometry.Side
	Pads   []padgrid.Pad // ascending in grid order; Pads[0] is the seed
	Energy float64
	Radius float64 // energy-weighted centroid radius, mm
	Phi    float64 // energy-weighted centroid azimuth, degrees in [0, 360)
	Theta  float64 // polar angle of the centroid, rad
	Ring   int     // ring whose centre is nearest to Radius
}

// NPads is the number of pads in the tower.
func (t *Tower) NPads() int { return len(t.Pads) }

// Seed is the first pad of the tower in grid order.
func (t *Tower) Seed() padgrid.Pad { return t.Pads[0] }

// Cluster is an accepted tower.
type Cluster struct {
	Side   geometry.Side
	Energy float64
	NPads  int
	Theta  float64 // rad
	Phi    float64 // degrees in [0, 360)
	Radius float64
	Ring   int
	Seed   padgrid.Pad
}

// ThetaMrad is the polar angle in mrad.
func (c Cluster) ThetaMrad() float64 { return c.Theta * 1000 }

func (c Cluster) String() string {
	return fmt.Sprintf("side=%v E=%.3f pads=%d theta=%.2fmrad phi=%.1fdeg seed=%v",
		c.Side, c.Energy, c.NPads, c.ThetaMrad(), c.Phi, c.Seed)
}
