package candidate

import (
	"math"

	"github.com/fcal-reco/beamcal/internal/geometry"
)

// MinTruthMomentum is the smallest generator momentum (GeV) considered
// reconstructable.
const MinTruthMomentum = 10.0

// Truth is a generator particle projected onto the calorimeter.
type Truth struct {
	PDG      int32
	Side     geometry.Side
	Theta    float64 // rad to the detector axis
	Phi      float64 // degrees in [0, 360)
	Momentum float64 // |p|, GeV
	Found    bool
}

// ThetaMrad is the polar angle in mrad.
func (t Truth) ThetaMrad() float64 { return t.Theta * 1000 }

// Acceptance decides whether a generator particle can reach the detector.
type Acceptance struct {
	halfAngle   float64
	maxTheta    float64
	minMomentum float64
}

type extent interface {
	OuterRadius() float64
}

// NewAcceptance accepts particles with |p| >= MinTruthMomentum whose polar
// angle stays within 1.1 times the outer detector edge.
func NewAcceptance(geo geometry.Provider) *Acceptance {
	var outer float64
	if e, ok := geo.(extent); ok {
		outer = e.OuterRadius()
	} else {
		side := geometry.Left
		outer = geo.PadRadius(side, geo.Rings(side)-1, 0)
	}
	return &Acceptance{
		halfAngle:   HalfCrossingAngle(geo),
		maxTheta:    1.1 * outer / geo.DistanceToOrigin(geometry.Left),
		minMomentum: MinTruthMomentum,
	}
}

// Project returns the truth record for a lab-frame momentum and whether it
// is inside the acceptance.
func (a *Acceptance) Project(pdg int32, p [3]float64) (Truth, bool) {
	abs := math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
	if abs < a.minMomentum {
		return Truth{}, false
	}
	theta, phi, side := Direction(p, a.halfAngle)
	if theta > a.maxTheta {
		return Truth{}, false
	}
	return Truth{PDG: pdg, Side: side, Theta: theta, Phi: phi, Momentum: abs}, true
}
