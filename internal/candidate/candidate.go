// Package candidate turns accepted clusters into particle candidates and
// compares them with generator truth.
package candidate

import (
	"fmt"
	"math"

	"github.com/fcal-reco/beamcal/internal/cluster"
	"github.com/fcal-reco/beamcal/internal/geometry"
)

// UndefinedCharge marks a candidate whose charge is not measured.
const UndefinedCharge = 1e19

// Candidate is the record handed to output sinks.
type Candidate struct {
	Side     geometry.Side
	Energy   float64 // calibrated, GeV
	Theta    float64 // rad to the detector axis
	Phi      float64 // degrees in [0, 360), detector frame
	NPads    int
	Position [3]float64 // lab frame, mm
	Momentum [3]float64 // lab frame, GeV
	Mass     float64
	Charge   float64

	// IsReal is set when a truth particle lies within the matching
	// tolerance. WasMatched is set when truth was available for the event.
	IsReal     bool
	WasMatched bool
}

// ThetaMrad is the polar angle in mrad.
func (c Candidate) ThetaMrad() float64 { return c.Theta * 1000 }

func (c Candidate) String() string {
	return fmt.Sprintf("side=%v E=%.3f theta=%.2fmrad phi=%.1fdeg pads=%d real=%t",
		c.Side, c.Energy, c.ThetaMrad(), c.Phi, c.NPads, c.IsReal)
}

// Builder converts clusters with a fixed calibration factor.
type Builder struct {
	geo         geometry.Provider
	calibration float64
	halfAngle   float64
}

// NewBuilder returns a Builder. The calibration factor scales cluster
// energies to particle energies.
func NewBuilder(geo geometry.Provider, calibration float64) *Builder {
	return &Builder{geo: geo, calibration: calibration, halfAngle: HalfCrossingAngle(geo)}
}

// Build converts one cluster. The detector-frame direction is mirrored in
// z for the right side and then rotated into the lab frame.
func (b *Builder) Build(c cluster.Cluster) Candidate {
	energy := b.calibration * c.Energy
	phi := c.Phi * math.Pi / 180
	sinT, cosT := math.Sin(c.Theta), math.Cos(c.Theta)
	dir := [3]float64{sinT * math.Cos(phi), sinT * math.Sin(phi), cosT * c.Side.Sign()}

	z := b.geo.DistanceToOrigin(c.Side)
	var pos, mom [3]float64
	for i := range dir {
		pos[i] = z * dir[i]
		mom[i] = energy * dir[i]
	}
	return Candidate{
		Side:     c.Side,
		Energy:   energy,
		Theta:    c.Theta,
		Phi:      c.Phi,
		NPads:    c.NPads,
		Position: ToLab(pos, c.Side, b.halfAngle),
		Momentum: ToLab(mom, c.Side, b.halfAngle),
		Mass:     0,
		Charge:   UndefinedCharge,
	}
}

// BuildAll converts clusters in order.
func (b *Builder) BuildAll(clusters []cluster.Cluster) []Candidate {
	if len(clusters) == 0 {
		return nil
	}
	out := make([]Candidate, len(clusters))
	for i, c := range clusters {
		out[i] = b.Build(c)
	}
	return out
}
