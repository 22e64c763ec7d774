// Package geometry describes the segmented forward calorimeter: two mirrored
// sides, each made of layers of concentric rings split into azimuthal sectors.
//
// Provider is the read-only view consumed by the reconstruction. Cached is the
// in-process implementation built from the tuning file.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Side identifies one detector half. The two halves are mirror images along
// the beam axis.
type Side int

const (
	Left Side = iota
	Right
)

// Sides lists both detector halves in processing order.
var Sides = [...]Side{Left, Right}

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Valid reports whether s is Left or Right.
func (s Side) Valid() bool { return s == Left || s == Right }

// Sign is +1 for the left side (positive z) and -1 for the right side.
func (s Side) Sign() float64 {
	if s == Right {
		return -1
	}
	return 1
}

// Provider answers geometry questions. All methods are pure.
type Provider interface {
	Layers(side Side) int
	Rings(side Side) int
	Sectors(side Side, ring int) int
	// PadRadius is the radius of the pad centre in mm.
	PadRadius(side Side, ring, layer int) float64
	// PadPhi is the azimuth of the pad centre in degrees, in [0, 360).
	PadPhi(side Side, ring, sector int) float64
	// DistanceToOrigin is the distance of the front face from the
	// interaction point along the detector axis, in mm.
	DistanceToOrigin(side Side) float64
	// CrossingAngle is the full beam crossing angle in mrad.
	CrossingAngle() float64
}

// ErrInvalidGeometry is returned by NewCached for unusable parameters.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Params configures a Cached geometry. Both sides share the same layout.
type Params struct {
	Layers            int       // layers per side
	RingEdges         []float64 // len = rings+1, strictly increasing, mm
	SectorsPerRing    []int     // len = rings
	ZDistance         float64   // mm from the interaction point to the front face
	CrossingAngleMrad float64
	PhiOffsetDeg      float64 // azimuth of the lower edge of sector 0
}

// Cached is a Provider with all derived quantities computed once.
type Cached struct {
	p       Params
	centres []float64
	phiStep []float64
}

// NewCached validates p and precomputes ring centres and sector widths.
func NewCached(p Params) (*Cached, error) {
	if p.Layers <= 0 {
		return nil, fmt.Errorf("%w: layers must be positive, got %d", ErrInvalidGeometry, p.Layers)
	}
	rings := len(p.SectorsPerRing)
	if rings == 0 {
		return nil, fmt.Errorf("%w: no rings configured", ErrInvalidGeometry)
	}
	if len(p.RingEdges) != rings+1 {
		return nil, fmt.Errorf("%w: need %d ring edges for %d rings, got %d",
			ErrInvalidGeometry, rings+1, rings, len(p.RingEdges))
	}
	for i := 1; i < len(p.RingEdges); i++ {
		if p.RingEdges[i] <= p.RingEdges[i-1] {
			return nil, fmt.Errorf("%w: ring edges must be strictly increasing at index %d", ErrInvalidGeometry, i)
		}
	}
	if p.ZDistance <= 0 {
		return nil, fmt.Errorf("%w: z distance must be positive, got %f", ErrInvalidGeometry, p.ZDistance)
	}

	c := &Cached{
		p:       p,
		centres: make([]float64, rings),
		phiStep: make([]float64, rings),
	}
	for r, n := range p.SectorsPerRing {
		if n <= 0 {
			return nil, fmt.Errorf("%w: ring %d has %d sectors", ErrInvalidGeometry, r, n)
		}
		c.centres[r] = 0.5 * (p.RingEdges[r] + p.RingEdges[r+1])
		c.phiStep[r] = 360.0 / float64(n)
	}
	return c, nil
}

func (c *Cached) Layers(Side) int { return c.p.Layers }
func (c *Cached) Rings(Side) int  { return len(c.p.SectorsPerRing) }

func (c *Cached) Sectors(_ Side, ring int) int {
	if ring < 0 || ring >= len(c.p.SectorsPerRing) {
		return 0
	}
	return c.p.SectorsPerRing[ring]
}

func (c *Cached) PadRadius(_ Side, ring, _ int) float64 {
	return c.centres[ring]
}

func (c *Cached) PadPhi(_ Side, ring, sector int) float64 {
	return NormalizeDegrees(c.p.PhiOffsetDeg + (float64(sector)+0.5)*c.phiStep[ring])
}

func (c *Cached) DistanceToOrigin(Side) float64 { return c.p.ZDistance }
func (c *Cached) CrossingAngle() float64        { return c.p.CrossingAngleMrad }

// InnerRadius and OuterRadius bound the instrumented area.
func (c *Cached) InnerRadius() float64 { return c.p.RingEdges[0] }
func (c *Cached) OuterRadius() float64 { return c.p.RingEdges[len(c.p.RingEdges)-1] }

// NormalizeDegrees maps an angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360.0)
	if deg < 0 {
		deg += 360.0
	}
	if deg >= 360.0 {
		deg = 0
	}
	return deg
}
