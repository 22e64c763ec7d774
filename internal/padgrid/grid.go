// Package padgrid holds per-pad energy sums for one calorimeter side.
//
// A Grid is dense: every valid (layer, ring, sector) has a slot, and the slot
// order is layer-major, then ring, then sector. Iteration follows the same
// order so scans over a grid are reproducible.
package padgrid

import (
	"fmt"
	"iter"

	"github.com/fcal-reco/beamcal/internal/geometry"
)

// Pad addresses one cell within a side.
type Pad struct {
	Layer  int
	Ring   int
	Sector int
}

func (p Pad) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.Layer, p.Ring, p.Sector)
}

// Op selects the elementwise operation used by Combine.
type Op int

const (
	Sum Op = iota
	Difference
)

// Shape is the segmentation of a grid. Two grids can be combined only if
// their shapes and sides are equal.
type Shape struct {
	Layers  int
	Sectors []int // sectors per ring
}

// Equal reports whether two segmentations match.
func (s Shape) Equal(o Shape) bool {
	if s.Layers != o.Layers || len(s.Sectors) != len(o.Sectors) {
		return false
	}
	for i := range s.Sectors {
		if s.Sectors[i] != o.Sectors[i] {
			return false
		}
	}
	return true
}

// Grid is the energy per pad for one side. It is not safe for concurrent
// mutation; each event owns its own grids.
type Grid struct {
	side       geometry.Side
	shape      Shape
	ringOffset []int // slot offset of each ring inside one layer
	perLayer   int
	energy     []float64
}

// New creates an empty grid for side using the segmentation from geo.
func New(geo geometry.Provider, side geometry.Side) *Grid {
	rings := geo.Rings(side)
	sectors := make([]int, rings)
	for r := 0; r < rings; r++ {
		sectors[r] = geo.Sectors(side, r)
	}
	return NewWithShape(side, Shape{Layers: geo.Layers(side), Sectors: sectors})
}

// NewWithShape creates an empty grid with an explicit segmentation.
func NewWithShape(side geometry.Side, shape Shape) *Grid {
	g := &Grid{
		side:       side,
		shape:      Shape{Layers: shape.Layers, Sectors: append([]int(nil), shape.Sectors...)},
		ringOffset: make([]int, len(shape.Sectors)),
	}
	for r, n := range shape.Sectors {
		g.ringOffset[r] = g.perLayer
		g.perLayer += n
	}
	g.energy = make([]float64, g.perLayer*shape.Layers)
	return g
}

func (g *Grid) Side() geometry.Side { return g.side }

// Shape returns a copy of the grid segmentation.
func (g *Grid) Shape() Shape {
	return Shape{Layers: g.shape.Layers, Sectors: append([]int(nil), g.shape.Sectors...)}
}

// Len is the number of pads in the grid.
func (g *Grid) Len() int { return len(g.energy) }

// Index returns the slot of a pad and whether the pad exists.
func (g *Grid) Index(layer, ring, sector int) (int, bool) {
	if layer < 0 || layer >= g.shape.Layers || ring < 0 || ring >= len(g.shape.Sectors) {
		return 0, false
	}
	if sector < 0 || sector >= g.shape.Sectors[ring] {
		return 0, false
	}
	return layer*g.perLayer + g.ringOffset[ring] + sector, true
}

// PadAt is the inverse of Index.
func (g *Grid) PadAt(idx int) Pad {
	layer := idx / g.perLayer
	rest := idx % g.perLayer
	ring := len(g.ringOffset) - 1
	for ring > 0 && g.ringOffset[ring] > rest {
		ring--
	}
	return Pad{Layer: layer, Ring: ring, Sector: rest - g.ringOffset[ring]}
}

// AddEnergy accumulates e into a pad.
func (g *Grid) AddEnergy(layer, ring, sector int, e float64) error {
	idx, ok := g.Index(layer, ring, sector)
	if !ok {
		return &OutOfRangeError{Side: g.side, Layer: layer, Ring: ring, Sector: sector}
	}
	g.energy[idx] += e
	return nil
}

// Energy returns the accumulated energy of a pad. Untouched pads read as 0.
// Asking for a pad outside the geometry is a programming error and panics.
func (g *Grid) Energy(layer, ring, sector int) float64 {
	idx, ok := g.Index(layer, ring, sector)
	if !ok {
		panic(&OutOfRangeError{Side: g.side, Layer: layer, Ring: ring, Sector: sector})
	}
	return g.energy[idx]
}

// EnergyAt reads a slot obtained from Index.
func (g *Grid) EnergyAt(idx int) float64 { return g.energy[idx] }

// Combine applies op elementwise with other, storing the result in g.
func (g *Grid) Combine(other *Grid, op Op) error {
	if g.side != other.side || !g.shape.Equal(other.shape) {
		return fmt.Errorf("%w: %v/%d layers/%d rings vs %v/%d layers/%d rings", ErrGeometryMismatch,
			g.side, g.shape.Layers, len(g.shape.Sectors),
			other.side, other.shape.Layers, len(other.shape.Sectors))
	}
	switch op {
	case Sum:
		for i, e := range other.energy {
			g.energy[i] += e
		}
	case Difference:
		for i, e := range other.energy {
			g.energy[i] -= e
		}
	default:
		return fmt.Errorf("unknown combine op %d", op)
	}
	return nil
}

// Scale multiplies every pad by f.
func (g *Grid) Scale(f float64) {
	for i := range g.energy {
		g.energy[i] *= f
	}
}

// Reset zeroes every pad, keeping the allocation.
func (g *Grid) Reset() {
	clear(g.energy)
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := NewWithShape(g.side, g.shape)
	copy(c.energy, g.energy)
	return c
}

// Total is the sum over all pads.
func (g *Grid) Total() float64 {
	var t float64
	for _, e := range g.energy {
		t += e
	}
	return t
}

// Values returns a copy of the slot values in iteration order.
func (g *Grid) Values() []float64 {
	return append([]float64(nil), g.energy...)
}

// SetValues replaces all slot values. vals must have exactly Len entries.
func (g *Grid) SetValues(vals []float64) error {
	if len(vals) != len(g.energy) {
		return fmt.Errorf("%w: %d values for %d pads", ErrGeometryMismatch, len(vals), len(g.energy))
	}
	copy(g.energy, vals)
	return nil
}

// All yields every pad with its energy, layer-major, then ring, then sector.
func (g *Grid) All() iter.Seq2[Pad, float64] {
	return func(yield func(Pad, float64) bool) {
		idx := 0
		for l := 0; l < g.shape.Layers; l++ {
			for r, n := range g.shape.Sectors {
				for s := 0; s < n; s++ {
					if !yield(Pad{Layer: l, Ring: r, Sector: s}, g.energy[idx]) {
						return
					}
					idx++
				}
			}
		}
	}
}

// Equal reports whether two grids have the same side, shape and values.
func (g *Grid) Equal(o *Grid) bool {
	if g.side != o.side || !g.shape.Equal(o.shape) {
		return false
	}
	for i := range g.energy {
		if g.energy[i] != o.energy[i] {
			return false
		}
	}
	return true
}
