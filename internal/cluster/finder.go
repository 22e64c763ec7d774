package cluster

import (
	"fmt"
	"math"

	"github.com/fcal-reco/beamcal/internal/background"
	"github.com/fcal-reco/beamcal/internal/cuts"
	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/monitoring"
	"github.com/fcal-reco/beamcal/internal/padgrid"
)

// Finder runs the tower search. It holds no per-event state and can be
// shared between goroutines.
type Finder struct {
	geo    geometry.Provider
	policy *cuts.Policy
}

// NewFinder returns a Finder using geo for pad positions and policy for
// pad and cluster acceptance.
func NewFinder(geo geometry.Provider, policy *cuts.Policy) *Finder {
	return &Finder{geo: geo, policy: policy}
}

// Find returns the accepted clusters of one side, ordered by the grid
// position of each tower's seed pad.
func (f *Finder) Find(signal *padgrid.Grid, bg background.Snapshot) ([]Cluster, error) {
	towers, err := f.Towers(signal, bg)
	if err != nil {
		return nil, err
	}
	var out []Cluster
	for i := range towers {
		t := &towers[i]
		if !f.policy.AcceptTower(t.NPads(), t.Energy, t.Ring) {
			continue
		}
		out = append(out, Cluster{
			Side:   t.Side,
			Energy: t.Energy,
			NPads:  t.NPads(),
			Theta:  t.Theta,
			Phi:    t.Phi,
			Radius: t.Radius,
			Ring:   t.Ring,
			Seed:   t.Seed(),
		})
	}
	monitoring.Tracef("%v side: %d towers, %d clusters", signal.Side(), len(towers), len(out))
	return out, nil
}

// Towers selects pads and groups them into connected towers without
// applying the tower acceptance cuts.
func (f *Finder) Towers(signal *padgrid.Grid, bg background.Snapshot) ([]Tower, error) {
	if bg.Average == nil || bg.Sigma == nil {
		return nil, fmt.Errorf("%w: no average or sigma for %v side", background.ErrMissingBackgroundData, signal.Side())
	}
	shape := signal.Shape()
	for _, g := range []*padgrid.Grid{bg.Average, bg.Sigma} {
		if g.Side() != signal.Side() || !g.Shape().Equal(shape) {
			return nil, fmt.Errorf("background for %v side: %w", signal.Side(), padgrid.ErrGeometryMismatch)
		}
	}

	n := signal.Len()
	accepted := make([]bool, n)
	energy := make([]float64, n)
	idx := 0
	for p, e := range signal.All() {
		avg := bg.Average.EnergyAt(idx)
		if f.policy.AcceptPad(p.Ring, p.Layer, e, avg, bg.Sigma.EnergyAt(idx)) {
			accepted[idx] = true
			energy[idx] = f.policy.PadEnergy(e, avg)
		}
		idx++
	}

	uf := newUnionFind(n)
	for i := 0; i < n; i++ {
		if !accepted[i] {
			continue
		}
		f.forEachNeighbour(signal, shape, signal.PadAt(i), func(j int) {
			if accepted[j] {
				uf.union(i, j)
			}
		})
	}

	var towers []Tower
	towerOf := make(map[int]int)
	for i := 0; i < n; i++ {
		if !accepted[i] {
			continue
		}
		root := uf.find(i)
		ti, ok := towerOf[root]
		if !ok {
			ti = len(towers)
			towerOf[root] = ti
			towers = append(towers, Tower{Side: signal.Side()})
		}
		towers[ti].Pads = append(towers[ti].Pads, signal.PadAt(i))
	}

	for i := range towers {
		f.reduce(&towers[i], signal, energy)
	}
	return towers, nil
}

// forEachNeighbour calls fn with the slot of every pad adjacent to p: same
// or adjacent layer, same or adjacent ring, and the azimuthally nearest
// sector with its two neighbours.
func (f *Finder) forEachNeighbour(g *padgrid.Grid, shape padgrid.Shape, p padgrid.Pad, fn func(int)) {
	rings := len(shape.Sectors)
	for dl := -1; dl <= 1; dl++ {
		l := p.Layer + dl
		if l < 0 || l >= shape.Layers {
			continue
		}
		for dr := -1; dr <= 1; dr++ {
			r := p.Ring + dr
			if r < 0 || r >= rings {
				continue
			}
			for _, s := range geometry.NeighbourSectors(p.Sector, shape.Sectors[p.Ring], shape.Sectors[r]) {
				if dl == 0 && dr == 0 && s == p.Sector {
					continue
				}
				if j, ok := g.Index(l, r, s); ok {
					fn(j)
				}
			}
		}
	}
}

func (f *Finder) reduce(t *Tower, g *padgrid.Grid, energy []float64) {
	var sumE, x, y float64
	for _, p := range t.Pads {
		idx, _ := g.Index(p.Layer, p.Ring, p.Sector)
		e := energy[idx]
		r := f.geo.PadRadius(t.Side, p.Ring, p.Layer)
		phi := f.geo.PadPhi(t.Side, p.Ring, p.Sector) * math.Pi / 180
		sumE += e
		x += e * r * math.Cos(phi)
		y += e * r * math.Sin(phi)
	}
	t.Energy = sumE
	if sumE <= 0 {
		return
	}
	x /= sumE
	y /= sumE
	t.Radius = math.Hypot(x, y)
	t.Phi = geometry.NormalizeDegrees(math.Atan2(y, x) * 180 / math.Pi)
	t.Theta = math.Atan2(t.Radius, f.geo.DistanceToOrigin(t.Side))
	t.Ring = f.nearestRing(t.Side, t.Radius, t.Seed().Layer)
}

func (f *Finder) nearestRing(side geometry.Side, radius float64, layer int) int {
	best, bestDist := 0, math.Inf(1)
	for r := 0; r < f.geo.Rings(side); r++ {
		if d := math.Abs(f.geo.PadRadius(side, r, layer) - radius); d < bestDist {
			best, bestDist = r, d
		}
	}
	return best
}

// unionFind keeps the smallest slot of each set as its root, so a tower's
// root is its first pad in grid order regardless of union order.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	switch {
	case ra == rb:
	case ra < rb:
		u.parent[rb] = ra
	default:
		u.parent[ra] = rb
	}
}
