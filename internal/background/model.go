// Package background estimates the beam-induced energy in every pad.
//
// A Model is built once per run from one of three strategies and is then
// read-only: per-event sampling draws from a random source owned by the
// caller, so a single Model can serve concurrent workers.
package background

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/padgrid"
)

// ErrMissingBackgroundData is returned when the pregenerated strategy has
// no bunch crossings to draw from.
var ErrMissingBackgroundData = errors.New("missing background data")

// Method selects the estimation strategy.
type Method int

const (
	Parametrised Method = iota
	Pregenerated
	Averaged
)

func (m Method) String() string {
	switch m {
	case Parametrised:
		return "Parametrised"
	case Pregenerated:
		return "Pregenerated"
	case Averaged:
		return "Averaged"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod accepts the strategy names used in configuration files,
// case-insensitively.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "parametrised", "parametrized":
		return Parametrised, nil
	case "pregenerated":
		return Pregenerated, nil
	case "averaged":
		return Averaged, nil
	}
	return 0, fmt.Errorf("unknown background method %q (want Parametrised, Pregenerated or Averaged)", name)
}

// Crossing is one recorded bunch crossing, one grid per side.
type Crossing [2]*padgrid.Grid

// Stats is the long-run average and standard deviation per pad, per side.
type Stats struct {
	Average [2]*padgrid.Grid
	Sigma   [2]*padgrid.Grid
}

// Snapshot is what the cluster finder needs for one side of one event.
// Average and Sigma are shared with the Model and must not be modified.
type Snapshot struct {
	Sample  *padgrid.Grid
	Average *padgrid.Grid
	Sigma   *padgrid.Grid
}

// Model is a background estimator resolved at initialisation.
type Model struct {
	method    Method
	geo       geometry.Provider
	stats     Stats
	crossings []Crossing
	nBX       int
}

// NewParametrised draws each pad from a normal distribution centred on the
// average with the given spread.
func NewParametrised(geo geometry.Provider, stats Stats) (*Model, error) {
	if err := checkStats(geo, stats); err != nil {
		return nil, err
	}
	return &Model{method: Parametrised, geo: geo, stats: stats}, nil
}

// NewAveraged returns the average as the event sample, without fluctuation.
func NewAveraged(geo geometry.Provider, stats Stats) (*Model, error) {
	if err := checkStats(geo, stats); err != nil {
		return nil, err
	}
	return &Model{method: Averaged, geo: geo, stats: stats}, nil
}

// NewPregenerated overlays nBX crossings drawn with replacement from
// crossings. The average and spread are derived from the crossings.
func NewPregenerated(geo geometry.Provider, crossings []Crossing, nBX int) (*Model, error) {
	if len(crossings) == 0 {
		return nil, fmt.Errorf("%w: no pregenerated bunch crossings loaded", ErrMissingBackgroundData)
	}
	if nBX <= 0 {
		return nil, fmt.Errorf("number of bunch crossings must be positive, got %d", nBX)
	}
	stats, err := CrossingStats(geo, crossings, nBX)
	if err != nil {
		return nil, err
	}
	return &Model{method: Pregenerated, geo: geo, stats: stats, crossings: crossings, nBX: nBX}, nil
}

func (m *Model) Method() Method { return m.method }

// Stats returns the long-run average and spread. The grids are shared.
func (m *Model) Stats() Stats { return m.stats }

// Crossings is the number of cached bunch crossings (Pregenerated only).
func (m *Model) Crossings() int { return len(m.crossings) }

// Event returns one background realisation for both sides. All randomness
// comes from rng, so equal seeds give equal samples.
func (m *Model) Event(rng *rand.Rand) [2]Snapshot {
	var out [2]Snapshot
	for _, side := range geometry.Sides {
		out[side] = Snapshot{
			Average: m.stats.Average[side],
			Sigma:   m.stats.Sigma[side],
		}
	}

	switch m.method {
	case Averaged:
		for _, side := range geometry.Sides {
			out[side].Sample = m.stats.Average[side].Clone()
		}
	case Parametrised:
		for _, side := range geometry.Sides {
			out[side].Sample = m.sampleParametrised(side, rng)
		}
	case Pregenerated:
		left := padgrid.New(m.geo, geometry.Left)
		right := padgrid.New(m.geo, geometry.Right)
		for i := 0; i < m.nBX; i++ {
			bx := m.crossings[rng.IntN(len(m.crossings))]
			// Shapes were checked when the crossings were loaded.
			_ = left.Combine(bx[geometry.Left], padgrid.Sum)
			_ = right.Combine(bx[geometry.Right], padgrid.Sum)
		}
		out[geometry.Left].Sample = left
		out[geometry.Right].Sample = right
	}
	return out
}

func (m *Model) sampleParametrised(side geometry.Side, rng *rand.Rand) *padgrid.Grid {
	avg := m.stats.Average[side]
	sig := m.stats.Sigma[side]
	out := padgrid.New(m.geo, side)
	vals := make([]float64, out.Len())
	for i := range vals {
		mu := avg.EnergyAt(i)
		sigma := sig.EnergyAt(i)
		if sigma <= 0 {
			vals[i] = math.Max(mu, 0)
			continue
		}
		d := distuv.Normal{Mu: mu, Sigma: sigma, Src: rng}
		// Deposits are never negative.
		vals[i] = math.Max(d.Rand(), 0)
	}
	_ = out.SetValues(vals)
	return out
}

// CrossingStats computes the per-pad population mean and standard deviation
// over crossings, scaled to the sum of nBX independent crossings: the mean
// by nBX and the standard deviation by sqrt(nBX).
func CrossingStats(geo geometry.Provider, crossings []Crossing, nBX int) (Stats, error) {
	var st Stats
	if len(crossings) == 0 {
		return st, fmt.Errorf("%w: no bunch crossings", ErrMissingBackgroundData)
	}
	for _, side := range geometry.Sides {
		avg := padgrid.New(geo, side)
		sig := padgrid.New(geo, side)
		for i, bx := range crossings {
			g := bx[side]
			if g == nil || g.Side() != side || !g.Shape().Equal(avg.Shape()) {
				return st, fmt.Errorf("crossing %d %v: %w", i, side, padgrid.ErrGeometryMismatch)
			}
		}

		n := avg.Len()
		means := make([]float64, n)
		stds := make([]float64, n)
		column := make([]float64, len(crossings))
		scaleStd := math.Sqrt(float64(nBX))
		for idx := 0; idx < n; idx++ {
			for i, bx := range crossings {
				column[i] = bx[side].EnergyAt(idx)
			}
			mean, std := stat.PopMeanStdDev(column, nil)
			means[idx] = mean * float64(nBX)
			stds[idx] = std * scaleStd
		}
		_ = avg.SetValues(means)
		_ = sig.SetValues(stds)
		st.Average[side] = avg
		st.Sigma[side] = sig
	}
	return st, nil
}

func checkStats(geo geometry.Provider, st Stats) error {
	for _, side := range geometry.Sides {
		ref := padgrid.New(geo, side)
		grids := []struct {
			name string
			g    *padgrid.Grid
		}{{"average", st.Average[side]}, {"sigma", st.Sigma[side]}}
		for _, e := range grids {
			name, g := e.name, e.g
			if g == nil {
				return fmt.Errorf("%w: %s grid for %v side is missing", ErrMissingBackgroundData, name, side)
			}
			if g.Side() != side || !g.Shape().Equal(ref.Shape()) {
				return fmt.Errorf("%s grid for %v side: %w", name, side, padgrid.ErrGeometryMismatch)
			}
		}
	}
	return nil
}
