// Package cuts holds the acceptance thresholds used by the cluster finder.
//
// Thresholds are ring-indexed: each entry applies from its starting ring
// outward until the next entry takes over.
package cuts

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidConfiguration is returned for malformed threshold tables.
var ErrInvalidConfiguration = errors.New("invalid cut configuration")

// Entry is one row of the threshold table.
type Entry struct {
	StartRing        int
	PadThreshold     float64
	ClusterThreshold float64
}

// Params is the raw configuration for a Policy.
type Params struct {
	StartingRings     []int
	PadThresholds     []float64
	ClusterThresholds []float64
	MinimumTowerSize  int
	FirstLayer        int
	// UseConstPadCuts selects fixed pad thresholds. When false, a pad is
	// accepted if its background-subtracted energy exceeds SigmaCut times
	// the background standard deviation of that pad.
	UseConstPadCuts bool
	SigmaCut        float64
}

// Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	entries          []Entry
	minimumTowerSize int
	firstLayer       int
	constPadCuts     bool
	sigmaCut         float64
}

// NewPolicy validates p and builds a Policy.
func NewPolicy(p Params) (*Policy, error) {
	n := len(p.StartingRings)
	if n != len(p.PadThresholds) || n != len(p.ClusterThresholds) {
		return nil, fmt.Errorf("%w: %d starting rings, %d pad thresholds and %d cluster thresholds",
			ErrInvalidConfiguration, n, len(p.PadThresholds), len(p.ClusterThresholds))
	}
	if n == 0 || p.StartingRings[0] != 0 {
		return nil, fmt.Errorf("%w: starting rings must begin with 0", ErrInvalidConfiguration)
	}
	for i := 1; i < n; i++ {
		if p.StartingRings[i] <= p.StartingRings[i-1] {
			return nil, fmt.Errorf("%w: starting rings must be strictly increasing, got %v",
				ErrInvalidConfiguration, p.StartingRings)
		}
	}
	if p.MinimumTowerSize < 0 {
		return nil, fmt.Errorf("%w: minimum tower size must be non-negative, got %d",
			ErrInvalidConfiguration, p.MinimumTowerSize)
	}
	if p.FirstLayer < 0 {
		return nil, fmt.Errorf("%w: first layer must be non-negative, got %d", ErrInvalidConfiguration, p.FirstLayer)
	}
	if !p.UseConstPadCuts && p.SigmaCut < 0 {
		return nil, fmt.Errorf("%w: sigma cut must be non-negative, got %f", ErrInvalidConfiguration, p.SigmaCut)
	}

	pol := &Policy{
		entries:          make([]Entry, n),
		minimumTowerSize: p.MinimumTowerSize,
		firstLayer:       p.FirstLayer,
		constPadCuts:     p.UseConstPadCuts,
		sigmaCut:         p.SigmaCut,
	}
	for i := range pol.entries {
		pol.entries[i] = Entry{
			StartRing:        p.StartingRings[i],
			PadThreshold:     p.PadThresholds[i],
			ClusterThreshold: p.ClusterThresholds[i],
		}
	}
	return pol, nil
}

// entry returns the last entry whose StartRing <= ring.
func (p *Policy) entry(ring int) Entry {
	i := sort.Search(len(p.entries), func(i int) bool { return p.entries[i].StartRing > ring })
	if i == 0 {
		return p.entries[0]
	}
	return p.entries[i-1]
}

// PadThreshold is the fixed pad threshold that applies to ring.
func (p *Policy) PadThreshold(ring int) float64 { return p.entry(ring).PadThreshold }

// ClusterThreshold is the minimum cluster energy that applies to ring.
func (p *Policy) ClusterThreshold(ring int) float64 { return p.entry(ring).ClusterThreshold }

func (p *Policy) MinimumTowerSize() int { return p.minimumTowerSize }
func (p *Policy) FirstLayer() int       { return p.firstLayer }
func (p *Policy) ConstPadCuts() bool    { return p.constPadCuts }
func (p *Policy) SigmaCut() float64     { return p.sigmaCut }

// Entries returns a copy of the threshold table.
func (p *Policy) Entries() []Entry { return append([]Entry(nil), p.entries...) }

// PadEnergy is the energy a pad contributes under this policy: the raw
// signal in fixed mode, the background-subtracted residual otherwise.
func (p *Policy) PadEnergy(signal, average float64) float64 {
	if p.constPadCuts {
		return signal
	}
	return signal - average
}

// AcceptPad decides whether a pad takes part in clustering. A pad without
// signal is never accepted.
func (p *Policy) AcceptPad(ring, layer int, signal, average, sigma float64) bool {
	if layer < p.firstLayer || signal <= 0 {
		return false
	}
	if p.constPadCuts {
		return signal > p.PadThreshold(ring)
	}
	return signal-average > p.sigmaCut*sigma
}

// AcceptTower decides whether a reduced tower becomes a cluster. Towers of
// two pads or fewer are always rejected.
func (p *Policy) AcceptTower(nPads int, energy float64, ring int) bool {
	if nPads <= 2 || nPads < p.minimumTowerSize {
		return false
	}
	return energy >= p.ClusterThreshold(ring)
}
