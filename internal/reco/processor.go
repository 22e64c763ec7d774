package reco

import (
	"errors"
	"fmt"

	"github.com/fcal-reco/beamcal/internal/background"
	"github.com/fcal-reco/beamcal/internal/candidate"
	"github.com/fcal-reco/beamcal/internal/cluster"
	"github.com/fcal-reco/beamcal/internal/cuts"
	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/monitoring"
	"github.com/fcal-reco/beamcal/internal/padgrid"
)

// Options holds the per-run settings of a Processor.
type Options struct {
	Seed        uint64
	Calibration float64
	Tolerance   candidate.Tolerance
}

// Processor reconstructs single events. It holds no per-event state, so one
// Processor can serve many goroutines.
type Processor struct {
	geo     geometry.Provider
	model   *background.Model
	finder  *cluster.Finder
	builder *candidate.Builder
	opts    Options
}

// NewProcessor wires the reconstruction. A nil model is allowed and makes
// every event a skip with ErrNoBackground.
func NewProcessor(geo geometry.Provider, model *background.Model, policy *cuts.Policy, opts Options) *Processor {
	if opts.Calibration == 0 {
		opts.Calibration = 1
	}
	return &Processor{
		geo:     geo,
		model:   model,
		finder:  cluster.NewFinder(geo, policy),
		builder: candidate.NewBuilder(geo, opts.Calibration),
		opts:    opts,
	}
}

// BuildModel resolves the configured background strategy. Parametrised and
// Averaged need stats; without them it returns a nil model and no error.
// Pregenerated without crossings fails with ErrMissingBackgroundData.
func BuildModel(method background.Method, geo geometry.Provider, stats *background.Stats, crossings []background.Crossing, nBX int) (*background.Model, error) {
	switch method {
	case background.Pregenerated:
		return background.NewPregenerated(geo, crossings, nBX)
	case background.Parametrised, background.Averaged:
		if stats == nil {
			monitoring.Opsf("%v background has no average/sigma; events will be skipped", method)
			return nil, nil
		}
		if method == background.Averaged {
			return background.NewAveraged(geo, *stats)
		}
		return background.NewParametrised(geo, *stats)
	}
	return nil, fmt.Errorf("unknown background method %v", method)
}

// ProcessEvent reconstructs ev. Errors are reserved for inconsistent
// wiring; a missing background is reported through Result.Skip.
func (p *Processor) ProcessEvent(ev Event) (*Result, error) {
	res := &Result{Run: ev.Run, Number: ev.Number, HasTruth: ev.Truth != nil}
	res.Stats = eventStats(ev.Hits)

	if p.model == nil {
		res.Skip = fmt.Errorf("run %d event %d: %w", ev.Run, ev.Number, ErrNoBackground)
		monitoring.Opsf("skipping %v", res.Skip)
		if res.HasTruth {
			res.Efficiency = candidate.Efficiency{Truth: len(ev.Truth)}
		}
		return res, nil
	}

	rng := background.EventRand(p.opts.Seed, ev.Run, ev.Number)
	snaps := p.model.Event(rng)

	// The sample grids are fresh for every event; hits are overlaid in place.
	var firstDrop error
	for _, h := range ev.Hits {
		if !h.Side.Valid() {
			res.Stats.DroppedHits++
			if firstDrop == nil {
				firstDrop = fmt.Errorf("hit on unknown side %d", h.Side)
			}
			continue
		}
		if err := snaps[h.Side].Sample.AddEnergy(h.Layer, h.Ring, h.Sector, h.Energy); err != nil {
			var oor *padgrid.OutOfRangeError
			if !errors.As(err, &oor) {
				return nil, err
			}
			res.Stats.DroppedHits++
			if firstDrop == nil {
				firstDrop = err
			}
		}
	}
	if res.Stats.DroppedHits > 0 {
		monitoring.Opsf("run %d event %d: dropped %d of %d hits outside the geometry (first: %v)",
			ev.Run, ev.Number, res.Stats.DroppedHits, res.Stats.Hits, firstDrop)
	}

	for _, side := range geometry.Sides {
		clusters, err := p.finder.Find(snaps[side].Sample, snaps[side])
		if err != nil {
			return nil, fmt.Errorf("run %d event %d: %w", ev.Run, ev.Number, err)
		}
		res.Clusters[side] = clusters
		for _, c := range clusters {
			monitoring.Diagf("run %d event %d: cluster %v", ev.Run, ev.Number, c)
		}
	}

	res.Candidates = append(p.builder.BuildAll(res.Clusters[geometry.Left]),
		p.builder.BuildAll(res.Clusters[geometry.Right])...)

	if res.HasTruth {
		truth := append([]candidate.Truth(nil), ev.Truth...)
		res.Efficiency = candidate.Match(res.Candidates, truth, p.opts.Tolerance)
	}
	return res, nil
}

func eventStats(hits []Hit) Stats {
	st := Stats{Hits: len(hits)}
	for _, h := range hits {
		st.DepositedEnergy += h.Energy
		if h.Energy > st.MaxDeposit {
			st.MaxDeposit = h.Energy
			st.MaxLayer = h.Layer
		}
	}
	return st
}
