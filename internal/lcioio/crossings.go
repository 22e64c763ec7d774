package lcioio

import (
	"errors"
	"fmt"
	"io"

	"go-hep.org/x/hep/lcio"

	"github.com/fcal-reco/beamcal/internal/background"
	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/monitoring"
	"github.com/fcal-reco/beamcal/internal/padgrid"
	"github.com/fcal-reco/beamcal/internal/reco"
)

// LoadBunchCrossings reads every event of every file as one background
// bunch crossing. Unreadable files and an empty result fail with
// background.ErrMissingBackgroundData.
func LoadBunchCrossings(paths []string, geo geometry.Provider, collection string, fields CellFields) ([]background.Crossing, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no background files configured", background.ErrMissingBackgroundData)
	}
	var out []background.Crossing
	for _, path := range paths {
		crossings, err := loadFile(path, geo, collection, fields)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", background.ErrMissingBackgroundData, err)
		}
		monitoring.Opsf("loaded %d bunch crossings from %s", len(crossings), path)
		out = append(out, crossings...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no events in %d background files", background.ErrMissingBackgroundData, len(paths))
	}
	return out, nil
}

func loadFile(path string, geo geometry.Provider, collection string, fields CellFields) ([]background.Crossing, error) {
	r, err := lcio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %q: %w", path, err)
	}
	defer r.Close()

	var out []background.Crossing
	for r.Next() {
		evt := r.Event()
		hits, err := decodeHitCollection(&evt, collection, fields, 0)
		if err != nil {
			return nil, fmt.Errorf("%s event %d: %w", path, evt.EventNumber, err)
		}
		bx, dropped := Fill(geo, hits)
		if dropped > 0 {
			monitoring.Opsf("%s event %d: dropped %d hits outside the geometry", path, evt.EventNumber, dropped)
		}
		out = append(out, bx)
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return out, nil
}

// Fill accumulates hits into a fresh grid pair and returns the number of
// hits that did not fit the geometry.
func Fill(geo geometry.Provider, hits []reco.Hit) (background.Crossing, int) {
	bx := background.Crossing{padgrid.New(geo, geometry.Left), padgrid.New(geo, geometry.Right)}
	dropped := 0
	for _, h := range hits {
		if !h.Side.Valid() {
			dropped++
			continue
		}
		if err := bx[h.Side].AddEnergy(h.Layer, h.Ring, h.Sector, h.Energy); err != nil {
			dropped++
		}
	}
	return bx, dropped
}
