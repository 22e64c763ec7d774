package main

import (
	"fmt"

	"github.com/fcal-reco/beamcal/internal/background"
	"github.com/fcal-reco/beamcal/internal/config"
	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/lcioio"
	"github.com/fcal-reco/beamcal/internal/monitoring"
	"github.com/fcal-reco/beamcal/internal/reco"
	"github.com/fcal-reco/beamcal/internal/store"
)

type resolvedBackground struct {
	model      *background.Model
	snapshotID int64
}

// resolveBackground builds the configured background model. Parametrised
// and Averaged prefer the latest stored snapshot and fall back to computing
// statistics from background_files. Without either the model is nil and
// every event is skipped.
func resolveBackground(cfg *config.TuningConfig, geo geometry.Provider, db *store.DB, fields lcioio.CellFields) (resolvedBackground, error) {
	var out resolvedBackground
	method, err := cfg.Method()
	if err != nil {
		return out, err
	}
	nBX := cfg.GetNumberOfBX()
	hitCol := cfg.GetLCIO().GetHitCollection()

	if method == background.Pregenerated {
		crossings, err := lcioio.LoadBunchCrossings(cfg.BackgroundFiles, geo, hitCol, fields)
		if err != nil {
			return out, err
		}
		monitoring.Opsf("loaded %d bunch crossings for %v background", len(crossings), method)
		out.model, err = reco.BuildModel(method, geo, nil, crossings, nBX)
		return out, err
	}

	stats, id, err := storedStats(db, nBX)
	if err != nil {
		return out, err
	}
	if stats == nil && len(cfg.BackgroundFiles) > 0 {
		crossings, err := lcioio.LoadBunchCrossings(cfg.BackgroundFiles, geo, hitCol, fields)
		if err != nil {
			return out, err
		}
		st, err := background.CrossingStats(geo, crossings, nBX)
		if err != nil {
			return out, err
		}
		stats = &st
	}
	out.snapshotID = id
	out.model, err = reco.BuildModel(method, geo, stats, nil, nBX)
	return out, err
}

func storedStats(db *store.DB, nBX int) (*background.Stats, int64, error) {
	if db == nil {
		return nil, 0, nil
	}
	snap, err := db.LatestBackgroundSnapshot()
	if err != nil || snap == nil {
		return nil, 0, err
	}
	if snap.NumberOfBX != nBX {
		monitoring.Opsf("background snapshot %d was built for %d BX, config asks for %d", snap.ID, snap.NumberOfBX, nBX)
	}
	st, err := store.DecodeStats(snap.GridBlob)
	if err != nil {
		return nil, 0, fmt.Errorf("background snapshot %d: %w", snap.ID, err)
	}
	monitoring.Opsf("using background snapshot %d (%s, %d BX)", snap.ID, snap.Method, snap.NumberOfBX)
	return &st, snap.ID, nil
}
