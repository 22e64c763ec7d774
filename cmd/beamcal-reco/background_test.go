package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcal-reco/beamcal/internal/background"
	"github.com/fcal-reco/beamcal/internal/config"
	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/lcioio"
	"github.com/fcal-reco/beamcal/internal/padgrid"
	"github.com/fcal-reco/beamcal/internal/store"
)

func configWithMethod(method string) *config.TuningConfig {
	cfg := config.EmptyTuningConfig()
	cfg.BackgroundMethod = &method
	return cfg
}

func uniformStats(geo geometry.Provider, avg, sigma float64) background.Stats {
	var st background.Stats
	for _, side := range geometry.Sides {
		a := padgrid.New(geo, side)
		s := padgrid.New(geo, side)
		va := make([]float64, a.Len())
		vs := make([]float64, s.Len())
		for i := range va {
			va[i], vs[i] = avg, sigma
		}
		_ = a.SetValues(va)
		_ = s.SetValues(vs)
		st.Average[side], st.Sigma[side] = a, s
	}
	return st
}

func TestResolveBackground(t *testing.T) {
	t.Run("no source skips events", func(t *testing.T) {
		cfg := configWithMethod("Averaged")
		geo, err := cfg.NewGeometry()
		require.NoError(t, err)

		bg, err := resolveBackground(cfg, geo, nil, lcioio.DefaultCellFields)
		require.NoError(t, err)
		assert.Nil(t, bg.model)
		assert.Zero(t, bg.snapshotID)
	})

	t.Run("stored snapshot", func(t *testing.T) {
		cfg := configWithMethod("Averaged")
		geo, err := cfg.NewGeometry()
		require.NoError(t, err)

		db, err := store.Open(filepath.Join(t.TempDir(), "reco.db"))
		require.NoError(t, err)
		defer db.Close()

		blob, err := store.EncodeStats(uniformStats(geo, 0.2, 0.05))
		require.NoError(t, err)
		id, err := db.InsertBackgroundSnapshot(&store.BackgroundSnapshot{
			TakenUnixNanos: time.Now().UnixNano(),
			Method:         "Parametrised",
			NumberOfBX:     1,
			Layers:         geo.Layers(geometry.Left),
			Rings:          geo.Rings(geometry.Left),
			ParamsJSON:     `{}`,
			GridBlob:       blob,
		})
		require.NoError(t, err)

		bg, err := resolveBackground(cfg, geo, db, lcioio.DefaultCellFields)
		require.NoError(t, err)
		require.NotNil(t, bg.model)
		assert.Equal(t, background.Averaged, bg.model.Method())
		assert.Equal(t, id, bg.snapshotID)
		assert.InDelta(t, 0.2, bg.model.Stats().Average[geometry.Right].Energy(3, 2, 1), 1e-12)
	})

	t.Run("pregenerated needs files", func(t *testing.T) {
		cfg := configWithMethod("Pregenerated")
		geo, err := cfg.NewGeometry()
		require.NoError(t, err)

		_, err = resolveBackground(cfg, geo, nil, lcioio.DefaultCellFields)
		assert.ErrorIs(t, err, background.ErrMissingBackgroundData)
	})

	t.Run("missing background files", func(t *testing.T) {
		cfg := configWithMethod("Parametrised")
		cfg.BackgroundFiles = []string{filepath.Join(t.TempDir(), "missing.slcio")}
		geo, err := cfg.NewGeometry()
		require.NoError(t, err)

		_, err = resolveBackground(cfg, geo, nil, lcioio.DefaultCellFields)
		assert.ErrorIs(t, err, background.ErrMissingBackgroundData)
	})
}
