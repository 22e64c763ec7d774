package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcal-reco/beamcal/internal/background"
	"github.com/fcal-reco/beamcal/internal/candidate"
	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/padgrid"
	"github.com/fcal-reco/beamcal/internal/reco"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "beamcal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testStats(t *testing.T) background.Stats {
	t.Helper()
	geo, err := geometry.NewCached(geometry.Params{
		Layers:         2,
		RingEdges:      []float64{10, 20, 30},
		SectorsPerRing: []int{4, 6},
		ZDistance:      3350,
	})
	require.NoError(t, err)

	var st background.Stats
	for _, side := range geometry.Sides {
		avg := padgrid.New(geo, side)
		sig := padgrid.New(geo, side)
		vals := make([]float64, avg.Len())
		for i := range vals {
			vals[i] = float64(i) + 0.5*float64(side)
		}
		require.NoError(t, avg.SetValues(vals))
		for i := range vals {
			vals[i] = 0.1 * float64(i+1)
		}
		require.NoError(t, sig.SetValues(vals))
		st.Average[side] = avg
		st.Sigma[side] = sig
	}
	return st
}

func TestOpen_MigratesSchema(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// A second MigrateUp is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestEncodeDecodeStats(t *testing.T) {
	st := testStats(t)

	blob, err := EncodeStats(st)
	require.NoError(t, err)
	got, err := DecodeStats(blob)
	require.NoError(t, err)

	for _, side := range geometry.Sides {
		assert.True(t, st.Average[side].Equal(got.Average[side]), "average %v", side)
		assert.True(t, st.Sigma[side].Equal(got.Sigma[side]), "sigma %v", side)
		assert.Equal(t, side, got.Average[side].Side())
	}
}

func TestEncodeStats_MissingSide(t *testing.T) {
	st := testStats(t)
	st.Sigma[geometry.Right] = nil
	_, err := EncodeStats(st)
	assert.Error(t, err)
}

func TestDecodeStats_Invalid(t *testing.T) {
	_, err := DecodeStats(nil)
	assert.Error(t, err)
	_, err = DecodeStats([]byte("not gzip"))
	assert.Error(t, err)
}

func TestBackgroundSnapshots(t *testing.T) {
	db := openTestDB(t)

	latest, err := db.LatestBackgroundSnapshot()
	require.NoError(t, err)
	assert.Nil(t, latest)

	blob, err := EncodeStats(testStats(t))
	require.NoError(t, err)

	base := time.Now()
	for i := 0; i < 3; i++ {
		_, err := db.InsertBackgroundSnapshot(&BackgroundSnapshot{
			TakenUnixNanos: base.Add(time.Duration(i) * time.Second).UnixNano(),
			Method:         "Averaged",
			NumberOfBX:     i + 1,
			Layers:         2,
			Rings:          2,
			ParamsJSON:     `{}`,
			GridBlob:       blob,
		})
		require.NoError(t, err)
	}

	latest, err = db.LatestBackgroundSnapshot()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 3, latest.NumberOfBX)
	assert.Equal(t, blob, latest.GridBlob)

	list, err := db.ListBackgroundSnapshots(2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 3, list[0].NumberOfBX)
	assert.Equal(t, 2, list[1].NumberOfBX)
	assert.Nil(t, list[0].GridBlob)

	id, err := db.InsertBackgroundSnapshot(nil)
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestResultSink_StoresCandidates(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.StartRun(`{"sigma_cut":1}`, 0)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, runID)

	cands := []candidate.Candidate{
		{
			Side: geometry.Left, Energy: 12.5, Theta: 0.01, Phi: 45, NPads: 7,
			Position: [3]float64{1, 2, -3}, Momentum: [3]float64{0.1, 0.2, -12},
			Charge: candidate.UndefinedCharge, IsReal: true, WasMatched: true,
		},
		{
			Side: geometry.Right, Energy: 4, Theta: 0.02, Phi: 300, NPads: 4,
			Position: [3]float64{-1, 0, 3}, Momentum: [3]float64{0, 0, 4},
			Charge: candidate.UndefinedCharge,
		},
	}
	sink := NewResultSink(db, runID)
	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, &reco.Result{Run: 7, Number: 1, Candidates: cands}))
	require.NoError(t, sink.Write(ctx, &reco.Result{Run: 7, Number: 2}))

	rows, err := db.CandidatesForRun(runID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var got []candidate.Candidate
	for _, r := range rows {
		assert.Equal(t, runID, r.RunID)
		assert.Equal(t, int64(7), r.RunNumber)
		assert.Equal(t, int64(1), r.EventNumber)
		got = append(got, r.Candidate)
	}
	if diff := cmp.Diff(cands, got); diff != "" {
		t.Errorf("stored candidates mismatch (-want +got):\n%s", diff)
	}

	other, err := db.CandidatesForRun(uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStartRun_UnknownSnapshot(t *testing.T) {
	db := openTestDB(t)
	_, err := db.StartRun(`{}`, 42)
	assert.Error(t, err, "foreign key should reject a missing snapshot")
}
