package background

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/padgrid"
)

func testGeometry(t *testing.T) *geometry.Cached {
	t.Helper()
	g, err := geometry.NewCached(geometry.Params{
		Layers:         3,
		RingEdges:      []float64{10, 20, 30},
		SectorsPerRing: []int{4, 8},
		ZDistance:      3350,
	})
	require.NoError(t, err)
	return g
}

func uniformStats(t *testing.T, geo geometry.Provider, avg, sigma float64) Stats {
	t.Helper()
	var st Stats
	for _, side := range geometry.Sides {
		a := padgrid.New(geo, side)
		s := padgrid.New(geo, side)
		for p := range a.All() {
			require.NoError(t, a.AddEnergy(p.Layer, p.Ring, p.Sector, avg+0.01*float64(p.Sector)))
			require.NoError(t, s.AddEnergy(p.Layer, p.Ring, p.Sector, sigma))
		}
		st.Average[side] = a
		st.Sigma[side] = s
	}
	return st
}

func TestParseMethod(t *testing.T) {
	cases := map[string]Method{
		"Parametrised": Parametrised,
		"parametrized": Parametrised,
		"PREGENERATED": Pregenerated,
		" Averaged ":   Averaged,
	}
	for in, want := range cases {
		got, err := ParseMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseMethod("Guessed")
	assert.Error(t, err)
	assert.Equal(t, "Averaged", Averaged.String())
}

func TestAveraged_SampleIsAverage(t *testing.T) {
	geo := testGeometry(t)
	st := uniformStats(t, geo, 0.1, 0.02)
	m, err := NewAveraged(geo, st)
	require.NoError(t, err)
	assert.Equal(t, Averaged, m.Method())

	for _, seed := range []uint64{0, 1, 42, math.MaxUint64} {
		ev := m.Event(EventRand(seed, 1, 7))
		for _, side := range geometry.Sides {
			require.True(t, ev[side].Sample.Equal(st.Average[side]), "seed %d side %v", seed, side)
			assert.NotSame(t, st.Average[side], ev[side].Sample, "sample must be a private copy")
			assert.Same(t, st.Average[side], ev[side].Average)
			assert.Same(t, st.Sigma[side], ev[side].Sigma)
		}
	}
}

func TestParametrised_Reproducible(t *testing.T) {
	geo := testGeometry(t)
	st := uniformStats(t, geo, 1.0, 0.2)
	m, err := NewParametrised(geo, st)
	require.NoError(t, err)

	a := m.Event(EventRand(99, 3, 12))
	b := m.Event(EventRand(99, 3, 12))
	c := m.Event(EventRand(99, 3, 13))

	for _, side := range geometry.Sides {
		assert.True(t, a[side].Sample.Equal(b[side].Sample), "same event must reproduce")
		assert.False(t, a[side].Sample.Equal(c[side].Sample), "different events should differ")
		for _, e := range a[side].Sample.All() {
			assert.GreaterOrEqual(t, e, 0.0)
		}
	}
}

func TestParametrised_SampleStatistics(t *testing.T) {
	geo := testGeometry(t)
	st := uniformStats(t, geo, 5.0, 0.5)
	m, err := NewParametrised(geo, st)
	require.NoError(t, err)

	var sum, sum2 float64
	var n int
	for ev := int64(0); ev < 200; ev++ {
		snap := m.Event(EventRand(1, 1, ev))[geometry.Left]
		e := snap.Sample.Energy(0, 0, 0)
		sum += e
		sum2 += e * e
		n++
	}
	mean := sum / float64(n)
	std := math.Sqrt(sum2/float64(n) - mean*mean)
	assert.InDelta(t, 5.0, mean, 0.15)
	assert.InDelta(t, 0.5, std, 0.15)
}

func TestParametrised_ZeroSigmaIsAverage(t *testing.T) {
	geo := testGeometry(t)
	st := uniformStats(t, geo, 0.3, 0)
	m, err := NewParametrised(geo, st)
	require.NoError(t, err)
	ev := m.Event(EventRand(5, 0, 0))
	assert.True(t, ev[geometry.Right].Sample.Equal(st.Average[geometry.Right]))
}

func TestNewModel_BadStats(t *testing.T) {
	geo := testGeometry(t)
	st := uniformStats(t, geo, 0.1, 0.1)
	st.Sigma[geometry.Right] = nil
	_, err := NewParametrised(geo, st)
	assert.True(t, errors.Is(err, ErrMissingBackgroundData))

	st = uniformStats(t, geo, 0.1, 0.1)
	st.Average[geometry.Left] = padgrid.NewWithShape(geometry.Left, padgrid.Shape{Layers: 1, Sectors: []int{4}})
	_, err = NewAveraged(geo, st)
	assert.True(t, errors.Is(err, padgrid.ErrGeometryMismatch))
}

func crossing(t *testing.T, geo geometry.Provider, e float64) Crossing {
	t.Helper()
	var bx Crossing
	for _, side := range geometry.Sides {
		g := padgrid.New(geo, side)
		require.NoError(t, g.AddEnergy(1, 1, 3, e))
		bx[side] = g
	}
	return bx
}

func TestPregenerated_MissingData(t *testing.T) {
	_, err := NewPregenerated(testGeometry(t), nil, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingBackgroundData))
}

func TestPregenerated_InvalidBX(t *testing.T) {
	geo := testGeometry(t)
	_, err := NewPregenerated(geo, []Crossing{crossing(t, geo, 1)}, 0)
	assert.Error(t, err)
}

func TestPregenerated_SingleCrossingOverlay(t *testing.T) {
	geo := testGeometry(t)
	m, err := NewPregenerated(geo, []Crossing{crossing(t, geo, 0.25)}, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Crossings())

	ev := m.Event(EventRand(7, 1, 1))
	assert.Equal(t, 1.0, ev[geometry.Left].Sample.Energy(1, 1, 3))
	assert.Equal(t, 1.0, ev[geometry.Right].Sample.Total())
	assert.Equal(t, 1.0, ev[geometry.Left].Average.Energy(1, 1, 3))
	assert.Equal(t, 0.0, ev[geometry.Left].Sigma.Energy(1, 1, 3))
}

func TestPregenerated_Stats(t *testing.T) {
	geo := testGeometry(t)
	crossings := []Crossing{crossing(t, geo, 1), crossing(t, geo, 3)}
	st, err := CrossingStats(geo, crossings, 4)
	require.NoError(t, err)

	// population mean 2, std 1 per crossing; scaled to 4 crossings
	assert.InDelta(t, 8.0, st.Average[geometry.Left].Energy(1, 1, 3), 1e-12)
	assert.InDelta(t, 2.0, st.Sigma[geometry.Left].Energy(1, 1, 3), 1e-12)
	assert.Equal(t, 0.0, st.Average[geometry.Right].Energy(0, 0, 0))
}

func TestPregenerated_SampleDrawsFromCache(t *testing.T) {
	geo := testGeometry(t)
	crossings := []Crossing{crossing(t, geo, 1), crossing(t, geo, 10)}
	m, err := NewPregenerated(geo, crossings, 3)
	require.NoError(t, err)

	allowed := map[float64]bool{3: true, 12: true, 21: true, 30: true}
	seen := map[float64]bool{}
	for ev := int64(0); ev < 64; ev++ {
		e := m.Event(EventRand(11, 2, ev))[geometry.Left].Sample.Energy(1, 1, 3)
		require.True(t, allowed[e], "unexpected overlay sum %v", e)
		seen[e] = true
	}
	assert.Greater(t, len(seen), 1, "draws should vary between events")
}

func TestCrossingStats_ShapeMismatch(t *testing.T) {
	geo := testGeometry(t)
	bad := crossing(t, geo, 1)
	bad[geometry.Right] = padgrid.NewWithShape(geometry.Right, padgrid.Shape{Layers: 3, Sectors: []int{4, 9}})
	_, err := CrossingStats(geo, []Crossing{bad}, 1)
	assert.True(t, errors.Is(err, padgrid.ErrGeometryMismatch))
}

func TestEventRand_PureFunction(t *testing.T) {
	a := EventRand(1, 2, 3).Uint64()
	b := EventRand(1, 2, 3).Uint64()
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, EventRand(1, 2, 4).Uint64())
	assert.NotEqual(t, a, EventRand(1, 3, 3).Uint64())
	assert.NotEqual(t, a, EventRand(2, 2, 3).Uint64())
}
