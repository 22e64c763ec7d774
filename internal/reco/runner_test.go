package reco

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcal-reco/beamcal/internal/background"
	"github.com/fcal-reco/beamcal/internal/geometry"
)

type sliceSource struct {
	events []Event
	err    error // returned after the events instead of io.EOF
}

func (s *sliceSource) Next() (Event, error) {
	if len(s.events) == 0 {
		if s.err != nil {
			return Event{}, s.err
		}
		return Event{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func makeEvents(n int) []Event {
	events := make([]Event, n)
	for i := range events {
		side := geometry.Sides[i%2]
		var hits []Hit
		if i%3 != 0 {
			hits = plusShape(side, 10+i%5)
		}
		events[i] = Event{Run: 1, Number: int64(i), Hits: hits}
	}
	return events
}

func parametrisedProcessor(t *testing.T) *Processor {
	t.Helper()
	geo := testGeometry(t)
	model, err := BuildModel(background.Parametrised, geo, uniformStats(geo, 0.05, 0.02), nil, 1)
	require.NoError(t, err)
	return NewProcessor(geo, model, testPolicy(t), Options{Seed: 7})
}

func collect(t *testing.T, r *Runner, events []Event) ([]*Result, Summary) {
	t.Helper()
	var got []*Result
	sum, err := r.Run(context.Background(), &sliceSource{events: events}, SinkFunc(func(_ context.Context, res *Result) error {
		got = append(got, res)
		return nil
	}))
	require.NoError(t, err)
	return got, sum
}

func TestRunner_OrderedAndIndependentOfWorkers(t *testing.T) {
	t.Parallel()
	proc := parametrisedProcessor(t)
	events := makeEvents(60)

	serial, sum := collect(t, NewRunner(proc, 1, 0), events)
	parallel, _ := collect(t, NewRunner(proc, 8, 0), events)

	require.Len(t, serial, 60)
	for i, res := range parallel {
		assert.Equal(t, int64(i), res.Number)
	}
	if diff := cmp.Diff(parallel, serial); diff != "" {
		t.Fatalf("parallel run differs from serial run (-got +want):\n%s", diff)
	}
	assert.Equal(t, 60, sum.Events)
	assert.Equal(t, 40, sum.Candidates)
	assert.Zero(t, sum.Skipped)
}

func TestRunner_MaxEvents(t *testing.T) {
	t.Parallel()
	got, sum := collect(t, NewRunner(parametrisedProcessor(t), 3, 10), makeEvents(25))
	assert.Len(t, got, 10)
	assert.Equal(t, 10, sum.Events)
}

func TestRunner_SkipsWithoutBackground(t *testing.T) {
	t.Parallel()
	proc := NewProcessor(testGeometry(t), nil, testPolicy(t), Options{})
	got, sum := collect(t, NewRunner(proc, 2, 0), makeEvents(6))
	assert.Len(t, got, 6)
	assert.Equal(t, 6, sum.Skipped)
	assert.Zero(t, sum.Candidates)
}

func TestRunner_SourceError(t *testing.T) {
	t.Parallel()
	boom := errors.New("corrupt record")
	src := &sliceSource{events: makeEvents(4), err: boom}
	_, err := NewRunner(parametrisedProcessor(t), 2, 0).Run(context.Background(), src, SinkFunc(func(context.Context, *Result) error {
		return nil
	}))
	assert.True(t, errors.Is(err, boom), "got %v", err)
}

func TestRunner_SinkError(t *testing.T) {
	t.Parallel()
	boom := errors.New("disk full")
	calls := 0
	sink := MultiSink{
		SinkFunc(func(context.Context, *Result) error { calls++; return nil }),
		SinkFunc(func(_ context.Context, res *Result) error {
			if res.Number == 3 {
				return boom
			}
			return nil
		}),
	}
	_, err := NewRunner(parametrisedProcessor(t), 4, 0).Run(context.Background(), &sliceSource{events: makeEvents(50)}, sink)
	assert.True(t, errors.Is(err, boom), "got %v", err)
	assert.Equal(t, 4, calls)
}
