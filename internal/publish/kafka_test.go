package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcal-reco/beamcal/internal/candidate"
	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/reco"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_OneMessagePerCandidate(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	res := &reco.Result{
		Run:    3,
		Number: 11,
		Candidates: []candidate.Candidate{
			{Side: geometry.Left, Energy: 10, Theta: 0.012, Phi: 90, NPads: 5, IsReal: true, WasMatched: true},
			{Side: geometry.Right, Energy: 6, Theta: 0.02, Phi: 180, NPads: 4},
		},
	}
	require.NoError(t, p.Write(context.Background(), res))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "3/11/left", string(w.msgs[0].Key))
	assert.Equal(t, "3/11/right", string(w.msgs[1].Key))

	var m CandidateMessage
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &m))
	assert.Equal(t, int64(3), m.Run)
	assert.Equal(t, int64(11), m.Event)
	assert.Equal(t, "left", m.Side)
	assert.InDelta(t, 12.0, m.ThetaMrad, 1e-9)
	assert.True(t, m.IsReal)
	assert.Equal(t, "2026-01-02T03:04:05Z", m.Timestamp)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_NoCandidates(t *testing.T) {
	w := &fakeWriter{err: errors.New("must not be called")}
	p := NewKafkaPublisher(w)
	require.NoError(t, p.Write(context.Background(), &reco.Result{Run: 1, Number: 1}))
	assert.Empty(t, w.msgs)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisher(w)
	err := p.Write(context.Background(), &reco.Result{
		Run: 1, Number: 2,
		Candidates: []candidate.Candidate{{Side: geometry.Left}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Contains(t, err.Error(), "1/2")
}

func TestNewWriter(t *testing.T) {
	w := NewWriter([]string{"localhost:9092"}, "beamcal.candidates")
	assert.Equal(t, "beamcal.candidates", w.Topic)
	assert.False(t, w.Async)
}
