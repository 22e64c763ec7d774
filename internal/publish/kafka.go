// Package publish streams reconstructed candidates to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fcal-reco/beamcal/internal/monitoring"
	"github.com/fcal-reco/beamcal/internal/reco"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CandidateMessage is the JSON payload of one candidate.
type CandidateMessage struct {
	Run        int64      `json:"run"`
	Event      int64      `json:"event"`
	Side       string     `json:"side"`
	Energy     float64    `json:"energy_gev"`
	ThetaMrad  float64    `json:"theta_mrad"`
	PhiDeg     float64    `json:"phi_deg"`
	NPads      int        `json:"n_pads"`
	Position   [3]float64 `json:"position_mm"`
	Momentum   [3]float64 `json:"momentum_gev"`
	IsReal     bool       `json:"is_real"`
	WasMatched bool       `json:"was_matched"`
	Timestamp  string     `json:"timestamp"`
}

// KafkaPublisher sends one message per candidate. It implements reco.Sink.
type KafkaPublisher struct {
	w   MessageWriter
	now func() time.Time
}

// NewWriter returns a synchronous writer for topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// NewKafkaPublisher wraps w.
func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w, now: time.Now}
}

// MessageKey identifies a candidate's event and side. Candidates of the same
// event side hash to the same partition.
func MessageKey(run, event int64, side fmt.Stringer) string {
	return fmt.Sprintf("%d/%d/%s", run, event, side)
}

func (p *KafkaPublisher) Write(ctx context.Context, res *reco.Result) error {
	if len(res.Candidates) == 0 {
		return nil
	}
	ts := p.now().UTC().Format(time.RFC3339)
	msgs := make([]kafka.Message, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		b, err := json.Marshal(CandidateMessage{
			Run:        res.Run,
			Event:      res.Number,
			Side:       c.Side.String(),
			Energy:     c.Energy,
			ThetaMrad:  c.ThetaMrad(),
			PhiDeg:     c.Phi,
			NPads:      c.NPads,
			Position:   c.Position,
			Momentum:   c.Momentum,
			IsReal:     c.IsReal,
			WasMatched: c.WasMatched,
			Timestamp:  ts,
		})
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(MessageKey(res.Run, res.Number, c.Side)),
			Value: b,
		})
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish event %d/%d: %w", res.Run, res.Number, err)
	}
	monitoring.Tracef("published %d candidates for event %d/%d", len(msgs), res.Run, res.Number)
	return nil
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
