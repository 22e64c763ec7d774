package reco

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/fcal-reco/beamcal/internal/candidate"
	"github.com/fcal-reco/beamcal/internal/monitoring"
)

// Source yields events until it returns io.EOF.
type Source interface {
	Next() (Event, error)
}

// Sink consumes results in input order.
type Sink interface {
	Write(ctx context.Context, res *Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, res *Result) error

func (f SinkFunc) Write(ctx context.Context, res *Result) error { return f(ctx, res) }

// MultiSink writes every result to each sink in turn.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, res *Result) error {
	for _, s := range m {
		if err := s.Write(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

// Summary accumulates per-run counters.
type Summary struct {
	Events      int
	Skipped     int
	Candidates  int
	DroppedHits int
	Efficiency  candidate.Efficiency
	HasTruth    bool
}

func (s *Summary) add(r *Result) {
	s.Events++
	if r.Skipped() {
		s.Skipped++
	}
	s.Candidates += len(r.Candidates)
	s.DroppedHits += r.Stats.DroppedHits
	if r.HasTruth {
		s.HasTruth = true
		s.Efficiency.Add(r.Efficiency)
	}
}

func (s Summary) String() string {
	out := fmt.Sprintf("events=%d skipped=%d candidates=%d dropped_hits=%d",
		s.Events, s.Skipped, s.Candidates, s.DroppedHits)
	if s.HasTruth {
		out += " " + s.Efficiency.String()
	}
	return out
}

// Runner processes events on a fixed number of workers.
type Runner struct {
	proc      *Processor
	workers   int
	maxEvents int
}

// NewRunner returns a Runner with workers goroutines (at least one).
// maxEvents <= 0 means no limit.
func NewRunner(proc *Processor, workers, maxEvents int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{proc: proc, workers: workers, maxEvents: maxEvents}
}

type job struct {
	seq int
	ev  Event
}

type done struct {
	seq int
	res *Result
}

// Run reads src to the end, reconstructs every event and passes results to
// sink in the order the events were read. The first error from the source,
// a worker or the sink cancels the run.
func (r *Runner) Run(ctx context.Context, src Source, sink Sink) (Summary, error) {
	var sum Summary
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan job, r.workers)
	results := make(chan done, r.workers)

	g.Go(func() error {
		defer close(jobs)
		for seq := 0; r.maxEvents <= 0 || seq < r.maxEvents; seq++ {
			ev, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading event %d: %w", seq, err)
			}
			select {
			case jobs <- job{seq: seq, ev: ev}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	workers, wctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		workers.Go(func() error {
			for j := range jobs {
				res, err := r.proc.ProcessEvent(j.ev)
				if err != nil {
					return err
				}
				select {
				case results <- done{seq: j.seq, res: res}:
				case <-wctx.Done():
					return wctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(results)
		return workers.Wait()
	})

	g.Go(func() error {
		pending := make(map[int]*Result)
		next := 0
		for d := range results {
			pending[d.seq] = d.res
			for {
				res, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				sum.add(res)
				if err := sink.Write(ctx, res); err != nil {
					return fmt.Errorf("writing run %d event %d: %w", res.Run, res.Number, err)
				}
			}
		}
		return nil
	})

	err := g.Wait()
	monitoring.Opsf("run finished: %v", sum)
	return sum, err
}
