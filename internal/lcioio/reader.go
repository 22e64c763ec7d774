package lcioio

import (
	"errors"
	"fmt"
	"io"

	"go-hep.org/x/hep/lcio"

	"github.com/fcal-reco/beamcal/internal/candidate"
	"github.com/fcal-reco/beamcal/internal/monitoring"
	"github.com/fcal-reco/beamcal/internal/reco"
)

// ReaderOptions configures event decoding.
type ReaderOptions struct {
	HitCollection string
	MCCollection  string
	Fields        CellFields
	HitMinEnergy  float64
	// Acceptance enables truth extraction from the MC collection.
	Acceptance *candidate.Acceptance
}

// Reader iterates the events of one LCIO file. It implements reco.Source.
type Reader struct {
	path string
	r    *lcio.Reader
	opts ReaderOptions
	n    int
}

// Open opens path for reading.
func Open(path string, opts ReaderOptions) (*Reader, error) {
	r, err := lcio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %q: %w", path, err)
	}
	return &Reader{path: path, r: r, opts: opts}, nil
}

// Next returns the next event or io.EOF.
func (r *Reader) Next() (reco.Event, error) {
	if !r.r.Next() {
		if err := r.r.Err(); err != nil && !errors.Is(err, io.EOF) {
			return reco.Event{}, fmt.Errorf("reading %q after %d events: %w", r.path, r.n, err)
		}
		return reco.Event{}, io.EOF
	}
	r.n++
	evt := r.r.Event()
	ev := reco.Event{Run: int64(evt.RunNumber), Number: int64(evt.EventNumber)}

	hits, err := r.decodeHits(&evt)
	if err != nil {
		return reco.Event{}, err
	}
	ev.Hits = hits
	if r.opts.Acceptance != nil {
		ev.Truth = r.truth(&evt)
	}
	return ev, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.r.Close()
}

func (r *Reader) decodeHits(evt *lcio.Event) ([]reco.Hit, error) {
	return decodeHitCollection(evt, r.opts.HitCollection, r.opts.Fields, r.opts.HitMinEnergy)
}

// decodeHitCollection reads the named SimCalorimeterHit collection. An
// event without the collection has no hits.
func decodeHitCollection(evt *lcio.Event, name string, fields CellFields, minEnergy float64) ([]reco.Hit, error) {
	if !evt.Has(name) {
		return nil, nil
	}
	col, ok := evt.Get(name).(*lcio.SimCalorimeterHitContainer)
	if !ok {
		return nil, fmt.Errorf("collection %q is %T, not SimCalorimeterHit", name, evt.Get(name))
	}
	dec := lcio.NewCellIDDecoderFrom(col.Params)
	if dec == nil {
		return nil, fmt.Errorf("collection %q has no CellIDEncoding", name)
	}
	hits := make([]reco.Hit, 0, len(col.Hits))
	for i := range col.Hits {
		h := &col.Hits[i]
		e := float64(h.Energy)
		if e < minEnergy {
			continue
		}
		hits = append(hits, fields.decodeHit(func(field string) int64 { return dec.Get(h, field) }, e))
	}
	return hits, nil
}

// truth keeps generator particles (status 1, or status 0 for the first
// particle of a particle-gun event) that reach the detector acceptance.
// Events without the MC collection carry no truth and return nil.
func (r *Reader) truth(evt *lcio.Event) []candidate.Truth {
	name := r.opts.MCCollection
	if !evt.Has(name) {
		return nil
	}
	col, ok := evt.Get(name).(*lcio.McParticleContainer)
	if !ok {
		monitoring.Opsf("collection %q is %T, not MCParticle; no truth", name, evt.Get(name))
		return nil
	}
	out := []candidate.Truth{}
	for i, p := range col.Particles {
		if !(p.GenStatus == 1 || (p.GenStatus == 0 && i == 0)) {
			continue
		}
		if t, ok := r.opts.Acceptance.Project(p.PDG, p.P); ok {
			monitoring.Diagf("truth particle: pdg=%d theta=%.2fmrad phi=%.1fdeg p=%.1f",
				t.PDG, t.ThetaMrad(), t.Phi, t.Momentum)
			out = append(out, t)
		}
	}
	return out
}
