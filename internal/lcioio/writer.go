package lcioio

import (
	"context"
	"fmt"
	"math"

	"go-hep.org/x/hep/lcio"

	"github.com/fcal-reco/beamcal/internal/candidate"
	"github.com/fcal-reco/beamcal/internal/reco"
)

const detectorName = "BeamCal"

// Writer stores candidates as Cluster and ReconstructedParticle
// collections. Every result becomes one LCIO event; events without
// candidates carry no collections. Writer implements reco.Sink.
type Writer struct {
	w                 *lcio.Writer
	clusterCollection string
	recoCollection    string
	runs              map[int64]bool
}

// Create opens path for writing.
func Create(path, clusterCollection, recoCollection string) (*Writer, error) {
	w, err := lcio.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create %q: %w", path, err)
	}
	return &Writer{
		w:                 w,
		clusterCollection: clusterCollection,
		recoCollection:    recoCollection,
		runs:              make(map[int64]bool),
	}, nil
}

func (w *Writer) Write(_ context.Context, res *reco.Result) error {
	if !w.runs[res.Run] {
		err := w.w.WriteRunHeader(&lcio.RunHeader{
			RunNumber: int32(res.Run),
			Detector:  detectorName,
			Descr:     "beamcal cluster reconstruction",
		})
		if err != nil {
			return fmt.Errorf("could not write run header %d: %w", res.Run, err)
		}
		w.runs[res.Run] = true
	}

	evt := lcio.Event{
		RunNumber:   int32(res.Run),
		EventNumber: int32(res.Number),
		Detector:    detectorName,
	}
	if len(res.Candidates) > 0 {
		clusters, parts := toCollections(res.Candidates)
		evt.Add(w.clusterCollection, clusters)
		evt.Add(w.recoCollection, parts)
	}
	if err := w.w.WriteEvent(&evt); err != nil {
		return fmt.Errorf("could not write event %d: %w", res.Number, err)
	}
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	return w.w.Close()
}

func toCollections(cands []candidate.Candidate) (*lcio.ClusterContainer, *lcio.RecParticleContainer) {
	clusters := &lcio.ClusterContainer{Clusters: make([]lcio.Cluster, len(cands))}
	parts := &lcio.RecParticleContainer{Parts: make([]lcio.RecParticle, len(cands))}
	for i, c := range cands {
		clusters.Clusters[i] = lcio.Cluster{
			Energy: float32(c.Energy),
			Pos:    vec32(c.Position),
			Theta:  float32(c.Theta),
			Phi:    float32(c.Phi * math.Pi / 180),
		}
		parts.Parts[i] = lcio.RecParticle{
			P:        vec32(c.Momentum),
			Energy:   float32(c.Energy),
			Mass:     float32(c.Mass),
			Charge:   float32(c.Charge),
			Clusters: []*lcio.Cluster{&clusters.Clusters[i]},
		}
	}
	return clusters, parts
}

func vec32(v [3]float64) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}
