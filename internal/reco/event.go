// Package reco runs the per-event reconstruction: background overlay,
// cluster finding on both sides, candidate building and truth matching.
package reco

import (
	"errors"

	"github.com/fcal-reco/beamcal/internal/candidate"
	"github.com/fcal-reco/beamcal/internal/cluster"
	"github.com/fcal-reco/beamcal/internal/geometry"
)

// ErrNoBackground marks an event skipped because no background estimate is
// available. It is reported per event and never stops a run.
var ErrNoBackground = errors.New("no background estimate available")

// Hit is one decoded calorimeter deposit.
type Hit struct {
	Side   geometry.Side
	Layer  int
	Ring   int
	Sector int
	Energy float64
}

// Event is the input of one reconstruction step. Truth is nil when the
// input carries no generator information.
type Event struct {
	Run    int64
	Number int64
	Hits   []Hit
	Truth  []candidate.Truth
}

// Stats summarises the raw deposits of an event.
type Stats struct {
	Hits            int
	DroppedHits     int
	DepositedEnergy float64
	MaxDeposit      float64
	MaxLayer        int
}

// Result is the output of one event.
type Result struct {
	Run        int64
	Number     int64
	Clusters   [2][]cluster.Cluster
	Candidates []candidate.Candidate
	Stats      Stats

	// Skip is non-nil when the event was not reconstructed; it wraps
	// ErrNoBackground.
	Skip error

	// Efficiency is filled when the event carried truth.
	Efficiency candidate.Efficiency
	HasTruth   bool
}

// Skipped reports whether the event was not reconstructed.
func (r *Result) Skipped() bool { return r.Skip != nil }
