package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fcal-reco/beamcal/internal/candidate"
	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/reco"
)

// StartRun records a reconstruction run. snapshotID may be zero when the
// background did not come from the database.
func (db *DB) StartRun(configJSON string, snapshotID int64) (uuid.UUID, error) {
	id := uuid.New()
	var snap sql.NullInt64
	if snapshotID > 0 {
		snap = sql.NullInt64{Int64: snapshotID, Valid: true}
	}
	_, err := db.Exec(`INSERT INTO reco_run (run_id, started_unix_nanos, config_json, snapshot_id) VALUES (?, ?, ?, ?)`,
		id.String(), time.Now().UnixNano(), configJSON, snap)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// CandidateRow is a stored candidate with its event identity.
type CandidateRow struct {
	RunID       uuid.UUID
	RunNumber   int64
	EventNumber int64
	candidate.Candidate
}

// InsertCandidates stores the candidates of one result in a transaction.
func (db *DB) InsertCandidates(ctx context.Context, runID uuid.UUID, res *reco.Result) error {
	if len(res.Candidates) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO candidate (
			run_id, run_number, event_number, side, energy, theta_rad, phi_deg, n_pads,
			pos_x, pos_y, pos_z, mom_x, mom_y, mom_z, is_real, was_matched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare candidate insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range res.Candidates {
		_, err := stmt.ExecContext(ctx, runID.String(), res.Run, res.Number, int(c.Side), c.Energy, c.Theta, c.Phi, c.NPads,
			c.Position[0], c.Position[1], c.Position[2], c.Momentum[0], c.Momentum[1], c.Momentum[2],
			boolToInt(c.IsReal), boolToInt(c.WasMatched))
		if err != nil {
			return fmt.Errorf("failed to insert candidate: %w", err)
		}
	}
	return tx.Commit()
}

// CandidatesForRun returns the candidates of a run in insertion order.
func (db *DB) CandidatesForRun(runID uuid.UUID) ([]CandidateRow, error) {
	rows, err := db.Query(`SELECT run_number, event_number, side, energy, theta_rad, phi_deg, n_pads,
			pos_x, pos_y, pos_z, mom_x, mom_y, mom_z, is_real, was_matched
		FROM candidate WHERE run_id = ? ORDER BY candidate_id ASC`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var out []CandidateRow
	for rows.Next() {
		r := CandidateRow{RunID: runID}
		var side, isReal, wasMatched int
		err := rows.Scan(&r.RunNumber, &r.EventNumber, &side, &r.Energy, &r.Theta, &r.Phi, &r.NPads,
			&r.Position[0], &r.Position[1], &r.Position[2], &r.Momentum[0], &r.Momentum[1], &r.Momentum[2],
			&isReal, &wasMatched)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		r.Side = geometry.Side(side)
		r.IsReal = isReal == 1
		r.WasMatched = wasMatched == 1
		r.Charge = candidate.UndefinedCharge
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ResultSink stores every result of a run. It implements reco.Sink.
type ResultSink struct {
	db    *DB
	runID uuid.UUID
}

// NewResultSink returns a sink writing into run runID.
func NewResultSink(db *DB, runID uuid.UUID) *ResultSink {
	return &ResultSink{db: db, runID: runID}
}

func (s *ResultSink) Write(ctx context.Context, res *reco.Result) error {
	return s.db.InsertCandidates(ctx, s.runID, res)
}
