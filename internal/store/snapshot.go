package store

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/fcal-reco/beamcal/internal/background"
	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/padgrid"
)

// BackgroundSnapshot is a stored average/sigma pair for both sides.
type BackgroundSnapshot struct {
	ID             int64
	TakenUnixNanos int64
	Method         string
	NumberOfBX     int
	Layers         int
	Rings          int
	ParamsJSON     string
	GridBlob       []byte
}

type sideBlob struct {
	Side    int
	Layers  int
	Sectors []int
	Average []float64
	Sigma   []float64
}

// EncodeStats serialises stats with gob and gzip.
func EncodeStats(st background.Stats) ([]byte, error) {
	var sides []sideBlob
	for _, side := range geometry.Sides {
		avg, sig := st.Average[side], st.Sigma[side]
		if avg == nil || sig == nil {
			return nil, fmt.Errorf("missing %v side grids", side)
		}
		shape := avg.Shape()
		sides = append(sides, sideBlob{
			Side:    int(side),
			Layers:  shape.Layers,
			Sectors: shape.Sectors,
			Average: avg.Values(),
			Sigma:   sig.Values(),
		})
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(sides); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeStats is the inverse of EncodeStats.
func DecodeStats(blob []byte) (background.Stats, error) {
	var st background.Stats
	if len(blob) == 0 {
		return st, fmt.Errorf("empty grid blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return st, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var sides []sideBlob
	if err := gob.NewDecoder(gz).Decode(&sides); err != nil {
		return st, fmt.Errorf("failed to decode grids: %w", err)
	}
	for _, sb := range sides {
		side := geometry.Side(sb.Side)
		if !side.Valid() {
			return st, fmt.Errorf("invalid side %d in grid blob", sb.Side)
		}
		shape := padgrid.Shape{Layers: sb.Layers, Sectors: sb.Sectors}
		avg := padgrid.NewWithShape(side, shape)
		sig := padgrid.NewWithShape(side, shape)
		if err := avg.SetValues(sb.Average); err != nil {
			return st, err
		}
		if err := sig.SetValues(sb.Sigma); err != nil {
			return st, err
		}
		st.Average[side] = avg
		st.Sigma[side] = sig
	}
	for _, side := range geometry.Sides {
		if st.Average[side] == nil {
			return st, fmt.Errorf("grid blob has no %v side", side)
		}
	}
	return st, nil
}

// InsertBackgroundSnapshot stores s and returns its id.
func (db *DB) InsertBackgroundSnapshot(s *BackgroundSnapshot) (int64, error) {
	if s == nil {
		return 0, nil
	}
	stmt := `INSERT INTO bg_snapshot (taken_unix_nanos, method, number_of_bx, layers, rings, params_json, grid_blob)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := db.Exec(stmt, s.TakenUnixNanos, s.Method, s.NumberOfBX, s.Layers, s.Rings, s.ParamsJSON, s.GridBlob)
	if err != nil {
		return 0, fmt.Errorf("failed to insert background snapshot: %w", err)
	}
	return res.LastInsertId()
}

// LatestBackgroundSnapshot returns the most recent snapshot, or nil when
// none has been stored.
func (db *DB) LatestBackgroundSnapshot() (*BackgroundSnapshot, error) {
	query := `SELECT snapshot_id, taken_unix_nanos, method, number_of_bx, layers, rings, params_json, grid_blob
			  FROM bg_snapshot
			  ORDER BY taken_unix_nanos DESC, snapshot_id DESC
			  LIMIT 1`
	var s BackgroundSnapshot
	err := db.QueryRow(query).Scan(&s.ID, &s.TakenUnixNanos, &s.Method, &s.NumberOfBX, &s.Layers, &s.Rings, &s.ParamsJSON, &s.GridBlob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get background snapshot: %w", err)
	}
	return &s, nil
}

// ListBackgroundSnapshots returns up to limit snapshots, most recent first.
// Grid blobs are not loaded.
func (db *DB) ListBackgroundSnapshots(limit int) ([]BackgroundSnapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`SELECT snapshot_id, taken_unix_nanos, method, number_of_bx, layers, rings, params_json
		FROM bg_snapshot
		ORDER BY taken_unix_nanos DESC, snapshot_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list background snapshots: %w", err)
	}
	defer rows.Close()

	var out []BackgroundSnapshot
	for rows.Next() {
		var s BackgroundSnapshot
		if err := rows.Scan(&s.ID, &s.TakenUnixNanos, &s.Method, &s.NumberOfBX, &s.Layers, &s.Rings, &s.ParamsJSON); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
