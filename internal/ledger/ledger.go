// Package ledger records run history in SQLite: one row per run with its
// final counters, one row per processed unit with its terminal state. The
// ledger is for reporting and debugging long backfills; the CSV-existence
// check in the sink stays the only idempotence gate.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Ledger wraps SQLite access for runs and units.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the ledger database and applies migrations.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

func (l *Ledger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			start_date TEXT,
			end_date TEXT,
			resolution INTEGER,
			fetched INTEGER DEFAULT 0,
			written INTEGER DEFAULT 0,
			skipped INTEGER DEFAULT 0,
			failed INTEGER DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS units (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER,
			source TEXT,
			artifact TEXT,
			state TEXT,
			error TEXT,
			recorded_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_units_run ON units(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_units_artifact ON units(artifact);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("ledger: migrate: %w", err)
		}
	}
	return nil
}

// BeginRun opens a run record and returns its id.
func (l *Ledger) BeginRun(ctx context.Context, startDate, endDate string, resolution int) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, start_date, end_date, resolution) VALUES (?, ?, ?, ?)`,
		time.Now().UTC(), startDate, endDate, resolution)
	if err != nil {
		return 0, fmt.Errorf("ledger: begin run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ledger: begin run id: %w", err)
	}
	return id, nil
}

// RecordUnit appends one unit's terminal state.
func (l *Ledger) RecordUnit(ctx context.Context, runID int64, source, artifact, state, errMsg string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO units (run_id, source, artifact, state, error, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, source, artifact, state, errMsg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ledger: record unit: %w", err)
	}
	return nil
}

// FinishRun stamps the run's end time and final counters.
func (l *Ledger) FinishRun(ctx context.Context, runID int64, fetched, written, skipped, failed int) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, fetched = ?, written = ?, skipped = ?, failed = ? WHERE id = ?`,
		time.Now().UTC(), fetched, written, skipped, failed, runID)
	if err != nil {
		return fmt.Errorf("ledger: finish run: %w", err)
	}
	return nil
}

// Run is one recorded pipeline run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
	StartDate  string
	EndDate    string
	Resolution int
	Fetched    int
	Written    int
	Skipped    int
	Failed     int
}

// LastRuns returns the most recent runs, newest first.
func (l *Ledger) LastRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, start_date, end_date, resolution, fetched, written, skipped, failed
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.StartDate, &r.EndDate,
			&r.Resolution, &r.Fetched, &r.Written, &r.Skipped, &r.Failed); err != nil {
			return nil, fmt.Errorf("ledger: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// UnitStates returns the recorded state per artifact for one run.
func (l *Ledger) UnitStates(ctx context.Context, runID int64) (map[string]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT artifact, state FROM units WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list units: %w", err)
	}
	defer rows.Close()

	states := make(map[string]string)
	for rows.Next() {
		var artifact, state string
		if err := rows.Scan(&artifact, &state); err != nil {
			return nil, fmt.Errorf("ledger: scan unit: %w", err)
		}
		states[artifact] = state
	}
	return states, rows.Err()
}
