package db

import (
	"database/sql"
	"fmt"

	"github.com/banshee-data/signal.report/internal/anomaly"
	"github.com/google/uuid"
)

// DefaultBatchSize is the number of steps written per transaction.
const DefaultBatchSize = 100

// Run is one recorded pass of the monitor over a source.
type Run struct {
	RunID              string
	Source             string
	Threshold          float64
	ConfigJSON         string
	StartedAtUnixNanos int64
	FinishedUnixNanos  int64 // 0 while the run is in progress
	Steps              int
	Anomalies          int
}

// Step is one recorded monitor result.
type Step struct {
	Index       int
	Observation float64
	Predicted   float64
	Corrected   float64
	Residual    float64
	Anomalous   bool
	Skipped     bool
}

// StartRun inserts a new run and returns its ID.
func (db *DB) StartRun(source string, threshold float64, configJSON string) (string, error) {
	runID := uuid.NewString()
	_, err := db.Exec(`INSERT INTO runs (run_id, source, threshold, config_json, started_at_unix_nanos)
		VALUES (?, ?, ?, ?, ?)`, runID, source, threshold, configJSON, db.clock.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return runID, nil
}

// FinishRun stamps the run's end time and totals.
func (db *DB) FinishRun(runID string, sum anomaly.Summary) error {
	res, err := db.Exec(`UPDATE runs SET finished_at_unix_nanos = ?, steps = ?, anomalies = ? WHERE run_id = ?`,
		db.clock.Now().UnixNano(), sum.Steps, sum.Anomalies, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Runs returns all runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`SELECT run_id, source, threshold, COALESCE(config_json, ''),
		started_at_unix_nanos, COALESCE(finished_at_unix_nanos, 0), steps, anomalies
		FROM runs ORDER BY started_at_unix_nanos DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Source, &r.Threshold, &r.ConfigJSON,
			&r.StartedAtUnixNanos, &r.FinishedUnixNanos, &r.Steps, &r.Anomalies); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Steps returns every recorded step of a run in order.
func (db *DB) Steps(runID string) ([]Step, error) {
	return db.querySteps(`SELECT step_index, observation, predicted, corrected, residual, anomalous, skipped
		FROM steps WHERE run_id = ? ORDER BY step_index`, runID)
}

// Anomalies returns the flagged steps of a run in order.
func (db *DB) Anomalies(runID string) ([]Step, error) {
	return db.querySteps(`SELECT step_index, observation, predicted, corrected, residual, anomalous, skipped
		FROM steps WHERE run_id = ? AND anomalous = 1 ORDER BY step_index`, runID)
}

func (db *DB) querySteps(query, runID string) ([]Step, error) {
	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var s Step
		if err := rows.Scan(&s.Index, &s.Observation, &s.Predicted, &s.Corrected,
			&s.Residual, &s.Anomalous, &s.Skipped); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// RunRecorder is an anomaly.Sink that writes each result as a step of one
// run. Writes are batched in transactions; call Close to flush. The DB
// holds a single connection, so other queries wait until Close.
type RunRecorder struct {
	db      *DB
	runID   string
	batch   int
	tx      *sql.Tx
	stmt    *sql.Stmt
	pending int
}

// NewRunRecorder records into runID. A non-positive batch size uses
// DefaultBatchSize.
func (db *DB) NewRunRecorder(runID string, batchSize int) *RunRecorder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RunRecorder{db: db, runID: runID, batch: batchSize}
}

// RunID returns the run being recorded.
func (r *RunRecorder) RunID() string { return r.runID }

// Consume writes res.
func (r *RunRecorder) Consume(res anomaly.Result) error {
	if r.tx == nil {
		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		stmt, err := tx.Prepare(`INSERT INTO steps
			(run_id, step_index, observation, predicted, corrected, residual, anomalous, skipped)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		r.tx, r.stmt = tx, stmt
	}

	if _, err := r.stmt.Exec(r.runID, res.Index, res.Value(), res.PredictedValue(),
		res.CorrectedValue(), res.Score, res.Anomalous, res.Skipped); err != nil {
		return fmt.Errorf("failed to record step %d: %w", res.Index, err)
	}

	r.pending++
	if r.pending >= r.batch {
		return r.flush()
	}
	return nil
}

// Close commits any pending steps.
func (r *RunRecorder) Close() error {
	return r.flush()
}

func (r *RunRecorder) flush() error {
	if r.tx == nil {
		return nil
	}
	r.stmt.Close()
	err := r.tx.Commit()
	r.tx, r.stmt, r.pending = nil, nil, 0
	if err != nil {
		return fmt.Errorf("failed to commit steps: %w", err)
	}
	return nil
}
