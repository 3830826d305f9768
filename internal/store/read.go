package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/sagacheck/internal/harness"
)

// ErrRunNotFound is returned when a run id is not in the history.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID          string
	Suite       string
	BaseURL     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Interrupted bool
	Summary     harness.Summary
}

// Finished reports whether FinishRun was recorded for the run.
func (r RunRecord) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// StepRecord is one result of a named step, with the run it belongs to.
type StepRecord struct {
	RunID     string
	StartedAt time.Time
	Result    harness.Result
}

const runColumns = `id, suite, base_url, started_at, finished_at, interrupted, total, passed, failed, critical_failures`

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id COLLATE BINARY DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRunRecord returns the runs row for id.
func (s *Store) ReadRunRecord(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return rec, err
}

// ReadResults returns the results of a run in execution order.
func (s *Store) ReadResults(ctx context.Context, runID string) ([]harness.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT suite, grp, step, success, critical, kind, status, message, details, timestamp, duration_ms
		FROM results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read results of %s: %w", runID, err)
	}
	defer rows.Close()

	results := []harness.Result{}
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// ReadRun rebuilds a harness.Run from history. The summary of the
// returned run is re-derived from its results.
func (s *Store) ReadRun(ctx context.Context, id string) (*harness.Run, error) {
	rec, err := s.ReadRunRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := s.ReadResults(ctx, id)
	if err != nil {
		return nil, err
	}
	return &harness.Run{
		ID:          rec.ID,
		Suite:       rec.Suite,
		BaseURL:     rec.BaseURL,
		StartedAt:   rec.StartedAt,
		FinishedAt:  rec.FinishedAt,
		Interrupted: rec.Interrupted,
		Results:     results,
	}, nil
}

// StepHistory returns the most recent results of one step across runs.
func (s *Store) StepHistory(ctx context.Context, step string, limit int) ([]StepRecord, error) {
	query := `
		SELECT r.run_id, runs.started_at,
		       r.suite, r.grp, r.step, r.success, r.critical, r.kind, r.status, r.message, r.details, r.timestamp, r.duration_ms
		FROM results r
		JOIN runs ON runs.id = r.run_id
		WHERE r.step = ?
		ORDER BY runs.started_at DESC, r.run_id DESC, r.seq ASC`
	args := []any{step}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("step history for %q: %w", step, err)
	}
	defer rows.Close()

	out := []StepRecord{}
	for rows.Next() {
		var (
			rec                          StepRecord
			res                          harness.Result
			success, critical            int
			startedAt, kind, details, ts string
			durationMS                   int64
		)
		if err := rows.Scan(&rec.RunID, &startedAt,
			&res.Suite, &res.Group, &res.Step, &success, &critical, &kind,
			&res.Status, &res.Message, &details, &ts, &durationMS,
		); err != nil {
			return nil, fmt.Errorf("scan step history: %w", err)
		}
		if rec.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if err := fillResult(&res, success, critical, kind, details, ts, durationMS); err != nil {
			return nil, err
		}
		rec.Result = res
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step history: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var (
		rec                 RunRecord
		started, finished   string
		interrupted         int
		criticalFailuresRaw string
	)
	err := sc.Scan(&rec.ID, &rec.Suite, &rec.BaseURL, &started, &finished, &interrupted,
		&rec.Summary.Total, &rec.Summary.Passed, &rec.Summary.Failed, &criticalFailuresRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, err
		}
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	if rec.StartedAt, err = parseTime(started); err != nil {
		return RunRecord{}, fmt.Errorf("parse started_at of %s: %w", rec.ID, err)
	}
	if rec.FinishedAt, err = parseTime(finished); err != nil {
		return RunRecord{}, fmt.Errorf("parse finished_at of %s: %w", rec.ID, err)
	}
	rec.Interrupted = interrupted != 0

	rec.Summary.CriticalFailures = []string{}
	if err := json.Unmarshal([]byte(criticalFailuresRaw), &rec.Summary.CriticalFailures); err != nil {
		return RunRecord{}, fmt.Errorf("decode critical_failures of %s: %w", rec.ID, err)
	}
	rec.Summary.SuccessRate = harness.SuccessRate(rec.Summary.Passed, rec.Summary.Total)
	return rec, nil
}

func scanResult(sc scanner) (harness.Result, error) {
	var (
		res               harness.Result
		success, critical int
		kind, details, ts string
		durationMS        int64
	)
	if err := sc.Scan(&res.Suite, &res.Group, &res.Step, &success, &critical, &kind,
		&res.Status, &res.Message, &details, &ts, &durationMS); err != nil {
		return harness.Result{}, fmt.Errorf("scan result: %w", err)
	}
	if err := fillResult(&res, success, critical, kind, details, ts, durationMS); err != nil {
		return harness.Result{}, err
	}
	return res, nil
}

func fillResult(res *harness.Result, success, critical int, kind, details, ts string, durationMS int64) error {
	res.Success = success != 0
	res.Critical = critical != 0
	res.Kind = harness.Kind(kind)
	res.Duration = time.Duration(durationMS) * time.Millisecond

	var err error
	if res.Timestamp, err = parseTime(ts); err != nil {
		return fmt.Errorf("parse timestamp of %q: %w", res.Step, err)
	}

	var d map[string]any
	if err := json.Unmarshal([]byte(details), &d); err != nil {
		return fmt.Errorf("decode details of %q: %w", res.Step, err)
	}
	if len(d) > 0 {
		res.Details = d
	}
	return nil
}
