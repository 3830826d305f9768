package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/sagacheck/internal/harness"
)

// timeFormat sorts lexically and keeps millisecond precision.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// WriteRun records the start of a run. Summary columns stay zero until
// FinishRun. Writing the same run id twice is an error.
func (s *Store) WriteRun(ctx context.Context, run *harness.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, suite, base_url, started_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.Suite, run.BaseURL, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}
	return nil
}

// WriteResult appends one step result. seq is the result's position in
// the run, starting at 1.
func (s *Store) WriteResult(ctx context.Context, runID string, seq int, res harness.Result) error {
	details := res.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal details for %q: %w", res.Step, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (run_id, seq, suite, grp, step, success, critical, kind, status, message, details, timestamp, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, seq, res.Suite, res.Group, res.Step,
		boolToInt(res.Success), boolToInt(res.Critical),
		string(res.Kind), res.Status, res.Message, string(detailsJSON),
		formatTime(res.Timestamp), res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("write result %d of run %s: %w", seq, runID, err)
	}
	return nil
}

// FinishRun stores the finish time, interruption flag and summary counts.
func (s *Store) FinishRun(ctx context.Context, run *harness.Run) error {
	summary := run.Summary()
	critical, err := json.Marshal(summary.CriticalFailures)
	if err != nil {
		return fmt.Errorf("marshal critical failures: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, interrupted = ?, total = ?, passed = ?, failed = ?, critical_failures = ?
		WHERE id = ?
	`,
		formatTime(run.FinishedAt), boolToInt(run.Interrupted),
		summary.Total, summary.Passed, summary.Failed, string(critical),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, ErrRunNotFound)
	}
	return nil
}

// SaveRun writes a complete run in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *harness.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	summary := run.Summary()
	critical, err := json.Marshal(summary.CriticalFailures)
	if err != nil {
		return fmt.Errorf("marshal critical failures: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, suite, base_url, started_at, finished_at, interrupted, total, passed, failed, critical_failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Suite, run.BaseURL, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		boolToInt(run.Interrupted), summary.Total, summary.Passed, summary.Failed, string(critical),
	); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (run_id, seq, suite, grp, step, success, critical, kind, status, message, details, timestamp, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range run.Results {
		details := r.Details
		if details == nil {
			details = map[string]any{}
		}
		detailsJSON, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal details for %q: %w", r.Step, err)
		}
		if _, err := stmt.ExecContext(ctx,
			run.ID, i+1, r.Suite, r.Group, r.Step,
			boolToInt(r.Success), boolToInt(r.Critical),
			string(r.Kind), r.Status, r.Message, string(detailsJSON),
			formatTime(r.Timestamp), r.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("save result %d of run %s: %w", i+1, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

// DeleteRun removes a run and, by cascade, its results.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeFormat, s)
}
