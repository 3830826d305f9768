package store

import (
	"context"
	"log/slog"

	"github.com/roach88/sagacheck/internal/harness"
)

// Recorder is a harness.Listener that persists a run while it executes,
// so an interrupted run still leaves its partial results in history.
//
// Listener callbacks cannot return errors; the first write error is kept
// and returned by Err, and later writes for the run are skipped.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	runID  string
	seq    int
	err    error
}

// NewRecorder returns a Recorder writing to s.
func NewRecorder(s *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, logger: logger}
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	return r.err
}

// Writes use a background context: the run's own context may already be
// cancelled when the last results arrive, and those must still be stored.

func (r *Recorder) RunStarted(run *harness.Run) {
	r.runID = run.ID
	r.seq = 0
	r.fail(r.store.WriteRun(context.Background(), run))
}

func (r *Recorder) GroupStarted(string, string) {}

func (r *Recorder) StepFinished(res harness.Result) {
	if r.err != nil {
		return
	}
	r.seq++
	r.fail(r.store.WriteResult(context.Background(), r.runID, r.seq, res))
}

func (r *Recorder) RunFinished(run *harness.Run) {
	if r.err != nil {
		return
	}
	r.fail(r.store.FinishRun(context.Background(), run))
	if r.err == nil {
		r.logger.Debug("run recorded", "run_id", run.ID, "results", r.seq)
	}
}

func (r *Recorder) fail(err error) {
	if err == nil || r.err != nil {
		return
	}
	r.err = err
	r.logger.Error("history write failed", "run_id", r.runID, "error", err)
}
