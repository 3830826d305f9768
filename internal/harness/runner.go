package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/sagacheck/internal/apiclient"
	"github.com/roach88/sagacheck/internal/fixture"
)

// ErrAlreadyStarted is returned when Run is called on a Runner that has
// already run.
var ErrAlreadyStarted = errors.New("runner already started")

// Listener observes a run as it progresses. Implementations must not
// retain or mutate the Run's Results slice.
type Listener interface {
	RunStarted(run *Run)
	GroupStarted(suite, group string)
	StepFinished(res Result)
	RunFinished(run *Run)
}

// NopListener implements Listener with no-ops; embed it to override only
// the callbacks you need.
type NopListener struct{}

func (NopListener) RunStarted(*Run) {}
func (NopListener) GroupStarted(string, string) {}
func (NopListener) StepFinished(Result) {}
func (NopListener) RunFinished(*Run) {}

// Runner executes suites against one API client. A Runner is single-use:
// Pending -> Running -> Completed.
type Runner struct {
	client    *apiclient.Client
	logger    *slog.Logger
	clock     Clock
	ids       IDGenerator
	delay     time.Duration
	settings  Settings
	listeners []Listener
	state     State
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithClock overrides the timestamp source.
func WithClock(c Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(g IDGenerator) RunnerOption {
	return func(r *Runner) { r.ids = g }
}

// WithDelay pauses between steps. The pause is cut short by cancellation.
func WithDelay(d time.Duration) RunnerOption {
	return func(r *Runner) { r.delay = d }
}

// WithSettings sets the run-wide parameters steps read from Env.
func WithSettings(s Settings) RunnerOption {
	return func(r *Runner) { r.settings = s }
}

// WithListener adds a listener. Listeners are called in registration order.
func WithListener(l Listener) RunnerOption {
	return func(r *Runner) { r.listeners = append(r.listeners, l) }
}

// NewRunner creates a Runner for client.
func NewRunner(client *apiclient.Client, opts ...RunnerOption) *Runner {
	r := &Runner{
		client: client,
		logger: slog.Default(),
		clock:  SystemClock{},
		ids:    UUIDv7Generator{},
		state:  StatePending,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the lifecycle state.
func (r *Runner) State() State {
	return r.state
}

// Run executes suites in order. Each suite gets a fresh fixture store;
// all Results go into one Run. The returned error is non-nil only for
// misuse (invalid suites, second call); step failures are Results.
func (r *Runner) Run(ctx context.Context, suites ...Suite) (*Run, error) {
	if r.state != StatePending {
		return nil, ErrAlreadyStarted
	}
	if len(suites) == 0 {
		return nil, errors.New("no suites to run")
	}
	names := make([]string, 0, len(suites))
	for _, s := range suites {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		names = append(names, s.Name)
	}

	r.state = StateRunning
	defer func() { r.state = StateCompleted }()

	run := &Run{
		ID:        r.ids.Generate(),
		Suite:     strings.Join(names, ","),
		BaseURL:   r.client.BaseURL(),
		StartedAt: r.clock.Now(),
		Results:   []Result{},
	}
	logger := r.logger.With("run_id", run.ID)
	logger.Info("run started", "suite", run.Suite, "base_url", run.BaseURL)
	for _, l := range r.listeners {
		l.RunStarted(run)
	}

	for _, s := range suites {
		if !r.runSuite(ctx, logger, run, s) {
			run.Interrupted = true
			break
		}
	}

	run.FinishedAt = r.clock.Now()
	summary := run.Summary()
	logger.Info("run finished",
		"passed", summary.Passed,
		"failed", summary.Failed,
		"critical_failures", len(summary.CriticalFailures),
		"interrupted", run.Interrupted,
	)
	for _, l := range r.listeners {
		l.RunFinished(run)
	}
	return run, nil
}

// runSuite returns false when the run was cancelled.
func (r *Runner) runSuite(ctx context.Context, logger *slog.Logger, run *Run, s Suite) bool {
	env := &Env{
		Ctx:      ctx,
		Fixtures: fixture.New(),
		RunID:    run.ID,
		Suite:    s.Name,
		Tag:      RunTag(run.ID),
		Settings: r.settings,
	}
	broken := make(map[fixture.Ref]string)
	first := true

	for _, g := range s.Groups {
		if ctx.Err() != nil {
			return false
		}
		for _, l := range r.listeners {
			l.GroupStarted(s.Name, g.Name)
		}
		for _, st := range g.Steps {
			if !first && !r.pause(ctx) {
				return false
			}
			if ctx.Err() != nil {
				return false
			}
			first = false

			res := r.executeStep(env, s.Name, g.Name, st, broken)
			if abandoned(ctx, res) {
				logger.Debug("step abandoned", "suite", s.Name, "group", g.Name, "step", res.Step)
				return false
			}
			updateBroken(broken, st, res)
			run.Results = append(run.Results, res)

			logger.Debug("step finished",
				"suite", s.Name,
				"group", g.Name,
				"step", res.Step,
				"success", res.Success,
				"kind", string(res.Kind),
				"status", res.Status,
				"duration", res.Duration,
			)
			for _, l := range r.listeners {
				l.StepFinished(res)
			}
		}
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		for _, e := range env.Fixtures.Snapshot() {
			logger.Debug("fixture", "suite", s.Name, "ref", e.Ref.String(), "value", e.Value)
		}
	}
	return true
}

// abandoned reports whether a step lost its request to cancellation. Such a
// step did not run to completion and produces no Result.
func abandoned(ctx context.Context, res Result) bool {
	return ctx.Err() != nil && res.Kind == KindTransport
}

func (r *Runner) pause(ctx context.Context) bool {
	if r.delay <= 0 {
		return true
	}
	t := time.NewTimer(r.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// executeStep never panics and always returns exactly one Result.
func (r *Runner) executeStep(env *Env, suite, group string, st Step, broken map[fixture.Ref]string) (res Result) {
	start := r.clock.Now()
	res = Result{
		Suite:     suite,
		Group:     group,
		Step:      st.Name,
		Critical:  st.Critical,
		Timestamp: start,
		Details:   copyDetails(st.Details),
	}
	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Kind = KindAssertion
			res.Message = fmt.Sprintf("step panicked: %v", p)
		}
		res.Duration = r.clock.Now().Sub(start)
	}()

	for _, ref := range st.Requires {
		if by, ok := broken[ref]; ok {
			return failed(res, KindPreconditionMissing,
				fmt.Sprintf("precondition not met: %s unavailable because %q failed", ref, by))
		}
		if !env.Fixtures.Has(ref.Kind, ref.Name) {
			return failed(res, KindPreconditionMissing, (&fixture.MissingError{Kind: ref.Kind, Name: ref.Name}).Error())
		}
	}

	call, err := st.Build(env)
	if err != nil {
		return buildFailed(res, "build request", err)
	}
	pred := st.Expect
	if st.ExpectFrom != nil {
		if pred, err = st.ExpectFrom(env); err != nil {
			return buildFailed(res, "build expectation", err)
		}
	}

	resp, err := r.client.Send(env.Ctx, call.Method, call.Path, call.Request)
	if err != nil {
		if apiclient.IsTransport(err) {
			return failed(res, KindTransport, err.Error())
		}
		return failed(res, KindAssertion, err.Error())
	}
	res.Status = resp.Status

	out := pred(resp)
	if !out.Pass {
		res = failed(res, KindAssertion, out.Message)
		res.Details = withDetail(res.Details, "expected", out.Expected)
		res.Details = withDetail(res.Details, "actual", out.Actual)
		res.Details = withDetail(res.Details, "response", responseDetail(resp))
		return res
	}

	if st.Record != nil {
		if err := st.Record(env, resp); err != nil {
			res = failed(res, KindAssertion, fmt.Sprintf("record: %v", err))
			res.Details = withDetail(res.Details, "response", responseDetail(resp))
			return res
		}
	}

	res.Success = true
	res.Message = out.Message
	return res
}

// buildFailed maps a missing fixture to precondition_missing and anything
// else to an assertion failure.
func buildFailed(res Result, what string, err error) Result {
	var missing *fixture.MissingError
	if errors.As(err, &missing) {
		return failed(res, KindPreconditionMissing, missing.Error())
	}
	return failed(res, KindAssertion, fmt.Sprintf("%s: %v", what, err))
}

func failed(res Result, kind Kind, msg string) Result {
	res.Success = false
	res.Kind = kind
	res.Message = msg
	return res
}

// updateBroken poisons a load-bearing step's outputs on failure and clears
// them when the step (re)produces them.
func updateBroken(broken map[fixture.Ref]string, st Step, res Result) {
	for _, ref := range st.Provides {
		if res.Success {
			delete(broken, ref)
		} else if st.LoadBearing {
			broken[ref] = st.Name
		}
	}
}

func copyDetails(d map[string]any) map[string]any {
	if len(d) == 0 {
		return nil
	}
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func withDetail(d map[string]any, key string, value any) map[string]any {
	if d == nil {
		d = make(map[string]any)
	}
	d[key] = value
	return d
}

const maxRawDetail = 512

func responseDetail(resp *apiclient.Response) any {
	if resp.Body != nil {
		return resp.Body
	}
	if len(resp.Raw) <= maxRawDetail {
		return resp.Raw
	}
	n := maxRawDetail
	for n > 0 && !utf8.RuneStart(resp.Raw[n]) {
		n--
	}
	return resp.Raw[:n] + "..."
}
