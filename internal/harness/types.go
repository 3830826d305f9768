package harness

import (
	"time"
)

// Kind classifies a failed Result.
type Kind string

const (
	KindNone                Kind = ""
	KindTransport           Kind = "transport_error"
	KindAssertion           Kind = "assertion_failure"
	KindPreconditionMissing Kind = "precondition_missing"
)

// Result is the outcome of one executed step. Results are immutable once
// handed to listeners.
type Result struct {
	Suite     string         `json:"suite,omitempty"`
	Group     string         `json:"group"`
	Step      string         `json:"test"`
	Success   bool           `json:"success"`
	Critical  bool           `json:"critical"`
	Kind      Kind           `json:"kind,omitempty"`
	Status    int            `json:"status,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"-"`
}

// Failed reports whether the result counts as a failure.
func (r Result) Failed() bool {
	return !r.Success
}

// State is the lifecycle of a Runner.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Run is the record of one execution: metadata plus the ordered Results.
type Run struct {
	ID          string
	Suite       string
	BaseURL     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Interrupted bool
	Results     []Result
}

// Summary derives the aggregate view from the Results.
func (r *Run) Summary() Summary {
	return Summarize(r.Results)
}

// Summary is always derived from a Result sequence, never stored on its own.
type Summary struct {
	Total            int      `json:"total"`
	Passed           int      `json:"passed"`
	Failed           int      `json:"failed"`
	SuccessRate      float64  `json:"success_rate"`
	CriticalFailures []string `json:"critical_failures"`
}

// Summarize computes a Summary. SuccessRate is a percentage rounded to one
// decimal place, 0 for an empty run.
func Summarize(results []Result) Summary {
	s := Summary{CriticalFailures: []string{}}
	for _, r := range results {
		s.Total++
		if r.Success {
			s.Passed++
			continue
		}
		s.Failed++
		if r.Critical {
			s.CriticalFailures = append(s.CriticalFailures, r.Step)
		}
	}
	s.SuccessRate = SuccessRate(s.Passed, s.Total)
	return s
}

// SuccessRate is passed/total as a percentage rounded to one decimal.
func SuccessRate(passed, total int) float64 {
	if total <= 0 {
		return 0
	}
	rate := float64(passed) / float64(total) * 100
	return float64(int64(rate*10+0.5)) / 10
}

// HasCriticalFailures reports whether any critical step failed.
func (s Summary) HasCriticalFailures() bool {
	return len(s.CriticalFailures) > 0
}
