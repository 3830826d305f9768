package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/sagacheck/internal/apiclient"
	"github.com/roach88/sagacheck/internal/config"
	"github.com/roach88/sagacheck/internal/expect"
	"github.com/roach88/sagacheck/internal/fixture"
)

// Settings are run-wide parameters available to step builders.
type Settings struct {
	Password    string // credential for generated actors
	EmailDomain string // domain of generated e-mail addresses
}

// Env is what a step sees while it runs.
type Env struct {
	Ctx      context.Context
	Fixtures *fixture.Store
	RunID    string
	Suite    string
	// Tag is a short token derived from RunID, used to keep generated
	// identities unique across runs against the same service.
	Tag      string
	Settings Settings
}

// Email returns a run-unique address for a logical actor name. Inside a
// suite the suite name is prepended, so "all" runs never reuse an address.
func (e *Env) Email(actor string) string {
	domain := e.Settings.EmailDomain
	if domain == "" {
		domain = config.DefaultEmailDomain
	}
	if e.Suite != "" {
		actor = e.Suite + "_" + actor
	}
	return fmt.Sprintf("%s_%s@%s", actor, e.Tag, domain)
}

// Call is a fully resolved request.
type Call struct {
	Method  string
	Path    string
	Request apiclient.Request
}

// Step is one declarative unit of a suite. Steps are immutable values and
// are executed at most once per run.
type Step struct {
	Name string

	// Critical steps count towards Summary.CriticalFailures.
	Critical bool

	// LoadBearing steps poison their Provides refs when they fail, so
	// later steps that Require them are skipped as precondition_missing
	// even if an older value of the fixture is still recorded.
	LoadBearing bool

	Requires []fixture.Ref
	Provides []fixture.Ref

	// Build resolves the request from fixtures. Returning a
	// *fixture.MissingError yields a precondition_missing Result.
	Build func(env *Env) (Call, error)

	// Expect judges the response.
	Expect expect.Predicate

	// ExpectFrom builds the predicate from fixtures when the expected
	// values are only known at run time (an actor's user id). It takes
	// precedence over Expect; a *fixture.MissingError skips the step.
	ExpectFrom func(env *Env) (expect.Predicate, error)

	// Record runs only when Expect passes and stores what later steps need.
	// An error here fails the step as an assertion_failure.
	Record func(env *Env, resp *apiclient.Response) error

	// Details are copied into the Result, e.g. {"policy_unresolved": true}.
	Details map[string]any
}

// Validate checks a step definition.
func (s Step) Validate() error {
	if s.Name == "" {
		return errors.New("step has no name")
	}
	if s.Build == nil {
		return fmt.Errorf("step %q has no request builder", s.Name)
	}
	if s.Expect == nil && s.ExpectFrom == nil {
		return fmt.Errorf("step %q has no expectation", s.Name)
	}
	return nil
}

// Group is a named, ordered list of steps ("Authentication", "Event System").
type Group struct {
	Name  string
	Steps []Step
}

// Suite is an ordered list of groups.
type Suite struct {
	Name        string
	Description string
	Groups      []Group
}

// StepCount returns the number of steps across all groups.
func (s Suite) StepCount() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Steps)
	}
	return n
}

// Validate rejects suites with invalid steps or duplicate step names.
func (s Suite) Validate() error {
	if s.Name == "" {
		return errors.New("suite has no name")
	}
	seen := make(map[string]bool)
	for _, g := range s.Groups {
		for _, st := range g.Steps {
			if err := st.Validate(); err != nil {
				return fmt.Errorf("suite %q: %w", s.Name, err)
			}
			if seen[st.Name] {
				return fmt.Errorf("suite %q: duplicate step name %q", s.Name, st.Name)
			}
			seen[st.Name] = true
		}
	}
	return nil
}
