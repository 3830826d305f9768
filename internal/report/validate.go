package report

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/sagacheck/internal/harness"
)

//go:embed schema.cue
var schemaSource string

// Validation error codes (E200-E299)
const (
	ErrArtifactSyntax   = "E200" // not parseable as JSON/CUE
	ErrArtifactSchema   = "E201" // violates schema.cue
	ErrSummaryTotal     = "E202" // total disagrees with detailed_results
	ErrSummaryCounts    = "E203" // passed/failed disagree with results
	ErrSummaryCritical  = "E204" // critical_failures disagree with results
	ErrSummarySuccessRt = "E205" // success_rate disagrees with counts
)

// ValidationError is one problem found in an artifact.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateArtifact checks artifact JSON against the embedded CUE schema and
// then checks that the summary is consistent with the detailed results.
// Returns all problems found (does not fail fast); nil means valid.
func ValidateArtifact(data []byte) []ValidationError {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		// The schema is embedded; failing to compile it is a build defect.
		panic(fmt.Sprintf("report: invalid embedded schema: %v", err))
	}

	doc := ctx.CompileBytes(data, cue.Filename("artifact.json"))
	if err := doc.Err(); err != nil {
		return cueProblems(ErrArtifactSyntax, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Artifact")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cueProblems(ErrArtifactSchema, err)
	}

	a, err := DecodeArtifact(data)
	if err != nil {
		return []ValidationError{{Field: "artifact", Message: err.Error(), Code: ErrArtifactSyntax}}
	}
	return checkSummary(a)
}

func checkSummary(a *Artifact) []ValidationError {
	var problems []ValidationError
	s := a.Summary

	if s.Total != len(a.DetailedResults) {
		problems = append(problems, ValidationError{
			Field:   "summary.total",
			Message: fmt.Sprintf("is %d but detailed_results has %d entries", s.Total, len(a.DetailedResults)),
			Code:    ErrSummaryTotal,
		})
	}

	passed, failed := 0, 0
	var critical []string
	for _, r := range a.DetailedResults {
		if r.Success {
			passed++
			continue
		}
		failed++
		if r.Critical {
			critical = append(critical, r.Test)
		}
	}
	if s.Passed != passed || s.Failed != failed {
		problems = append(problems, ValidationError{
			Field:   "summary.passed",
			Message: fmt.Sprintf("passed/failed is %d/%d but results show %d/%d", s.Passed, s.Failed, passed, failed),
			Code:    ErrSummaryCounts,
		})
	}
	if strings.Join(critical, "\x00") != strings.Join(s.CriticalFailures, "\x00") {
		problems = append(problems, ValidationError{
			Field:   "summary.critical_failures",
			Message: fmt.Sprintf("is %v but failed critical results are %v", s.CriticalFailures, critical),
			Code:    ErrSummaryCritical,
		})
	}
	if total := passed + failed; total > 0 {
		want := harness.SuccessRate(passed, total)
		if diff := s.SuccessRate - want; diff > 0.05 || diff < -0.05 {
			problems = append(problems, ValidationError{
				Field:   "summary.success_rate",
				Message: fmt.Sprintf("is %.1f but results give %.1f", s.SuccessRate, want),
				Code:    ErrSummarySuccessRt,
			})
		}
	}
	return problems
}

// cueProblems flattens a CUE error list, keeping the path and line of each.
func cueProblems(code string, err error) []ValidationError {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return []ValidationError{{Field: "artifact", Message: err.Error(), Code: code}}
	}
	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		field := strings.Join(e.Path(), ".")
		if field == "" {
			field = "artifact"
		}
		ve := ValidationError{Field: field, Message: e.Error(), Code: code}
		if pos := errors.Positions(e); len(pos) > 0 {
			for _, p := range pos {
				if p.Filename() == "artifact.json" {
					ve.Line = p.Line()
					break
				}
			}
		}
		out = append(out, ve)
	}
	return out
}
