// Package report renders run results: a streaming console view while the
// run progresses, and a JSON artifact for CI once it finishes.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/sagacheck/internal/harness"
)

// Console is a harness.Listener that prints one line per step as it
// completes, group headers, and a summary block at the end.
type Console struct {
	w       io.Writer
	verbose bool
	suite   string
}

// NewConsole writes to w. In verbose mode failed steps also print their
// expected and actual values.
func NewConsole(w io.Writer, verbose bool) *Console {
	return &Console{w: w, verbose: verbose}
}

func (c *Console) RunStarted(run *harness.Run) {
	fmt.Fprintf(c.w, "Run %s\n", run.ID)
	fmt.Fprintf(c.w, "Suite: %s\n", run.Suite)
	fmt.Fprintf(c.w, "Target: %s\n", run.BaseURL)
}

func (c *Console) GroupStarted(suite, group string) {
	if suite != c.suite {
		c.suite = suite
		fmt.Fprintf(c.w, "\n# %s\n", suite)
	}
	fmt.Fprintf(c.w, "\n== %s ==\n", group)
}

func (c *Console) StepFinished(res harness.Result) {
	fmt.Fprintln(c.w, resultLine(res.Success, res.Critical, res.Kind, res.Step, res.Message))
	if c.verbose && !res.Success {
		if exp, ok := res.Details["expected"]; ok {
			fmt.Fprintf(c.w, "        expected: %v\n", exp)
		}
		if act, ok := res.Details["actual"]; ok {
			fmt.Fprintf(c.w, "        actual:   %v\n", act)
		}
	}
}

func (c *Console) RunFinished(run *harness.Run) {
	fmt.Fprintln(c.w)
	WriteSummary(c.w, run.Summary(), run.Interrupted)
}

// WriteSummary prints the summary block shared by the console and
// "report show".
func WriteSummary(w io.Writer, s harness.Summary, interrupted bool) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	if interrupted {
		fmt.Fprintln(w, "Run interrupted: results are partial")
	}
	fmt.Fprintf(w, "Total:        %d\n", s.Total)
	fmt.Fprintf(w, "Passed:       %d\n", s.Passed)
	fmt.Fprintf(w, "Failed:       %d\n", s.Failed)
	fmt.Fprintf(w, "Success rate: %.1f%%\n", s.SuccessRate)
	if len(s.CriticalFailures) == 0 {
		fmt.Fprintln(w, "Critical failures: none")
		return
	}
	fmt.Fprintf(w, "Critical failures (%d):\n", len(s.CriticalFailures))
	for _, name := range s.CriticalFailures {
		fmt.Fprintf(w, "  - %s\n", name)
	}
}

func resultLine(success, critical bool, kind harness.Kind, name, message string) string {
	var b strings.Builder
	if success {
		b.WriteString("  ✓ PASS  ")
	} else {
		b.WriteString("  ✗ FAIL  ")
	}
	b.WriteString(name)
	if critical {
		b.WriteString(" [critical]")
	}
	if !success && kind != harness.KindNone {
		fmt.Fprintf(&b, " (%s)", kind)
	}
	if message != "" {
		b.WriteString(": ")
		b.WriteString(message)
	}
	return b.String()
}
