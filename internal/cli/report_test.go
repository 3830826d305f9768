package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sagacheck/internal/harness"
	"github.com/roach88/sagacheck/internal/report"
	"github.com/roach88/sagacheck/internal/testutil"
)

func sampleRun() *harness.Run {
	at := func(ms int) time.Time { return testutil.Epoch.Add(time.Duration(ms) * time.Millisecond) }
	return &harness.Run{
		ID:         testutil.FixedRunID,
		Suite:      "seed",
		BaseURL:    "http://127.0.0.1:3000/api",
		StartedAt:  at(0),
		FinishedAt: at(100),
		Results: []harness.Result{
			{
				Suite: "seed", Group: "Setup", Step: "Signup rider_a",
				Success: true, Critical: true, Status: 200, Message: "status 200",
				Timestamp: at(10), Duration: 10 * time.Millisecond,
			},
			{
				Suite: "seed", Group: "Single Seat Event", Step: "Third Rider Blocked",
				Critical: true, Kind: harness.KindAssertion, Status: 200,
				Message:   "status_equals: expected status 400, got status 200",
				Details:   map[string]any{"expected": "status 400", "actual": "status 200"},
				Timestamp: at(30), Duration: 10 * time.Millisecond,
			},
		},
	}
}

func writeArtifact(t *testing.T, run *harness.Run) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.NewArtifact(run).WriteFile(path))
	return path
}

func executeReport(rootOpts *RootOptions, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd := NewReportCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestReportShow(t *testing.T) {
	path := writeArtifact(t, sampleRun())

	out, err := executeReport(&RootOptions{Format: "text"}, "show", path)
	require.NoError(t, err)

	var want bytes.Buffer
	a, err := report.ReadArtifact(path)
	require.NoError(t, err)
	a.WriteText(&want)
	assert.Equal(t, want.String(), out)
	assert.Contains(t, out, "== Single Seat Event ==")
	assert.Contains(t, out, "  - Third Rider Blocked")
}

func TestReportShowJSON(t *testing.T) {
	path := writeArtifact(t, sampleRun())

	out, err := executeReport(&RootOptions{Format: "json"}, "show", path)
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   report.Artifact `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, testutil.FixedRunID, resp.Data.Run.ID)
	assert.Equal(t, []string{"Third Rider Blocked"}, resp.Data.Summary.CriticalFailures)
}

func TestReportShowMissingFile(t *testing.T) {
	out, err := executeReport(&RootOptions{Format: "text"}, "show", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeReport+"]")
}

func TestReportVerifyValid(t *testing.T) {
	path := writeArtifact(t, sampleRun())

	out, err := executeReport(&RootOptions{Format: "text"}, "verify", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Artifact valid")
}

func TestReportVerifyValidJSON(t *testing.T) {
	path := writeArtifact(t, sampleRun())

	out, err := executeReport(&RootOptions{Format: "json"}, "verify", path)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   VerifyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
}

func TestReportVerifyInconsistentSummary(t *testing.T) {
	path := writeArtifact(t, sampleRun())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"passed": 1`, `"passed": 2`, 1)
	require.NotEqual(t, string(data), tampered)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	out, err := executeReport(&RootOptions{Format: "text"}, "verify", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Artifact invalid")
	assert.Contains(t, out, report.ErrSummaryCounts)
}

func TestReportVerifySchemaViolationJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"run": {}, "summary": {}}`), 0o644))

	out, err := executeReport(&RootOptions{Format: "json"}, "verify", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   VerifyResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	require.NotNil(t, resp.Error)
	assert.Equal(t, report.ErrArtifactSchema, resp.Error.Code)
}

func TestReportVerifyMissingFile(t *testing.T) {
	out, err := executeReport(&RootOptions{Format: "text"}, "verify", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}

func TestReportRequiresArtifactArg(t *testing.T) {
	_, err := executeReport(&RootOptions{Format: "text"}, "verify")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
