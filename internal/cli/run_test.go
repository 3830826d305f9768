package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sagacheck/internal/config"
	"github.com/roach88/sagacheck/internal/report"
	"github.com/roach88/sagacheck/internal/store"
	"github.com/roach88/sagacheck/internal/testutil"
	"github.com/roach88/sagacheck/internal/twin"
)

// isolateConfig keeps the developer's environment and working directory
// config out of command tests.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvTimeout, "")
}

// startTwin serves a fresh twin and returns its API base URL.
func startTwin(t *testing.T, opts ...twin.Option) string {
	t.Helper()
	opts = append([]twin.Option{twin.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	srv := httptest.NewServer(twin.New(opts...))
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

type cmdResult struct {
	stdout string
	stderr string
	err    error
}

func executeRun(ctx context.Context, rootOpts *RootOptions, args ...string) cmdResult {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return cmdResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestRunPlatformAgainstTwin(t *testing.T) {
	isolateConfig(t)
	baseURL := startTwin(t)
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "out", "report.json")
	dbPath := filepath.Join(dir, "history.db")

	res := executeRun(context.Background(), &RootOptions{Format: "text"},
		"--base-url", baseURL,
		"--suite", "platform",
		"--report", reportPath,
		"--history", dbPath,
	)
	require.NoError(t, res.err, res.stdout)

	assert.Contains(t, res.stdout, "Suite: platform")
	assert.Contains(t, res.stdout, "== Authentication ==")
	assert.Contains(t, res.stdout, "✓ PASS  Signup Rider [critical]")
	assert.Contains(t, res.stdout, "Critical failures: none")
	assert.Contains(t, res.stdout, "Report: "+reportPath)
	assert.Contains(t, res.stderr, "run finished")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Empty(t, report.ValidateArtifact(data))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "platform", runs[0].Suite)
	assert.True(t, runs[0].Finished())
	assert.Empty(t, runs[0].Summary.CriticalFailures)
}

func TestRunJSONOutput(t *testing.T) {
	isolateConfig(t)
	baseURL := startTwin(t)

	res := executeRun(context.Background(), &RootOptions{Format: "json"},
		"--base-url", baseURL, "--suite", "seed")
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, "== ", "console view is text only")

	var resp struct {
		Status string    `json:"status"`
		Data   RunOutput `json:"data"`
		RunID  string    `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Data.Artifact)
	assert.Equal(t, resp.RunID, resp.Data.Artifact.Run.ID)
	assert.Equal(t, "seed", resp.Data.Artifact.Run.Suite)
	assert.Equal(t, resp.Data.Artifact.Summary.Total, resp.Data.Artifact.Summary.Passed)
}

func TestRunDeterministicRunID(t *testing.T) {
	isolateConfig(t)
	baseURL := startTwin(t)

	stdout := &bytes.Buffer{}
	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}, IDGenerator: testutil.NewFixedIDGenerator("")}
	cmd := newRunCommand(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--base-url", baseURL, "--suite", "seed"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "Run "+testutil.FixedRunID)
}

func TestRunCriticalFailureExitsOne(t *testing.T) {
	isolateConfig(t)
	baseURL := startTwin(t, twin.WithPolicy(twin.Policy{StatsDeniedStatus: http.StatusForbidden}))

	res := executeRun(context.Background(), &RootOptions{Format: "text"},
		"--base-url", baseURL, "--suite", "platform")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.err.Error(), "critical step(s) failed")
	assert.Contains(t, res.stdout, "✗ FAIL  Admin Stats Unauthorized [critical]")
	assert.Contains(t, res.stdout, "  - Admin Stats Unauthorized")
}

func TestRunCriticalFailureJSON(t *testing.T) {
	isolateConfig(t)
	baseURL := startTwin(t, twin.WithPolicy(twin.Policy{StatsDeniedStatus: http.StatusForbidden}))

	res := executeRun(context.Background(), &RootOptions{Format: "json"},
		"--base-url", baseURL, "--suite", "platform")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCritical, resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "Admin Stats Unauthorized")
}

func TestRunServiceDownExitsOne(t *testing.T) {
	isolateConfig(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL + "/api"
	srv.Close()

	res := executeRun(context.Background(), &RootOptions{Format: "text"},
		"--base-url", baseURL, "--suite", "admin", "--timeout", "1s")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "(transport_error)")
	assert.Contains(t, res.stdout, "(precondition_missing)")
}

func TestRunCommandErrors(t *testing.T) {
	isolateConfig(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown suite", []string{"--suite", "bogus"}, ErrCodeSuite},
		{"empty suite", []string{"--suite", " , "}, ErrCodeSuite},
		{"bad base url", []string{"--base-url", "ftp://example.com"}, ErrCodeConfig},
		{"zero timeout", []string{"--timeout", "0s"}, ErrCodeConfig},
		{"negative delay", []string{"--delay", "-1s"}, ErrCodeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := executeRun(context.Background(), &RootOptions{Format: "text"}, tt.args...)
			require.Error(t, res.err)
			assert.Equal(t, ExitCommandError, GetExitCode(res.err))
			assert.Contains(t, res.stdout, "Error ["+tt.code+"]")
		})
	}
}

func TestRunMissingConfigFile(t *testing.T) {
	isolateConfig(t)

	res := executeRun(context.Background(),
		&RootOptions{Format: "text", Config: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Error ["+ErrCodeConfig+"]")
}

func TestRunUsesConfigFile(t *testing.T) {
	isolateConfig(t)
	baseURL := startTwin(t)
	path := filepath.Join(t.TempDir(), "sagacheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: "+baseURL+"\nsuite: seed\n"), 0o644))

	res := executeRun(context.Background(), &RootOptions{Format: "text", Config: path})
	require.NoError(t, res.err, res.stdout)
	assert.Contains(t, res.stdout, "Suite: seed")
	assert.Contains(t, res.stdout, "== Single Seat Event ==")
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	isolateConfig(t)
	baseURL := startTwin(t)
	path := filepath.Join(t.TempDir(), "sagacheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: http://127.0.0.1:1/api\nsuite: platform\n"), 0o644))

	res := executeRun(context.Background(), &RootOptions{Format: "text", Config: path},
		"--base-url", baseURL, "--suite", "seed")
	require.NoError(t, res.err, res.stdout)
	assert.Contains(t, res.stdout, "Target: "+baseURL)
	assert.Contains(t, res.stdout, "Suite: seed")
}

func TestRunEnvironmentOverridesConfig(t *testing.T) {
	isolateConfig(t)
	baseURL := startTwin(t)
	path := filepath.Join(t.TempDir(), "sagacheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: http://127.0.0.1:1/api\nsuite: seed\n"), 0o644))
	t.Setenv(config.EnvBaseURL, baseURL)

	res := executeRun(context.Background(), &RootOptions{Format: "text", Config: path})
	require.NoError(t, res.err, res.stdout)
	assert.Contains(t, res.stdout, "Target: "+baseURL)
}

func TestRunInterruptedWritesPartialReport(t *testing.T) {
	isolateConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel the run while the second request is in flight; the step it
	// belongs to never completes and leaves no result.
	var requests atomic.Int32
	tw := twin.New(twin.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 2 {
			cancel()
			<-r.Context().Done()
			return
		}
		tw.ServeHTTP(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	reportPath := filepath.Join(dir, "report.json")
	dbPath := filepath.Join(dir, "history.db")

	res := executeRun(ctx, &RootOptions{Format: "text"},
		"--base-url", srv.URL+"/api", "--suite", "platform",
		"--report", reportPath, "--history", dbPath)
	require.Error(t, res.err)
	assert.Equal(t, ExitInterrupted, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Run interrupted: results are partial")

	a, err := report.ReadArtifact(reportPath)
	require.NoError(t, err)
	assert.True(t, a.Run.Interrupted)
	require.Len(t, a.DetailedResults, 1)
	assert.True(t, a.DetailedResults[0].Success)
	assert.Empty(t, a.Summary.CriticalFailures)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Interrupted)
	assert.Equal(t, 1, runs[0].Summary.Total)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	isolateConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reportPath := filepath.Join(t.TempDir(), "report.json")

	res := executeRun(ctx, &RootOptions{Format: "text"},
		"--base-url", "http://127.0.0.1:1/api", "--report", reportPath)
	require.Error(t, res.err)
	assert.Equal(t, ExitInterrupted, GetExitCode(res.err))

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Empty(t, report.ValidateArtifact(data))
	assert.Contains(t, string(data), `"detailed_results": []`)
}

func TestRunFlagDefaults(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})

	for name, def := range map[string]string{
		"suite":    "",
		"base-url": "",
		"timeout":  "0s",
		"delay":    "0s",
		"report":   "",
		"history":  "",
	} {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, def, flag.DefValue, name)
	}
	assert.Equal(t, "s", cmd.Flags().Lookup("suite").Shorthand)
	assert.Equal(t, "o", cmd.Flags().Lookup("report").Shorthand)
}
