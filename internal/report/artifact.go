package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/sagacheck/internal/harness"
)

// TimeFormat is the timestamp layout used in artifacts.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Artifact is the machine-readable report. The summary and
// detailed_results field names are a stable contract for CI consumers.
type Artifact struct {
	Run             RunInfo          `json:"run"`
	Summary         harness.Summary  `json:"summary"`
	DetailedResults []ArtifactResult `json:"detailed_results"`
}

// RunInfo identifies the run an artifact describes.
type RunInfo struct {
	ID          string `json:"id"`
	Suite       string `json:"suite"`
	BaseURL     string `json:"base_url"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at"`
	Interrupted bool   `json:"interrupted"`
}

// ArtifactResult is one step outcome.
type ArtifactResult struct {
	Test       string         `json:"test"`
	Suite      string         `json:"suite,omitempty"`
	Group      string         `json:"group"`
	Success    bool           `json:"success"`
	Critical   bool           `json:"critical"`
	Kind       string         `json:"kind,omitempty"`
	Status     int            `json:"status,omitempty"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details"`
	Timestamp  string         `json:"timestamp"`
	DurationMS int64          `json:"duration_ms"`
}

// NewArtifact converts a run.
func NewArtifact(run *harness.Run) *Artifact {
	a := &Artifact{
		Run: RunInfo{
			ID:          run.ID,
			Suite:       run.Suite,
			BaseURL:     run.BaseURL,
			StartedAt:   formatTime(run.StartedAt),
			FinishedAt:  formatTime(run.FinishedAt),
			Interrupted: run.Interrupted,
		},
		Summary:         run.Summary(),
		DetailedResults: make([]ArtifactResult, 0, len(run.Results)),
	}
	for _, r := range run.Results {
		details := r.Details
		if details == nil {
			details = map[string]any{}
		}
		a.DetailedResults = append(a.DetailedResults, ArtifactResult{
			Test:       r.Step,
			Suite:      r.Suite,
			Group:      r.Group,
			Success:    r.Success,
			Critical:   r.Critical,
			Kind:       string(r.Kind),
			Status:     r.Status,
			Message:    r.Message,
			Details:    details,
			Timestamp:  formatTime(r.Timestamp),
			DurationMS: r.Duration.Milliseconds(),
		})
	}
	return a
}

// Marshal renders the artifact as indented JSON with a trailing newline.
// HTML escaping is off so messages stay readable.
func (a *Artifact) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the artifact atomically: a temp file in the same
// directory is renamed over path, so readers never see a partial file.
func (a *Artifact) WriteFile(path string) error {
	data, err := a.Marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sagacheck-report-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// ReadArtifact loads and decodes an artifact file.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return DecodeArtifact(data)
}

// DecodeArtifact decodes artifact JSON.
func DecodeArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Summary.CriticalFailures == nil {
		a.Summary.CriticalFailures = []string{}
	}
	return &a, nil
}

// WriteText renders an artifact the way the console rendered the run.
func (a *Artifact) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Run %s\n", a.Run.ID)
	fmt.Fprintf(w, "Suite: %s\n", a.Run.Suite)
	fmt.Fprintf(w, "Target: %s\n", a.Run.BaseURL)
	fmt.Fprintf(w, "Started: %s\n", a.Run.StartedAt)

	var suite, group string
	for _, r := range a.DetailedResults {
		if r.Suite != suite {
			suite = r.Suite
			group = ""
			if suite != "" {
				fmt.Fprintf(w, "\n# %s\n", suite)
			}
		}
		if r.Group != group {
			group = r.Group
			fmt.Fprintf(w, "\n== %s ==\n", group)
		}
		fmt.Fprintln(w, resultLine(r.Success, r.Critical, harness.Kind(r.Kind), r.Test, r.Message))
	}
	fmt.Fprintln(w)
	WriteSummary(w, a.Summary, a.Run.Interrupted)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeFormat)
}
