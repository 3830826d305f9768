package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sagacheck/internal/suite"
)

func TestSuitesList(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewSuitesCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	names := suite.Names()
	require.Len(t, lines, len(names))
	for i, name := range names {
		assert.True(t, strings.HasPrefix(lines[i], name+" "), "line %d: %q", i, lines[i])
		assert.Contains(t, lines[i], " steps  ")
	}
}

func TestSuitesListJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewSuitesCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string       `json:"status"`
		Data   []suite.Info `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, suite.List(), resp.Data)
	for _, info := range resp.Data {
		assert.Positive(t, info.Steps, info.Name)
	}
}
