package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDGenerator("run-123")

	assert.Equal(t, "run-123", gen.Generate())
	assert.Equal(t, "run-123", gen.Generate())
}

func TestFixedIDGenerator_EmptyUsesDefault(t *testing.T) {
	gen := NewFixedIDGenerator("")
	assert.Equal(t, FixedRunID, gen.Generate())
}
