// ABOUTME: Tests for the conversation mode catalog
// ABOUTME: Covers construction validation, lookup, and the builtin set

package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog_Validation(t *testing.T) {
	_, err := NewCatalog(nil)
	assert.Error(t, err, "empty catalog rejected")

	_, err = NewCatalog([]Mode{{ID: "x", Label: "X"}})
	assert.Error(t, err, "missing system instruction rejected")

	_, err = NewCatalog([]Mode{
		{ID: "x", Label: "X", SystemInstruction: "a"},
		{ID: "x", Label: "X2", SystemInstruction: "b"},
	})
	assert.Error(t, err, "duplicate id rejected")
}

func TestCatalog_DefaultIsFirst(t *testing.T) {
	c, err := NewCatalog([]Mode{
		{ID: "calm", Label: "Calm", SystemInstruction: "stay calm"},
		{ID: "focus", Label: "Focus", SystemInstruction: "stay focused"},
	})
	require.NoError(t, err)
	assert.Equal(t, "calm", c.Default())
}

func TestCatalog_GetAndHas(t *testing.T) {
	c, err := NewCatalog([]Mode{
		{ID: "calm", Label: "Calm", SystemInstruction: "stay calm"},
	})
	require.NoError(t, err)

	m, err := c.Get("calm")
	require.NoError(t, err)
	assert.Equal(t, "Calm", m.Label)
	assert.True(t, c.Has("calm"))

	_, err = c.Get("missing")
	assert.ErrorIs(t, err, ErrModeNotFound)
	assert.False(t, c.Has("missing"))
}

func TestBuiltin_HasTherapyModes(t *testing.T) {
	c := Builtin()

	assert.Equal(t, "general", c.Default())
	for _, id := range []string{"general", "venting", "problem-solving", "gratitude", "anxiety"} {
		m, err := c.Get(id)
		require.NoError(t, err, id)
		assert.NotEmpty(t, m.Label, id)
		assert.NotEmpty(t, m.SystemInstruction, id)
	}
	assert.Len(t, c.List(), 5)
}
