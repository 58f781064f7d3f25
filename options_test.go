package resflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeOptions(t *testing.T) {
	defaults := map[string]any{
		"renderer": "django",
		"kwargs":   map[string]any{"paging": false, "info": false},
		"shapes":   []any{"points", "lines"},
	}

	merged := MergeOptions(defaults, map[string]any{
		"kwargs": map[string]any{"info": true},
		"shapes": []any{"polygons"},
		"extra":  1,
	})

	assert.Equal(t, map[string]any{
		"renderer": "django",
		"kwargs":   map[string]any{"paging": false, "info": true},
		"shapes":   []any{"polygons"},
		"extra":    1,
	}, merged)

	merged["kwargs"].(map[string]any)["paging"] = true
	assert.Equal(t, false, defaults["kwargs"].(map[string]any)["paging"], "defaults are copied")
}

func TestMergeOptions_NilSides(t *testing.T) {
	assert.Empty(t, MergeOptions(nil, nil))
	assert.Equal(t, map[string]any{"a": 1}, MergeOptions(nil, map[string]any{"a": 1}))
}

func TestStepSetOptions_RejectsNonMap(t *testing.T) {
	step, err := NewStep(StepTypeGeneric, "Step")
	require.NoError(t, err)

	err = step.SetOptions([]string{"nope"})
	require.ErrorIs(t, err, ErrInvalidOptions)

	require.NoError(t, step.SetOptions(nil))
	assert.Empty(t, step.Options)
}

func TestAttributes(t *testing.T) {
	var attrs Attributes

	attrs.DeleteAttribute("missing")
	attrs.SetAttribute("owner", "alice")
	attrs.SetAttribute("count", 3)

	value, ok := attrs.Attribute("count")
	assert.True(t, ok)
	assert.Equal(t, 3, value)
	assert.Equal(t, "alice", attrs.AttributeString("owner"))
	assert.Equal(t, "", attrs.AttributeString("count"))

	attrs.DeleteAttribute("owner")
	_, ok = attrs.Attribute("owner")
	assert.False(t, ok)
}
