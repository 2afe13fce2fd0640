package cognitive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject_FencedBlock(t *testing.T) {
	text := "Sure, here you go:\n```json\n{\"a\": 1, \"b\": \"two\"}\n```\nThanks."
	obj, ok := extractJSONObject(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"a": 1, "b": "two"}`, obj)
}

func TestExtractJSONObject_BareBalancedBraces(t *testing.T) {
	text := `prefix noise {"x": {"y": 2}} trailing noise`
	obj, ok := extractJSONObject(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"x": {"y": 2}}`, obj)
}

func TestExtractJSONObject_NoObjectFound(t *testing.T) {
	_, ok := extractJSONObject("no braces here at all")
	assert.False(t, ok)
}

func TestBalancedBraces_IgnoresBracesInsideStrings(t *testing.T) {
	text := `{"text": "a } b { c", "n": 1}`
	obj, ok := balancedBraces(text)
	require.True(t, ok)
	assert.Equal(t, text, obj)
}

func TestDecodeJSONLenient_FixesTrailingCommaAndUnquotedKeys(t *testing.T) {
	var out struct {
		Feasibility float64 `json:"feasibility_score"`
		Reward      float64 `json:"reward_score"`
	}
	text := `{feasibility_score: 0.8, reward_score: 0.5,}`
	ok := decodeJSONLenient(text, &out)
	require.True(t, ok)
	assert.InDelta(t, 0.8, out.Feasibility, 1e-9)
	assert.InDelta(t, 0.5, out.Reward, 1e-9)
}

func TestDecodeJSONLenient_StraightValidJSON(t *testing.T) {
	var out map[string]any
	ok := decodeJSONLenient(`{"k": "v"}`, &out)
	require.True(t, ok)
	assert.Equal(t, "v", out["k"])
}
