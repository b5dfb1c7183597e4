package runner

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSanitizePassesPrimitivesThrough(t *testing.T) {
	for _, v := range []any{nil, true, "text", 42, int64(7), 3.14, json.Number("12")} {
		require.Equal(t, v, Sanitize(v))
	}
}

func TestSanitizeFormatsTime(t *testing.T) {
	ts := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	require.Equal(t, "2026-08-25T10:30:00Z", Sanitize(ts))
}

func TestSanitizeCopiesContainers(t *testing.T) {
	in := map[string]any{
		"list": []any{1, "two", map[string]any{"k": true}},
		"nested": map[string]any{
			"fn": func() {},
		},
	}
	out, ok := Sanitize(in).(map[string]any)
	require.True(t, ok)

	nested, ok := out["nested"].(map[string]any)
	require.True(t, ok)
	ph, ok := nested["fn"].(string)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(ph, "<func()"), "non-JSON value becomes a typed placeholder")

	// Input untouched.
	require.IsType(t, func() {}, in["nested"].(map[string]any)["fn"])

	// Whole result survives JSON encoding.
	_, err := json.Marshal(out)
	require.NoError(t, err)
}

func TestSanitizeBoundsDepth(t *testing.T) {
	leaf := map[string]any{"v": 1}
	cur := leaf
	for i := 0; i < 10; i++ {
		cur = map[string]any{"next": cur}
	}
	out := Sanitize(cur)
	_, err := json.Marshal(out)
	require.NoError(t, err)

	depth := 0
	for m, ok := out.(map[string]any); ok; m, ok = m["next"].(map[string]any) {
		depth++
		if depth > maxSanitizeDepth {
			require.Fail(t, "recursion not bounded")
		}
	}
	require.LessOrEqual(t, depth, maxSanitizeDepth)
}

func TestSanitizeTruncatesPlaceholders(t *testing.T) {
	type big struct{ Payload string }
	huge := big{Payload: strings.Repeat("x", 4096)}
	ph, ok := Sanitize(huge).(string)
	require.True(t, ok)
	require.LessOrEqual(t, len(ph), placeholderLimit+64)
	require.Contains(t, ph, "...")
}
