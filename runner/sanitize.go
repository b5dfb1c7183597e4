package runner

import (
	"encoding/json"
	"fmt"
	"time"
)

// maxSanitizeDepth bounds recursion when sanitizing node outputs. Values
// nested deeper are replaced by a placeholder.
const maxSanitizeDepth = 6

// placeholderLimit truncates the repr in placeholders so one huge value
// cannot bloat a tick result.
const placeholderLimit = 120

// Sanitize converts an arbitrary value into a JSON-safe one. Primitives and
// JSON containers pass through (containers are copied with sanitized
// elements); times are rendered as RFC 3339; anything else becomes a
// "<type: repr>" placeholder string. The input is never mutated.
func Sanitize(v any) any {
	return sanitizeValue(v, 0)
}

func sanitizeValue(v any, depth int) any {
	if depth >= maxSanitizeDepth {
		return placeholder(v)
	}
	switch val := v.(type) {
	case nil:
		return nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		json.Number:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = sanitizeValue(elem, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = sanitizeValue(elem, depth+1)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = elem
		}
		return out
	case error:
		return placeholder(val)
	default:
		return placeholder(val)
	}
}

func placeholder(v any) string {
	repr := fmt.Sprintf("%v", v)
	if len(repr) > placeholderLimit {
		repr = repr[:placeholderLimit] + "..."
	}
	return fmt.Sprintf("<%T: %s>", v, repr)
}
