package nodes

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ohnodev/obelisk-core/node"
)

// Typed input accessors. Node inputs arrive as decoded JSON, so numbers may
// be float64, json.Number, or a string a frontend stuffed into the field;
// these helpers normalize the common shapes and fall back to the default.

func stringInput(b *node.Base, name, def string) string {
	v, ok := b.Input(name)
	if !ok {
		return def
	}
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return def
	default:
		return fmt.Sprintf("%v", val)
	}
}

func intInput(b *node.Base, name string, def int) int {
	v, ok := b.Input(name)
	if !ok {
		return def
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}

func floatInput(b *node.Base, name string, def float64) float64 {
	v, ok := b.Input(name)
	if !ok {
		return def
	}
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return def
}

func boolInput(b *node.Base, name string, def bool) bool {
	v, ok := b.Input(name)
	if !ok {
		return def
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}
