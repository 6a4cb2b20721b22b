package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

var truthyStrings = map[string]bool{
	"true": true, "t": true, "1": true,
	"yes": true, "y": true, "on": true,
}

// CoerceFlag converts a persisted or patched flag of any shape into a bool.
//
//	nil                      -> true (absent)
//	bool                     -> itself
//	"true","t","1","yes","y","on" (any case) -> true, other strings -> false
//	number                   -> true iff non-zero
//	{"value": x}             -> CoerceFlag(x)
//	anything else            -> false
//
// canonical is true only when v was already a bool or absent.
func CoerceFlag(v any) (value bool, canonical bool) {
	switch t := v.(type) {
	case nil:
		return true, true
	case bool:
		return t, true
	case *bool:
		if t == nil {
			return true, true
		}
		return *t, true
	case string:
		return truthyStrings[strings.ToLower(strings.TrimSpace(t))], false
	case float64:
		return t != 0 && !math.IsNaN(t), false
	case float32:
		return t != 0, false
	case int:
		return t != 0, false
	case int64:
		return t != 0, false
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0, false
	case map[string]any:
		inner, ok := t["value"]
		if !ok {
			return false, false
		}
		val, _ := CoerceFlag(inner)
		return val, false
	case json.RawMessage:
		return NormalizeExpanded(t)
	default:
		return false, false
	}
}

// NormalizeExpanded decodes a stored is_expanded column and coerces it.
// Empty input and JSON null both count as absent and yield true; null is
// still reported as non-canonical.
func NormalizeExpanded(raw json.RawMessage) (value bool, canonical bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return true, true
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return true, false
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		// Not JSON at all: legacy rows sometimes hold bare words.
		val, _ := CoerceFlag(string(trimmed))
		return val, false
	}
	return CoerceFlag(v)
}

// FlagJSON renders a boolean in the canonical stored form.
func FlagJSON(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
