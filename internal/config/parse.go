package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coercion primitives. Every parser is total: garbage input falls back to
// the supplied default instead of failing, so Normalize never errors.

func parseBool(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true":
			return true
		case "false":
			return false
		}
		return def
	default:
		return def
	}
}

// parseOptBool distinguishes "unset" from an explicit value so per-platform
// flags can inherit from the general section.
func parseOptBool(v any) *bool {
	switch t := v.(type) {
	case bool:
		b := t
		return &b
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true":
			b := true
			return &b
		case "false":
			b := false
			return &b
		}
		return nil
	default:
		return nil
	}
}

func parseString(v any, def string) string {
	switch t := v.(type) {
	case nil:
		return def
	case string:
		return strings.TrimSpace(t)
	case bool, int, int32, int64, uint, uint64, float32, float64:
		return strings.TrimSpace(fmt.Sprint(t))
	default:
		return def
	}
}

// parseSecret trims and treats empty as unset. Unset secrets are dropped
// from the snapshot (omitted from its serialized form).
func parseSecret(v any) string {
	return parseString(v, "")
}

type numOpts struct {
	Min, Max       float64
	HasMin, HasMax bool
	NoZero         bool
}

func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case bool:
		// "false" disables a numeric knob
		if !t {
			return 0, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func parseFloat(v any, def float64, o numOpts) float64 {
	n, ok := coerceFloat(v)
	if !ok {
		return def
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return def
	}
	if n == 0 && o.NoZero {
		return def
	}
	if o.HasMin && n < o.Min {
		return def
	}
	if o.HasMax && n > o.Max {
		return def
	}
	return n
}

func parseInt(v any, def int, o numOpts) int {
	n := parseFloat(v, float64(def), o)
	return int(n)
}

// parseEnum resets anything outside the allowed set to the default.
func parseEnum(v any, def string, allowed ...string) string {
	s := parseString(v, def)
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return def
}

// sectionMap pulls a named section out of the raw tree. YAML decoders may
// hand back map[any]any for nested maps; both shapes are accepted.
func sectionMap(raw map[string]any, name string) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	switch t := raw[name].(type) {
	case map[string]any:
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			if key, ok := k.(string); ok {
				out[key] = v
			}
		}
		return out
	default:
		return map[string]any{}
	}
}
