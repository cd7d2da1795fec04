package router

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Dig walks nested map payloads and returns the map at the given path,
// or nil when any hop is missing or not a map.
func Dig(m map[string]any, path ...string) map[string]any {
	cur := m
	for _, key := range path {
		if cur == nil {
			return nil
		}
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// Text returns the trimmed string at key, or "" when absent or not a
// string.
func Text(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, ok := m[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Number extracts a finite numeric value at key. Strings holding numbers
// are accepted since the platforms are inconsistent about quoting.
func Number(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	return asNumber(m[key])
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return asNumber(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return asNumber(f)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return asNumber(f)
	default:
		return 0, false
	}
}

// Flag returns the boolean at key, false when absent or mistyped.
func Flag(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	b, ok := m[key].(bool)
	return ok && b
}

// Runs flattens a YouTube-style runs list ([{text}, {emoji}, ...]) into
// plain text. Emoji runs contribute their shortcut when present.
func Runs(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	list, ok := m[key].([]any)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, item := range list {
		run, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := run["text"].(string); ok {
			b.WriteString(text)
			continue
		}
		if emoji := Dig(run, "emoji"); emoji != nil {
			if shortcut, ok := emoji["shortcuts"].([]any); ok && len(shortcut) > 0 {
				if s, ok := shortcut[0].(string); ok {
					b.WriteString(s)
				}
				continue
			}
			if id, ok := emoji["emojiId"].(string); ok {
				b.WriteString(id)
			}
		}
	}
	return b.String()
}
