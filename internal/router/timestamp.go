package router

import (
	"time"
)

// tsLayout is the canonical wire timestamp shape, millisecond precision
// UTC.
const tsLayout = "2006-01-02T15:04:05.000Z"

// microThreshold splits epoch values into micro vs milli interpretation.
// Anything above it is too far in the future to be milliseconds.
const microThreshold = 1e13

// NowString is the canonical clock for fallback timestamps.
func NowString() string {
	return time.Now().UTC().Format(tsLayout)
}

// FormatMillis renders an epoch-milliseconds value canonically.
func FormatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(tsLayout)
}

// EpochToTimestamp interprets a platform epoch value. Values above the
// threshold are microseconds, otherwise milliseconds. Empty strings and
// non-finite numbers are rejected.
func EpochToTimestamp(v any) (string, bool) {
	n, ok := asNumber(v)
	if !ok || n <= 0 {
		return "", false
	}
	ms := int64(n)
	if n > microThreshold {
		ms = int64(n / 1000)
	}
	return FormatMillis(ms), true
}

// ISOTimestamp passes through a source timestamp string when it parses
// as RFC 3339, reformatted to the canonical millisecond shape.
func ISOTimestamp(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(tsLayout), true
}

// FirstTimestamp resolves the first usable timestamp among the named
// fields of m, each tried as ISO first, then as an epoch number.
func FirstTimestamp(m map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if m == nil {
			break
		}
		v, present := m[key]
		if !present {
			continue
		}
		if s, ok := v.(string); ok {
			if ts, ok := ISOTimestamp(s); ok {
				return ts, true
			}
		}
		if ts, ok := EpochToTimestamp(v); ok {
			return ts, true
		}
	}
	return "", false
}
