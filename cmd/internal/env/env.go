// Package env reads process settings with typed defaults. A blank or
// unparsable value falls back to the default.
package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// parse returns def when key is unset, blank or rejected by conv.
func parse[T any](key string, def T, conv func(string) (T, bool)) T {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	out, ok := conv(v)
	if !ok {
		return def
	}
	return out
}

// String reads a string env var with a default.
func String(key, def string) string {
	return parse(key, def, func(v string) (string, bool) { return v, true })
}

// Bool reads a bool env var with a default.
func Bool(key string, def bool) bool {
	return parse(key, def, func(v string) (bool, bool) {
		b, err := strconv.ParseBool(v)
		return b, err == nil
	})
}

// Int reads a positive int env var with a default.
func Int(key string, def int) int {
	return parse(key, def, func(v string) (int, bool) {
		n, err := strconv.Atoi(v)
		return n, err == nil && n > 0
	})
}

// Int64 reads a positive int64 env var with a default.
func Int64(key string, def int64) int64 {
	return parse(key, def, func(v string) (int64, bool) {
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil && n > 0
	})
}

// Int32 reads a non-negative int32 env var with a default.
func Int32(key string, def int32) int32 {
	return parse(key, def, func(v string) (int32, bool) {
		n, err := strconv.ParseInt(v, 10, 32)
		return int32(n), err == nil && n >= 0
	})
}

// Duration reads a positive duration env var ("15s", "2m") with a default.
func Duration(key string, def time.Duration) time.Duration {
	return parse(key, def, func(v string) (time.Duration, bool) {
		d, err := time.ParseDuration(v)
		return d, err == nil && d > 0
	})
}

// List reads a comma-separated env var. Blank entries are dropped.
func List(key string) []string {
	return parse[[]string](key, nil, func(v string) ([]string, bool) {
		var out []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, len(out) > 0
	})
}
