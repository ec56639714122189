// Package timestamp recovers the wall-clock capture instant encoded in a
// recorder chunk's object-store key.
package timestamp

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyBaseName is returned when the key's base name (after stripping
// its directory and extension) is empty.
var ErrEmptyBaseName = errors.New("timestamp: empty base name")

// msCutoff is the threshold above which a bare numeric literal is
// interpreted as milliseconds-since-epoch rather than seconds. Real
// instants expressed in milliseconds after 2001-09-09 exceed it, so the
// heuristic is unambiguous for any realistic recording.
const msCutoff = 1e12

// Parse maps a chunk key to a millisecond instant. The key's base name
// (its last path component, extension stripped) must be either a numeric
// literal (seconds or milliseconds since the Unix epoch, per msCutoff) or
// an ISO-8601 date-time literal.
func Parse(key string) (int64, error) {
	base := strings.TrimSuffix(path.Base(key), path.Ext(key))
	if base == "" {
		return 0, fmt.Errorf("%w: key %q", ErrEmptyBaseName, key)
	}

	if ms, ok := parseNumeric(base); ok {
		return ms, nil
	}

	if ms, ok := parseISO8601(base); ok {
		return ms, nil
	}

	return 0, fmt.Errorf("timestamp: cannot parse %q from key %q", base, key)
}

func parseNumeric(base string) (int64, bool) {
	if v, err := strconv.ParseInt(base, 10, 64); err == nil {
		return normalize(float64(v)), true
	}
	if v, err := strconv.ParseFloat(base, 64); err == nil {
		return normalize(v), true
	}
	return 0, false
}

func normalize(v float64) int64 {
	if v > msCutoff {
		return int64(v)
	}
	return int64(v * 1000)
}

func parseISO8601(base string) (int64, bool) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999999",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, base); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}
