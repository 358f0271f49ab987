// Package timeparsing layers several ways of expressing a point in time —
// a compact relative-duration shorthand, natural language, plain dates,
// and RFC3339 — behind one ParseRelativeTime entry point.
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// IsCompactDuration reports whether s matches the compact shorthand
// grammar (optional sign, digits, one of h/d/w/m/y), without evaluating
// it against a reference time.
func IsCompactDuration(s string) bool {
	return compactDurationRe.MatchString(s)
}

// ParseCompactDuration parses strings like "+6h", "-1d", "3m" (no sign
// means positive) relative to now. Months and years use time.AddDate,
// inheriting Go's day-overflow normalization (e.g. Jan 31 + 1 month rolls
// into March) rather than clamping to month end.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	m := compactDurationRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("timeparsing: %q is not a compact duration", s)
	}

	n, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("timeparsing: %q: %w", s, err)
	}
	if m[1] == "-" {
		n = -n
	}

	switch m[3] {
	case "h":
		return now.Add(time.Duration(n) * time.Hour), nil
	case "d":
		return now.AddDate(0, 0, n), nil
	case "w":
		return now.AddDate(0, 0, n*7), nil
	case "m":
		return now.AddDate(0, n, 0), nil
	case "y":
		return now.AddDate(n, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("timeparsing: %q: unknown unit %q", s, m[3])
	}
}
