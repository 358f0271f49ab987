package timeparsing

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// parser is built once; when.Parser is safe for concurrent use since it
// only holds the compiled rule set, not per-call state.
var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseNaturalLanguage resolves English phrases ("tomorrow", "next
// monday at 2pm", "in 3 days") against a reference time using
// github.com/olebedev/when's English ruleset.
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("timeparsing: empty input")
	}
	r, err := parser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeparsing: %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("timeparsing: %q did not match any known expression", s)
	}
	return r.Time, nil
}

// ParseRelativeTime tries, in order: the compact duration shorthand,
// natural language, a bare date (2006-01-02), and finally RFC3339 —
// the first layer whose grammar matches wins, so "+1d" is never handed
// to the NLP engine even though "in 1 day" would also resolve there.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	if IsCompactDuration(s) {
		return ParseCompactDuration(s, now)
	}
	if t, err := ParseNaturalLanguage(s, now); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("timeparsing: %q did not match any known time expression", s)
}
