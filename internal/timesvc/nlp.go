package timesvc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/poolctld/poolctld/internal/timeparsing"
)

var weekdayTokens = map[string]uint8{
	"monday": 0, "mon": 0,
	"tuesday": 1, "tue": 1, "tues": 1,
	"wednesday": 2, "wed": 2,
	"thursday": 3, "thu": 3, "thurs": 3,
	"friday": 4, "fri": 4,
	"saturday": 5, "sat": 5,
	"sunday": 6, "sun": 6,
}

var clockRe = regexp.MustCompile(`^([0-2]?\d):([0-5]\d)$`)

func parseClock(s string) (hour, minute uint8, err error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("timesvc: %q is not an HH:MM clock time", s)
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	if h > 23 {
		return 0, 0, fmt.Errorf("timesvc: %q: hour out of range", s)
	}
	return uint8(h), uint8(mi), nil
}

// ParseRecurringPhrase understands expressions of the shape
// "every monday,wednesday 23:00 to 01:00" or "every day 06:30", producing
// the WeekdayMask/StartHour/StartMinute/EndHour/EndMinute/HasEnd fields
// of a Slot. Everything else in the Slot (Enabled, EventID, Label, ...)
// is left at its zero value for the caller to fill in.
func ParseRecurringPhrase(phrase string) (Slot, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(phrase)))
	if len(fields) < 1 || fields[0] != "every" {
		return Slot{}, fmt.Errorf("timesvc: recurring phrase must start with %q", "every")
	}
	fields = fields[1:]
	if len(fields) < 2 {
		return Slot{}, fmt.Errorf("timesvc: recurring phrase missing a time")
	}

	var mask uint8
	dayTokens := strings.Split(fields[0], ",")
	if fields[0] == "day" || fields[0] == "everyday" {
		mask = WeekdayAll
		fields = fields[1:]
	} else {
		matched := false
		for _, tok := range dayTokens {
			bit, ok := weekdayTokens[tok]
			if !ok {
				break
			}
			mask |= 1 << bit
			matched = true
		}
		if !matched {
			return Slot{}, fmt.Errorf("timesvc: %q is not a recognized weekday list", fields[0])
		}
		fields = fields[1:]
	}
	if mask == 0 {
		mask = WeekdayAll
	}

	if len(fields) < 1 {
		return Slot{}, fmt.Errorf("timesvc: recurring phrase missing a start time")
	}
	startH, startM, err := parseClock(fields[0])
	if err != nil {
		return Slot{}, err
	}
	fields = fields[1:]

	def := Slot{
		Mode: RecurringClock, WeekdayMask: mask,
		StartHour: startH, StartMinute: startM,
	}

	if len(fields) >= 2 && fields[0] == "to" {
		endH, endM, err := parseClock(fields[1])
		if err != nil {
			return Slot{}, err
		}
		def.HasEnd = true
		def.EndHour = endH
		def.EndMinute = endM
	} else if len(fields) != 0 {
		return Slot{}, fmt.Errorf("timesvc: unexpected trailing text %q", strings.Join(fields, " "))
	}

	return def, nil
}

// ParseWhenPhrase resolves a one-shot "when" expression (anything
// internal/timeparsing.ParseRelativeTime understands — compact
// shorthand, natural language, bare date, or RFC3339) into a one-shot
// epoch Slot with no end.
func ParseWhenPhrase(phrase string, now time.Time) (Slot, error) {
	t, err := timeparsing.ParseRelativeTime(phrase, now)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Mode: OneShotEpoch, StartEpochSec: uint64(t.Unix())}, nil
}
