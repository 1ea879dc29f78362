package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Spec is a parsed schedule. Three forms are supported:
//
//	every <duration>     e.g. "every 5m"
//	daily HH:MM          e.g. "daily 08:00"
//	<weekday> HH:MM      e.g. "mon 06:00"
//
// Clock-based specs are evaluated in UTC.
type Spec struct {
	every   time.Duration
	weekday time.Weekday
	hour    int
	minute  int
	kind    specKind
}

type specKind int

const (
	kindEvery specKind = iota
	kindDaily
	kindWeekly
)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseSpec parses a schedule expression.
func ParseSpec(s string) (Spec, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) != 2 {
		return Spec{}, fmt.Errorf("invalid schedule %q (want \"every <duration>\", \"daily HH:MM\" or \"<weekday> HH:MM\")", s)
	}

	if fields[0] == "every" {
		d, err := time.ParseDuration(fields[1])
		if err != nil {
			return Spec{}, fmt.Errorf("invalid interval in schedule %q: %w", s, err)
		}
		if d < time.Second {
			return Spec{}, fmt.Errorf("interval in schedule %q must be at least 1s", s)
		}
		return Spec{kind: kindEvery, every: d}, nil
	}

	hour, minute, err := parseClock(fields[1])
	if err != nil {
		return Spec{}, fmt.Errorf("invalid time in schedule %q: %w", s, err)
	}

	if fields[0] == "daily" {
		return Spec{kind: kindDaily, hour: hour, minute: minute}, nil
	}

	wd, ok := weekdays[fields[0]]
	if !ok {
		return Spec{}, fmt.Errorf("unknown weekday %q in schedule %q", fields[0], s)
	}
	return Spec{kind: kindWeekly, weekday: wd, hour: hour, minute: minute}, nil
}

func parseClock(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("want HH:MM: %w", err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock %q out of range", s)
	}
	return hour, minute, nil
}

// Next returns the first firing time strictly after the given instant.
func (s Spec) Next(after time.Time) time.Time {
	switch s.kind {
	case kindEvery:
		return after.Add(s.every)
	case kindDaily:
		after = after.UTC()
		next := time.Date(after.Year(), after.Month(), after.Day(), s.hour, s.minute, 0, 0, time.UTC)
		if !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	default: // kindWeekly
		after = after.UTC()
		next := time.Date(after.Year(), after.Month(), after.Day(), s.hour, s.minute, 0, 0, time.UTC)
		days := (int(s.weekday) - int(next.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, days)
		if !next.After(after) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	}
}
