// Package cron evaluates 5-field cron expressions (minute, hour,
// day-of-month, month, day-of-week). Evaluation is UTC only; the timezone
// parameter on Matches/Next is accepted for interface stability but not
// applied.
package cron

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Schedule holds the allowed value set for each of the five fields.
type Schedule struct {
	Minutes  map[int]bool
	Hours    map[int]bool
	Days     map[int]bool
	Months   map[int]bool
	Weekdays map[int]bool // 0 = Sunday
}

type fieldRange struct {
	min, max int
}

var fieldRanges = []fieldRange{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week
}

// Parse splits expr into exactly five whitespace-separated fields and
// parses each into a value set. Invalid numeric tokens within a field are
// dropped silently; a field that yields no values at all fails the parse.
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, errors.Errorf("expected 5 fields, got %d", len(fields))
	}
	sets := make([]map[int]bool, 5)
	for i, f := range fields {
		set := parseField(f, fieldRanges[i].min, fieldRanges[i].max)
		if len(set) == 0 {
			return nil, errors.Errorf("field %d (%q) has no valid values", i, f)
		}
		sets[i] = set
	}
	return &Schedule{
		Minutes:  sets[0],
		Hours:    sets[1],
		Days:     sets[2],
		Months:   sets[3],
		Weekdays: sets[4],
	}, nil
}

// parseField handles "*", comma lists, "n-m" ranges and "base/step" where
// base is "*", a range or a bare number (implicit end = field max).
func parseField(field string, min, max int) map[int]bool {
	set := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		if part == "*" {
			fill(set, min, max, 1)
			continue
		}
		if strings.Contains(part, "/") {
			pieces := strings.SplitN(part, "/", 2)
			step, err := strconv.Atoi(pieces[1])
			if err != nil || step <= 0 {
				continue
			}
			start, end := min, max
			if pieces[0] != "*" {
				var ok bool
				start, end, ok = parseRange(pieces[0], min, max)
				if !ok {
					continue
				}
			}
			fill(set, start, end, step)
			continue
		}
		if strings.Contains(part, "-") {
			start, end, ok := parseRange(part, min, max)
			if !ok {
				continue
			}
			fill(set, start, end, 1)
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < min || n > max {
			continue
		}
		set[n] = true
	}
	return set
}

// parseRange parses "n-m" or a bare "n" (implicit end = max).
func parseRange(s string, min, max int) (int, int, bool) {
	if strings.Contains(s, "-") {
		pieces := strings.SplitN(s, "-", 2)
		start, err1 := strconv.Atoi(pieces[0])
		end, err2 := strconv.Atoi(pieces[1])
		if err1 != nil || err2 != nil || start > end || start < min || end > max {
			return 0, 0, false
		}
		return start, end, true
	}
	start, err := strconv.Atoi(s)
	if err != nil || start < min || start > max {
		return 0, 0, false
	}
	return start, max, true
}

func fill(set map[int]bool, start, end, step int) {
	for v := start; v <= end; v += step {
		set[v] = true
	}
}

// MatchesTime is a field-wise set-containment check against t in UTC.
func (s *Schedule) MatchesTime(t time.Time) bool {
	u := t.UTC()
	return s.Minutes[u.Minute()] &&
		s.Hours[u.Hour()] &&
		s.Days[u.Day()] &&
		s.Months[int(u.Month())] &&
		s.Weekdays[int(u.Weekday())]
}

// Matches reports whether t matches expr. A failed parse matches nothing.
// tz is unused: evaluation is UTC only.
func Matches(expr string, t time.Time, tz string) bool {
	_ = tz
	sched, err := Parse(expr)
	if err != nil {
		return false
	}
	return sched.MatchesTime(t)
}

// Next scans minute by minute from the next whole minute after `after`,
// bounded to 365 days ahead, and returns the first matching time or nil.
// tz is unused: evaluation is UTC only.
func Next(expr string, after time.Time, tz string) *time.Time {
	_ = tz
	sched, err := Parse(expr)
	if err != nil {
		return nil
	}
	t := after.UTC().Truncate(time.Minute).Add(time.Minute)
	limit := after.UTC().Add(365 * 24 * time.Hour)
	for !t.After(limit) {
		if sched.MatchesTime(t) {
			next := t
			return &next
		}
		t = t.Add(time.Minute)
	}
	return nil
}
