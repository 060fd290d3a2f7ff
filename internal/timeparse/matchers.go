package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// defaultHour is the local delivery hour when a day phrase carries no clock
// time ("tomorrow", "next week").
const defaultHour = 9

var (
	relativeOffsetRe = regexp.MustCompile(`(?i)\bin\s+(\d+)\s+(hours?|hrs?|minutes?|mins?)\b`)
	relativeDayRe    = regexp.MustCompile(`(?i)\btomorrow\b(?:,?\s*(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?)?`)
	nextWeekRe       = regexp.MustCompile(`(?i)\bnext\s+week\b`)
	clockTodayRe     = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
)

// relativeOffsetMatcher handles "in N hours" / "in N minutes".
type relativeOffsetMatcher struct{}

func (relativeOffsetMatcher) Name() string { return "relative_offset" }

func (relativeOffsetMatcher) Match(phrase string, _ *time.Location, now time.Time) (time.Time, bool) {
	m := relativeOffsetRe.FindStringSubmatch(phrase)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	unit := strings.ToLower(m[2])
	if strings.HasPrefix(unit, "h") {
		return now.Add(time.Duration(n) * time.Hour), true
	}
	return now.Add(time.Duration(n) * time.Minute), true
}

// relativeDayMatcher handles "tomorrow" with an optional clock time.
type relativeDayMatcher struct{}

func (relativeDayMatcher) Name() string { return "relative_day" }

func (relativeDayMatcher) Match(phrase string, loc *time.Location, now time.Time) (time.Time, bool) {
	m := relativeDayRe.FindStringSubmatch(phrase)
	if m == nil {
		return time.Time{}, false
	}
	hour, minute := defaultHour, 0
	if m[1] != "" {
		var ok bool
		hour, minute, ok = clockFields(m[1], m[2], m[3])
		if !ok {
			return time.Time{}, false
		}
	}
	local := now.In(loc)
	next := local.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), hour, minute, 0, 0, loc), true
}

// nextWeekMatcher handles "next week": seven days ahead at the default hour.
type nextWeekMatcher struct{}

func (nextWeekMatcher) Name() string { return "next_week" }

func (nextWeekMatcher) Match(phrase string, loc *time.Location, now time.Time) (time.Time, bool) {
	if !nextWeekRe.MatchString(phrase) {
		return time.Time{}, false
	}
	local := now.In(loc).AddDate(0, 0, 7)
	return time.Date(local.Year(), local.Month(), local.Day(), defaultHour, 0, 0, 0, loc), true
}

// clockTodayMatcher handles a bare "at H[:MM] (am|pm)" with no day
// qualifier: today at that local time, rolling forward exactly one day when
// the instant has already passed.
type clockTodayMatcher struct{}

func (clockTodayMatcher) Name() string { return "clock_today" }

func (clockTodayMatcher) Match(phrase string, loc *time.Location, now time.Time) (time.Time, bool) {
	m := clockTodayRe.FindStringSubmatch(phrase)
	if m == nil {
		return time.Time{}, false
	}
	hour, minute, ok := clockFields(m[1], m[2], m[3])
	if !ok {
		return time.Time{}, false
	}
	local := now.In(loc)
	when := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !when.After(now) {
		when = when.AddDate(0, 0, 1)
	}
	return when, true
}

// clockFields converts captured hour/minute/meridiem strings into a 24-hour
// clock reading.
func clockFields(hourStr, minuteStr, meridiem string) (hour, minute int, ok bool) {
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, 0, false
	}
	if minuteStr != "" {
		minute, err = strconv.Atoi(minuteStr)
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}
	switch strings.ToLower(meridiem) {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, 0, false
		}
	}
	return hour, minute, true
}
