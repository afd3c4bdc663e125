package filter

import (
	"strconv"
	"time"
)

// resolveMacro expands a macro name (without the leading '@') to its
// ISO-8601 literal relative to now, per SPEC_FULL.md section 4.4's macro
// table. now is supplied by the caller (the Query Engine) rather than
// read internally, so filter compilation stays deterministic and testable.
func resolveMacro(name string, now time.Time) (string, bool) {
	now = now.UTC()

	switch name {
	case "now":
		return iso(now), true
	case "todayStart":
		return iso(dayStart(now)), true
	case "todayEnd":
		return iso(dayStart(now).Add(24*time.Hour - time.Nanosecond)), true
	case "yesterday":
		return iso(dayStart(now).AddDate(0, 0, -1)), true
	case "tomorrow":
		return iso(dayStart(now).AddDate(0, 0, 1)), true
	case "monthStart":
		return iso(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)), true
	case "monthEnd":
		return iso(time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)), true
	case "yearStart":
		return iso(time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)), true
	case "yearEnd":
		return iso(time.Date(now.Year()+1, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)), true
	case "second":
		return strconv.Itoa(now.Second()), true
	case "minute":
		return strconv.Itoa(now.Minute()), true
	case "hour":
		return strconv.Itoa(now.Hour()), true
	case "day":
		return strconv.Itoa(now.Day()), true
	case "weekday":
		return strconv.Itoa(int(now.Weekday())), true
	case "month":
		return strconv.Itoa(int(now.Month())), true
	case "year":
		return strconv.Itoa(now.Year()), true
	default:
		return "", false
	}
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func iso(t time.Time) string { return t.Format(time.RFC3339Nano) }
