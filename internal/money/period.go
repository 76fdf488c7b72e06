package money

import (
	"strconv"
	"strings"
	"time"
)

// Named reporting periods accepted by ResolvePeriod. Unknown keys resolve as
// PeriodLast30Days.
const (
	PeriodToday      = "today"
	PeriodYesterday  = "yesterday"
	PeriodLast7Days  = "last7days"
	PeriodLast30Days = "last30days"
	PeriodLast60Days = "last60days"
	PeriodLast90Days = "last90days"
	PeriodThisMonth  = "thisMonth"
	PeriodLastMonth  = "lastMonth"
)

// Day normalizes t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts the calendar days covered by the inclusive range
// [start, end].
func DaysBetween(start, end time.Time) int {
	s, e := Day(start), Day(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// PriorRange shifts an inclusive day range back by its own length, producing
// the comparable preceding period used for trend computation.
func PriorRange(start, end time.Time) (time.Time, time.Time) {
	n := DaysBetween(start, end)
	return start.AddDate(0, 0, -n), end.AddDate(0, 0, -n)
}

// ResolvePeriod maps a named period onto an inclusive day-aligned range
// using the tenant's local calendar date in the given timezone.
func ResolvePeriod(key, timezone string) (time.Time, time.Time) {
	return ResolvePeriodAt(time.Now(), key, timezone)
}

// ResolvePeriodAt is ResolvePeriod anchored at an explicit instant.
//
// The local "today" is computed by formatting now into the target zone and
// rebuilding the Y/M/D as a UTC-anchored day. Comparing instants directly
// would pick the server's calendar date, which is off by one whenever the
// server and tenant sit on different sides of midnight.
func ResolvePeriodAt(now time.Time, key, timezone string) (time.Time, time.Time) {
	loc := loadLocation(timezone)
	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	switch key {
	case PeriodToday:
		return today, endOfDay(today)
	case PeriodYesterday:
		yd := today.AddDate(0, 0, -1)
		return yd, endOfDay(yd)
	case PeriodLast7Days:
		return today.AddDate(0, 0, -6), endOfDay(today)
	case PeriodLast60Days:
		return today.AddDate(0, 0, -59), endOfDay(today)
	case PeriodLast90Days:
		return today.AddDate(0, 0, -89), endOfDay(today)
	case PeriodThisMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC), endOfDay(today)
	case PeriodLastMonth:
		firstOfThis := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return firstOfThis.AddDate(0, -1, 0), endOfDay(firstOfThis.AddDate(0, 0, -1))
	default: // PeriodLast30Days and anything unrecognized
		return today.AddDate(0, 0, -29), endOfDay(today)
	}
}

func endOfDay(day time.Time) time.Time {
	return day.Add(24*time.Hour - time.Nanosecond)
}

// loadLocation resolves an IANA zone name, falling back to fixed "UTC±H" or
// "UTC±H:MM" offsets, then to UTC.
func loadLocation(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	if loc, err := time.LoadLocation(timezone); err == nil {
		return loc
	}
	if loc := fixedOffset(timezone); loc != nil {
		return loc
	}
	return time.UTC
}

func fixedOffset(name string) *time.Location {
	s := strings.ToUpper(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "UTC")
	s = strings.TrimPrefix(s, "GMT")
	if s == "" {
		return time.UTC
	}
	sign := 1
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	default:
		return nil
	}
	hh, mm := s, "0"
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hh, mm = s[:i], s[i+1:]
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h > 14 {
		return nil
	}
	min, err := strconv.Atoi(mm)
	if err != nil || min > 59 {
		return nil
	}
	offset := sign * (h*3600 + min*60)
	return time.FixedZone(name, offset)
}
