package timeutil

import "time"

// DateLayout is the date-bucket format used for target_day columns.
const DateLayout = "2006-01-02"

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns midnight of the following day in loc, so the day is
// the half-open interval [StartOfDay, EndOfDay).
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1)
}

// DateOnly renders t's calendar day in loc as YYYY-MM-DD.
func DateOnly(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD day bucket as midnight in loc.
func ParseDate(day string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, day, loc)
}
