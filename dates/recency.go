package dates

import "time"

// IsWithinMonths reports whether t is strictly after now minus the given
// number of months. The zero time never qualifies.
func IsWithinMonths(t time.Time, months int) bool {
	return WithinMonthsAt(t, months, time.Now())
}

// IsWithinWeeks reports whether t is strictly after now minus the given
// number of weeks. The zero time never qualifies.
func IsWithinWeeks(t time.Time, weeks int) bool {
	return WithinWeeksAt(t, weeks, time.Now())
}

// WithinMonthsAt is IsWithinMonths against an explicit reference time.
func WithinMonthsAt(t time.Time, months int, now time.Time) bool {
	if t.IsZero() {
		return false
	}
	return t.After(SubMonths(now, months))
}

// WithinWeeksAt is IsWithinWeeks against an explicit reference time.
func WithinWeeksAt(t time.Time, weeks int, now time.Time) bool {
	return WithinDaysAt(t, weeks*7, now)
}

// WithinDaysAt reports whether t is strictly after now minus the given number
// of days.
func WithinDaysAt(t time.Time, days int, now time.Time) bool {
	if t.IsZero() {
		return false
	}
	return t.After(now.AddDate(0, 0, -days))
}

// SubMonths subtracts months from t, clamping the day to the last day of the
// target month (31 March minus one month is the end of February, not 3
// March).
func SubMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m-time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
