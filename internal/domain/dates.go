package domain

import "time"

// DateOf returns the calendar date of t (as recorded in t's own location) at
// midnight UTC, so dates compare and group without timezone drift.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween counts calendar month boundaries crossed going from start to
// end. Day of month is ignored, so every instant inside the same calendar month
// yields the same count. Never negative.
func MonthsBetween(start, end time.Time) int {
	sy, sm, _ := start.Date()
	ey, em, _ := end.Date()

	months := (ey-sy)*12 + int(em) - int(sm)
	if months < 0 {
		return 0
	}
	return months
}

// AddMonths adds n calendar months to t, clamping the day to the last day of
// the target month (Jan 31 + 1 month = Feb 28/29, not Mar 3).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())

	last := daysIn(first.Year(), first.Month())
	if d > last {
		d = last
	}

	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DaysBetween returns whole calendar days from start to end (negative when end
// precedes start).
func DaysBetween(start, end time.Time) int {
	return int(DateOf(end).Sub(DateOf(start)).Hours() / 24)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
