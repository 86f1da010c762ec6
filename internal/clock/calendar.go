package clock

import "time"

// AddMonths moves d by n calendar months, clamping the day to the end of the
// target month (Jan 31 + 1 month is Feb 28 or 29).
func AddMonths(d time.Time, n int) time.Time {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, d.Location())
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
}

// MonthsBetween counts whole calendar months from from to to, 0 when to is not after from.
func MonthsBetween(from, to time.Time) int {
	from, to = DateOf(from), DateOf(to)
	if !to.After(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()-from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
