package domain

import (
	"errors"
	"fmt"
	"time"
)

const DayLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days in a reporting location.
type DateRange struct {
	Since    time.Time
	Until    time.Time
	Location *time.Location
}

// NewDateRange parses YYYY-MM-DD bounds in loc.
func NewDateRange(since, until string, loc *time.Location, maxDays int) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	s, err := time.ParseInLocation(DayLayout, since, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid since %q: %w", since, err)
	}
	u, err := time.ParseInLocation(DayLayout, until, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid until %q: %w", until, err)
	}
	if u.Before(s) {
		return DateRange{}, errors.New("until is before since")
	}
	r := DateRange{Since: s, Until: u, Location: loc}
	if maxDays > 0 && len(r.Days()) > maxDays {
		return DateRange{}, fmt.Errorf("range exceeds %d days", maxDays)
	}
	return r, nil
}

// LastDays returns the n complete days ending the day before now.
func LastDays(now time.Time, n int, loc *time.Location) DateRange {
	if n < 1 {
		n = 1
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	until := today.AddDate(0, 0, -1)
	return DateRange{Since: until.AddDate(0, 0, -(n - 1)), Until: until, Location: loc}
}

func (r DateRange) SinceDay() string { return r.Since.Format(DayLayout) }
func (r DateRange) UntilDay() string { return r.Until.Format(DayLayout) }

// Start is midnight of the first day; End is the last instant of the final day.
func (r DateRange) Start() time.Time { return r.Since }
func (r DateRange) End() time.Time {
	return r.Until.AddDate(0, 0, 1).Add(-time.Second)
}

// Days lists every day in the range, oldest first.
func (r DateRange) Days() []string {
	var out []string
	for d := r.Since; !d.After(r.Until); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DayLayout))
	}
	return out
}

// DayOf maps an instant to its calendar day in the range's location.
func (r DateRange) DayOf(t time.Time) string {
	return t.In(r.Location).Format(DayLayout)
}

// Contains reports whether t falls on one of the range's days.
func (r DateRange) Contains(t time.Time) bool {
	day := r.DayOf(t)
	return day >= r.SinceDay() && day <= r.UntilDay()
}
