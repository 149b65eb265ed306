// Package calendar converts between calendar days and working time for a
// named working calendar (working weekdays plus dated exceptions).
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrEmptyCalendar is returned for a calendar without any working weekday.
var ErrEmptyCalendar = errors.New("calendar has no working days")

// DefaultHoursPerDay is used when a calendar does not set HoursPerDay.
const DefaultHoursPerDay = 8.0

// Exception overrides the weekday default for a single day. A working
// exception is an overtime day; a non-working one is a holiday.
type Exception struct {
	Date    time.Time
	Working bool
	Hours   float64 // hours available on a working exception; 0 uses the calendar default
}

// Calendar describes which days count as working time.
type Calendar struct {
	ID          string
	Name        string
	Workdays    []time.Weekday
	Exceptions  []Exception
	HoursPerDay float64
}

// Standard returns a Monday to Friday calendar with 8 hour days.
func Standard(id string) Calendar {
	return Calendar{
		ID:          id,
		Name:        "Standard",
		Workdays:    []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		HoursPerDay: DefaultHoursPerDay,
	}
}

// Validate reports whether the calendar can be used for date arithmetic.
func (c Calendar) Validate() error {
	if len(c.Workdays) == 0 {
		return fmt.Errorf("calendar %q: %w", c.ID, ErrEmptyCalendar)
	}
	for _, wd := range c.Workdays {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("calendar %q: invalid weekday %d", c.ID, wd)
		}
	}
	if c.HoursPerDay < 0 {
		return fmt.Errorf("calendar %q: hours per day must not be negative", c.ID)
	}
	return nil
}

// Clone returns a deep copy of the calendar.
func (c Calendar) Clone() Calendar {
	out := c
	out.Workdays = append([]time.Weekday(nil), c.Workdays...)
	out.Exceptions = append([]Exception(nil), c.Exceptions...)
	return out
}

// Day truncates t to a civil day at UTC midnight. All scheduling dates are
// days; the time of day is ignored.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MustParseDay parses a YYYY-MM-DD date and panics on error. Intended for
// tests and fixtures.
func MustParseDay(s string) time.Time {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar: parse day %q: %w", s, err)
	}
	return d, nil
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return Day(t).Format(time.DateOnly)
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts short ("mon") or long ("monday") weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("calendar: unknown weekday %q", s)
	}
	return wd, nil
}

// WeekdayMask encodes working weekdays as a bitmask, Monday = bit 0 through
// Sunday = bit 6.
func WeekdayMask(days []time.Weekday) int {
	mask := 0
	for _, wd := range days {
		mask |= 1 << ((int(wd) + 6) % 7)
	}
	return mask
}

// WeekdaysFromMask is the inverse of WeekdayMask. Days come back ordered
// Sunday first, matching time.Weekday.
func WeekdaysFromMask(mask int) []time.Weekday {
	var days []time.Weekday
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if mask&(1<<((int(wd)+6)%7)) != 0 {
			days = append(days, wd)
		}
	}
	return days
}

// SortedExceptions returns the exceptions ordered by date.
func (c Calendar) SortedExceptions() []Exception {
	out := append([]Exception(nil), c.Exceptions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
