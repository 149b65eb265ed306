package calendar

import "time"

// Resolver is a compiled, read-only view of a Calendar. Create it with
// NewResolver; the zero value is not usable.
type Resolver struct {
	id          string
	workdays    [7]bool
	exceptions  map[int64]Exception
	hoursPerDay float64
}

// NewResolver validates cal and compiles it for date arithmetic.
func NewResolver(cal Calendar) (*Resolver, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	r := &Resolver{
		id:          cal.ID,
		exceptions:  make(map[int64]Exception, len(cal.Exceptions)),
		hoursPerDay: cal.HoursPerDay,
	}
	if r.hoursPerDay == 0 {
		r.hoursPerDay = DefaultHoursPerDay
	}
	for _, wd := range cal.Workdays {
		r.workdays[wd] = true
	}
	for _, ex := range cal.Exceptions {
		ex.Date = Day(ex.Date)
		r.exceptions[dayKey(ex.Date)] = ex
	}
	return r, nil
}

// ID returns the id of the compiled calendar.
func (r *Resolver) ID() string { return r.id }

func dayKey(d time.Time) int64 {
	return Day(d).Unix() / 86400
}

// IsWorkingDay reports whether d is working time. Exceptions override the
// weekday default.
func (r *Resolver) IsWorkingDay(d time.Time) bool {
	if ex, ok := r.exceptions[dayKey(d)]; ok {
		return ex.Working
	}
	return r.workdays[d.Weekday()]
}

// HoursOn returns the working hours available on d.
func (r *Resolver) HoursOn(d time.Time) float64 {
	if !r.IsWorkingDay(d) {
		return 0
	}
	if ex, ok := r.exceptions[dayKey(d)]; ok && ex.Hours > 0 {
		return ex.Hours
	}
	return r.hoursPerDay
}

// HoursPerDay returns the calendar's default working hours per day.
func (r *Resolver) HoursPerDay() float64 { return r.hoursPerDay }

// NextWorkingDay returns d itself when it is a working day, otherwise the
// first working day after it.
func (r *Resolver) NextWorkingDay(d time.Time) time.Time {
	d = Day(d)
	for !r.IsWorkingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// PrevWorkingDay returns d itself when it is a working day, otherwise the
// last working day before it.
func (r *Resolver) PrevWorkingDay(d time.Time) time.Time {
	d = Day(d)
	for !r.IsWorkingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// AddWorkingDuration moves from by n working days: the n-th working day
// after from for n > 0, the n-th working day before it for n < 0. A zero
// duration returns from unchanged, which is the milestone path.
func (r *Resolver) AddWorkingDuration(from time.Time, n int) time.Time {
	d := Day(from)
	step := 1
	if n < 0 {
		step, n = -1, -n
	}
	for n > 0 {
		d = d.AddDate(0, 0, step)
		if r.IsWorkingDay(d) {
			n--
		}
	}
	return d
}

// WorkingDurationBetween counts working time from start to end. For
// end after start it is the number of working days in (start, end]; for
// end before start it is minus the number in [end, start). Whenever end is
// a working day, AddWorkingDuration(start, WorkingDurationBetween(start, end))
// returns end.
func (r *Resolver) WorkingDurationBetween(start, end time.Time) int {
	s, e := Day(start), Day(end)
	n := 0
	switch {
	case e.After(s):
		for d := s.AddDate(0, 0, 1); !d.After(e); d = d.AddDate(0, 0, 1) {
			if r.IsWorkingDay(d) {
				n++
			}
		}
	case e.Before(s):
		for d := e; d.Before(s); d = d.AddDate(0, 0, 1) {
			if r.IsWorkingDay(d) {
				n--
			}
		}
	}
	return n
}

// AddWorkingDuration compiles cal and advances from by n working days.
func AddWorkingDuration(cal Calendar, from time.Time, n int) (time.Time, error) {
	r, err := NewResolver(cal)
	if err != nil {
		return time.Time{}, err
	}
	return r.AddWorkingDuration(from, n), nil
}

// WorkingDurationBetween compiles cal and counts working days from start to end.
func WorkingDurationBetween(cal Calendar, start, end time.Time) (int, error) {
	r, err := NewResolver(cal)
	if err != nil {
		return 0, err
	}
	return r.WorkingDurationBetween(start, end), nil
}
