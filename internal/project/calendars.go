package project

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/db"
	"github.com/zulandar/timetable/internal/graph"
	"github.com/zulandar/timetable/internal/store"
	"gorm.io/gorm"
)

// ListCalendars returns the shared calendar catalogue.
func (s *Service) ListCalendars() ([]calendar.Calendar, error) {
	return db.ListCalendars(s.DB)
}

// Calendar returns one catalogue calendar.
func (s *Service) Calendar(id string) (calendar.Calendar, error) {
	return s.Calendars.Get(s.DB, id)
}

// PutCalendar adds or replaces a catalogue calendar. Replacing a calendar
// that a solved project was computed with fails with ErrCalendarLocked
// unless invalidate is set, in which case those projects are marked for
// recalculation. It returns the ids of the invalidated projects.
func (s *Service) PutCalendar(cal calendar.Calendar, invalidate bool) ([]string, error) {
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("project: calendar %q: %w", cal.ID, err)
	}
	ids, err := store.ProjectsUsingCalendar(s.DB, cal.ID, true)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 && !invalidate {
		return nil, &graph.EditError{
			Kind: graph.ErrCalendarLocked,
			Msg:  fmt.Sprintf("calendar %q is used by solved projects %s", cal.ID, strings.Join(ids, ", ")),
		}
	}

	// ids are ordered, so concurrent callers lock in the same order.
	for _, id := range ids {
		unlock := s.lock(id)
		defer unlock()
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.Calendars.SaveCalendar(tx, cal); err != nil {
			return err
		}
		if err := store.MarkUnsolved(tx, ids); err != nil {
			return err
		}
		for _, id := range ids {
			if err := store.RecordChange(tx, id, "", store.ActionCalendarUpdated, cal.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.Calendars.Forget(cal.ID)
		return nil, err
	}
	return ids, nil
}

// checkCalendarLocks fails when any of cals would change a stored calendar
// that a solved project other than except was computed with.
func (s *Service) checkCalendarLocks(cals []calendar.Calendar, except string) error {
	for _, cal := range cals {
		stored, err := db.LoadCalendar(s.DB, cal.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}
		if sameCalendar(stored, cal) {
			continue
		}
		ids, err := store.ProjectsUsingCalendar(s.DB, cal.ID, true)
		if err != nil {
			return err
		}
		var others []string
		for _, id := range ids {
			if id != except {
				others = append(others, id)
			}
		}
		if len(others) > 0 {
			return &graph.EditError{
				Kind: graph.ErrCalendarLocked,
				Msg:  fmt.Sprintf("calendar %q is used by solved projects %s", cal.ID, strings.Join(others, ", ")),
			}
		}
	}
	return nil
}

// sameCalendar compares the scheduling-relevant parts of two calendars.
func sameCalendar(a, b calendar.Calendar) bool {
	if a.ID != b.ID || a.HoursPerDay != b.HoursPerDay ||
		calendar.WeekdayMask(a.Workdays) != calendar.WeekdayMask(b.Workdays) {
		return false
	}
	ae, be := a.SortedExceptions(), b.SortedExceptions()
	if len(ae) != len(be) {
		return false
	}
	for i := range ae {
		if !ae[i].Date.Equal(be[i].Date) || ae[i].Working != be[i].Working || ae[i].Hours != be[i].Hours {
			return false
		}
	}
	return true
}
