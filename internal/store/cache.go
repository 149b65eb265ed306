// Package store persists task graphs, calendars and baselines through gorm
// and rebuilds them as engine snapshots.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/db"
	"github.com/zulandar/timetable/internal/graph"
	"gorm.io/gorm"
)

// CalendarCache memoizes calendars read from the database. Callers own the
// cache and pass it explicitly; there is no package-level cache.
type CalendarCache struct {
	mu   sync.Mutex
	cals map[string]calendar.Calendar
}

// NewCalendarCache returns an empty cache.
func NewCalendarCache() *CalendarCache {
	return &CalendarCache{cals: make(map[string]calendar.Calendar)}
}

// Get returns the calendar with id, loading it on first use. A calendar
// that does not exist wraps graph.ErrUnknownCalendar.
func (c *CalendarCache) Get(gdb *gorm.DB, id string) (calendar.Calendar, error) {
	c.mu.Lock()
	if cal, ok := c.cals[id]; ok {
		c.mu.Unlock()
		return cal.Clone(), nil
	}
	c.mu.Unlock()

	cal, err := db.LoadCalendar(gdb, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return calendar.Calendar{}, fmt.Errorf("store: calendar %q: %w", id, graph.ErrUnknownCalendar)
		}
		return calendar.Calendar{}, fmt.Errorf("store: %w", err)
	}

	c.mu.Lock()
	c.cals[id] = cal
	c.mu.Unlock()
	return cal.Clone(), nil
}

// Put stores cal in the cache, replacing any earlier copy.
func (c *CalendarCache) Put(cal calendar.Calendar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cals[cal.ID] = cal.Clone()
}

// Forget drops id so the next Get reads the database again.
func (c *CalendarCache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cals, id)
}

// Len reports how many calendars are cached.
func (c *CalendarCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cals)
}

// SaveCalendar writes cal and refreshes the cached copy.
func (c *CalendarCache) SaveCalendar(gdb *gorm.DB, cal calendar.Calendar) error {
	if err := db.UpsertCalendar(gdb, cal); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	c.Put(cal)
	return nil
}
