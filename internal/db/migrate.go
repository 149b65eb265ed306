package db

import (
	"errors"
	"fmt"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/config"
	"github.com/zulandar/timetable/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultCalendarID is the calendar every database starts with.
const DefaultCalendarID = "standard"

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Calendar{},
		&models.CalendarException{},
		&models.Project{},
		&models.Task{},
		&models.Dependency{},
		&models.Baseline{},
		&models.BaselineTask{},
		&models.TaskChange{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedCalendars upserts the configured calendars. The standard Monday to
// Friday calendar is seeded too unless the configuration defines one with
// the same ID.
func SeedCalendars(db *gorm.DB, cfgs []config.CalendarConfig) (int, error) {
	cals := make([]calendar.Calendar, 0, len(cfgs)+1)
	haveDefault := false
	for _, cc := range cfgs {
		cal, err := cc.Calendar()
		if err != nil {
			return 0, fmt.Errorf("db: seed calendar %q: %w", cc.ID, err)
		}
		if cal.ID == DefaultCalendarID {
			haveDefault = true
		}
		cals = append(cals, cal)
	}
	if !haveDefault {
		cals = append([]calendar.Calendar{calendar.Standard(DefaultCalendarID)}, cals...)
	}
	for _, cal := range cals {
		if err := UpsertCalendar(db, cal); err != nil {
			return 0, err
		}
	}
	return len(cals), nil
}

// UpsertCalendar writes cal and replaces its exceptions.
func UpsertCalendar(db *gorm.DB, cal calendar.Calendar) error {
	if err := cal.Validate(); err != nil {
		return fmt.Errorf("db: save calendar: %w", err)
	}
	row := CalendarRow(cal)
	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.Omit("Exceptions").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "workdays", "hours_per_day", "updated_at"}),
		}).Create(&row)
		if result.Error != nil {
			return fmt.Errorf("db: save calendar %q: %w", cal.ID, result.Error)
		}
		if err := tx.Where("calendar_id = ?", cal.ID).Delete(&models.CalendarException{}).Error; err != nil {
			return fmt.Errorf("db: clear exceptions for %q: %w", cal.ID, err)
		}
		if len(row.Exceptions) > 0 {
			if err := tx.Create(&row.Exceptions).Error; err != nil {
				return fmt.Errorf("db: save exceptions for %q: %w", cal.ID, err)
			}
		}
		return nil
	})
}

// LoadCalendar reads one calendar with its exceptions. A missing calendar
// wraps gorm.ErrRecordNotFound.
func LoadCalendar(db *gorm.DB, id string) (calendar.Calendar, error) {
	var row models.Calendar
	err := db.Preload("Exceptions", func(q *gorm.DB) *gorm.DB {
		return q.Order("date ASC")
	}).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return calendar.Calendar{}, fmt.Errorf("db: calendar not found: %s: %w", id, err)
		}
		return calendar.Calendar{}, fmt.Errorf("db: load calendar %s: %w", id, err)
	}
	return CalendarFromRow(row), nil
}

// ListCalendars returns every stored calendar ordered by ID.
func ListCalendars(db *gorm.DB) ([]calendar.Calendar, error) {
	var rows []models.Calendar
	if err := db.Preload("Exceptions").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("db: list calendars: %w", err)
	}
	out := make([]calendar.Calendar, 0, len(rows))
	for _, r := range rows {
		out = append(out, CalendarFromRow(r))
	}
	return out, nil
}

// CalendarRow converts an engine calendar into its table form.
func CalendarRow(cal calendar.Calendar) models.Calendar {
	row := models.Calendar{
		ID:          cal.ID,
		Name:        cal.Name,
		Workdays:    calendar.WeekdayMask(cal.Workdays),
		HoursPerDay: cal.HoursPerDay,
	}
	for _, ex := range cal.SortedExceptions() {
		row.Exceptions = append(row.Exceptions, models.CalendarException{
			CalendarID: cal.ID,
			Date:       calendar.Day(ex.Date),
			Working:    ex.Working,
			Hours:      ex.Hours,
		})
	}
	return row
}

// CalendarFromRow is the inverse of CalendarRow.
func CalendarFromRow(row models.Calendar) calendar.Calendar {
	cal := calendar.Calendar{
		ID:          row.ID,
		Name:        row.Name,
		Workdays:    calendar.WeekdaysFromMask(row.Workdays),
		HoursPerDay: row.HoursPerDay,
	}
	for _, ex := range row.Exceptions {
		cal.Exceptions = append(cal.Exceptions, calendar.Exception{
			Date:    calendar.Day(ex.Date),
			Working: ex.Working,
			Hours:   ex.Hours,
		})
	}
	return cal
}
