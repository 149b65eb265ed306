package models

import "time"

// Project is a schedule: a task graph plus its default working calendar.
// ProjectFinish and SolvedAt describe the last solve and are kept while
// edits leave the schedule unsolved.
type Project struct {
	ID                string     `gorm:"primaryKey;size:64"`
	Name              string     `gorm:"size:255;not null"`
	PlannedStart      time.Time  `gorm:"not null"`
	MustFinishBy      *time.Time
	DefaultCalendarID string     `gorm:"size:64;not null"`
	Active            bool       `gorm:"default:true;index"`
	Solved            bool       `gorm:"default:false"`
	ProjectFinish     *time.Time
	SolvedAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Tasks        []Task       `gorm:"foreignKey:ProjectID"`
	Dependencies []Dependency `gorm:"foreignKey:ProjectID"`
}

// Calendar is a shared working calendar. Workdays is a weekday bitmask,
// Monday = bit 0 through Sunday = bit 6.
type Calendar struct {
	ID          string  `gorm:"primaryKey;size:64"`
	Name        string  `gorm:"size:128"`
	Workdays    int     `gorm:"not null"`
	HoursPerDay float64 `gorm:"default:8"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Exceptions []CalendarException `gorm:"foreignKey:CalendarID"`
}

// CalendarException overrides a single day of a calendar.
type CalendarException struct {
	CalendarID string    `gorm:"primaryKey;size:64"`
	Date       time.Time `gorm:"primaryKey"`
	Working    bool      `gorm:"default:false"`
	Hours      float64
}
