package models

import "time"

// Baseline is an immutable schedule snapshot. DeletedAt hides it from
// listings without freeing its number.
type Baseline struct {
	ID        string `gorm:"primaryKey;size:80"`
	ProjectID string `gorm:"size:64;not null;uniqueIndex:idx_project_number"`
	Number    int    `gorm:"not null;uniqueIndex:idx_project_number"`
	Name      string `gorm:"size:255"`
	CreatedAt time.Time
	DeletedAt *time.Time

	Tasks []BaselineTask `gorm:"foreignKey:BaselineID"`
}

// BaselineTask is one task as it stood when its baseline was captured.
type BaselineTask struct {
	BaselineID      string `gorm:"primaryKey;size:80"`
	TaskID          string `gorm:"primaryKey;size:64"`
	Name            string `gorm:"size:255"`
	Kind            string `gorm:"size:16"`
	CalendarID      string `gorm:"size:64"`
	PlannedStart    *time.Time
	PlannedFinish   *time.Time
	PlannedDuration int
	BudgetedCost    float64
	PercentComplete float64
	SortOrder       int
}
