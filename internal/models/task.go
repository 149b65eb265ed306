package models

import "time"

// Task is one activity of a project. The early/late columns, floats,
// criticality and violations are written by a solve and cleared by any
// scheduling edit.
type Task struct {
	ProjectID         string  `gorm:"primaryKey;size:64"`
	ID                string  `gorm:"primaryKey;size:64"`
	Code              string  `gorm:"size:64"`
	Name              string  `gorm:"size:255;not null"`
	ParentID          *string `gorm:"size:64;index"`
	Kind              string  `gorm:"size:16;default:task"`
	CalendarID        string  `gorm:"size:64"`
	OriginalDuration  int
	RemainingDuration *int
	PercentComplete   float64
	PlannedStart      *time.Time
	PlannedFinish     *time.Time
	ActualStart       *time.Time
	ActualFinish      *time.Time
	ConstraintType    string `gorm:"size:8;default:asap"`
	ConstraintDate    *time.Time
	BudgetedCost      float64
	ActualCost        float64
	SortOrder         int `gorm:"index"`

	EarlyStart  *time.Time
	EarlyFinish *time.Time
	LateStart   *time.Time
	LateFinish  *time.Time
	TotalFloat  *int
	FreeFloat   *int
	IsCritical  bool   `gorm:"default:false"`
	Violations  string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Dependency is a typed, lagged link between two tasks of one project.
type Dependency struct {
	ProjectID     string `gorm:"primaryKey;size:64"`
	PredecessorID string `gorm:"primaryKey;size:64"`
	SuccessorID   string `gorm:"primaryKey;size:64"`
	Type          string `gorm:"size:2;default:FS"`
	Lag           int
}

// TaskChange is an append-only audit entry for a project.
type TaskChange struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ProjectID string `gorm:"size:64;index"`
	TaskID    string `gorm:"size:64;index"`
	Action    string `gorm:"size:32"`
	Detail    string `gorm:"type:text"`
	CreatedAt time.Time
}
