package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/timetable/internal/baseline"
	"github.com/zulandar/timetable/internal/graph"
	"github.com/zulandar/timetable/internal/models"
	"gorm.io/gorm"
)

// ErrBaselineNotFound is returned for an unknown or deleted baseline.
var ErrBaselineNotFound = errors.New("baseline not found")

// SaveBaseline inserts b with its task snapshots. Baselines are append-only;
// saving an existing ID fails.
func SaveBaseline(gdb *gorm.DB, b baseline.Baseline) error {
	row := models.Baseline{
		ID:        b.ID,
		ProjectID: b.ProjectID,
		Number:    b.Number,
		Name:      b.Name,
		CreatedAt: b.CreatedAt,
		DeletedAt: b.DeletedAt,
	}
	for i, t := range b.Tasks {
		row.Tasks = append(row.Tasks, models.BaselineTask{
			BaselineID:      b.ID,
			TaskID:          t.TaskID,
			Name:            t.Name,
			Kind:            string(t.Kind),
			CalendarID:      t.CalendarID,
			PlannedStart:    t.PlannedStart,
			PlannedFinish:   t.PlannedFinish,
			PlannedDuration: t.PlannedDuration,
			BudgetedCost:    t.BudgetedCost,
			PercentComplete: t.PercentComplete,
			SortOrder:       i,
		})
	}
	if err := gdb.Create(&row).Error; err != nil {
		return fmt.Errorf("store: save baseline %s: %w", b.ID, err)
	}
	return nil
}

// ListBaselines returns the baselines of a project ordered by number.
// Deleted baselines are included only with includeDeleted; callers that
// number new baselines need them.
func ListBaselines(gdb *gorm.DB, projectID string, includeDeleted bool) ([]baseline.Baseline, error) {
	q := gdb.Preload("Tasks", func(q *gorm.DB) *gorm.DB {
		return q.Order("sort_order ASC")
	}).Where("project_id = ?", projectID)
	if !includeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	var rows []models.Baseline
	if err := q.Order("number ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list baselines of %s: %w", projectID, err)
	}
	out := make([]baseline.Baseline, 0, len(rows))
	for _, r := range rows {
		out = append(out, baselineFromRow(r))
	}
	return out, nil
}

// GetBaseline returns an active baseline by number.
func GetBaseline(gdb *gorm.DB, projectID string, number int) (baseline.Baseline, error) {
	var row models.Baseline
	err := gdb.Preload("Tasks", func(q *gorm.DB) *gorm.DB {
		return q.Order("sort_order ASC")
	}).Where("project_id = ? AND number = ? AND deleted_at IS NULL", projectID, number).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return baseline.Baseline{}, fmt.Errorf("store: %s #%d: %w", projectID, number, ErrBaselineNotFound)
		}
		return baseline.Baseline{}, fmt.Errorf("store: get baseline %s #%d: %w", projectID, number, err)
	}
	return baselineFromRow(row), nil
}

// DeleteBaseline hides a baseline from listings. The row and its number
// stay reserved.
func DeleteBaseline(gdb *gorm.DB, projectID string, number int, now time.Time) error {
	result := gdb.Model(&models.Baseline{}).
		Where("project_id = ? AND number = ? AND deleted_at IS NULL", projectID, number).
		Update("deleted_at", now.UTC())
	if result.Error != nil {
		return fmt.Errorf("store: delete baseline %s #%d: %w", projectID, number, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: %s #%d: %w", projectID, number, ErrBaselineNotFound)
	}
	return nil
}

func baselineFromRow(r models.Baseline) baseline.Baseline {
	b := baseline.Baseline{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Number:    r.Number,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		DeletedAt: r.DeletedAt,
	}
	for _, t := range r.Tasks {
		b.Tasks = append(b.Tasks, baseline.Task{
			TaskID:          t.TaskID,
			Name:            t.Name,
			Kind:            graph.Kind(t.Kind),
			CalendarID:      t.CalendarID,
			PlannedStart:    dayPtr(t.PlannedStart),
			PlannedFinish:   dayPtr(t.PlannedFinish),
			PlannedDuration: t.PlannedDuration,
			BudgetedCost:    t.BudgetedCost,
			PercentComplete: t.PercentComplete,
		})
	}
	return b
}
