package store

import (
	"fmt"

	"github.com/zulandar/timetable/internal/models"
	"gorm.io/gorm"
)

// Change log actions.
const (
	ActionProjectCreated    = "project_created"
	ActionProjectUpdated    = "project_updated"
	ActionTaskAdded         = "task_added"
	ActionTaskUpdated       = "task_updated"
	ActionTaskRemoved       = "task_removed"
	ActionDependencyAdded   = "dependency_added"
	ActionDependencyUpdated = "dependency_updated"
	ActionDependencyRemoved = "dependency_removed"
	ActionProgressUpdated   = "progress_updated"
	ActionCalendarUpdated   = "calendar_updated"
	ActionRecalculated      = "cpm_recalculated"
	ActionBaselineCaptured  = "baseline_captured"
	ActionBaselineDeleted   = "baseline_deleted"
	ActionImported          = "schedule_imported"
)

// RecordChange appends an entry to a project's change log. taskID may be
// empty for project-wide changes.
func RecordChange(gdb *gorm.DB, projectID, taskID, action, detail string) error {
	entry := models.TaskChange{
		ProjectID: projectID,
		TaskID:    taskID,
		Action:    action,
		Detail:    detail,
	}
	if err := gdb.Create(&entry).Error; err != nil {
		return fmt.Errorf("store: record %s for %s: %w", action, projectID, err)
	}
	return nil
}

// ListChanges returns the newest entries of a project's change log first.
// A limit of zero or less returns every entry.
func ListChanges(gdb *gorm.DB, projectID string, limit int) ([]models.TaskChange, error) {
	q := gdb.Where("project_id = ?", projectID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.TaskChange
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list changes of %s: %w", projectID, err)
	}
	return out, nil
}
