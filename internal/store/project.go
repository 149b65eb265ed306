package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/graph"
	"github.com/zulandar/timetable/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrProjectNotFound is returned when a project ID has no stored row.
var ErrProjectNotFound = errors.New("project not found")

// taskColumns are overwritten when an existing task row is saved again.
var taskColumns = []string{
	"code", "name", "parent_id", "kind", "calendar_id",
	"original_duration", "remaining_duration", "percent_complete",
	"planned_start", "planned_finish", "actual_start", "actual_finish",
	"constraint_type", "constraint_date", "budgeted_cost", "actual_cost", "sort_order",
	"early_start", "early_finish", "late_start", "late_finish",
	"total_float", "free_float", "is_critical", "violations", "updated_at",
}

// ProjectExists reports whether a project row with id is stored.
func ProjectExists(gdb *gorm.DB, id string) (bool, error) {
	var count int64
	if err := gdb.Model(&models.Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("store: check project %s: %w", id, err)
	}
	return count > 0, nil
}

// GetProject returns the stored project row.
func GetProject(gdb *gorm.DB, id string) (*models.Project, error) {
	var p models.Project
	if err := gdb.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store: %s: %w", id, ErrProjectNotFound)
		}
		return nil, fmt.Errorf("store: get project %s: %w", id, err)
	}
	return &p, nil
}

// ListProjects returns project rows ordered by name then ID. With
// activeOnly set, archived projects are left out.
func ListProjects(gdb *gorm.DB, activeOnly bool) ([]models.Project, error) {
	q := gdb.Order("name ASC").Order("id ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []models.Project
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	return out, nil
}

// SetActive archives or reactivates a project.
func SetActive(gdb *gorm.DB, id string, active bool) error {
	result := gdb.Model(&models.Project{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return fmt.Errorf("store: set active %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: %s: %w", id, ErrProjectNotFound)
	}
	return nil
}

// LoadGraph rebuilds the stored graph of a project. Solver output is
// restored only when the project was saved solved and every leaf carries
// it; otherwise the graph comes back unsolved.
func LoadGraph(gdb *gorm.DB, cache *CalendarCache, projectID string) (*graph.Graph, error) {
	p, err := GetProject(gdb, projectID)
	if err != nil {
		return nil, err
	}

	var taskRows []models.Task
	if err := gdb.Where("project_id = ?", projectID).Order("sort_order ASC").Order("id ASC").Find(&taskRows).Error; err != nil {
		return nil, fmt.Errorf("store: load tasks of %s: %w", projectID, err)
	}
	var depRows []models.Dependency
	if err := gdb.Where("project_id = ?", projectID).Find(&depRows).Error; err != nil {
		return nil, fmt.Errorf("store: load dependencies of %s: %w", projectID, err)
	}

	cals, err := projectCalendars(gdb, cache, p.DefaultCalendarID, taskRows)
	if err != nil {
		return nil, err
	}
	g, err := graph.New(graph.Project{
		ID:                p.ID,
		Name:              p.Name,
		PlannedStart:      calendar.Day(p.PlannedStart),
		MustFinishBy:      dayPtr(p.MustFinishBy),
		DefaultCalendarID: p.DefaultCalendarID,
	}, cals...)
	if err != nil {
		return nil, fmt.Errorf("store: build graph %s: %w", projectID, err)
	}

	tasks := make([]graph.Task, 0, len(taskRows))
	for _, row := range taskRows {
		t, err := taskFromRow(row)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	g, err = g.Batch(func(tx *graph.Tx) error {
		for _, t := range parentsFirst(tasks) {
			if err := tx.AddTask(t); err != nil {
				return err
			}
		}
		for _, row := range depRows {
			if err := tx.AddDependency(graph.Dependency{
				PredecessorID: row.PredecessorID,
				SuccessorID:   row.SuccessorID,
				Type:          graph.DependencyType(row.Type),
				Lag:           row.Lag,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: rebuild graph %s: %w", projectID, err)
	}

	if p.Solved {
		if sol, ok := storedSolution(g, tasks); ok {
			g = g.ApplySolution(sol)
		}
	}
	return g, nil
}

// SaveGraph writes g's project, calendars, tasks and dependencies in one
// transaction. Rows of tasks and dependencies no longer in g are removed.
// The project's last solved finish survives edits; only the Solved flag
// says whether it is current.
func SaveGraph(gdb *gorm.DB, cache *CalendarCache, g *graph.Graph) error {
	p := g.Project()
	err := gdb.Transaction(func(tx *gorm.DB) error {
		for _, cal := range g.Calendars() {
			if err := cache.SaveCalendar(tx, cal); err != nil {
				return err
			}
		}

		row := models.Project{
			ID:                p.ID,
			Name:              p.Name,
			PlannedStart:      calendar.Day(p.PlannedStart),
			MustFinishBy:      p.MustFinishBy,
			DefaultCalendarID: p.DefaultCalendarID,
			Active:            true,
			Solved:            g.Solved(),
		}
		var existing models.Project
		err := tx.Where("id = ?", p.ID).First(&existing).Error
		switch {
		case err == nil:
			row.Active = existing.Active
			row.CreatedAt = existing.CreatedAt
			row.ProjectFinish = existing.ProjectFinish
			row.SolvedAt = existing.SolvedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("store: read project %s: %w", p.ID, err)
		}
		if err := tx.Omit("Tasks", "Dependencies").Save(&row).Error; err != nil {
			return fmt.Errorf("store: save project %s: %w", p.ID, err)
		}
		// Save skips zero-valued defaults on insert; write the flag explicitly.
		if err := tx.Model(&models.Project{}).Where("id = ?", p.ID).Update("active", row.Active).Error; err != nil {
			return fmt.Errorf("store: save project %s: %w", p.ID, err)
		}

		tasks := g.Tasks()
		ids := make([]string, 0, len(tasks))
		rows := make([]models.Task, 0, len(tasks))
		for _, t := range tasks {
			r, err := taskRow(p.ID, t)
			if err != nil {
				return err
			}
			rows = append(rows, r)
			ids = append(ids, t.ID)
		}
		del := tx.Where("project_id = ?", p.ID)
		if len(ids) > 0 {
			del = del.Where("id NOT IN ?", ids)
		}
		if err := del.Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("store: prune tasks of %s: %w", p.ID, err)
		}
		if len(rows) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "project_id"}, {Name: "id"}},
				DoUpdates: clause.AssignmentColumns(taskColumns),
			}).CreateInBatches(&rows, 200).Error
			if err != nil {
				return fmt.Errorf("store: save tasks of %s: %w", p.ID, err)
			}
		}

		if err := tx.Where("project_id = ?", p.ID).Delete(&models.Dependency{}).Error; err != nil {
			return fmt.Errorf("store: clear dependencies of %s: %w", p.ID, err)
		}
		deps := g.Dependencies()
		if len(deps) > 0 {
			depRows := make([]models.Dependency, 0, len(deps))
			for _, d := range deps {
				depRows = append(depRows, models.Dependency{
					ProjectID:     p.ID,
					PredecessorID: d.PredecessorID,
					SuccessorID:   d.SuccessorID,
					Type:          string(d.Type),
					Lag:           d.Lag,
				})
			}
			if err := tx.CreateInBatches(&depRows, 200).Error; err != nil {
				return fmt.Errorf("store: save dependencies of %s: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		// A rolled back transaction may have cached calendars it never wrote.
		for _, cal := range g.Calendars() {
			cache.Forget(cal.ID)
		}
	}
	return err
}

// MarkSolved records when a project was last solved and its finish date.
func MarkSolved(gdb *gorm.DB, projectID string, finish time.Time, at time.Time) error {
	result := gdb.Model(&models.Project{}).Where("id = ?", projectID).Updates(map[string]interface{}{
		"solved":         true,
		"project_finish": calendar.Day(finish),
		"solved_at":      at.UTC(),
	})
	if result.Error != nil {
		return fmt.Errorf("store: mark solved %s: %w", projectID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: %s: %w", projectID, ErrProjectNotFound)
	}
	return nil
}

// DeleteProject removes a project with its tasks, dependencies, baselines
// and change log.
func DeleteProject(gdb *gorm.DB, projectID string) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Baseline{}).Where("project_id = ?", projectID).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("store: list baselines of %s: %w", projectID, err)
		}
		if len(ids) > 0 {
			if err := tx.Where("baseline_id IN ?", ids).Delete(&models.BaselineTask{}).Error; err != nil {
				return fmt.Errorf("store: delete baseline tasks of %s: %w", projectID, err)
			}
		}
		for _, m := range []interface{}{&models.Baseline{}, &models.Dependency{}, &models.Task{}, &models.TaskChange{}} {
			if err := tx.Where("project_id = ?", projectID).Delete(m).Error; err != nil {
				return fmt.Errorf("store: delete %T of %s: %w", m, projectID, err)
			}
		}
		result := tx.Where("id = ?", projectID).Delete(&models.Project{})
		if result.Error != nil {
			return fmt.Errorf("store: delete project %s: %w", projectID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("store: %s: %w", projectID, ErrProjectNotFound)
		}
		return nil
	})
}

// ProjectsUsingCalendar returns the ids of projects whose default calendar
// or any task calendar is calendarID. With solvedOnly only projects holding
// a current solve are returned.
func ProjectsUsingCalendar(gdb *gorm.DB, calendarID string, solvedOnly bool) ([]string, error) {
	taskProjects := gdb.Model(&models.Task{}).Select("project_id").Where("calendar_id = ?", calendarID)
	q := gdb.Model(&models.Project{}).
		Where("default_calendar_id = ? OR id IN (?)", calendarID, taskProjects)
	if solvedOnly {
		q = q.Where("solved = ?", true)
	}
	var ids []string
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("store: projects using calendar %s: %w", calendarID, err)
	}
	return ids, nil
}

// MarkUnsolved flags projects as needing a recalculation. Their last solved
// finish is kept.
func MarkUnsolved(gdb *gorm.DB, projectIDs []string) error {
	if len(projectIDs) == 0 {
		return nil
	}
	err := gdb.Model(&models.Project{}).Where("id IN ?", projectIDs).Update("solved", false).Error
	if err != nil {
		return fmt.Errorf("store: mark unsolved: %w", err)
	}
	return nil
}

func projectCalendars(gdb *gorm.DB, cache *CalendarCache, defaultID string, rows []models.Task) ([]calendar.Calendar, error) {
	ids := map[string]bool{defaultID: true}
	for _, r := range rows {
		if r.CalendarID != "" {
			ids[r.CalendarID] = true
		}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	cals := make([]calendar.Calendar, 0, len(sorted))
	for _, id := range sorted {
		cal, err := cache.Get(gdb, id)
		if err != nil {
			return nil, err
		}
		cals = append(cals, cal)
	}
	return cals, nil
}

// parentsFirst orders tasks so every parent precedes its children while
// keeping the stored order otherwise.
func parentsFirst(tasks []graph.Task) []graph.Task {
	byID := make(map[string]int, len(tasks))
	for i, t := range tasks {
		byID[t.ID] = i
	}
	placed := make(map[string]bool, len(tasks))
	out := make([]graph.Task, 0, len(tasks))
	var place func(i int, depth int)
	place = func(i int, depth int) {
		t := tasks[i]
		if placed[t.ID] || depth > len(tasks) {
			return
		}
		if j, ok := byID[t.ParentID]; ok && t.ParentID != "" {
			place(j, depth+1)
		}
		if !placed[t.ID] {
			placed[t.ID] = true
			out = append(out, t)
		}
	}
	for i := range tasks {
		place(i, 0)
	}
	return out
}

// storedSolution collects the persisted solver output of every leaf.
func storedSolution(g *graph.Graph, tasks []graph.Task) (map[string]graph.Computed, bool) {
	sol := make(map[string]graph.Computed, len(tasks))
	leaves := g.LeafSet()
	for _, t := range tasks {
		if !leaves[t.ID] {
			continue
		}
		if t.EarlyStart == nil || t.EarlyFinish == nil || t.LateStart == nil || t.LateFinish == nil ||
			t.TotalFloat == nil || t.FreeFloat == nil {
			return nil, false
		}
		sol[t.ID] = graph.Computed{
			EarlyStart:  *t.EarlyStart,
			EarlyFinish: *t.EarlyFinish,
			LateStart:   *t.LateStart,
			LateFinish:  *t.LateFinish,
			TotalFloat:  *t.TotalFloat,
			FreeFloat:   *t.FreeFloat,
			IsCritical:  t.IsCritical,
			Violations:  t.Violations,
		}
	}
	return sol, true
}

func taskRow(projectID string, t graph.Task) (models.Task, error) {
	row := models.Task{
		ProjectID:         projectID,
		ID:                t.ID,
		Code:              t.Code,
		Name:              t.Name,
		Kind:              string(t.Kind),
		CalendarID:        t.CalendarID,
		OriginalDuration:  t.OriginalDuration,
		RemainingDuration: t.RemainingDuration,
		PercentComplete:   t.PercentComplete,
		PlannedStart:      t.PlannedStart,
		PlannedFinish:     t.PlannedFinish,
		ActualStart:       t.ActualStart,
		ActualFinish:      t.ActualFinish,
		ConstraintType:    string(t.Constraint),
		ConstraintDate:    t.ConstraintDate,
		BudgetedCost:      t.BudgetedCost,
		ActualCost:        t.ActualCost,
		SortOrder:         t.SortOrder,
		EarlyStart:        t.EarlyStart,
		EarlyFinish:       t.EarlyFinish,
		LateStart:         t.LateStart,
		LateFinish:        t.LateFinish,
		TotalFloat:        t.TotalFloat,
		FreeFloat:         t.FreeFloat,
		IsCritical:        t.IsCritical,
	}
	if t.ParentID != "" {
		parent := t.ParentID
		row.ParentID = &parent
	}
	if len(t.Violations) > 0 {
		data, err := json.Marshal(t.Violations)
		if err != nil {
			return models.Task{}, fmt.Errorf("store: encode violations of %s: %w", t.ID, err)
		}
		row.Violations = string(data)
	}
	return row, nil
}

func taskFromRow(row models.Task) (graph.Task, error) {
	t := graph.Task{
		ID:                row.ID,
		Code:              row.Code,
		Name:              row.Name,
		Kind:              graph.Kind(row.Kind),
		CalendarID:        row.CalendarID,
		OriginalDuration:  row.OriginalDuration,
		RemainingDuration: row.RemainingDuration,
		PercentComplete:   row.PercentComplete,
		PlannedStart:      dayPtr(row.PlannedStart),
		PlannedFinish:     dayPtr(row.PlannedFinish),
		ActualStart:       dayPtr(row.ActualStart),
		ActualFinish:      dayPtr(row.ActualFinish),
		Constraint:        graph.ConstraintType(row.ConstraintType),
		ConstraintDate:    dayPtr(row.ConstraintDate),
		BudgetedCost:      row.BudgetedCost,
		ActualCost:        row.ActualCost,
		SortOrder:         row.SortOrder,
		EarlyStart:        dayPtr(row.EarlyStart),
		EarlyFinish:       dayPtr(row.EarlyFinish),
		LateStart:         dayPtr(row.LateStart),
		LateFinish:        dayPtr(row.LateFinish),
		TotalFloat:        row.TotalFloat,
		FreeFloat:         row.FreeFloat,
		IsCritical:        row.IsCritical,
	}
	if row.ParentID != nil {
		t.ParentID = *row.ParentID
	}
	if row.Violations != "" {
		if err := json.Unmarshal([]byte(row.Violations), &t.Violations); err != nil {
			return graph.Task{}, fmt.Errorf("store: decode violations of %s: %w", row.ID, err)
		}
	}
	return t, nil
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := calendar.Day(*t)
	return &d
}
