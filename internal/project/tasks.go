package project

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/timetable/internal/exchange"
	"github.com/zulandar/timetable/internal/graph"
	"github.com/zulandar/timetable/internal/progress"
	"github.com/zulandar/timetable/internal/store"
)

// AddTask adds t to the project. An empty ID is derived from the task code,
// the same way imports derive it, or generated when there is no code. A zero
// SortOrder appends the task after every existing one.
func (s *Service) AddTask(projectID string, t graph.Task) (graph.Task, error) {
	if t.ID == "" {
		if t.Code != "" {
			t.ID = exchange.TaskID(projectID, t.Code)
		} else {
			t.ID = uuid.NewString()
		}
	}
	g, err := s.edit(projectID, t.ID, store.ActionTaskAdded, t.Name, func(g *graph.Graph) (*graph.Graph, error) {
		if t.SortOrder == 0 {
			for _, existing := range g.Tasks() {
				if existing.SortOrder >= t.SortOrder {
					t.SortOrder = existing.SortOrder + 1
				}
			}
		}
		g, err := s.attachCalendar(g, t.CalendarID)
		if err != nil {
			return nil, err
		}
		return g.AddTask(t)
	})
	if err != nil {
		return graph.Task{}, err
	}
	added, _ := g.Task(t.ID)
	return added, nil
}

// attachCalendar adds the catalogue calendar id to g when a task starts
// using a calendar the project has not referenced yet.
func (s *Service) attachCalendar(g *graph.Graph, id string) (*graph.Graph, error) {
	if id == "" {
		return g, nil
	}
	if _, ok := g.Calendar(id); ok {
		return g, nil
	}
	cal, err := s.Calendars.Get(s.DB, id)
	if err != nil {
		return nil, err
	}
	return g.SetCalendar(cal)
}

// TaskPatch changes task inputs. Nil fields are left alone. Setting a
// constraint that takes no date clears the constraint date.
type TaskPatch struct {
	Code              *string
	Name              *string
	ParentID          *string
	Kind              *graph.Kind
	CalendarID        *string
	OriginalDuration  *int
	RemainingDuration *int
	ClearRemaining    bool
	PlannedStart      *time.Time
	PlannedFinish     *time.Time
	Constraint        *graph.ConstraintType
	ConstraintDate    *time.Time
	BudgetedCost      *float64
	ActualCost        *float64
	SortOrder         *int
}

// Apply returns t with the patch applied.
func (p TaskPatch) Apply(t graph.Task) graph.Task {
	if p.Code != nil {
		t.Code = *p.Code
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.ParentID != nil {
		t.ParentID = *p.ParentID
	}
	if p.Kind != nil {
		t.Kind = *p.Kind
	}
	if p.CalendarID != nil {
		t.CalendarID = *p.CalendarID
	}
	if p.OriginalDuration != nil {
		t.OriginalDuration = *p.OriginalDuration
	}
	if p.ClearRemaining {
		t.RemainingDuration = nil
	}
	if p.RemainingDuration != nil {
		r := *p.RemainingDuration
		t.RemainingDuration = &r
	}
	if p.PlannedStart != nil {
		t.PlannedStart = p.PlannedStart
	}
	if p.PlannedFinish != nil {
		t.PlannedFinish = p.PlannedFinish
	}
	if p.Constraint != nil {
		t.Constraint = *p.Constraint
		if !t.Constraint.NeedsDate() {
			t.ConstraintDate = nil
		}
	}
	if p.ConstraintDate != nil {
		t.ConstraintDate = p.ConstraintDate
	}
	if p.BudgetedCost != nil {
		t.BudgetedCost = *p.BudgetedCost
	}
	if p.ActualCost != nil {
		t.ActualCost = *p.ActualCost
	}
	if p.SortOrder != nil {
		t.SortOrder = *p.SortOrder
	}
	return t
}

// UpdateTask applies patch to a task.
func (s *Service) UpdateTask(projectID, taskID string, patch TaskPatch) (graph.Task, error) {
	g, err := s.edit(projectID, taskID, store.ActionTaskUpdated, "", func(g *graph.Graph) (*graph.Graph, error) {
		t, ok := g.Task(taskID)
		if !ok {
			return nil, &graph.EditError{Kind: graph.ErrTaskNotFound, TaskID: taskID}
		}
		t = patch.Apply(t)
		g, err := s.attachCalendar(g, t.CalendarID)
		if err != nil {
			return nil, err
		}
		return g.UpdateTask(t)
	})
	if err != nil {
		return graph.Task{}, err
	}
	t, _ := g.Task(taskID)
	return t, nil
}

// RemoveTask deletes a task and its dependencies.
func (s *Service) RemoveTask(projectID, taskID string) error {
	_, err := s.edit(projectID, taskID, store.ActionTaskRemoved, "", func(g *graph.Graph) (*graph.Graph, error) {
		return g.RemoveTask(taskID)
	})
	return err
}

// AddDependency links two tasks of the project.
func (s *Service) AddDependency(projectID string, d graph.Dependency) error {
	_, err := s.edit(projectID, d.SuccessorID, store.ActionDependencyAdded, depDetail(d), func(g *graph.Graph) (*graph.Graph, error) {
		return g.AddDependency(d)
	})
	return err
}

// UpdateDependency changes the type and lag of an existing dependency.
func (s *Service) UpdateDependency(projectID string, d graph.Dependency) error {
	_, err := s.edit(projectID, d.SuccessorID, store.ActionDependencyUpdated, depDetail(d), func(g *graph.Graph) (*graph.Graph, error) {
		return g.UpdateDependency(d)
	})
	return err
}

// RemoveDependency unlinks two tasks.
func (s *Service) RemoveDependency(projectID, predecessorID, successorID string) error {
	_, err := s.edit(projectID, successorID, store.ActionDependencyRemoved, "after "+predecessorID, func(g *graph.Graph) (*graph.Graph, error) {
		return g.RemoveDependency(predecessorID, successorID)
	})
	return err
}

func depDetail(d graph.Dependency) string {
	typ := d.Type
	if typ == "" {
		typ = graph.FinishToStart
	}
	detail := fmt.Sprintf("after %s %s", d.PredecessorID, typ)
	if d.Lag > 0 {
		detail += "+" + strconv.Itoa(d.Lag)
	} else if d.Lag < 0 {
		detail += strconv.Itoa(d.Lag)
	}
	return detail
}

// SetPercentComplete records progress on a leaf task, stamping actual
// dates with the service clock.
func (s *Service) SetPercentComplete(projectID, taskID string, pct float64) (graph.Task, error) {
	now := s.now()
	g, err := s.edit(projectID, taskID, store.ActionProgressUpdated, fmt.Sprintf("%g%%", pct), func(g *graph.Graph) (*graph.Graph, error) {
		return progress.SetPercentComplete(g, taskID, pct, now)
	})
	if err != nil {
		return graph.Task{}, err
	}
	t, _ := g.Task(taskID)
	return t, nil
}

// RecordActuals sets the actual start and finish of a leaf task. Nil
// leaves a date unchanged.
func (s *Service) RecordActuals(projectID, taskID string, start, finish *time.Time) (graph.Task, error) {
	g, err := s.edit(projectID, taskID, store.ActionProgressUpdated, "actual dates", func(g *graph.Graph) (*graph.Graph, error) {
		return progress.RecordActuals(g, taskID, start, finish)
	})
	if err != nil {
		return graph.Task{}, err
	}
	t, _ := g.Task(taskID)
	return t, nil
}

// SetRemaining overrides the remaining duration of a leaf task; nil
// returns it to the original duration.
func (s *Service) SetRemaining(projectID, taskID string, remaining *int) (graph.Task, error) {
	detail := "remaining cleared"
	if remaining != nil {
		detail = fmt.Sprintf("remaining %d", *remaining)
	}
	g, err := s.edit(projectID, taskID, store.ActionProgressUpdated, detail, func(g *graph.Graph) (*graph.Graph, error) {
		return progress.SetRemainingDuration(g, taskID, remaining)
	})
	if err != nil {
		return graph.Task{}, err
	}
	t, _ := g.Task(taskID)
	return t, nil
}

// RecordProgress applies one progress report to a leaf task in a single
// edit. A rejected step leaves the stored task untouched.
func (s *Service) RecordProgress(projectID, taskID string, u progress.Update) (graph.Task, error) {
	if u.Empty() {
		g, err := s.Graph(projectID)
		if err != nil {
			return graph.Task{}, err
		}
		t, ok := g.Task(taskID)
		if !ok {
			return graph.Task{}, &graph.EditError{Kind: graph.ErrTaskNotFound, TaskID: taskID}
		}
		return t, nil
	}
	now := s.now()
	g, err := s.edit(projectID, taskID, store.ActionProgressUpdated, progressDetail(u), func(g *graph.Graph) (*graph.Graph, error) {
		return progress.Record(g, taskID, u, now)
	})
	if err != nil {
		return graph.Task{}, err
	}
	t, _ := g.Task(taskID)
	return t, nil
}

func progressDetail(u progress.Update) string {
	var parts []string
	if u.ActualStart != nil || u.ActualFinish != nil {
		parts = append(parts, "actual dates")
	}
	if u.PercentComplete != nil {
		parts = append(parts, fmt.Sprintf("%g%%", *u.PercentComplete))
	}
	switch {
	case u.Remaining != nil:
		parts = append(parts, fmt.Sprintf("remaining %d", *u.Remaining))
	case u.ClearRemaining:
		parts = append(parts, "remaining cleared")
	}
	return strings.Join(parts, ", ")
}

// Suggest proposes percent-complete values for tasks behind their planned
// window as of asOf. A zero asOf uses the service clock.
func (s *Service) Suggest(projectID string, asOf time.Time) ([]progress.Suggestion, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	g, err := s.Graph(projectID)
	if err != nil {
		return nil, err
	}
	return progress.Suggest(g, asOf), nil
}

// CompleteAll marks every open leaf task of the project finished.
func (s *Service) CompleteAll(projectID string) (*graph.Graph, error) {
	now := s.now()
	return s.edit(projectID, "", store.ActionProgressUpdated, "all tasks complete", func(g *graph.Graph) (*graph.Graph, error) {
		return progress.CompleteAll(g, now)
	})
}
