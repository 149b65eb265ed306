// Package baseline snapshots a schedule and compares later states of the
// schedule against it: per-task date variance and earned value metrics.
package baseline

import (
	"fmt"
	"time"

	"github.com/zulandar/timetable/internal/graph"
)

// Baseline is an immutable snapshot of a project's schedule. Deleting a
// baseline only stamps DeletedAt; its number is never reused.
type Baseline struct {
	ID        string
	ProjectID string
	Number    int
	Name      string
	CreatedAt time.Time
	DeletedAt *time.Time
	Tasks     []Task
}

// Task is one task as it stood when the baseline was captured.
type Task struct {
	TaskID          string
	Name            string
	Kind            graph.Kind
	CalendarID      string
	PlannedStart    *time.Time
	PlannedFinish   *time.Time
	PlannedDuration int
	BudgetedCost    float64
	PercentComplete float64
}

// Deleted reports whether the baseline was removed from reports.
func (b Baseline) Deleted() bool { return b.DeletedAt != nil }

// Capture snapshots every task of g. Planned dates fall back to the solved
// early dates for tasks that were never planned explicitly. The number is
// one past the highest number among existing baselines of the project,
// deleted ones included.
func Capture(g *graph.Graph, name string, existing []Baseline, now time.Time) Baseline {
	p := g.Project()
	number := NextNumber(p.ID, existing)
	if name == "" {
		name = fmt.Sprintf("Baseline %d", number)
	}
	b := Baseline{
		ID:        fmt.Sprintf("%s-bl%d", p.ID, number),
		ProjectID: p.ID,
		Number:    number,
		Name:      name,
		CreatedAt: now.UTC(),
	}
	for _, t := range g.Tasks() {
		start, finish := t.PlannedStart, t.PlannedFinish
		if start == nil {
			start = t.EarlyStart
		}
		if finish == nil {
			finish = t.EarlyFinish
		}
		b.Tasks = append(b.Tasks, Task{
			TaskID:          t.ID,
			Name:            t.Name,
			Kind:            t.Kind,
			CalendarID:      g.CalendarID(t),
			PlannedStart:    copyTime(start),
			PlannedFinish:   copyTime(finish),
			PlannedDuration: t.OriginalDuration,
			BudgetedCost:    t.BudgetedCost,
			PercentComplete: t.PercentComplete,
		})
	}
	return b
}

// NextNumber returns the number the next baseline of projectID gets.
func NextNumber(projectID string, existing []Baseline) int {
	n := 0
	for _, b := range existing {
		if b.ProjectID == projectID && b.Number > n {
			n = b.Number
		}
	}
	return n + 1
}

// Delete returns a copy of b marked deleted at now. Deleting twice keeps
// the first timestamp.
func Delete(b Baseline, now time.Time) Baseline {
	if b.DeletedAt == nil {
		at := now.UTC()
		b.DeletedAt = &at
	}
	return b
}

// Active filters out deleted baselines, keeping order.
func Active(bs []Baseline) []Baseline {
	var out []Baseline
	for _, b := range bs {
		if !b.Deleted() {
			out = append(out, b)
		}
	}
	return out
}

// Latest returns the highest-numbered active baseline.
func Latest(bs []Baseline) (Baseline, bool) {
	var best Baseline
	found := false
	for _, b := range Active(bs) {
		if !found || b.Number > best.Number {
			best, found = b, true
		}
	}
	return best, found
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
