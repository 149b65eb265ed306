package baseline

import (
	"fmt"
	"time"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/graph"
)

// Status classifies a task's finish against its baseline.
type Status string

const (
	StatusBehind       Status = "behind"
	StatusAhead        Status = "ahead"
	StatusOnTime       Status = "on_time"
	StatusRemoved      Status = "removed"
	StatusNotScheduled Status = "not_scheduled"
	StatusAdded        Status = "added"
)

// TaskVariance compares one task with its baseline snapshot. Variances are
// signed working days; positive means later than the baseline.
type TaskVariance struct {
	TaskID         string
	Name           string
	BaselineStart  *time.Time
	BaselineFinish *time.Time
	CurrentStart   *time.Time
	CurrentFinish  *time.Time
	StartVariance  int
	FinishVariance int
	Status         Status
}

// VarianceReport compares every baseline task with the current graph,
// then appends tasks created after the capture with status added.
// Current dates are the solved early dates, or planned dates when the
// graph has not been solved.
func VarianceReport(b Baseline, g *graph.Graph) ([]TaskVariance, error) {
	resolvers := make(map[string]*calendar.Resolver)
	resolver := func(id string) (*calendar.Resolver, error) {
		if r, ok := resolvers[id]; ok {
			return r, nil
		}
		cal, ok := g.Calendar(id)
		if !ok {
			cal, _ = g.Calendar(g.Project().DefaultCalendarID)
		}
		r, err := calendar.NewResolver(cal)
		if err != nil {
			return nil, fmt.Errorf("baseline: calendar %q: %w", id, err)
		}
		resolvers[id] = r
		return r, nil
	}

	var out []TaskVariance
	seen := make(map[string]bool, len(b.Tasks))
	for _, bt := range b.Tasks {
		seen[bt.TaskID] = true
		v := TaskVariance{
			TaskID:         bt.TaskID,
			Name:           bt.Name,
			BaselineStart:  copyTime(bt.PlannedStart),
			BaselineFinish: copyTime(bt.PlannedFinish),
		}
		cur, ok := g.Task(bt.TaskID)
		if !ok {
			v.Status = StatusRemoved
			out = append(out, v)
			continue
		}
		v.Name = cur.Name
		v.CurrentStart, v.CurrentFinish = currentDates(cur)
		if v.BaselineStart == nil || v.BaselineFinish == nil || v.CurrentStart == nil || v.CurrentFinish == nil {
			v.Status = StatusNotScheduled
			out = append(out, v)
			continue
		}
		r, err := resolver(g.CalendarID(cur))
		if err != nil {
			return nil, err
		}
		v.StartVariance = r.WorkingDurationBetween(*v.BaselineStart, *v.CurrentStart)
		v.FinishVariance = r.WorkingDurationBetween(*v.BaselineFinish, *v.CurrentFinish)
		switch {
		case v.FinishVariance > 0:
			v.Status = StatusBehind
		case v.FinishVariance < 0:
			v.Status = StatusAhead
		default:
			v.Status = StatusOnTime
		}
		out = append(out, v)
	}

	for _, cur := range g.Tasks() {
		if seen[cur.ID] {
			continue
		}
		v := TaskVariance{TaskID: cur.ID, Name: cur.Name, Status: StatusAdded}
		v.CurrentStart, v.CurrentFinish = currentDates(cur)
		out = append(out, v)
	}
	return out, nil
}

func currentDates(t graph.Task) (*time.Time, *time.Time) {
	start, finish := t.EarlyStart, t.EarlyFinish
	if start == nil {
		start = t.PlannedStart
	}
	if finish == nil {
		finish = t.PlannedFinish
	}
	return copyTime(start), copyTime(finish)
}
