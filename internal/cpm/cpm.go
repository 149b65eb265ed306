// Package cpm computes early and late dates, float and the critical path for
// a task graph. Solve is a pure function: it reads a graph snapshot and
// returns a new solved snapshot, re-running both passes in full every time.
package cpm

import (
	"fmt"
	"time"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/graph"
)

// Result summarizes a solve.
type Result struct {
	ProjectStart  time.Time
	ProjectFinish time.Time
	// CriticalPath lists critical leaf tasks in topological order.
	CriticalPath []string
	// Violations collects every constraint that could not be honored.
	Violations []graph.ConstraintViolation
	// Order is the topological order of leaf tasks used by the passes.
	Order []string
}

// node is the working state of one leaf task. Finishes are boundaries: fb
// is the first working day after the task's last working day, or the start
// itself for zero-length tasks.
type node struct {
	task graph.Task
	r    *calendar.Resolver
	d    int

	es, fb  time.Time
	ls, lfb time.Time

	complete     bool
	pinnedStart  bool
	actualFinish *time.Time

	tf, ff     int
	violations []graph.ConstraintViolation
}

// Solve schedules every leaf task of g and rolls summaries up. The input
// graph is never modified. A cycle, an empty calendar or an unknown calendar
// reference aborts the solve with no result; constraint violations are
// reported in Result and on the affected tasks.
func Solve(g *graph.Graph) (*graph.Graph, *Result, error) {
	resolvers, err := compileCalendars(g)
	if err != nil {
		return nil, nil, err
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, nil, err
	}

	s := &solver{
		g:       g,
		project: g.Project(),
		nodes:   make(map[string]*node, len(order)),
		preds:   make(map[string][]graph.Dependency),
		succs:   make(map[string][]graph.Dependency),
		order:   order,
	}
	for _, d := range g.LeafDependencies() {
		s.preds[d.SuccessorID] = append(s.preds[d.SuccessorID], d)
		s.succs[d.PredecessorID] = append(s.succs[d.PredecessorID], d)
	}
	for _, id := range order {
		t, _ := g.Task(id)
		r, ok := resolvers[g.CalendarID(t)]
		if !ok {
			return nil, nil, &graph.EditError{Kind: graph.ErrUnknownCalendar, TaskID: id, Msg: g.CalendarID(t)}
		}
		s.nodes[id] = newNode(t, r)
	}
	s.defaultCal = resolvers[s.project.DefaultCalendarID]

	s.forward()
	s.seedFinish()
	s.backward()
	s.floats()
	s.delayALAP()

	return s.finish()
}

func compileCalendars(g *graph.Graph) (map[string]*calendar.Resolver, error) {
	out := make(map[string]*calendar.Resolver)
	for _, cal := range g.Calendars() {
		r, err := calendar.NewResolver(cal)
		if err != nil {
			return nil, fmt.Errorf("cpm: calendar %q: %w", cal.ID, err)
		}
		out[cal.ID] = r
	}
	if _, ok := out[g.Project().DefaultCalendarID]; !ok {
		return nil, &graph.EditError{Kind: graph.ErrUnknownCalendar, Msg: g.Project().DefaultCalendarID}
	}
	return out, nil
}

func newNode(t graph.Task, r *calendar.Resolver) *node {
	n := &node{task: t, r: r, d: t.Duration(), complete: t.IsComplete()}
	if t.Kind == graph.KindMilestone || t.Kind == graph.KindSummary {
		n.d = 0
	}
	if n.complete {
		n.d = t.OriginalDuration
		if t.Kind != graph.KindTask {
			n.d = 0
		}
	}
	return n
}

type solver struct {
	g          *graph.Graph
	project    graph.Project
	defaultCal *calendar.Resolver
	nodes      map[string]*node
	preds      map[string][]graph.Dependency
	succs      map[string][]graph.Dependency
	order      []string

	projectFB time.Time
}

func (s *solver) violate(n *node, format string, args ...any) {
	n.violations = append(n.violations, graph.ConstraintViolation{
		TaskID: n.task.ID,
		Detail: fmt.Sprintf(format, args...),
	})
}

// finish converts node state into graph output.
func (s *solver) finish() (*graph.Graph, *Result, error) {
	res := &Result{Order: append([]string(nil), s.order...)}
	sol := make(map[string]graph.Computed, len(s.nodes))

	first := true
	for _, id := range s.order {
		n := s.nodes[id]
		ef := n.displayFinish(n.fb)
		lf := n.displayFinish(n.lfb)
		if n.complete && n.actualFinish != nil {
			ef, lf = *n.actualFinish, *n.actualFinish
		}
		c := graph.Computed{
			EarlyStart:  n.es,
			EarlyFinish: ef,
			LateStart:   n.ls,
			LateFinish:  lf,
			TotalFloat:  n.tf,
			FreeFloat:   n.ff,
			IsCritical:  !n.complete && n.tf <= 0,
			Violations:  n.violations,
		}
		sol[id] = c
		if c.IsCritical {
			res.CriticalPath = append(res.CriticalPath, id)
		}
		res.Violations = append(res.Violations, n.violations...)
		if first || c.EarlyStart.Before(res.ProjectStart) {
			res.ProjectStart = c.EarlyStart
		}
		if first || c.EarlyFinish.After(res.ProjectFinish) {
			res.ProjectFinish = c.EarlyFinish
		}
		first = false
	}
	if first {
		res.ProjectStart = s.project.PlannedStart
		res.ProjectFinish = s.project.PlannedStart
	}
	return s.g.ApplySolution(sol), res, nil
}

// displayFinish turns a finish boundary into the inclusive last working day.
func (n *node) displayFinish(fb time.Time) time.Time {
	if n.d == 0 {
		return fb
	}
	return n.r.AddWorkingDuration(fb, -1)
}

// finishFloor is the earliest boundary for a finish on or after day.
func (n *node) finishFloor(day time.Time) time.Time {
	day = n.r.NextWorkingDay(day)
	if n.d == 0 {
		return day
	}
	return n.r.AddWorkingDuration(day, 1)
}

// finishCeil is the latest boundary for a finish on or before day.
func (n *node) finishCeil(day time.Time) time.Time {
	day = n.r.PrevWorkingDay(day)
	if n.d == 0 {
		return day
	}
	return n.r.AddWorkingDuration(day, 1)
}

// startFromFinish backs a start out of a finish boundary.
func (n *node) startFromFinish(fb time.Time) time.Time {
	return n.r.AddWorkingDuration(fb, -n.d)
}

func (n *node) finishFromStart(es time.Time) time.Time {
	return n.r.AddWorkingDuration(es, n.d)
}

func maxDay(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func minDay(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
