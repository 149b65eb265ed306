// Package graph is the in-memory task graph: tasks, typed dependencies with
// lag, the WBS hierarchy and the calendars they reference. Every mutation is
// validated and returns a new graph; a rejected edit leaves the receiver
// exactly as it was.
package graph

import (
	"fmt"
	"sort"

	"github.com/zulandar/timetable/internal/calendar"
)

// Graph is a schedule snapshot. Values returned by accessors are copies.
type Graph struct {
	project   Project
	calendars map[string]calendar.Calendar
	tasks     map[string]*Task
	deps      []Dependency
	solved    bool
}

// New creates an empty graph for project. The project's default calendar
// must be among calendars.
func New(project Project, calendars ...calendar.Calendar) (*Graph, error) {
	g := &Graph{
		project:   project,
		calendars: make(map[string]calendar.Calendar, len(calendars)),
		tasks:     make(map[string]*Task),
	}
	for _, cal := range calendars {
		if err := cal.Validate(); err != nil {
			return nil, fmt.Errorf("graph: %w", err)
		}
		g.calendars[cal.ID] = cal.Clone()
	}
	if project.DefaultCalendarID == "" {
		return nil, editErr(ErrUnknownCalendar, "", "project %q has no default calendar", project.ID)
	}
	if _, ok := g.calendars[project.DefaultCalendarID]; !ok {
		return nil, editErr(ErrUnknownCalendar, "", "project default calendar %q", project.DefaultCalendarID)
	}
	g.project.PlannedStart = calendar.Day(project.PlannedStart)
	return g, nil
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		project:   g.project,
		calendars: make(map[string]calendar.Calendar, len(g.calendars)),
		tasks:     make(map[string]*Task, len(g.tasks)),
		deps:      append([]Dependency(nil), g.deps...),
		solved:    g.solved,
	}
	for id, cal := range g.calendars {
		out.calendars[id] = cal.Clone()
	}
	for id, t := range g.tasks {
		cp := *t
		cp.Violations = append([]ConstraintViolation(nil), t.Violations...)
		out.tasks[id] = &cp
	}
	return out
}

// Project returns the project settings.
func (g *Graph) Project() Project { return g.project }

// Solved reports whether solver output is current.
func (g *Graph) Solved() bool { return g.solved }

// Len returns the number of tasks.
func (g *Graph) Len() int { return len(g.tasks) }

// Calendar returns the calendar with id.
func (g *Graph) Calendar(id string) (calendar.Calendar, bool) {
	cal, ok := g.calendars[id]
	if !ok {
		return calendar.Calendar{}, false
	}
	return cal.Clone(), true
}

// Calendars returns all calendars ordered by id.
func (g *Graph) Calendars() []calendar.Calendar {
	ids := make([]string, 0, len(g.calendars))
	for id := range g.calendars {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]calendar.Calendar, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.calendars[id].Clone())
	}
	return out
}

// CalendarID returns the effective calendar id of t.
func (g *Graph) CalendarID(t Task) string {
	if t.CalendarID != "" {
		return t.CalendarID
	}
	return g.project.DefaultCalendarID
}

// Task returns a copy of the task with id.
func (g *Graph) Task(id string) (Task, bool) {
	t, ok := g.tasks[id]
	if !ok {
		return Task{}, false
	}
	cp := *t
	cp.Violations = append([]ConstraintViolation(nil), t.Violations...)
	return cp, true
}

// Tasks returns all tasks ordered by SortOrder, then id.
func (g *Graph) Tasks() []Task {
	out := make([]Task, 0, len(g.tasks))
	for _, id := range g.orderedIDs() {
		t, _ := g.Task(id)
		out = append(out, t)
	}
	return out
}

// Dependencies returns all dependencies ordered by predecessor, then successor.
func (g *Graph) Dependencies() []Dependency {
	return append([]Dependency(nil), g.deps...)
}

// Predecessors returns the dependencies whose successor is id.
func (g *Graph) Predecessors(id string) []Dependency {
	var out []Dependency
	for _, d := range g.deps {
		if d.SuccessorID == id {
			out = append(out, d)
		}
	}
	return out
}

// Successors returns the dependencies whose predecessor is id.
func (g *Graph) Successors(id string) []Dependency {
	var out []Dependency
	for _, d := range g.deps {
		if d.PredecessorID == id {
			out = append(out, d)
		}
	}
	return out
}

// Children returns the direct children of id in schedule order.
func (g *Graph) Children(id string) []string {
	return g.childIndex()[id]
}

// less orders tasks by SortOrder, then id.
func (g *Graph) less(a, b string) bool {
	ta, tb := g.tasks[a], g.tasks[b]
	if ta.SortOrder != tb.SortOrder {
		return ta.SortOrder < tb.SortOrder
	}
	return a < b
}

func (g *Graph) orderedIDs() []string {
	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return g.less(ids[i], ids[j]) })
	return ids
}

// childIndex maps parent id to ordered child ids.
func (g *Graph) childIndex() map[string][]string {
	idx := make(map[string][]string)
	for _, id := range g.orderedIDs() {
		if p := g.tasks[id].ParentID; p != "" {
			idx[p] = append(idx[p], id)
		}
	}
	return idx
}

// invalidate drops all solver output.
func (g *Graph) invalidate() {
	for _, t := range g.tasks {
		t.clearSolved()
	}
	g.solved = false
}

// referencesCalendar reports whether the project or any task uses id.
func (g *Graph) referencesCalendar(id string) bool {
	if g.project.DefaultCalendarID == id {
		return true
	}
	for _, t := range g.tasks {
		if t.CalendarID == id {
			return true
		}
	}
	return false
}
