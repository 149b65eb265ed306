package graph

import (
	"sort"
	"time"

	"github.com/zulandar/timetable/internal/calendar"
)

// ApplySolution returns a solved copy of g with sol written onto its leaf
// tasks and every summary rolled up from its children. Tasks missing from
// sol keep no solver output.
func (g *Graph) ApplySolution(sol map[string]Computed) *Graph {
	out := g.Clone()
	for id, t := range out.tasks {
		t.clearSolved()
		c, ok := sol[id]
		if !ok {
			continue
		}
		t.EarlyStart = timePtr(c.EarlyStart)
		t.EarlyFinish = timePtr(c.EarlyFinish)
		t.LateStart = timePtr(c.LateStart)
		t.LateFinish = timePtr(c.LateFinish)
		t.TotalFloat = intPtr(c.TotalFloat)
		t.FreeFloat = intPtr(c.FreeFloat)
		t.IsCritical = c.IsCritical
		t.Violations = append([]ConstraintViolation(nil), c.Violations...)
	}
	out.solved = true
	out.rollUp()
	return out
}

// RollUpSummaries returns a copy of g with summary fields recomputed.
func (g *Graph) RollUpSummaries() *Graph {
	out := g.Clone()
	out.rollUp()
	return out
}

// CalendarFor returns the effective calendar of the task with id.
func (g *Graph) CalendarFor(id string) (calendar.Calendar, bool) {
	t, ok := g.tasks[id]
	if !ok {
		return calendar.Calendar{}, false
	}
	return g.Calendar(g.CalendarID(*t))
}

// rollUp derives summary dates, duration, progress, float and criticality
// from children, deepest summaries first.
func (g *Graph) rollUp() {
	children := g.childIndex()
	depth := make(map[string]int, len(g.tasks))
	var depthOf func(id string, seen int) int
	depthOf = func(id string, seen int) int {
		if d, ok := depth[id]; ok {
			return d
		}
		t := g.tasks[id]
		if t == nil || t.ParentID == "" || seen > len(g.tasks) {
			return 0
		}
		d := depthOf(t.ParentID, seen+1) + 1
		depth[id] = d
		return d
	}

	var parents []string
	for id := range children {
		if _, ok := g.tasks[id]; ok {
			parents = append(parents, id)
		}
	}
	sort.Slice(parents, func(i, j int) bool {
		di, dj := depthOf(parents[i], 0), depthOf(parents[j], 0)
		if di != dj {
			return di > dj
		}
		return parents[i] < parents[j]
	})

	for _, id := range parents {
		g.rollUpOne(g.tasks[id], children[id])
	}
}

func (g *Graph) rollUpOne(s *Task, kids []string) {
	var (
		plannedStart, plannedFinish *time.Time
		actualStart, actualFinish   *time.Time
		allFinished                 = true
		weight, weighted, plainSum  float64
		maxDuration                 int
	)
	for _, cid := range kids {
		c := g.tasks[cid]
		plannedStart = minTime(plannedStart, c.PlannedStart)
		plannedFinish = maxTime(plannedFinish, c.PlannedFinish)
		actualStart = minTime(actualStart, c.ActualStart)
		if c.ActualFinish == nil {
			allFinished = false
		}
		actualFinish = maxTime(actualFinish, c.ActualFinish)
		w := float64(c.OriginalDuration)
		weight += w
		weighted += w * c.PercentComplete
		plainSum += c.PercentComplete
		if c.OriginalDuration > maxDuration {
			maxDuration = c.OriginalDuration
		}
	}
	if !allFinished {
		actualFinish = nil
	}
	s.PlannedStart, s.PlannedFinish = plannedStart, plannedFinish
	s.ActualStart, s.ActualFinish = actualStart, actualFinish
	s.RemainingDuration = nil
	switch {
	case weight > 0:
		s.PercentComplete = weighted / weight
	case len(kids) > 0:
		s.PercentComplete = plainSum / float64(len(kids))
	default:
		s.PercentComplete = 0
	}

	s.clearSolved()
	if g.solved {
		for _, cid := range kids {
			c := g.tasks[cid]
			s.EarlyStart = minTime(s.EarlyStart, c.EarlyStart)
			s.EarlyFinish = maxTime(s.EarlyFinish, c.EarlyFinish)
			s.LateStart = minTime(s.LateStart, c.LateStart)
			s.LateFinish = maxTime(s.LateFinish, c.LateFinish)
			s.TotalFloat = minInt(s.TotalFloat, c.TotalFloat)
			s.FreeFloat = minInt(s.FreeFloat, c.FreeFloat)
			s.IsCritical = s.IsCritical || c.IsCritical
		}
	}

	s.OriginalDuration = 0
	if maxDuration == 0 {
		return
	}
	start, finish := s.EarlyStart, s.EarlyFinish
	if start == nil || finish == nil {
		start, finish = plannedStart, plannedFinish
	}
	if start == nil || finish == nil {
		s.OriginalDuration = maxDuration
		return
	}
	cal, _ := g.Calendar(g.CalendarID(*s))
	r, err := calendar.NewResolver(cal)
	if err != nil {
		s.OriginalDuration = maxDuration
		return
	}
	s.OriginalDuration = spanDays(r, *start, *finish)
}

// spanDays counts working days in [start, finish].
func spanDays(r *calendar.Resolver, start, finish time.Time) int {
	if finish.Before(start) {
		return 0
	}
	n := r.WorkingDurationBetween(start, finish)
	if r.IsWorkingDay(start) {
		n++
	}
	return n
}

func minTime(a, b *time.Time) *time.Time {
	if b == nil {
		return a
	}
	if a == nil || b.Before(*a) {
		v := *b
		return &v
	}
	return a
}

func maxTime(a, b *time.Time) *time.Time {
	if b == nil {
		return a
	}
	if a == nil || b.After(*a) {
		v := *b
		return &v
	}
	return a
}

func minInt(a, b *int) *int {
	if b == nil {
		return a
	}
	if a == nil || *b < *a {
		v := *b
		return &v
	}
	return a
}
