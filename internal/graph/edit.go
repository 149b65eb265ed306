package graph

import (
	"sort"
	"strings"
	"time"

	"github.com/zulandar/timetable/internal/calendar"
)

// Tx applies a batch of mutations to a private copy of a graph. It is only
// valid inside the function passed to Batch.
type Tx struct {
	g     *Graph
	dirty bool
}

// Batch runs fn against a copy of g. If fn returns an error nothing is
// applied and g is untouched; otherwise the edited copy is returned. Solved
// fields are cleared once at the end when any edit affected scheduling.
func (g *Graph) Batch(fn func(tx *Tx) error) (*Graph, error) {
	tx := &Tx{g: g.Clone()}
	if err := fn(tx); err != nil {
		return nil, err
	}
	if tx.dirty {
		tx.g.invalidate()
	}
	tx.g.rollUp()
	return tx.g, nil
}

// AddTask returns a copy of g with t added.
func (g *Graph) AddTask(t Task) (*Graph, error) {
	return g.Batch(func(tx *Tx) error { return tx.AddTask(t) })
}

// UpdateTask returns a copy of g with the task t.ID replaced by t.
func (g *Graph) UpdateTask(t Task) (*Graph, error) {
	return g.Batch(func(tx *Tx) error { return tx.UpdateTask(t) })
}

// RemoveTask returns a copy of g without the task and its dependencies.
func (g *Graph) RemoveTask(id string) (*Graph, error) {
	return g.Batch(func(tx *Tx) error { return tx.RemoveTask(id) })
}

// AddDependency returns a copy of g with d added.
func (g *Graph) AddDependency(d Dependency) (*Graph, error) {
	return g.Batch(func(tx *Tx) error { return tx.AddDependency(d) })
}

// UpdateDependency returns a copy of g with the type and lag of an existing
// dependency replaced.
func (g *Graph) UpdateDependency(d Dependency) (*Graph, error) {
	return g.Batch(func(tx *Tx) error { return tx.UpdateDependency(d) })
}

// RemoveDependency returns a copy of g without the predecessor/successor link.
func (g *Graph) RemoveDependency(predecessorID, successorID string) (*Graph, error) {
	return g.Batch(func(tx *Tx) error { return tx.RemoveDependency(predecessorID, successorID) })
}

// SetCalendar returns a copy of g with cal added or replaced.
func (g *Graph) SetCalendar(cal calendar.Calendar) (*Graph, error) {
	return g.Batch(func(tx *Tx) error { return tx.SetCalendar(cal) })
}

// SetProject returns a copy of g with new project settings.
func (g *Graph) SetProject(p Project) (*Graph, error) {
	return g.Batch(func(tx *Tx) error { return tx.SetProject(p) })
}

// Task returns the current state of a task inside the batch.
func (tx *Tx) Task(id string) (Task, bool) { return tx.g.Task(id) }

// Graph exposes the in-progress copy for reads.
func (tx *Tx) Graph() *Graph { return tx.g }

// AddTask inserts a new task.
func (tx *Tx) AddTask(t Task) error {
	g := tx.g
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		return editErr(ErrInvalidTask, "", "task id is required")
	}
	if _, ok := g.tasks[t.ID]; ok {
		return editErr(ErrDuplicateTask, t.ID, "task already exists")
	}
	if t.Kind == "" {
		t.Kind = KindTask
	}
	if t.Kind == KindSummary {
		zeroDerived(&t)
	}
	if err := g.validateTask(&t); err != nil {
		return err
	}
	t.clearSolved()
	g.tasks[t.ID] = &t
	if t.ParentID != "" {
		if err := g.Validate(); err != nil {
			delete(g.tasks, t.ID)
			return err
		}
	}
	tx.dirty = true
	return nil
}

// UpdateTask replaces the inputs of an existing task. Solver output on t is
// ignored. Summary dates, durations and progress are derived and any change
// to them is rejected.
func (tx *Tx) UpdateTask(t Task) error {
	g := tx.g
	old, ok := g.tasks[t.ID]
	if !ok {
		return editErr(ErrTaskNotFound, t.ID, "")
	}
	if t.Kind == "" {
		t.Kind = old.Kind
	}
	children := g.childIndex()[t.ID]
	if old.Kind == KindSummary && t.Kind == KindSummary && derivedChanged(*old, t) {
		return editErr(ErrSummaryNotEditable, t.ID, "dates, durations and progress roll up from children")
	}
	if t.Kind != KindSummary && len(children) > 0 {
		return editErr(ErrInvalidTask, t.ID, "task with children must stay a summary")
	}
	if t.Kind == KindSummary && old.Kind != KindSummary {
		zeroDerived(&t)
	}
	if err := g.validateTask(&t); err != nil {
		return err
	}

	next := t
	if old.Kind == KindSummary && t.Kind == KindSummary {
		copyDerived(&next, *old)
	}
	copySolved(&next, *old)

	structural := next.ParentID != old.ParentID || next.Kind != old.Kind
	relevant := structural || schedulingChanged(*old, next)

	g.tasks[t.ID] = &next
	if structural {
		if err := g.Validate(); err != nil {
			g.tasks[t.ID] = old
			return err
		}
	}
	if relevant {
		tx.dirty = true
	}
	return nil
}

// RemoveTask deletes a task and every dependency touching it. A summary must
// be emptied first.
func (tx *Tx) RemoveTask(id string) error {
	g := tx.g
	if _, ok := g.tasks[id]; !ok {
		return editErr(ErrTaskNotFound, id, "")
	}
	if kids := g.childIndex()[id]; len(kids) > 0 {
		return editErr(ErrInvalidTask, id, "summary still has %d children", len(kids))
	}
	delete(g.tasks, id)
	kept := g.deps[:0]
	for _, d := range g.deps {
		if d.PredecessorID != id && d.SuccessorID != id {
			kept = append(kept, d)
		}
	}
	g.deps = kept
	tx.dirty = true
	return nil
}

// AddDependency inserts d after checking that it does not close a cycle.
func (tx *Tx) AddDependency(d Dependency) error {
	g := tx.g
	if err := g.validateDependency(&d); err != nil {
		return err
	}
	for _, e := range g.deps {
		if e.key() == d.key() {
			return editErr(ErrDuplicateDependency, d.SuccessorID, "already depends on %s", d.PredecessorID)
		}
	}
	if d.PredecessorID == d.SuccessorID {
		return &CycleError{Path: []string{d.PredecessorID, d.SuccessorID}}
	}
	if path := g.dependencyCycle(d); path != nil {
		return &CycleError{Path: path}
	}
	g.deps = append(g.deps, d)
	sortDependencies(g.deps)
	tx.dirty = true
	return nil
}

// UpdateDependency changes the type and lag of an existing dependency.
func (tx *Tx) UpdateDependency(d Dependency) error {
	g := tx.g
	if err := g.validateDependency(&d); err != nil {
		return err
	}
	for i, e := range g.deps {
		if e.key() == d.key() {
			if e != d {
				g.deps[i] = d
				tx.dirty = true
			}
			return nil
		}
	}
	return editErr(ErrDependencyNotFound, d.SuccessorID, "no dependency on %s", d.PredecessorID)
}

// RemoveDependency deletes the link between predecessorID and successorID.
func (tx *Tx) RemoveDependency(predecessorID, successorID string) error {
	g := tx.g
	key := [2]string{predecessorID, successorID}
	for i, d := range g.deps {
		if d.key() == key {
			g.deps = append(g.deps[:i], g.deps[i+1:]...)
			tx.dirty = true
			return nil
		}
	}
	return editErr(ErrDependencyNotFound, successorID, "no dependency on %s", predecessorID)
}

// SetCalendar adds or replaces a calendar. A calendar that a solved schedule
// was computed with cannot be replaced until the schedule is invalidated.
func (tx *Tx) SetCalendar(cal calendar.Calendar) error {
	g := tx.g
	if err := cal.Validate(); err != nil {
		return err
	}
	_, exists := g.calendars[cal.ID]
	referenced := exists && g.referencesCalendar(cal.ID)
	if referenced && g.solved && !tx.dirty {
		return editErr(ErrCalendarLocked, "", "calendar %q", cal.ID)
	}
	g.calendars[cal.ID] = cal.Clone()
	if referenced {
		tx.dirty = true
	}
	return nil
}

// SetProject replaces the project settings. The project id cannot change.
func (tx *Tx) SetProject(p Project) error {
	g := tx.g
	if p.ID != g.project.ID {
		return editErr(ErrInvalidTask, "", "project id cannot change from %q to %q", g.project.ID, p.ID)
	}
	if _, ok := g.calendars[p.DefaultCalendarID]; !ok {
		return editErr(ErrUnknownCalendar, "", "project default calendar %q", p.DefaultCalendarID)
	}
	p.PlannedStart = calendar.Day(p.PlannedStart)
	p.MustFinishBy = dayPtr(p.MustFinishBy)
	old := g.project
	g.project = p
	if !old.PlannedStart.Equal(p.PlannedStart) || !sameTime(old.MustFinishBy, p.MustFinishBy) ||
		old.DefaultCalendarID != p.DefaultCalendarID {
		tx.dirty = true
	}
	return nil
}

// validateTask checks t against the graph and normalizes its dates.
func (g *Graph) validateTask(t *Task) error {
	if !t.Kind.valid() {
		return editErr(ErrInvalidTask, t.ID, "unknown kind %q", t.Kind)
	}
	if t.OriginalDuration < 0 {
		return editErr(ErrInvalidTask, t.ID, "negative duration %d", t.OriginalDuration)
	}
	if t.RemainingDuration != nil && *t.RemainingDuration < 0 {
		return editErr(ErrInvalidTask, t.ID, "negative remaining duration %d", *t.RemainingDuration)
	}
	if t.Kind == KindMilestone && (t.OriginalDuration != 0 || (t.RemainingDuration != nil && *t.RemainingDuration != 0)) {
		return editErr(ErrInvalidTask, t.ID, "milestones have zero duration")
	}
	if t.PercentComplete < 0 || t.PercentComplete > 100 {
		return editErr(ErrInvalidPercentComplete, t.ID, "%v is outside 0..100", t.PercentComplete)
	}
	if t.Constraint == "" {
		t.Constraint = ASAP
	}
	if !t.Constraint.valid() {
		return editErr(ErrInvalidConstraint, t.ID, "unknown constraint %q", t.Constraint)
	}
	if t.Constraint.NeedsDate() && t.ConstraintDate == nil {
		return editErr(ErrInvalidConstraint, t.ID, "%s requires a constraint date", t.Constraint)
	}
	if !t.Constraint.NeedsDate() && t.ConstraintDate != nil {
		return editErr(ErrInvalidConstraint, t.ID, "%s does not take a constraint date", t.Constraint)
	}
	if t.CalendarID != "" {
		if _, ok := g.calendars[t.CalendarID]; !ok {
			return editErr(ErrUnknownCalendar, t.ID, "calendar %q", t.CalendarID)
		}
	}
	if t.ParentID != "" {
		if t.ParentID == t.ID {
			return &CycleError{Path: []string{t.ID, t.ID}}
		}
		parent, ok := g.tasks[t.ParentID]
		if !ok {
			return editErr(ErrTaskNotFound, t.ID, "parent %q", t.ParentID)
		}
		if parent.Kind != KindSummary {
			return editErr(ErrInvalidTask, t.ID, "parent %q is not a summary", t.ParentID)
		}
	}
	t.PlannedStart = dayPtr(t.PlannedStart)
	t.PlannedFinish = dayPtr(t.PlannedFinish)
	t.ActualStart = dayPtr(t.ActualStart)
	t.ActualFinish = dayPtr(t.ActualFinish)
	t.ConstraintDate = dayPtr(t.ConstraintDate)
	return nil
}

func (g *Graph) validateDependency(d *Dependency) error {
	if d.Type == "" {
		d.Type = FinishToStart
	}
	if !d.Type.valid() {
		return editErr(ErrInvalidDependency, d.SuccessorID, "unknown type %q", d.Type)
	}
	if _, ok := g.tasks[d.PredecessorID]; !ok {
		return editErr(ErrTaskNotFound, d.PredecessorID, "predecessor")
	}
	if _, ok := g.tasks[d.SuccessorID]; !ok {
		return editErr(ErrTaskNotFound, d.SuccessorID, "successor")
	}
	return nil
}

func sortDependencies(deps []Dependency) {
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].PredecessorID != deps[j].PredecessorID {
			return deps[i].PredecessorID < deps[j].PredecessorID
		}
		return deps[i].SuccessorID < deps[j].SuccessorID
	})
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := calendar.Day(*t)
	return &d
}

// zeroDerived clears the fields a summary computes from its children.
func zeroDerived(t *Task) {
	t.OriginalDuration = 0
	t.RemainingDuration = nil
	t.PercentComplete = 0
	t.PlannedStart, t.PlannedFinish = nil, nil
	t.ActualStart, t.ActualFinish = nil, nil
}

func copyDerived(dst *Task, src Task) {
	dst.OriginalDuration = src.OriginalDuration
	dst.RemainingDuration = src.RemainingDuration
	dst.PercentComplete = src.PercentComplete
	dst.PlannedStart, dst.PlannedFinish = src.PlannedStart, src.PlannedFinish
	dst.ActualStart, dst.ActualFinish = src.ActualStart, src.ActualFinish
}

func copySolved(dst *Task, src Task) {
	dst.EarlyStart, dst.EarlyFinish = src.EarlyStart, src.EarlyFinish
	dst.LateStart, dst.LateFinish = src.LateStart, src.LateFinish
	dst.TotalFloat, dst.FreeFloat = src.TotalFloat, src.FreeFloat
	dst.IsCritical = src.IsCritical
	dst.Violations = src.Violations
}

func derivedChanged(old, t Task) bool {
	return old.OriginalDuration != t.OriginalDuration ||
		!sameInt(old.RemainingDuration, t.RemainingDuration) ||
		old.PercentComplete != t.PercentComplete ||
		!sameTime(old.PlannedStart, dayPtr(t.PlannedStart)) ||
		!sameTime(old.PlannedFinish, dayPtr(t.PlannedFinish)) ||
		!sameTime(old.ActualStart, dayPtr(t.ActualStart)) ||
		!sameTime(old.ActualFinish, dayPtr(t.ActualFinish))
}

// schedulingChanged reports whether any input the solver reads differs.
// Name and cost edits keep the solved schedule.
func schedulingChanged(old, t Task) bool {
	return derivedChanged(old, t) ||
		old.CalendarID != t.CalendarID ||
		old.Constraint != t.Constraint ||
		!sameTime(old.ConstraintDate, t.ConstraintDate) ||
		old.SortOrder != t.SortOrder
}
