package graph

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/zulandar/timetable/internal/calendar"
)

func day(s string) time.Time { return calendar.MustParseDay(s) }

func dayP(s string) *time.Time {
	d := day(s)
	return &d
}

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := New(Project{ID: "p1", Name: "Test", PlannedStart: day("2026-03-02"), DefaultCalendarID: "std"},
		calendar.Standard("std"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

// build applies tasks and dependencies in one batch.
func build(t *testing.T, tasks []Task, deps []Dependency) *Graph {
	t.Helper()
	g, err := newTestGraph(t).Batch(func(tx *Tx) error {
		for _, task := range tasks {
			if err := tx.AddTask(task); err != nil {
				return err
			}
		}
		for _, d := range deps {
			if err := tx.AddDependency(d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return g
}

func TestNew_UnknownDefaultCalendar(t *testing.T) {
	_, err := New(Project{ID: "p1", DefaultCalendarID: "missing"}, calendar.Standard("std"))
	if !errors.Is(err, ErrUnknownCalendar) {
		t.Errorf("err = %v, want ErrUnknownCalendar", err)
	}
}

func TestNew_EmptyCalendar(t *testing.T) {
	_, err := New(Project{ID: "p1", DefaultCalendarID: "none"}, calendar.Calendar{ID: "none"})
	if !errors.Is(err, calendar.ErrEmptyCalendar) {
		t.Errorf("err = %v, want ErrEmptyCalendar", err)
	}
}

func TestAddTask_Validation(t *testing.T) {
	base := build(t, []Task{
		{ID: "S", Kind: KindSummary},
		{ID: "A", OriginalDuration: 3},
	}, nil)

	tests := []struct {
		name string
		task Task
		want error
	}{
		{"missing id", Task{ID: " "}, ErrInvalidTask},
		{"duplicate", Task{ID: "A"}, ErrDuplicateTask},
		{"unknown kind", Task{ID: "X", Kind: "epic"}, ErrInvalidTask},
		{"negative duration", Task{ID: "X", OriginalDuration: -1}, ErrInvalidTask},
		{"milestone with duration", Task{ID: "X", Kind: KindMilestone, OriginalDuration: 2}, ErrInvalidTask},
		{"percent over 100", Task{ID: "X", PercentComplete: 120}, ErrInvalidPercentComplete},
		{"percent negative", Task{ID: "X", PercentComplete: -1}, ErrInvalidPercentComplete},
		{"mso without date", Task{ID: "X", Constraint: MustStartOn}, ErrInvalidConstraint},
		{"fnlt without date", Task{ID: "X", Constraint: FinishNoLaterThan}, ErrInvalidConstraint},
		{"asap with date", Task{ID: "X", Constraint: ASAP, ConstraintDate: dayP("2026-03-10")}, ErrInvalidConstraint},
		{"unknown constraint", Task{ID: "X", Constraint: "soon"}, ErrInvalidConstraint},
		{"unknown calendar", Task{ID: "X", CalendarID: "night"}, ErrUnknownCalendar},
		{"missing parent", Task{ID: "X", ParentID: "nope"}, ErrTaskNotFound},
		{"parent not summary", Task{ID: "X", ParentID: "A"}, ErrInvalidTask},
		{"own parent", Task{ID: "X", ParentID: "X"}, ErrCycleDetected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := base.AddTask(tt.task)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if g != nil {
				t.Error("rejected edit returned a graph")
			}
			if base.Len() != 2 {
				t.Errorf("base graph changed: Len = %d", base.Len())
			}
		})
	}
}

func TestAddTask_Defaults(t *testing.T) {
	g := build(t, []Task{{ID: "A", OriginalDuration: 2, PlannedStart: timePtrAt("2026-03-03T15:04:05Z")}}, nil)
	a, ok := g.Task("A")
	if !ok {
		t.Fatal("task A missing")
	}
	if a.Kind != KindTask {
		t.Errorf("Kind = %q, want task", a.Kind)
	}
	if a.Constraint != ASAP {
		t.Errorf("Constraint = %q, want asap", a.Constraint)
	}
	if !a.PlannedStart.Equal(day("2026-03-03")) {
		t.Errorf("PlannedStart = %v, want truncated to day", a.PlannedStart)
	}
	if g.CalendarID(a) != "std" {
		t.Errorf("CalendarID = %q, want project default", g.CalendarID(a))
	}
}

func timePtrAt(s string) *time.Time {
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &v
}

func TestAddDependency_RejectsCycle(t *testing.T) {
	g := build(t, []Task{{ID: "A", OriginalDuration: 1}, {ID: "B", OriginalDuration: 1}, {ID: "C", OriginalDuration: 1}},
		[]Dependency{{PredecessorID: "A", SuccessorID: "B"}, {PredecessorID: "B", SuccessorID: "C"}})

	before := g.Dependencies()
	_, err := g.AddDependency(Dependency{PredecessorID: "C", SuccessorID: "A"})
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CycleError", err)
	}
	if !errors.Is(err, ErrCycleDetected) {
		t.Error("CycleError does not match ErrCycleDetected")
	}
	want := []string{"C", "A", "B", "C"}
	if !reflect.DeepEqual(ce.Path, want) {
		t.Errorf("Path = %v, want %v", ce.Path, want)
	}
	if !reflect.DeepEqual(g.Dependencies(), before) {
		t.Error("graph changed after rejected dependency")
	}
}

func TestAddDependency_ToAncestorIsCycle(t *testing.T) {
	g := build(t, []Task{
		{ID: "S", Kind: KindSummary},
		{ID: "C", ParentID: "S", OriginalDuration: 2},
	}, nil)

	_, err := g.AddDependency(Dependency{PredecessorID: "C", SuccessorID: "S"})
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CycleError", err)
	}
	if want := []string{"C", "S", "C"}; !reflect.DeepEqual(ce.Path, want) {
		t.Errorf("Path = %v, want %v", ce.Path, want)
	}

	_, err = g.AddDependency(Dependency{PredecessorID: "S", SuccessorID: "C"})
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("S -> C err = %v, want ErrCycleDetected", err)
	}
}

func TestAddDependency_Errors(t *testing.T) {
	g := build(t, []Task{{ID: "A"}, {ID: "B"}}, []Dependency{{PredecessorID: "A", SuccessorID: "B"}})
	tests := []struct {
		name string
		dep  Dependency
		want error
	}{
		{"self", Dependency{PredecessorID: "A", SuccessorID: "A"}, ErrCycleDetected},
		{"missing predecessor", Dependency{PredecessorID: "Z", SuccessorID: "B"}, ErrTaskNotFound},
		{"missing successor", Dependency{PredecessorID: "A", SuccessorID: "Z"}, ErrTaskNotFound},
		{"duplicate", Dependency{PredecessorID: "A", SuccessorID: "B", Type: StartToStart}, ErrDuplicateDependency},
		{"bad type", Dependency{PredecessorID: "B", SuccessorID: "A", Type: "XX"}, ErrInvalidDependency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.AddDependency(tt.dep); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRemoveDependency(t *testing.T) {
	g := build(t, []Task{{ID: "A"}, {ID: "B"}}, []Dependency{{PredecessorID: "A", SuccessorID: "B", Lag: 2}})
	if _, err := g.RemoveDependency("B", "A"); !errors.Is(err, ErrDependencyNotFound) {
		t.Errorf("err = %v, want ErrDependencyNotFound", err)
	}
	g2, err := g.RemoveDependency("A", "B")
	if err != nil {
		t.Fatalf("RemoveDependency: %v", err)
	}
	if len(g2.Dependencies()) != 0 {
		t.Errorf("deps = %v, want none", g2.Dependencies())
	}
	if len(g.Dependencies()) != 1 {
		t.Error("original graph mutated")
	}
}

func TestUpdateDependency(t *testing.T) {
	g := build(t, []Task{{ID: "A"}, {ID: "B"}}, []Dependency{{PredecessorID: "A", SuccessorID: "B"}})
	g2, err := g.UpdateDependency(Dependency{PredecessorID: "A", SuccessorID: "B", Type: StartToStart, Lag: -1})
	if err != nil {
		t.Fatalf("UpdateDependency: %v", err)
	}
	got := g2.Predecessors("B")
	if len(got) != 1 || got[0].Type != StartToStart || got[0].Lag != -1 {
		t.Errorf("Predecessors(B) = %v", got)
	}
	if _, err := g.UpdateDependency(Dependency{PredecessorID: "B", SuccessorID: "A"}); !errors.Is(err, ErrDependencyNotFound) {
		t.Errorf("err = %v, want ErrDependencyNotFound", err)
	}
}

func TestRemoveTask(t *testing.T) {
	g := build(t, []Task{
		{ID: "S", Kind: KindSummary},
		{ID: "A", ParentID: "S", OriginalDuration: 1},
		{ID: "B", OriginalDuration: 1},
	}, []Dependency{{PredecessorID: "A", SuccessorID: "B"}})

	if _, err := g.RemoveTask("S"); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("remove summary with children: err = %v, want ErrInvalidTask", err)
	}
	if _, err := g.RemoveTask("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("remove missing: err = %v, want ErrTaskNotFound", err)
	}
	g2, err := g.RemoveTask("A")
	if err != nil {
		t.Fatalf("RemoveTask: %v", err)
	}
	if _, ok := g2.Task("A"); ok {
		t.Error("task A still present")
	}
	if len(g2.Dependencies()) != 0 {
		t.Errorf("dependencies of removed task kept: %v", g2.Dependencies())
	}
}

func TestUpdateTask_SummaryNotEditable(t *testing.T) {
	g := build(t, []Task{
		{ID: "S", Kind: KindSummary},
		{ID: "A", ParentID: "S", OriginalDuration: 4},
	}, nil)
	s, _ := g.Task("S")
	s.OriginalDuration = 10
	if _, err := g.UpdateTask(s); !errors.Is(err, ErrSummaryNotEditable) {
		t.Errorf("err = %v, want ErrSummaryNotEditable", err)
	}

	s, _ = g.Task("S")
	s.Name = "Phase 1"
	g2, err := g.UpdateTask(s)
	if err != nil {
		t.Fatalf("rename summary: %v", err)
	}
	if got, _ := g2.Task("S"); got.Name != "Phase 1" {
		t.Errorf("Name = %q", got.Name)
	}

	a, _ := g.Task("A")
	a.Kind = KindSummary
	if _, err := g.UpdateTask(a); err != nil {
		t.Errorf("childless task to summary: %v", err)
	}
	s, _ = g.Task("S")
	s.Kind = KindTask
	if _, err := g.UpdateTask(s); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("summary with children to task: err = %v, want ErrInvalidTask", err)
	}
}

func TestUpdateTask_ParentCycle(t *testing.T) {
	g := build(t, []Task{
		{ID: "S1", Kind: KindSummary},
		{ID: "S2", Kind: KindSummary, ParentID: "S1"},
	}, nil)
	s1, _ := g.Task("S1")
	s1.ParentID = "S2"
	_, err := g.UpdateTask(s1)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("err = %v, want ErrCycleDetected", err)
	}
	if got, _ := g.Task("S1"); got.ParentID != "" {
		t.Error("original graph mutated")
	}
}

func TestUpdateTask_ReparentIntoDependencyCycle(t *testing.T) {
	g := build(t, []Task{
		{ID: "S", Kind: KindSummary},
		{ID: "A", OriginalDuration: 1},
		{ID: "B", OriginalDuration: 1},
	}, []Dependency{{PredecessorID: "S", SuccessorID: "A"}, {PredecessorID: "A", SuccessorID: "B"}})

	b, _ := g.Task("B")
	b.ParentID = "S"
	if _, err := g.UpdateTask(b); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("err = %v, want ErrCycleDetected", err)
	}
}

func TestBatch_AllOrNothing(t *testing.T) {
	g := build(t, []Task{{ID: "A"}}, nil)
	_, err := g.Batch(func(tx *Tx) error {
		if err := tx.AddTask(Task{ID: "B", OriginalDuration: 2}); err != nil {
			return err
		}
		if err := tx.AddDependency(Dependency{PredecessorID: "A", SuccessorID: "B"}); err != nil {
			return err
		}
		return tx.AddDependency(Dependency{PredecessorID: "B", SuccessorID: "A"})
	})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("err = %v, want ErrCycleDetected", err)
	}
	if g.Len() != 1 || len(g.Dependencies()) != 0 {
		t.Errorf("partial batch applied: Len=%d deps=%v", g.Len(), g.Dependencies())
	}
}

func solvedFixture(t *testing.T) *Graph {
	t.Helper()
	g := build(t, []Task{
		{ID: "S", Kind: KindSummary},
		{ID: "A", ParentID: "S", OriginalDuration: 4, PercentComplete: 50},
		{ID: "B", ParentID: "S", OriginalDuration: 6, PercentComplete: 100},
	}, []Dependency{{PredecessorID: "A", SuccessorID: "B"}})
	return g.ApplySolution(map[string]Computed{
		"A": {EarlyStart: day("2026-03-02"), EarlyFinish: day("2026-03-05"), LateStart: day("2026-03-02"),
			LateFinish: day("2026-03-05"), TotalFloat: 0, FreeFloat: 0, IsCritical: true},
		"B": {EarlyStart: day("2026-03-06"), EarlyFinish: day("2026-03-13"), LateStart: day("2026-03-06"),
			LateFinish: day("2026-03-13"), TotalFloat: 0, FreeFloat: 0},
	})
}

func TestApplySolution_RollsUpSummaries(t *testing.T) {
	g := solvedFixture(t)
	if !g.Solved() {
		t.Fatal("graph not marked solved")
	}
	s, _ := g.Task("S")
	if !s.EarlyStart.Equal(day("2026-03-02")) || !s.EarlyFinish.Equal(day("2026-03-13")) {
		t.Errorf("summary span = %v..%v", s.EarlyStart, s.EarlyFinish)
	}
	if s.PercentComplete != 80 {
		t.Errorf("PercentComplete = %v, want 80 (duration weighted)", s.PercentComplete)
	}
	if s.OriginalDuration != 10 {
		t.Errorf("OriginalDuration = %d, want 10", s.OriginalDuration)
	}
	if !s.IsCritical {
		t.Error("summary with a critical child should be critical")
	}
	if s.TotalFloat == nil || *s.TotalFloat != 0 {
		t.Errorf("TotalFloat = %v, want 0", s.TotalFloat)
	}
}

func TestEdits_InvalidateSolvedFields(t *testing.T) {
	g := solvedFixture(t)

	a, _ := g.Task("A")
	a.Name = "Renamed"
	a.BudgetedCost = 100
	renamed, err := g.UpdateTask(a)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if !renamed.Solved() {
		t.Error("name/cost edit should keep the solved schedule")
	}

	a.OriginalDuration = 5
	changed, err := g.UpdateTask(a)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if changed.Solved() {
		t.Error("duration edit should invalidate the schedule")
	}
	for _, task := range changed.Tasks() {
		if task.IsSolved() || task.TotalFloat != nil || task.IsCritical {
			t.Errorf("task %s still carries solver output", task.ID)
		}
	}
	if got, _ := g.Task("A"); got.EarlyStart == nil {
		t.Error("original graph lost its solved fields")
	}
}

func TestSetCalendar_LockedWhileSolved(t *testing.T) {
	g := solvedFixture(t)
	six := calendar.Standard("std")
	six.Workdays = append(six.Workdays, time.Saturday)

	if _, err := g.SetCalendar(six); !errors.Is(err, ErrCalendarLocked) {
		t.Errorf("err = %v, want ErrCalendarLocked", err)
	}
	night := calendar.Standard("night")
	if _, err := g.SetCalendar(night); err != nil {
		t.Errorf("adding unreferenced calendar: %v", err)
	}

	a, _ := g.Task("A")
	a.OriginalDuration = 3
	g2, err := g.UpdateTask(a)
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if _, err := g2.SetCalendar(six); err != nil {
		t.Errorf("replacing calendar on unsolved graph: %v", err)
	}
}

func TestSetProject(t *testing.T) {
	g := solvedFixture(t)
	p := g.Project()
	p.Name = "Renamed"
	g2, err := g.SetProject(p)
	if err != nil {
		t.Fatalf("SetProject: %v", err)
	}
	if !g2.Solved() {
		t.Error("project rename should keep solved schedule")
	}
	p.PlannedStart = day("2026-03-09")
	g3, err := g.SetProject(p)
	if err != nil {
		t.Fatalf("SetProject: %v", err)
	}
	if g3.Solved() {
		t.Error("start change should invalidate")
	}
	p.ID = "other"
	if _, err := g.SetProject(p); err == nil {
		t.Error("changing project id should fail")
	}
	p.ID = "p1"
	p.DefaultCalendarID = "none"
	if _, err := g.SetProject(p); !errors.Is(err, ErrUnknownCalendar) {
		t.Errorf("err = %v, want ErrUnknownCalendar", err)
	}
}

func TestLeafExpansionAndOrder(t *testing.T) {
	g := build(t, []Task{
		{ID: "S", Kind: KindSummary, SortOrder: 1},
		{ID: "S1", ParentID: "S", OriginalDuration: 1, SortOrder: 2},
		{ID: "S2", ParentID: "S", OriginalDuration: 1, SortOrder: 3},
		{ID: "Z", OriginalDuration: 1, SortOrder: 0},
		{ID: "X", OriginalDuration: 1, SortOrder: 4},
	}, []Dependency{{PredecessorID: "S", SuccessorID: "X", Type: FinishToStart, Lag: 1}})

	if got, want := g.Leaves("S"), []string{"S1", "S2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Leaves(S) = %v, want %v", got, want)
	}
	want := []Dependency{
		{PredecessorID: "S1", SuccessorID: "X", Type: FinishToStart, Lag: 1},
		{PredecessorID: "S2", SuccessorID: "X", Type: FinishToStart, Lag: 1},
	}
	if got := g.LeafDependencies(); !reflect.DeepEqual(got, want) {
		t.Errorf("LeafDependencies = %v, want %v", got, want)
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	if want := []string{"Z", "S1", "S2", "X"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if g.IsLeaf("S") || !g.IsLeaf("X") {
		t.Error("IsLeaf mismatch")
	}
}

func TestLeafDependencies_SummaryEnds(t *testing.T) {
	tests := []struct {
		typ  DependencyType
		want [][2]string
	}{
		{FinishToStart, [][2]string{{"A", "C"}, {"A", "D"}, {"B", "C"}, {"B", "D"}}},
		{StartToStart, [][2]string{{"A", "C"}, {"A", "D"}}},
		{FinishToFinish, [][2]string{{"A", "D"}, {"B", "D"}}},
		{StartToFinish, [][2]string{{"A", "D"}}},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			g := build(t, []Task{
				{ID: "S1", Kind: KindSummary, SortOrder: 1},
				{ID: "A", ParentID: "S1", OriginalDuration: 1, SortOrder: 2},
				{ID: "B", ParentID: "S1", OriginalDuration: 1, SortOrder: 3},
				{ID: "S2", Kind: KindSummary, SortOrder: 4},
				{ID: "C", ParentID: "S2", OriginalDuration: 1, SortOrder: 5},
				{ID: "D", ParentID: "S2", OriginalDuration: 1, SortOrder: 6},
			}, []Dependency{
				{PredecessorID: "A", SuccessorID: "B", Type: FinishToStart},
				{PredecessorID: "C", SuccessorID: "D", Type: FinishToStart},
				{PredecessorID: "S1", SuccessorID: "S2", Type: tt.typ},
			})
			var got [][2]string
			for _, d := range g.LeafDependencies() {
				if d.Type != tt.typ || (d.PredecessorID == "A" && d.SuccessorID == "B") ||
					(d.PredecessorID == "C" && d.SuccessorID == "D") {
					continue
				}
				got = append(got, [2]string{d.PredecessorID, d.SuccessorID})
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("summary pairs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLeafSet(t *testing.T) {
	g := build(t, []Task{
		{ID: "S", Kind: KindSummary},
		{ID: "A", ParentID: "S", OriginalDuration: 1},
		{ID: "E", Kind: KindSummary},
		{ID: "X", OriginalDuration: 1},
	}, nil)
	want := map[string]bool{"A": true, "E": true, "X": true}
	if got := g.LeafSet(); !reflect.DeepEqual(got, want) {
		t.Errorf("LeafSet = %v, want %v", got, want)
	}
	for id := range want {
		if !g.IsLeaf(id) {
			t.Errorf("IsLeaf(%s) = false", id)
		}
	}
}

func TestParseTypes(t *testing.T) {
	ct, err := ParseConstraintType("Start-No-Earlier-Than")
	if err != nil || ct != StartNoEarlierThan {
		t.Errorf("ParseConstraintType = %q, %v", ct, err)
	}
	if ct, _ := ParseConstraintType(""); ct != ASAP {
		t.Errorf("empty constraint = %q, want asap", ct)
	}
	if _, err := ParseConstraintType("sometime"); !errors.Is(err, ErrInvalidConstraint) {
		t.Errorf("err = %v, want ErrInvalidConstraint", err)
	}
	dt, err := ParseDependencyType("ss")
	if err != nil || dt != StartToStart {
		t.Errorf("ParseDependencyType = %q, %v", dt, err)
	}
	if _, err := ParseDependencyType("XY"); err == nil {
		t.Error("expected error for unknown dependency type")
	}
}

func TestErrorMessages(t *testing.T) {
	ce := &CycleError{Path: []string{"A", "B", "A"}}
	if got, want := ce.Error(), "graph: cycle detected: A -> B -> A"; got != want {
		t.Errorf("CycleError = %q, want %q", got, want)
	}
	ee := editErr(ErrTaskNotFound, "T1", "")
	if got, want := ee.Error(), "graph: task not found: T1"; got != want {
		t.Errorf("EditError = %q, want %q", got, want)
	}
}
