package cpm

import (
	"reflect"
	"testing"
	"time"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/graph"
)

// 2026-03-02 is a Monday.
var projectStart = calendar.MustParseDay("2026-03-02")

func day(s string) time.Time { return calendar.MustParseDay(s) }

func dayP(s string) *time.Time {
	d := day(s)
	return &d
}

func buildGraph(t *testing.T, tasks []graph.Task, deps []graph.Dependency) *graph.Graph {
	t.Helper()
	g, err := graph.New(graph.Project{ID: "p1", PlannedStart: projectStart, DefaultCalendarID: "std"},
		calendar.Standard("std"))
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	g, err = g.Batch(func(tx *graph.Tx) error {
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

func solve(t *testing.T, g *graph.Graph) (*graph.Graph, *Result) {
	t.Helper()
	out, res, err := Solve(g)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	return out, res
}

func fs(pred, succ string) graph.Dependency {
	return graph.Dependency{PredecessorID: pred, SuccessorID: succ, Type: graph.FinishToStart}
}

type want struct {
	es, ef, ls, lf string
	tf, ff         int
	critical       bool
}

func check(t *testing.T, g *graph.Graph, id string, w want) {
	t.Helper()
	task, ok := g.Task(id)
	if !ok {
		t.Fatalf("task %s missing", id)
	}
	if !task.IsSolved() {
		t.Fatalf("task %s not solved", id)
	}
	dates := []struct {
		name string
		got  *time.Time
		want string
	}{
		{"EarlyStart", task.EarlyStart, w.es},
		{"EarlyFinish", task.EarlyFinish, w.ef},
		{"LateStart", task.LateStart, w.ls},
		{"LateFinish", task.LateFinish, w.lf},
	}
	for _, d := range dates {
		if d.want == "" {
			continue
		}
		if d.got == nil || !d.got.Equal(day(d.want)) {
			t.Errorf("%s.%s = %v, want %s", id, d.name, d.got, d.want)
		}
	}
	if task.TotalFloat == nil || *task.TotalFloat != w.tf {
		t.Errorf("%s.TotalFloat = %v, want %d", id, deref(task.TotalFloat), w.tf)
	}
	if task.FreeFloat == nil || *task.FreeFloat != w.ff {
		t.Errorf("%s.FreeFloat = %v, want %d", id, deref(task.FreeFloat), w.ff)
	}
	if task.IsCritical != w.critical {
		t.Errorf("%s.IsCritical = %v, want %v", id, task.IsCritical, w.critical)
	}
}

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func TestSolve_FinishToStartChain(t *testing.T) {
	g := buildGraph(t, []graph.Task{
		{ID: "A", OriginalDuration: 5},
		{ID: "B", OriginalDuration: 3},
	}, []graph.Dependency{fs("A", "B")})

	out, res := solve(t, g)
	check(t, out, "A", want{es: "2026-03-02", ef: "2026-03-06", ls: "2026-03-02", lf: "2026-03-06", critical: true})
	check(t, out, "B", want{es: "2026-03-09", ef: "2026-03-11", ls: "2026-03-09", lf: "2026-03-11", critical: true})

	if !res.ProjectFinish.Equal(day("2026-03-11")) {
		t.Errorf("ProjectFinish = %v, want 2026-03-11", res.ProjectFinish)
	}
	if !res.ProjectStart.Equal(projectStart) {
		t.Errorf("ProjectStart = %v", res.ProjectStart)
	}
	if want := []string{"A", "B"}; !reflect.DeepEqual(res.CriticalPath, want) {
		t.Errorf("CriticalPath = %v, want %v", res.CriticalPath, want)
	}
	if len(res.Violations) != 0 {
		t.Errorf("Violations = %v", res.Violations)
	}
}

func TestSolve_StartNoEarlierThan(t *testing.T) {
	g := buildGraph(t, []graph.Task{
		{ID: "A", OriginalDuration: 5},
		{ID: "B", OriginalDuration: 3, Constraint: graph.StartNoEarlierThan, ConstraintDate: dayP("2026-03-23")},
	}, []graph.Dependency{fs("A", "B")})

	out, _ := solve(t, g)
	check(t, out, "B", want{es: "2026-03-23", ef: "2026-03-25", critical: true})
	// The gap between Monday 03-09 and 03-23 is ten working days.
	check(t, out, "A", want{es: "2026-03-02", ef: "2026-03-06", ls: "2026-03-16", lf: "2026-03-20", tf: 10, ff: 10})
}

func TestSolve_ParallelBranches(t *testing.T) {
	g := buildGraph(t, []graph.Task{
		{ID: "A", OriginalDuration: 5},
		{ID: "B", OriginalDuration: 2},
		{ID: "C", OriginalDuration: 2},
	}, []graph.Dependency{fs("A", "C"), fs("B", "C")})

	out, res := solve(t, g)
	check(t, out, "B", want{es: "2026-03-02", ef: "2026-03-03", ls: "2026-03-05", lf: "2026-03-06", tf: 3, ff: 3})
	check(t, out, "C", want{es: "2026-03-09", ef: "2026-03-10", critical: true})
	if want := []string{"A", "C"}; !reflect.DeepEqual(res.CriticalPath, want) {
		t.Errorf("CriticalPath = %v, want %v", res.CriticalPath, want)
	}
}

func TestSolve_DependencyTypes(t *testing.T) {
	tests := []struct {
		name   string
		dep    graph.Dependency
		dur    int
		es, ef string
	}{
		{"FS", graph.Dependency{Type: graph.FinishToStart}, 3, "2026-03-09", "2026-03-11"},
		{"FS lag", graph.Dependency{Type: graph.FinishToStart, Lag: 1}, 3, "2026-03-10", "2026-03-12"},
		{"FS lead", graph.Dependency{Type: graph.FinishToStart, Lag: -2}, 3, "2026-03-05", "2026-03-09"},
		{"SS lag", graph.Dependency{Type: graph.StartToStart, Lag: 2}, 3, "2026-03-04", "2026-03-06"},
		{"FF", graph.Dependency{Type: graph.FinishToFinish}, 2, "2026-03-05", "2026-03-06"},
		{"SF lag", graph.Dependency{Type: graph.StartToFinish, Lag: 4}, 2, "2026-03-04", "2026-03-05"},
		{"SF clamped to project start", graph.Dependency{Type: graph.StartToFinish}, 2, "2026-03-02", "2026-03-03"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dep := tt.dep
			dep.PredecessorID, dep.SuccessorID = "A", "B"
			g := buildGraph(t, []graph.Task{
				{ID: "A", OriginalDuration: 5},
				{ID: "B", OriginalDuration: tt.dur},
			}, []graph.Dependency{dep})
			out, _ := solve(t, g)
			b, _ := out.Task("B")
			if !b.EarlyStart.Equal(day(tt.es)) || !b.EarlyFinish.Equal(day(tt.ef)) {
				t.Errorf("B = %s..%s, want %s..%s", calendar.FormatDay(*b.EarlyStart),
					calendar.FormatDay(*b.EarlyFinish), tt.es, tt.ef)
			}
		})
	}
}

func TestSolve_Milestone(t *testing.T) {
	g := buildGraph(t, []graph.Task{
		{ID: "A", OriginalDuration: 5},
		{ID: "M", Kind: graph.KindMilestone},
	}, []graph.Dependency{fs("A", "M")})
	out, _ := solve(t, g)
	check(t, out, "M", want{es: "2026-03-09", ef: "2026-03-09", ls: "2026-03-09", lf: "2026-03-09", critical: true})
}

func TestSolve_MustStartOn(t *testing.T) {
	tests := []struct {
		name       string
		date       string
		es         string
		violations int
	}{
		{"feasible", "2026-03-16", "2026-03-16", 0},
		{"before predecessors", "2026-03-04", "2026-03-09", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, []graph.Task{
				{ID: "A", OriginalDuration: 5},
				{ID: "B", OriginalDuration: 3, Constraint: graph.MustStartOn, ConstraintDate: dayP(tt.date)},
			}, []graph.Dependency{fs("A", "B")})
			out, res := solve(t, g)
			b, _ := out.Task("B")
			if !b.EarlyStart.Equal(day(tt.es)) {
				t.Errorf("B.EarlyStart = %v, want %s", b.EarlyStart, tt.es)
			}
			if len(res.Violations) != tt.violations || len(b.Violations) != tt.violations {
				t.Errorf("violations = %v (task %v), want %d", res.Violations, b.Violations, tt.violations)
			}
		})
	}
}

func TestSolve_FinishNoLaterThanViolated(t *testing.T) {
	g := buildGraph(t, []graph.Task{
		{ID: "A", OriginalDuration: 5},
		{ID: "B", OriginalDuration: 3, Constraint: graph.FinishNoLaterThan, ConstraintDate: dayP("2026-03-10")},
	}, []graph.Dependency{fs("A", "B")})

	out, res := solve(t, g)
	check(t, out, "B", want{es: "2026-03-09", ef: "2026-03-11", ls: "2026-03-06", lf: "2026-03-10", tf: -1, ff: -1, critical: true})
	check(t, out, "A", want{es: "2026-03-02", ls: "2026-02-27", tf: -1, ff: -1, critical: true})
	if len(res.Violations) != 1 || res.Violations[0].TaskID != "B" {
		t.Fatalf("Violations = %v, want one on B", res.Violations)
	}
}

func TestSolve_StartNoEarlierThanAgainstDownstreamDeadline(t *testing.T) {
	g := buildGraph(t, []graph.Task{
		{ID: "A", OriginalDuration: 5},
		{ID: "B", OriginalDuration: 3, Constraint: graph.StartNoEarlierThan, ConstraintDate: dayP("2026-03-23")},
		{ID: "C", OriginalDuration: 1, Constraint: graph.FinishNoLaterThan, ConstraintDate: dayP("2026-03-20")},
	}, []graph.Dependency{fs("A", "B"), fs("B", "C")})

	out, res := solve(t, g)
	b, _ := out.Task("B")
	if !b.EarlyStart.Equal(day("2026-03-23")) {
		t.Errorf("B.EarlyStart = %v, want the start-no-earlier-than date", b.EarlyStart)
	}
	if *b.TotalFloat >= 0 {
		t.Errorf("B.TotalFloat = %d, want negative", *b.TotalFloat)
	}
	if len(res.Violations) != 1 || res.Violations[0].TaskID != "C" {
		t.Errorf("Violations = %v, want one on C", res.Violations)
	}
}

func TestSolve_MustFinishBy(t *testing.T) {
	g := buildGraph(t, []graph.Task{{ID: "A", OriginalDuration: 5}}, nil)
	p := g.Project()
	p.MustFinishBy = dayP("2026-03-11")
	g, err := g.SetProject(p)
	if err != nil {
		t.Fatalf("SetProject: %v", err)
	}
	out, _ := solve(t, g)
	check(t, out, "A", want{es: "2026-03-02", ls: "2026-03-05", lf: "2026-03-11", tf: 3, ff: 3})
}

func TestSolve_CompletedTaskIsPinned(t *testing.T) {
	g := buildGraph(t, []graph.Task{
		{ID: "A", OriginalDuration: 5, PercentComplete: 100, ActualStart: dayP("2026-03-02"), ActualFinish: dayP("2026-03-05")},
		{ID: "B", OriginalDuration: 3},
	}, []graph.Dependency{fs("A", "B")})

	out, res := solve(t, g)
	check(t, out, "A", want{es: "2026-03-02", ef: "2026-03-05", ls: "2026-03-02", lf: "2026-03-05"})
	check(t, out, "B", want{es: "2026-03-06", ef: "2026-03-10", critical: true})
	if want := []string{"B"}; !reflect.DeepEqual(res.CriticalPath, want) {
		t.Errorf("CriticalPath = %v, want %v", res.CriticalPath, want)
	}
}

func TestSolve_InProgressTaskStartsAtActual(t *testing.T) {
	g := buildGraph(t, []graph.Task{
		{ID: "A", OriginalDuration: 5, PercentComplete: 40, ActualStart: dayP("2026-03-03")},
	}, nil)
	out, _ := solve(t, g)
	check(t, out, "A", want{es: "2026-03-03", ef: "2026-03-09", critical: true})
}

func TestSolve_ALAP(t *testing.T) {
	g := buildGraph(t, []graph.Task{
		{ID: "A", OriginalDuration: 5},
		{ID: "B", OriginalDuration: 2, Constraint: graph.ALAP},
		{ID: "C", OriginalDuration: 2},
	}, []graph.Dependency{fs("A", "C"), fs("B", "C")})

	out, _ := solve(t, g)
	check(t, out, "B", want{es: "2026-03-05", ef: "2026-03-06", ls: "2026-03-05", lf: "2026-03-06", critical: true})
}

func TestSolve_SummaryDependencies(t *testing.T) {
	g := buildGraph(t, []graph.Task{
		{ID: "S", Kind: graph.KindSummary},
		{ID: "A", ParentID: "S", OriginalDuration: 5},
		{ID: "B", ParentID: "S", OriginalDuration: 3},
		{ID: "X", OriginalDuration: 2},
	}, []graph.Dependency{fs("A", "B"), fs("S", "X")})

	out, res := solve(t, g)
	check(t, out, "X", want{es: "2026-03-12", ef: "2026-03-13", critical: true})
	s, _ := out.Task("S")
	if !s.EarlyStart.Equal(day("2026-03-02")) || !s.EarlyFinish.Equal(day("2026-03-11")) {
		t.Errorf("S = %v..%v, want 2026-03-02..2026-03-11", s.EarlyStart, s.EarlyFinish)
	}
	if !s.IsCritical || s.OriginalDuration != 8 {
		t.Errorf("S critical=%v duration=%d", s.IsCritical, s.OriginalDuration)
	}
	if want := []string{"A", "B", "X"}; !reflect.DeepEqual(res.Order, want) {
		t.Errorf("Order = %v, want %v", res.Order, want)
	}
}

// Two five-day tasks in S1 and two two-day tasks in S2, each pair chained
// finish to start, linked summary to summary.
func TestSolve_SummaryToSummaryTypes(t *testing.T) {
	tests := []struct {
		name string
		typ  graph.DependencyType
		c, d string
	}{
		{"SS binds the first task of S1", graph.StartToStart, "2026-03-02", "2026-03-04"},
		{"FF binds the last task of S2", graph.FinishToFinish, "2026-03-02", "2026-03-12"},
		{"FS holds all of S2", graph.FinishToStart, "2026-03-16", "2026-03-18"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, []graph.Task{
				{ID: "S1", Kind: graph.KindSummary},
				{ID: "A", ParentID: "S1", OriginalDuration: 5},
				{ID: "B", ParentID: "S1", OriginalDuration: 5},
				{ID: "S2", Kind: graph.KindSummary},
				{ID: "C", ParentID: "S2", OriginalDuration: 2},
				{ID: "D", ParentID: "S2", OriginalDuration: 2},
			}, []graph.Dependency{
				fs("A", "B"), fs("C", "D"),
				{PredecessorID: "S1", SuccessorID: "S2", Type: tt.typ},
			})
			out, _ := solve(t, g)
			for id, es := range map[string]string{"C": tt.c, "D": tt.d} {
				task, _ := out.Task(id)
				if !task.EarlyStart.Equal(day(es)) {
					t.Errorf("%s starts %s, want %s", id, calendar.FormatDay(*task.EarlyStart), es)
				}
			}
		})
	}
}

func TestSolve_DoesNotMutateInput(t *testing.T) {
	g := buildGraph(t, []graph.Task{{ID: "A", OriginalDuration: 5}, {ID: "B", OriginalDuration: 3}},
		[]graph.Dependency{fs("A", "B")})
	before := g.Tasks()
	if _, _, err := Solve(g); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if g.Solved() {
		t.Error("input graph marked solved")
	}
	if !reflect.DeepEqual(g.Tasks(), before) {
		t.Error("input tasks changed")
	}
}

func TestSolve_Empty(t *testing.T) {
	g := buildGraph(t, nil, nil)
	out, res := solve(t, g)
	if !out.Solved() {
		t.Error("empty graph should solve")
	}
	if !res.ProjectFinish.Equal(projectStart) {
		t.Errorf("ProjectFinish = %v, want project start", res.ProjectFinish)
	}
}

func diamond(t *testing.T, durations map[string]int) *graph.Graph {
	t.Helper()
	ids := []string{"A", "B", "C", "D", "E", "F"}
	tasks := make([]graph.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, graph.Task{ID: id, OriginalDuration: durations[id]})
	}
	return buildGraph(t, tasks, []graph.Dependency{
		fs("A", "B"), fs("A", "C"), fs("B", "D"), fs("C", "D"),
		{PredecessorID: "C", SuccessorID: "E", Type: graph.StartToStart, Lag: 1},
		fs("D", "F"), fs("E", "F"),
	})
}

var diamondDurations = map[string]int{"A": 2, "B": 4, "C": 1, "D": 3, "E": 2, "F": 1}

func TestSolve_Deterministic(t *testing.T) {
	g := diamond(t, diamondDurations)
	first, r1 := solve(t, g)
	second, r2 := solve(t, g)
	if !reflect.DeepEqual(first.Tasks(), second.Tasks()) {
		t.Error("two solves of the same graph differ")
	}
	if !reflect.DeepEqual(r1, r2) {
		t.Errorf("results differ: %+v vs %+v", r1, r2)
	}
	again, _ := solve(t, first)
	if !reflect.DeepEqual(first.Tasks(), again.Tasks()) {
		t.Error("re-solving a solved graph changed it")
	}
}

func TestSolve_MonotonicInDuration(t *testing.T) {
	_, base := solve(t, diamond(t, diamondDurations))
	for id := range diamondDurations {
		longer := make(map[string]int, len(diamondDurations))
		for k, v := range diamondDurations {
			longer[k] = v
		}
		longer[id] += 3
		_, res := solve(t, diamond(t, longer))
		if res.ProjectFinish.Before(base.ProjectFinish) {
			t.Errorf("lengthening %s moved finish from %v to %v", id, base.ProjectFinish, res.ProjectFinish)
		}
	}
}

func TestSolve_CriticalTasksFormPaths(t *testing.T) {
	out, res := solve(t, diamond(t, diamondDurations))
	critical := make(map[string]bool)
	for _, id := range res.CriticalPath {
		critical[id] = true
	}
	if len(critical) == 0 {
		t.Fatal("no critical tasks")
	}
	for id := range critical {
		preds, succs := out.Predecessors(id), out.Successors(id)
		if len(preds) > 0 {
			ok := false
			for _, d := range preds {
				ok = ok || critical[d.PredecessorID]
			}
			if !ok {
				t.Errorf("critical %s has no critical predecessor", id)
			}
		}
		if len(succs) == 0 {
			task, _ := out.Task(id)
			if !task.EarlyFinish.Equal(res.ProjectFinish) {
				t.Errorf("critical terminal %s finishes %v before project finish %v", id, task.EarlyFinish, res.ProjectFinish)
			}
			continue
		}
		ok := false
		for _, d := range succs {
			ok = ok || critical[d.SuccessorID]
		}
		if !ok {
			t.Errorf("critical %s has no critical successor", id)
		}
	}
}
