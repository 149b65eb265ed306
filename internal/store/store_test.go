package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/zulandar/timetable/internal/baseline"
	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/config"
	"github.com/zulandar/timetable/internal/cpm"
	"github.com/zulandar/timetable/internal/db"
	"github.com/zulandar/timetable/internal/graph"
	"github.com/zulandar/timetable/internal/models"
	"gorm.io/gorm"
)

func day(s string) time.Time { return calendar.MustParseDay(s) }

func dayP(s string) *time.Time {
	d := day(s)
	return &d
}

// testDB opens a migrated SQLite database seeded with the standard calendar.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.Connect(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "tt.db")})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if _, err := db.SeedCalendars(gormDB, nil); err != nil {
		t.Fatalf("SeedCalendars: %v", err)
	}
	return gormDB
}

func siteCalendar() calendar.Calendar {
	cal := calendar.Standard("site")
	cal.Name = "Site"
	cal.Exceptions = []calendar.Exception{{Date: day("2026-03-11")}}
	return cal
}

// sampleGraph builds: summary S holding A (5d) and B (3d, site calendar),
// milestone M after B, with A -> B -> M finish-to-start.
func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(graph.Project{
		ID:                "p1",
		Name:              "Warehouse",
		PlannedStart:      day("2026-03-02"),
		MustFinishBy:      dayP("2026-04-30"),
		DefaultCalendarID: "standard",
	}, calendar.Standard("standard"), siteCalendar())
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	remaining := 2
	g, err = g.Batch(func(tx *graph.Tx) error {
		tasks := []graph.Task{
			{ID: "S", Name: "Build", Kind: graph.KindSummary, SortOrder: 0},
			{ID: "A", Code: "A100", Name: "Foundations", ParentID: "S", OriginalDuration: 5, BudgetedCost: 500, SortOrder: 1},
			{ID: "B", Name: "Framing", ParentID: "S", CalendarID: "site", OriginalDuration: 3, RemainingDuration: &remaining,
				Constraint: graph.StartNoEarlierThan, ConstraintDate: dayP("2026-03-09"), SortOrder: 2},
			{ID: "M", Name: "Handover", Kind: graph.KindMilestone, SortOrder: 3},
		}
		for _, task := range tasks {
			if err := tx.AddTask(task); err != nil {
				return err
			}
		}
		for _, d := range []graph.Dependency{
			{PredecessorID: "A", SuccessorID: "B", Type: graph.FinishToStart},
			{PredecessorID: "B", SuccessorID: "M", Type: graph.FinishToStart, Lag: 1},
		} {
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

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func TestSaveLoadGraph_RoundTrip(t *testing.T) {
	gormDB := testDB(t)
	cache := NewCalendarCache()
	g := sampleGraph(t)

	if err := SaveGraph(gormDB, cache, g); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
	got, err := LoadGraph(gormDB, NewCalendarCache(), "p1")
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}

	if got.Solved() {
		t.Error("unsolved graph came back solved")
	}
	p := got.Project()
	if p.Name != "Warehouse" || !p.PlannedStart.Equal(day("2026-03-02")) || !sameDay(p.MustFinishBy, dayP("2026-04-30")) {
		t.Errorf("project = %+v", p)
	}
	if got.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", got.Len())
	}
	if len(got.Dependencies()) != 2 {
		t.Errorf("dependencies = %+v", got.Dependencies())
	}

	b, _ := got.Task("B")
	if b.ParentID != "S" || b.CalendarID != "site" || b.Constraint != graph.StartNoEarlierThan {
		t.Errorf("B = %+v", b)
	}
	if !sameDay(b.ConstraintDate, dayP("2026-03-09")) || b.RemainingDuration == nil || *b.RemainingDuration != 2 {
		t.Errorf("B constraint/remaining = %v %v", b.ConstraintDate, b.RemainingDuration)
	}
	a, _ := got.Task("A")
	if a.Code != "A100" || a.BudgetedCost != 500 {
		t.Errorf("A = %+v", a)
	}
	m, _ := got.Task("M")
	if m.Kind != graph.KindMilestone {
		t.Errorf("M.Kind = %q", m.Kind)
	}

	site, ok := got.Calendar("site")
	if !ok || len(site.Exceptions) != 1 || !site.Exceptions[0].Date.Equal(day("2026-03-11")) {
		t.Errorf("site calendar = %+v", site)
	}

	order := got.Tasks()
	want := []string{"S", "A", "B", "M"}
	for i, task := range order {
		if task.ID != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, task.ID, want[i])
		}
	}
}

func TestSaveLoadGraph_SolvedRoundTrip(t *testing.T) {
	gormDB := testDB(t)
	cache := NewCalendarCache()
	solved, res, err := cpm.Solve(sampleGraph(t))
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if err := SaveGraph(gormDB, cache, solved); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
	if err := MarkSolved(gormDB, "p1", res.ProjectFinish, time.Now()); err != nil {
		t.Fatalf("MarkSolved: %v", err)
	}

	got, err := LoadGraph(gormDB, cache, "p1")
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if !got.Solved() {
		t.Fatal("solved graph came back unsolved")
	}
	for _, want := range solved.Tasks() {
		task, ok := got.Task(want.ID)
		if !ok {
			t.Fatalf("task %s missing", want.ID)
		}
		if !sameDay(task.EarlyStart, want.EarlyStart) || !sameDay(task.EarlyFinish, want.EarlyFinish) ||
			!sameDay(task.LateStart, want.LateStart) || !sameDay(task.LateFinish, want.LateFinish) {
			t.Errorf("%s dates = %v..%v / %v..%v, want %v..%v / %v..%v", want.ID,
				task.EarlyStart, task.EarlyFinish, task.LateStart, task.LateFinish,
				want.EarlyStart, want.EarlyFinish, want.LateStart, want.LateFinish)
		}
		if *task.TotalFloat != *want.TotalFloat || task.IsCritical != want.IsCritical {
			t.Errorf("%s float/critical = %d/%v, want %d/%v", want.ID,
				*task.TotalFloat, task.IsCritical, *want.TotalFloat, want.IsCritical)
		}
	}

	p, err := GetProject(gormDB, "p1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if !p.Solved || p.ProjectFinish == nil || !p.ProjectFinish.Equal(res.ProjectFinish) || p.SolvedAt == nil {
		t.Errorf("project row = %+v", p)
	}
}

func TestSaveGraph_UnsolvedKeepsLastFinish(t *testing.T) {
	gormDB := testDB(t)
	cache := NewCalendarCache()
	solved, res, err := cpm.Solve(sampleGraph(t))
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if err := SaveGraph(gormDB, cache, solved); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
	if err := MarkSolved(gormDB, "p1", res.ProjectFinish, time.Now()); err != nil {
		t.Fatalf("MarkSolved: %v", err)
	}

	edited, err := solved.UpdateTask(func() graph.Task { a, _ := solved.Task("A"); a.OriginalDuration = 6; return a }())
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if err := SaveGraph(gormDB, cache, edited); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
	p, _ := GetProject(gormDB, "p1")
	if p.Solved {
		t.Error("project still marked solved after edit")
	}
	if p.ProjectFinish == nil || !p.ProjectFinish.Equal(res.ProjectFinish) || p.SolvedAt == nil {
		t.Errorf("last solved finish lost after edit: %+v", p)
	}
	var row models.Task
	gormDB.Where("project_id = ? AND id = ?", "p1", "A").First(&row)
	if row.EarlyStart != nil || row.TotalFloat != nil {
		t.Errorf("task row kept solver output: %+v", row)
	}
}

func TestSaveGraph_PrunesRemovedRows(t *testing.T) {
	gormDB := testDB(t)
	cache := NewCalendarCache()
	g := sampleGraph(t)
	if err := SaveGraph(gormDB, cache, g); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
	g, err := g.RemoveTask("M")
	if err != nil {
		t.Fatalf("RemoveTask: %v", err)
	}
	if err := SaveGraph(gormDB, cache, g); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}

	var tasks, deps int64
	gormDB.Model(&models.Task{}).Where("project_id = ?", "p1").Count(&tasks)
	gormDB.Model(&models.Dependency{}).Where("project_id = ?", "p1").Count(&deps)
	if tasks != 3 || deps != 1 {
		t.Errorf("rows = %d tasks, %d deps; want 3, 1", tasks, deps)
	}
}

func TestSaveGraph_KeepsArchivedFlag(t *testing.T) {
	gormDB := testDB(t)
	cache := NewCalendarCache()
	g := sampleGraph(t)
	if err := SaveGraph(gormDB, cache, g); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
	if err := SetActive(gormDB, "p1", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := SaveGraph(gormDB, cache, g); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
	active, err := ListProjects(gormDB, true)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active projects = %+v, want none", active)
	}
	all, _ := ListProjects(gormDB, false)
	if len(all) != 1 || all[0].Active {
		t.Errorf("all projects = %+v", all)
	}
}

func TestLoadGraph_NotFound(t *testing.T) {
	gormDB := testDB(t)
	_, err := LoadGraph(gormDB, NewCalendarCache(), "nope")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("err = %v, want ErrProjectNotFound", err)
	}
}

func TestLoadGraph_UnknownCalendar(t *testing.T) {
	gormDB := testDB(t)
	gormDB.Create(&models.Project{ID: "p2", Name: "Orphan", PlannedStart: day("2026-03-02"), DefaultCalendarID: "gone", Active: true})
	_, err := LoadGraph(gormDB, NewCalendarCache(), "p2")
	if !errors.Is(err, graph.ErrUnknownCalendar) {
		t.Fatalf("err = %v, want ErrUnknownCalendar", err)
	}
}

func TestCalendarCache(t *testing.T) {
	gormDB := testDB(t)
	cache := NewCalendarCache()
	if _, err := cache.Get(gormDB, "standard"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}

	gormDB.Where("id = ?", "standard").Delete(&models.Calendar{})
	if _, err := cache.Get(gormDB, "standard"); err != nil {
		t.Errorf("cached Get after delete: %v", err)
	}
	cache.Forget("standard")
	if _, err := cache.Get(gormDB, "standard"); !errors.Is(err, graph.ErrUnknownCalendar) {
		t.Errorf("Get after Forget = %v, want ErrUnknownCalendar", err)
	}

	if err := cache.SaveCalendar(gormDB, siteCalendar()); err != nil {
		t.Fatalf("SaveCalendar: %v", err)
	}
	site, err := cache.Get(gormDB, "site")
	if err != nil || site.Name != "Site" {
		t.Errorf("Get(site) = %+v, %v", site, err)
	}
}

func TestBaselines(t *testing.T) {
	gormDB := testDB(t)
	cache := NewCalendarCache()
	g, _, err := cpm.Solve(sampleGraph(t))
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if err := SaveGraph(gormDB, cache, g); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var existing []baseline.Baseline
	for i := 0; i < 2; i++ {
		b := baseline.Capture(g, "", existing, now)
		if err := SaveBaseline(gormDB, b); err != nil {
			t.Fatalf("SaveBaseline: %v", err)
		}
		existing = append(existing, b)
	}
	if err := SaveBaseline(gormDB, existing[0]); err == nil {
		t.Error("saving an existing baseline again should fail")
	}

	if err := DeleteBaseline(gormDB, "p1", 2, now); err != nil {
		t.Fatalf("DeleteBaseline: %v", err)
	}
	if err := DeleteBaseline(gormDB, "p1", 2, now); !errors.Is(err, ErrBaselineNotFound) {
		t.Errorf("second delete = %v, want ErrBaselineNotFound", err)
	}

	active, err := ListBaselines(gormDB, "p1", false)
	if err != nil {
		t.Fatalf("ListBaselines: %v", err)
	}
	if len(active) != 1 || active[0].Number != 1 || active[0].Name != "Baseline 1" {
		t.Fatalf("active = %+v", active)
	}
	all, _ := ListBaselines(gormDB, "p1", true)
	if len(all) != 2 || !all[1].Deleted() {
		t.Fatalf("all = %+v", all)
	}
	if n := baseline.NextNumber("p1", all); n != 3 {
		t.Errorf("NextNumber = %d, want 3", n)
	}

	b1, err := GetBaseline(gormDB, "p1", 1)
	if err != nil {
		t.Fatalf("GetBaseline: %v", err)
	}
	if len(b1.Tasks) != 4 || b1.Tasks[0].TaskID != "S" || b1.Tasks[1].TaskID != "A" {
		t.Fatalf("baseline tasks = %+v", b1.Tasks)
	}
	if !sameDay(b1.Tasks[1].PlannedStart, dayP("2026-03-02")) || b1.Tasks[1].BudgetedCost != 500 {
		t.Errorf("A snapshot = %+v", b1.Tasks[1])
	}
	if _, err := GetBaseline(gormDB, "p1", 2); !errors.Is(err, ErrBaselineNotFound) {
		t.Errorf("GetBaseline(deleted) = %v, want ErrBaselineNotFound", err)
	}
}

func TestChanges(t *testing.T) {
	gormDB := testDB(t)
	for _, action := range []string{ActionTaskAdded, ActionProgressUpdated, ActionRecalculated} {
		if err := RecordChange(gormDB, "p1", "A", action, ""); err != nil {
			t.Fatalf("RecordChange: %v", err)
		}
	}
	got, err := ListChanges(gormDB, "p1", 2)
	if err != nil {
		t.Fatalf("ListChanges: %v", err)
	}
	if len(got) != 2 || got[0].Action != ActionRecalculated || got[1].Action != ActionProgressUpdated {
		t.Errorf("changes = %+v", got)
	}
	all, _ := ListChanges(gormDB, "p1", 0)
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}

func TestDeleteProject(t *testing.T) {
	gormDB := testDB(t)
	cache := NewCalendarCache()
	g := sampleGraph(t)
	if err := SaveGraph(gormDB, cache, g); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
	if err := SaveBaseline(gormDB, baseline.Capture(g, "", nil, time.Now())); err != nil {
		t.Fatalf("SaveBaseline: %v", err)
	}
	RecordChange(gormDB, "p1", "", ActionProjectCreated, "")

	if err := DeleteProject(gormDB, "p1"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	for _, m := range []interface{}{&models.Project{}, &models.Task{}, &models.Dependency{}, &models.Baseline{}, &models.BaselineTask{}, &models.TaskChange{}} {
		var n int64
		gormDB.Model(m).Count(&n)
		if n != 0 {
			t.Errorf("%T rows = %d, want 0", m, n)
		}
	}
	if err := DeleteProject(gormDB, "p1"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("second delete = %v, want ErrProjectNotFound", err)
	}
	if ok, _ := ProjectExists(gormDB, "p1"); ok {
		t.Error("ProjectExists after delete")
	}
}
