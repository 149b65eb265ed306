package exchange

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/cpm"
	"github.com/zulandar/timetable/internal/graph"
)

const sampleYAML = `
project:
  name: Warehouse fit-out
  start: "2026-03-02"
  calendar: site
calendars:
  - id: site
    name: Site
    work_days_mask: 31
    exceptions:
      - date: "2026-03-06"
        working: false
        name: Inspection day
  - id: sixday
    workdays: [mon, tue, wed, thu, fri, sat]
activities:
  - id: "100"
    name: Structure
  - id: "110"
    name: Demo
    parent: "100"
    duration: 3
    budgeted_cost: 3000
  - id: "120"
    name: Framing
    parent: "100"
    duration: 4
    predecessors: "110"
  - id: "200"
    name: Electrical rough-in
    duration: 2
    calendar: sixday
    predecessors: "120SS+1"
  - id: "900"
    name: Handover
    predecessors: "100, 200FF"
`

func importSample(t *testing.T) *graph.Graph {
	t.Helper()
	s, err := YAML{}.Import(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	g, err := Build(s, "p1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestParsePredecessors(t *testing.T) {
	tests := []struct {
		in   string
		want []PredecessorRef
	}{
		{"", nil},
		{"12", []PredecessorRef{{Code: "12", Type: graph.FinishToStart}}},
		{"12SS", []PredecessorRef{{Code: "12", Type: graph.StartToStart}}},
		{"12ss+3", []PredecessorRef{{Code: "12", Type: graph.StartToStart, Lag: 3}}},
		{"A1010FF-2", []PredecessorRef{{Code: "A1010", Type: graph.FinishToFinish, Lag: -2}}},
		{"7+1", []PredecessorRef{{Code: "7", Type: graph.FinishToStart, Lag: 1}}},
		{"4, 5SF ; 6 FS -1", []PredecessorRef{
			{Code: "4", Type: graph.FinishToStart},
			{Code: "5", Type: graph.StartToFinish},
			{Code: "6", Type: graph.FinishToStart, Lag: -1},
		}},
	}
	for _, tt := range tests {
		got, err := ParsePredecessors(tt.in)
		if err != nil {
			t.Errorf("ParsePredecessors(%q) error: %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParsePredecessors(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParsePredecessors_Invalid(t *testing.T) {
	for _, in := range []string{"12SS+", "a b/c", "+2"} {
		if _, err := ParsePredecessors(in); err == nil {
			t.Errorf("ParsePredecessors(%q) succeeded, want error", in)
		}
	}
}

func TestFormatPredecessors(t *testing.T) {
	refs := []PredecessorRef{
		{Code: "4", Type: graph.FinishToStart},
		{Code: "5", Type: graph.StartToStart, Lag: 2},
		{Code: "6", Type: graph.FinishToStart, Lag: -1},
	}
	got := FormatPredecessors(refs)
	if want := "4, 5SS+2, 6FS-1"; got != want {
		t.Errorf("FormatPredecessors = %q, want %q", got, want)
	}
	back, err := ParsePredecessors(got)
	if err != nil || !reflect.DeepEqual(back, refs) {
		t.Errorf("round trip = %+v, %v", back, err)
	}
}

func TestFormatPredecessors_CodesThatLookLikeSuffixes(t *testing.T) {
	tests := []struct {
		ref  PredecessorRef
		want string
	}{
		{PredecessorRef{Code: "A-1", Type: graph.FinishToStart}, "A-1FS"},
		{PredecessorRef{Code: "CLASS", Type: graph.FinishToStart}, "CLASSFS"},
		{PredecessorRef{Code: "STAFF", Type: graph.FinishToStart}, "STAFFFS"},
		{PredecessorRef{Code: "STAFF", Type: graph.StartToStart, Lag: -2}, "STAFFSS-2"},
		{PredecessorRef{Code: "B-2", Type: graph.FinishToStart, Lag: 3}, "B-2FS+3"},
		{PredecessorRef{Code: "12", Type: graph.FinishToStart}, "12"},
		{PredecessorRef{Code: "FS", Type: graph.FinishToStart}, "FS"},
	}
	for _, tt := range tests {
		got := FormatPredecessors([]PredecessorRef{tt.ref})
		if got != tt.want {
			t.Errorf("FormatPredecessors(%+v) = %q, want %q", tt.ref, got, tt.want)
		}
		back, err := ParsePredecessors(got)
		if err != nil || len(back) != 1 || back[0] != tt.ref {
			t.Errorf("ParsePredecessors(%q) = %+v, %v; want %+v", got, back, err, tt.ref)
		}
	}
}

func TestParsePredecessorsFor_KnownCodes(t *testing.T) {
	known := map[string]bool{"A": true, "A-1": true, "CLA": true, "CLASS": true}
	tests := []struct {
		in   string
		want PredecessorRef
	}{
		{"CLASS", PredecessorRef{Code: "CLASS", Type: graph.FinishToStart}},
		{"CLASSSS+2", PredecessorRef{Code: "CLASS", Type: graph.StartToStart, Lag: 2}},
		{"CLA", PredecessorRef{Code: "CLA", Type: graph.FinishToStart}},
		{"A-1", PredecessorRef{Code: "A-1", Type: graph.FinishToStart}},
		{"A-1+2", PredecessorRef{Code: "A-1", Type: graph.FinishToStart, Lag: 2}},
		{"A-2", PredecessorRef{Code: "A", Type: graph.FinishToStart, Lag: -2}},
		{"ZZSS", PredecessorRef{Code: "ZZ", Type: graph.StartToStart}},
	}
	for _, tt := range tests {
		got, err := ParsePredecessorsFor(tt.in, known)
		if err != nil || len(got) != 1 || got[0] != tt.want {
			t.Errorf("ParsePredecessorsFor(%q) = %+v, %v; want %+v", tt.in, got, err, tt.want)
		}
	}
}

func TestBuild_ReimportKeepsSuffixLikeCodes(t *testing.T) {
	s := &Schedule{
		Project: ProjectDoc{Name: "Codes", Start: "2026-03-02"},
		Activities: []Activity{
			{ID: "A", Name: "a", Duration: 1},
			{ID: "A-1", Name: "a-1", Duration: 1},
			{ID: "CLA", Name: "cla", Duration: 1},
			{ID: "CLASS", Name: "class", Duration: 1},
			{ID: "STA", Name: "sta", Duration: 1},
			{ID: "STAFF", Name: "staff", Duration: 1},
			{ID: "END", Name: "end", Duration: 1, Predecessors: "A-1, CLASS, STAFF"},
		},
	}
	first, err := Build(s, "p1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	preds := func(g *graph.Graph) []string {
		var out []string
		for _, d := range g.Predecessors(TaskID("p1", "END")) {
			out = append(out, d.PredecessorID)
		}
		return out
	}
	want := []string{TaskID("p1", "A-1"), TaskID("p1", "CLASS"), TaskID("p1", "STAFF")}
	if got := preds(first); !sameSet(got, want) {
		t.Fatalf("predecessors = %v, want %v", got, want)
	}

	var buf bytes.Buffer
	if err := (YAML{}).Export(&buf, first); err != nil {
		t.Fatalf("Export: %v", err)
	}
	back, err := YAML{}.Import(&buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	second, err := Build(back, "p1")
	if err != nil {
		t.Fatalf("re-Build: %v", err)
	}
	if !reflect.DeepEqual(first.Dependencies(), second.Dependencies()) {
		t.Errorf("dependencies changed across re-import:\n%+v\n%+v", first.Dependencies(), second.Dependencies())
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int)
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		if seen[s] == 0 {
			return false
		}
		seen[s]--
	}
	return true
}

func TestBuild(t *testing.T) {
	g := importSample(t)

	if g.Len() != 5 {
		t.Fatalf("Len = %d, want 5", g.Len())
	}
	structure, ok := g.Task(TaskID("p1", "100"))
	if !ok || structure.Kind != graph.KindSummary || structure.Code != "100" {
		t.Errorf("100 = %+v, want summary", structure)
	}
	handover, _ := g.Task(TaskID("p1", "900"))
	if handover.Kind != graph.KindMilestone {
		t.Errorf("900 kind = %q, want milestone", handover.Kind)
	}
	demo, _ := g.Task(TaskID("p1", "110"))
	if demo.ParentID != structure.ID || demo.BudgetedCost != 3000 {
		t.Errorf("110 = %+v", demo)
	}

	site, ok := g.Calendar("site")
	if !ok || len(site.Workdays) != 5 || len(site.Exceptions) != 1 {
		t.Errorf("site calendar = %+v", site)
	}
	if g.Project().DefaultCalendarID != "site" {
		t.Errorf("default calendar = %q", g.Project().DefaultCalendarID)
	}

	preds := g.Predecessors(TaskID("p1", "200"))
	if len(preds) != 1 || preds[0].Type != graph.StartToStart || preds[0].Lag != 1 {
		t.Errorf("200 predecessors = %+v", preds)
	}
	if got := len(g.Predecessors(handover.ID)); got != 2 {
		t.Errorf("900 has %d predecessors, want 2", got)
	}
}

func TestBuild_SolvesWithHoliday(t *testing.T) {
	out, res, err := cpm.Solve(importSample(t))
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	demo, _ := out.Task(TaskID("p1", "110"))
	framing, _ := out.Task(TaskID("p1", "120"))
	// Friday 03-06 is a holiday on the site calendar.
	if !demo.EarlyFinish.Equal(calendar.MustParseDay("2026-03-04")) {
		t.Errorf("demo finish = %v", demo.EarlyFinish)
	}
	if !framing.EarlyStart.Equal(calendar.MustParseDay("2026-03-05")) ||
		!framing.EarlyFinish.Equal(calendar.MustParseDay("2026-03-11")) {
		t.Errorf("framing = %v..%v, want 03-05..03-11", framing.EarlyStart, framing.EarlyFinish)
	}
	if len(res.Violations) != 0 {
		t.Errorf("Violations = %v", res.Violations)
	}
}

func TestBuild_StableIDsAcrossReimport(t *testing.T) {
	first := importSample(t)

	var buf bytes.Buffer
	if err := (YAML{}).Export(&buf, first); err != nil {
		t.Fatalf("Export: %v", err)
	}
	s, err := YAML{}.Import(&buf)
	if err != nil {
		t.Fatalf("re-Import: %v\n%s", err, buf.String())
	}
	second, err := Build(s, "p1")
	if err != nil {
		t.Fatalf("re-Build: %v", err)
	}

	ids := func(g *graph.Graph) []string {
		var out []string
		for _, task := range g.Tasks() {
			out = append(out, task.ID)
		}
		return out
	}
	if !reflect.DeepEqual(ids(first), ids(second)) {
		t.Errorf("ids changed across re-import:\n%v\n%v", ids(first), ids(second))
	}
	if !reflect.DeepEqual(first.Dependencies(), second.Dependencies()) {
		t.Errorf("dependencies changed across re-import")
	}
	if TaskID("p1", "110") == TaskID("p2", "110") {
		t.Error("ids should be scoped to the project")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	solved, _, err := cpm.Solve(importSample(t))
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	adapter, err := Lookup("JSON")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	var buf bytes.Buffer
	if err := adapter.Export(&buf, solved); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(buf.String(), `"early_start": "2026-03-02"`) {
		t.Errorf("export missing solved dates:\n%s", buf.String())
	}
	s, err := adapter.Import(&buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	g, err := Build(s, "p1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Solved() {
		t.Error("imported graph should not be solved")
	}
	if g.Len() != solved.Len() {
		t.Errorf("Len = %d, want %d", g.Len(), solved.Len())
	}
}

func TestBuild_Errors(t *testing.T) {
	start := ProjectDoc{Start: "2026-03-02"}
	tests := []struct {
		name string
		doc  Schedule
		want error
	}{
		{"unknown predecessor", Schedule{Project: start, Activities: []Activity{
			{ID: "1", Duration: 1, Predecessors: "9"},
		}}, graph.ErrTaskNotFound},
		{"dependency cycle", Schedule{Project: start, Activities: []Activity{
			{ID: "1", Duration: 1, Predecessors: "2"},
			{ID: "2", Duration: 1, Predecessors: "1"},
		}}, graph.ErrCycleDetected},
		{"parent cycle", Schedule{Project: start, Activities: []Activity{
			{ID: "1", Parent: "2"},
			{ID: "2", Parent: "1"},
		}}, graph.ErrCycleDetected},
		{"bad constraint", Schedule{Project: start, Activities: []Activity{
			{ID: "1", Duration: 1, Constraint: "whenever"},
		}}, graph.ErrInvalidConstraint},
		{"constraint without date", Schedule{Project: start, Activities: []Activity{
			{ID: "1", Duration: 1, Constraint: "mso"},
		}}, graph.ErrInvalidConstraint},
		{"unknown calendar", Schedule{Project: start, Activities: []Activity{
			{ID: "1", Duration: 1, Calendar: "night"},
		}}, graph.ErrUnknownCalendar},
		{"empty calendar", Schedule{Project: start, Calendars: []CalendarDoc{{ID: "none"}}}, calendar.ErrEmptyCalendar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(&tt.doc, "p1")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	plain := []Schedule{
		{Project: ProjectDoc{Start: "March 2nd"}},
		{Project: start, Activities: []Activity{{ID: "1"}, {ID: "1"}}},
		{Project: start, Activities: []Activity{{ID: "1", Parent: "missing"}}},
		{Project: start, Activities: []Activity{{ID: "1", PlannedStart: "soon"}}},
	}
	for i, doc := range plain {
		if _, err := Build(&doc, "p1"); err == nil {
			t.Errorf("doc %d: Build succeeded, want error", i)
		}
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"yaml", "yml", "json"} {
		if _, err := Lookup(name); err != nil {
			t.Errorf("Lookup(%q): %v", name, err)
		}
	}
	if _, err := Lookup("xer"); err == nil {
		t.Error("Lookup(xer) succeeded")
	}
	if got := Formats(); !reflect.DeepEqual(got, []string{"json", "yaml"}) {
		t.Errorf("Formats = %v", got)
	}
}

func TestYAMLImport_UnknownField(t *testing.T) {
	_, err := YAML{}.Import(strings.NewReader("project:\n  start: 2026-03-02\n  colour: red\n"))
	if err == nil {
		t.Error("unknown field accepted")
	}
}
