package exchange

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/graph"
)

// Namespace seeds task ids derived from activity codes.
var Namespace = uuid.MustParse("6f1c1f0e-5d0b-4c4e-9a57-2f7c3e1b8d42")

// DefaultCalendarID names the calendar Build creates when a document
// carries none.
const DefaultCalendarID = "standard"

// TaskID returns the stable task id for an activity code within a project.
// Importing the same document twice yields the same ids, which keeps
// baseline comparisons meaningful across re-imports.
func TaskID(projectID, code string) string {
	return uuid.NewSHA1(Namespace, []byte(projectID+"/"+code)).String()
}

// Build validates s and maps it into a graph for projectID. Any invalid
// row rejects the whole document.
func Build(s *Schedule, projectID string) (*graph.Graph, error) {
	if s == nil {
		return nil, errors.New("exchange: nil schedule")
	}
	cals, err := buildCalendars(s.Calendars)
	if err != nil {
		return nil, err
	}
	p := graph.Project{ID: projectID, Name: s.Project.Name, DefaultCalendarID: s.Project.Calendar}
	if p.DefaultCalendarID == "" {
		p.DefaultCalendarID = cals[0].ID
	}
	if p.PlannedStart, err = calendar.ParseDay(s.Project.Start); err != nil {
		return nil, fmt.Errorf("exchange: project start: %w", err)
	}
	if p.MustFinishBy, err = parseDate(s.Project.MustFinishBy); err != nil {
		return nil, fmt.Errorf("exchange: project must_finish_by: %w", err)
	}

	g, err := graph.New(p, cals...)
	if err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}

	ordered, err := parentsFirst(s.Activities)
	if err != nil {
		return nil, err
	}
	parents := make(map[string]bool)
	for _, a := range s.Activities {
		if a.Parent != "" {
			parents[a.Parent] = true
		}
	}

	codes := make(map[string]bool, len(s.Activities))
	for _, a := range s.Activities {
		codes[a.ID] = true
	}

	return g.Batch(func(tx *graph.Tx) error {
		for _, i := range ordered {
			t, err := buildTask(projectID, s.Activities[i], parents[s.Activities[i].ID])
			if err != nil {
				return err
			}
			t.SortOrder = i
			if err := tx.AddTask(t); err != nil {
				return fmt.Errorf("exchange: activity %q: %w", s.Activities[i].ID, err)
			}
		}
		for _, a := range s.Activities {
			refs, err := ParsePredecessorsFor(a.Predecessors, codes)
			if err != nil {
				return fmt.Errorf("exchange: activity %q: %w", a.ID, err)
			}
			for _, ref := range refs {
				d := graph.Dependency{
					PredecessorID: TaskID(projectID, ref.Code),
					SuccessorID:   TaskID(projectID, a.ID),
					Type:          ref.Type,
					Lag:           ref.Lag,
				}
				if err := tx.AddDependency(d); err != nil {
					return fmt.Errorf("exchange: activity %q predecessor %q: %w", a.ID, ref.Code, err)
				}
			}
		}
		return nil
	})
}

func buildCalendars(docs []CalendarDoc) ([]calendar.Calendar, error) {
	if len(docs) == 0 {
		return []calendar.Calendar{calendar.Standard(DefaultCalendarID)}, nil
	}
	out := make([]calendar.Calendar, 0, len(docs))
	seen := make(map[string]bool)
	for _, doc := range docs {
		if doc.ID == "" {
			return nil, errors.New("exchange: calendar without id")
		}
		if seen[doc.ID] {
			return nil, fmt.Errorf("exchange: duplicate calendar %q", doc.ID)
		}
		seen[doc.ID] = true
		cal, err := CalendarFromDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, cal)
	}
	return out, nil
}

// CalendarFromDoc converts a calendar document into a validated calendar.
// HoursPerDay defaults to calendar.DefaultHoursPerDay.
func CalendarFromDoc(doc CalendarDoc) (calendar.Calendar, error) {
	if doc.ID == "" {
		return calendar.Calendar{}, errors.New("exchange: calendar without id")
	}
	cal := calendar.Calendar{ID: doc.ID, Name: doc.Name, HoursPerDay: doc.HoursPerDay}
	if cal.HoursPerDay == 0 {
		cal.HoursPerDay = calendar.DefaultHoursPerDay
	}
	for _, name := range doc.Workdays {
		wd, err := calendar.ParseWeekday(name)
		if err != nil {
			return calendar.Calendar{}, fmt.Errorf("exchange: calendar %q: %w", doc.ID, err)
		}
		cal.Workdays = append(cal.Workdays, wd)
	}
	if len(cal.Workdays) == 0 {
		cal.Workdays = calendar.WeekdaysFromMask(doc.WorkDaysMask)
	}
	for _, ex := range doc.Exceptions {
		d, err := calendar.ParseDay(ex.Date)
		if err != nil {
			return calendar.Calendar{}, fmt.Errorf("exchange: calendar %q exception: %w", doc.ID, err)
		}
		cal.Exceptions = append(cal.Exceptions, calendar.Exception{Date: d, Working: ex.Working, Hours: ex.Hours})
	}
	if err := cal.Validate(); err != nil {
		return calendar.Calendar{}, fmt.Errorf("exchange: %w", err)
	}
	return cal, nil
}

// parentsFirst orders activity indexes so every parent precedes its
// children, keeping document order otherwise.
func parentsFirst(acts []Activity) ([]int, error) {
	index := make(map[string]int, len(acts))
	for i, a := range acts {
		if strings.TrimSpace(a.ID) == "" {
			return nil, fmt.Errorf("exchange: activity %d has no id", i+1)
		}
		if _, dup := index[a.ID]; dup {
			return nil, fmt.Errorf("exchange: duplicate activity %q", a.ID)
		}
		index[a.ID] = i
	}
	for _, a := range acts {
		if a.Parent == "" {
			continue
		}
		if _, ok := index[a.Parent]; !ok {
			return nil, fmt.Errorf("exchange: activity %q: unknown parent %q", a.ID, a.Parent)
		}
	}

	placed := make([]bool, len(acts))
	out := make([]int, 0, len(acts))
	for len(out) < len(acts) {
		progress := false
		for i, a := range acts {
			if placed[i] || (a.Parent != "" && !placed[index[a.Parent]]) {
				continue
			}
			placed[i] = true
			out = append(out, i)
			progress = true
		}
		if !progress {
			for i, a := range acts {
				if !placed[i] {
					return nil, &graph.CycleError{Path: hierarchyPath(acts, index, a.ID)}
				}
			}
		}
	}
	return out, nil
}

func hierarchyPath(acts []Activity, index map[string]int, start string) []string {
	path := []string{start}
	seen := map[string]bool{start: true}
	for cur := acts[index[start]].Parent; cur != ""; cur = acts[index[cur]].Parent {
		path = append(path, cur)
		if seen[cur] {
			break
		}
		seen[cur] = true
	}
	return path
}

func buildTask(projectID string, a Activity, isParent bool) (graph.Task, error) {
	t := graph.Task{
		ID:                TaskID(projectID, a.ID),
		Code:              a.ID,
		Name:              a.Name,
		CalendarID:        a.Calendar,
		OriginalDuration:  a.Duration,
		RemainingDuration: a.Remaining,
		PercentComplete:   a.Percent,
		BudgetedCost:      a.BudgetedCost,
		ActualCost:        a.ActualCost,
	}
	if a.Parent != "" {
		t.ParentID = TaskID(projectID, a.Parent)
	}
	switch {
	case a.Kind != "":
		t.Kind = graph.Kind(strings.ToLower(a.Kind))
	case isParent:
		t.Kind = graph.KindSummary
	case a.Duration == 0:
		t.Kind = graph.KindMilestone
	default:
		t.Kind = graph.KindTask
	}

	var err error
	if t.Constraint, err = graph.ParseConstraintType(a.Constraint); err != nil {
		return t, fmt.Errorf("exchange: activity %q: %w", a.ID, err)
	}
	dates := []struct {
		name string
		raw  string
		dst  **time.Time
	}{
		{"planned_start", a.PlannedStart, &t.PlannedStart},
		{"planned_finish", a.PlannedFinish, &t.PlannedFinish},
		{"actual_start", a.ActualStart, &t.ActualStart},
		{"actual_finish", a.ActualFinish, &t.ActualFinish},
		{"constraint_date", a.ConstraintDate, &t.ConstraintDate},
	}
	for _, d := range dates {
		if *d.dst, err = parseDate(d.raw); err != nil {
			return t, fmt.Errorf("exchange: activity %q %s: %w", a.ID, d.name, err)
		}
	}
	return t, nil
}

func parseDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := calendar.ParseDay(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
