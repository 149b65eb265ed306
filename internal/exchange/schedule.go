// Package exchange maps interchange documents to and from the task graph.
// A Schedule is the format-neutral document; adapters read and write it as
// YAML or JSON, and Build turns it into a validated graph with task ids
// that stay stable across re-imports.
package exchange

import (
	"time"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/graph"
)

// Schedule is the interchange document.
type Schedule struct {
	Project    ProjectDoc    `yaml:"project" json:"project"`
	Calendars  []CalendarDoc `yaml:"calendars,omitempty" json:"calendars,omitempty"`
	Activities []Activity    `yaml:"activities" json:"activities"`
}

// ProjectDoc carries project settings. Dates are YYYY-MM-DD.
type ProjectDoc struct {
	Name         string `yaml:"name" json:"name"`
	Start        string `yaml:"start" json:"start"`
	MustFinishBy string `yaml:"must_finish_by,omitempty" json:"must_finish_by,omitempty"`
	Calendar     string `yaml:"calendar,omitempty" json:"calendar,omitempty"`
}

// CalendarDoc describes a working calendar. Workdays take weekday names;
// WorkDaysMask (Monday = bit 0) is used when Workdays is empty.
type CalendarDoc struct {
	ID           string         `yaml:"id" json:"id"`
	Name         string         `yaml:"name,omitempty" json:"name,omitempty"`
	Workdays     []string       `yaml:"workdays,omitempty" json:"workdays,omitempty"`
	WorkDaysMask int            `yaml:"work_days_mask,omitempty" json:"work_days_mask,omitempty"`
	HoursPerDay  float64        `yaml:"hours_per_day,omitempty" json:"hours_per_day,omitempty"`
	Exceptions   []ExceptionDoc `yaml:"exceptions,omitempty" json:"exceptions,omitempty"`
}

// ExceptionDoc overrides one date of a calendar.
type ExceptionDoc struct {
	Date    string  `yaml:"date" json:"date"`
	Working bool    `yaml:"working" json:"working"`
	Hours   float64 `yaml:"hours,omitempty" json:"hours,omitempty"`
	Name    string  `yaml:"name,omitempty" json:"name,omitempty"`
}

// Activity is one task row. ID is the external activity code; parents and
// predecessors refer to other activities by that code. The solved fields are
// written on export and ignored on import.
type Activity struct {
	ID             string  `yaml:"id" json:"id"`
	Name           string  `yaml:"name" json:"name"`
	Parent         string  `yaml:"parent,omitempty" json:"parent,omitempty"`
	Kind           string  `yaml:"kind,omitempty" json:"kind,omitempty"`
	Calendar       string  `yaml:"calendar,omitempty" json:"calendar,omitempty"`
	Duration       int     `yaml:"duration" json:"duration"`
	Remaining      *int    `yaml:"remaining,omitempty" json:"remaining,omitempty"`
	Percent        float64 `yaml:"percent,omitempty" json:"percent,omitempty"`
	PlannedStart   string  `yaml:"planned_start,omitempty" json:"planned_start,omitempty"`
	PlannedFinish  string  `yaml:"planned_finish,omitempty" json:"planned_finish,omitempty"`
	ActualStart    string  `yaml:"actual_start,omitempty" json:"actual_start,omitempty"`
	ActualFinish   string  `yaml:"actual_finish,omitempty" json:"actual_finish,omitempty"`
	Constraint     string  `yaml:"constraint,omitempty" json:"constraint,omitempty"`
	ConstraintDate string  `yaml:"constraint_date,omitempty" json:"constraint_date,omitempty"`
	BudgetedCost   float64 `yaml:"budgeted_cost,omitempty" json:"budgeted_cost,omitempty"`
	ActualCost     float64 `yaml:"actual_cost,omitempty" json:"actual_cost,omitempty"`
	Predecessors   string  `yaml:"predecessors,omitempty" json:"predecessors,omitempty"`

	EarlyStart  string `yaml:"early_start,omitempty" json:"early_start,omitempty"`
	EarlyFinish string `yaml:"early_finish,omitempty" json:"early_finish,omitempty"`
	LateStart   string `yaml:"late_start,omitempty" json:"late_start,omitempty"`
	LateFinish  string `yaml:"late_finish,omitempty" json:"late_finish,omitempty"`
	TotalFloat  *int   `yaml:"total_float,omitempty" json:"total_float,omitempty"`
	FreeFloat   *int   `yaml:"free_float,omitempty" json:"free_float,omitempty"`
	Critical    bool   `yaml:"critical,omitempty" json:"critical,omitempty"`
}

// ToSchedule renders g as an interchange document. Activities are written
// in schedule order and identified by their code, falling back to task id.
func ToSchedule(g *graph.Graph) *Schedule {
	p := g.Project()
	s := &Schedule{Project: ProjectDoc{
		Name:         p.Name,
		Start:        calendar.FormatDay(p.PlannedStart),
		MustFinishBy: formatDate(p.MustFinishBy),
		Calendar:     p.DefaultCalendarID,
	}}
	for _, cal := range g.Calendars() {
		s.Calendars = append(s.Calendars, CalendarDocFor(cal))
	}

	tasks := g.Tasks()
	codes := make(map[string]string, len(tasks))
	for _, t := range tasks {
		codes[t.ID] = activityCode(t)
	}
	for _, t := range tasks {
		a := Activity{
			ID:             codes[t.ID],
			Name:           t.Name,
			Parent:         codes[t.ParentID],
			Kind:           string(t.Kind),
			Calendar:       t.CalendarID,
			Duration:       t.OriginalDuration,
			Remaining:      t.RemainingDuration,
			Percent:        t.PercentComplete,
			PlannedStart:   formatDate(t.PlannedStart),
			PlannedFinish:  formatDate(t.PlannedFinish),
			ActualStart:    formatDate(t.ActualStart),
			ActualFinish:   formatDate(t.ActualFinish),
			ConstraintDate: formatDate(t.ConstraintDate),
			BudgetedCost:   t.BudgetedCost,
			ActualCost:     t.ActualCost,
			EarlyStart:     formatDate(t.EarlyStart),
			EarlyFinish:    formatDate(t.EarlyFinish),
			LateStart:      formatDate(t.LateStart),
			LateFinish:     formatDate(t.LateFinish),
			TotalFloat:     t.TotalFloat,
			FreeFloat:      t.FreeFloat,
			Critical:       t.IsCritical,
		}
		if t.Constraint != graph.ASAP {
			a.Constraint = string(t.Constraint)
		}
		var refs []PredecessorRef
		for _, d := range g.Predecessors(t.ID) {
			refs = append(refs, PredecessorRef{Code: codes[d.PredecessorID], Type: d.Type, Lag: d.Lag})
		}
		a.Predecessors = FormatPredecessors(refs)
		s.Activities = append(s.Activities, a)
	}
	return s
}

// CalendarDocFor renders cal as a calendar document.
func CalendarDocFor(cal calendar.Calendar) CalendarDoc {
	doc := CalendarDoc{ID: cal.ID, Name: cal.Name, HoursPerDay: cal.HoursPerDay}
	for _, wd := range cal.Workdays {
		doc.Workdays = append(doc.Workdays, wd.String())
	}
	for _, ex := range cal.SortedExceptions() {
		doc.Exceptions = append(doc.Exceptions, ExceptionDoc{
			Date:    calendar.FormatDay(ex.Date),
			Working: ex.Working,
			Hours:   ex.Hours,
		})
	}
	return doc
}

func activityCode(t graph.Task) string {
	if t.Code != "" {
		return t.Code
	}
	return t.ID
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return calendar.FormatDay(*t)
}
