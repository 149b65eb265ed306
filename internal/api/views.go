package api

import (
	"time"

	"github.com/zulandar/timetable/internal/baseline"
	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/cpm"
	"github.com/zulandar/timetable/internal/graph"
	"github.com/zulandar/timetable/internal/models"
	"github.com/zulandar/timetable/internal/notify"
	"github.com/zulandar/timetable/internal/project"
)

// Dates are rendered as YYYY-MM-DD; an absent date is omitted.

type projectSummary struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Start        string     `json:"start"`
	MustFinishBy string     `json:"must_finish_by,omitempty"`
	Calendar     string     `json:"calendar"`
	Active       bool       `json:"active"`
	Solved       bool       `json:"solved"`
	Finish       string     `json:"finish,omitempty"`
	SolvedAt     *time.Time `json:"solved_at,omitempty"`
}

func summaryOf(p models.Project) projectSummary {
	return projectSummary{
		ID:           p.ID,
		Name:         p.Name,
		Start:        calendar.FormatDay(p.PlannedStart),
		MustFinishBy: day(p.MustFinishBy),
		Calendar:     p.DefaultCalendarID,
		Active:       p.Active,
		Solved:       p.Solved,
		Finish:       day(p.ProjectFinish),
		SolvedAt:     p.SolvedAt,
	}
}

type projectView struct {
	projectSummary
	Tasks        []taskView `json:"tasks"`
	Dependencies []depView  `json:"dependencies"`
}

func projectViewOf(row *models.Project, g *graph.Graph) projectView {
	v := projectView{projectSummary: summaryOf(*row)}
	v.Tasks = make([]taskView, 0, g.Len())
	for _, t := range g.Tasks() {
		v.Tasks = append(v.Tasks, taskViewOf(t))
	}
	deps := g.Dependencies()
	v.Dependencies = make([]depView, 0, len(deps))
	for _, d := range deps {
		v.Dependencies = append(v.Dependencies, depViewOf(d))
	}
	return v
}

type taskView struct {
	ID                string          `json:"id"`
	Code              string          `json:"code,omitempty"`
	Name              string          `json:"name"`
	ParentID          string          `json:"parent_id,omitempty"`
	Kind              string          `json:"kind"`
	CalendarID        string          `json:"calendar_id,omitempty"`
	OriginalDuration  int             `json:"original_duration"`
	RemainingDuration *int            `json:"remaining_duration,omitempty"`
	PercentComplete   float64         `json:"percent_complete"`
	PlannedStart      string          `json:"planned_start,omitempty"`
	PlannedFinish     string          `json:"planned_finish,omitempty"`
	ActualStart       string          `json:"actual_start,omitempty"`
	ActualFinish      string          `json:"actual_finish,omitempty"`
	Constraint        string          `json:"constraint"`
	ConstraintDate    string          `json:"constraint_date,omitempty"`
	BudgetedCost      float64         `json:"budgeted_cost"`
	ActualCost        float64         `json:"actual_cost"`
	SortOrder         int             `json:"sort_order"`
	EarlyStart        string          `json:"early_start,omitempty"`
	EarlyFinish       string          `json:"early_finish,omitempty"`
	LateStart         string          `json:"late_start,omitempty"`
	LateFinish        string          `json:"late_finish,omitempty"`
	TotalFloat        *int            `json:"total_float,omitempty"`
	FreeFloat         *int            `json:"free_float,omitempty"`
	IsCritical        bool            `json:"is_critical"`
	Violations        []violationView `json:"violations,omitempty"`
}

func taskViewOf(t graph.Task) taskView {
	return taskView{
		ID:                t.ID,
		Code:              t.Code,
		Name:              t.Name,
		ParentID:          t.ParentID,
		Kind:              string(t.Kind),
		CalendarID:        t.CalendarID,
		OriginalDuration:  t.OriginalDuration,
		RemainingDuration: t.RemainingDuration,
		PercentComplete:   t.PercentComplete,
		PlannedStart:      day(t.PlannedStart),
		PlannedFinish:     day(t.PlannedFinish),
		ActualStart:       day(t.ActualStart),
		ActualFinish:      day(t.ActualFinish),
		Constraint:        string(t.Constraint),
		ConstraintDate:    day(t.ConstraintDate),
		BudgetedCost:      t.BudgetedCost,
		ActualCost:        t.ActualCost,
		SortOrder:         t.SortOrder,
		EarlyStart:        day(t.EarlyStart),
		EarlyFinish:       day(t.EarlyFinish),
		LateStart:         day(t.LateStart),
		LateFinish:        day(t.LateFinish),
		TotalFloat:        t.TotalFloat,
		FreeFloat:         t.FreeFloat,
		IsCritical:        t.IsCritical,
		Violations:        violationViews(t.Violations),
	}
}

type depView struct {
	PredecessorID string `json:"predecessor_id"`
	SuccessorID   string `json:"successor_id"`
	Type          string `json:"type"`
	Lag           int    `json:"lag"`
}

func depViewOf(d graph.Dependency) depView {
	return depView{PredecessorID: d.PredecessorID, SuccessorID: d.SuccessorID, Type: string(d.Type), Lag: d.Lag}
}

type violationView struct {
	TaskID string `json:"task_id"`
	Detail string `json:"detail"`
}

func violationViews(vs []graph.ConstraintViolation) []violationView {
	if len(vs) == 0 {
		return nil
	}
	out := make([]violationView, 0, len(vs))
	for _, v := range vs {
		out = append(out, violationView{TaskID: v.TaskID, Detail: v.Detail})
	}
	return out
}

type slipView struct {
	SlipDays      int      `json:"slip_days"`
	NewViolations []string `json:"new_violations,omitempty"`
	NewlyCritical []string `json:"newly_critical,omitempty"`
}

type recalcView struct {
	ProjectID      string          `json:"project_id"`
	Start          string          `json:"start"`
	Finish         string          `json:"finish"`
	PreviousFinish string          `json:"previous_finish,omitempty"`
	CriticalPath   []string        `json:"critical_path"`
	Violations     []violationView `json:"violations,omitempty"`
	Slip           *slipView       `json:"slip,omitempty"`
	Tasks          []taskView      `json:"tasks"`
}

func recalcViewOf(res *project.RecalcResult) recalcView {
	r := res.Result
	v := recalcView{
		ProjectID:      res.Graph.Project().ID,
		Start:          calendar.FormatDay(r.ProjectStart),
		Finish:         calendar.FormatDay(r.ProjectFinish),
		PreviousFinish: day(res.PreviousFinish),
		CriticalPath:   criticalPath(r),
		Violations:     violationViews(r.Violations),
		Slip:           slipViewOf(res.Slip),
		Tasks:          make([]taskView, 0, res.Graph.Len()),
	}
	for _, t := range res.Graph.Tasks() {
		v.Tasks = append(v.Tasks, taskViewOf(t))
	}
	return v
}

func criticalPath(r *cpm.Result) []string {
	if r.CriticalPath == nil {
		return []string{}
	}
	return r.CriticalPath
}

func slipViewOf(s *notify.Slip) *slipView {
	if s == nil {
		return nil
	}
	v := &slipView{SlipDays: s.SlipDays, NewlyCritical: s.NewlyCritical}
	for _, nv := range s.NewViolations {
		v.NewViolations = append(v.NewViolations, nv.Error())
	}
	return v
}

type baselineView struct {
	Number    int                `json:"number"`
	Name      string             `json:"name"`
	CreatedAt time.Time          `json:"created_at"`
	DeletedAt *time.Time         `json:"deleted_at,omitempty"`
	Tasks     []baselineTaskView `json:"tasks,omitempty"`
}

type baselineTaskView struct {
	TaskID          string  `json:"task_id"`
	Name            string  `json:"name"`
	PlannedStart    string  `json:"planned_start,omitempty"`
	PlannedFinish   string  `json:"planned_finish,omitempty"`
	PlannedDuration int     `json:"planned_duration"`
	BudgetedCost    float64 `json:"budgeted_cost"`
	PercentComplete float64 `json:"percent_complete"`
}

func baselineViewOf(b baseline.Baseline, withTasks bool) baselineView {
	v := baselineView{Number: b.Number, Name: b.Name, CreatedAt: b.CreatedAt, DeletedAt: b.DeletedAt}
	if !withTasks {
		return v
	}
	for _, t := range b.Tasks {
		v.Tasks = append(v.Tasks, baselineTaskView{
			TaskID:          t.TaskID,
			Name:            t.Name,
			PlannedStart:    day(t.PlannedStart),
			PlannedFinish:   day(t.PlannedFinish),
			PlannedDuration: t.PlannedDuration,
			BudgetedCost:    t.BudgetedCost,
			PercentComplete: t.PercentComplete,
		})
	}
	return v
}

type varianceView struct {
	TaskID         string `json:"task_id"`
	Name           string `json:"name"`
	BaselineStart  string `json:"baseline_start,omitempty"`
	BaselineFinish string `json:"baseline_finish,omitempty"`
	CurrentStart   string `json:"current_start,omitempty"`
	CurrentFinish  string `json:"current_finish,omitempty"`
	StartVariance  int    `json:"start_variance"`
	FinishVariance int    `json:"finish_variance"`
	Status         string `json:"status"`
}

func varianceViews(vs []baseline.TaskVariance) []varianceView {
	out := make([]varianceView, 0, len(vs))
	for _, v := range vs {
		out = append(out, varianceView{
			TaskID:         v.TaskID,
			Name:           v.Name,
			BaselineStart:  day(v.BaselineStart),
			BaselineFinish: day(v.BaselineFinish),
			CurrentStart:   day(v.CurrentStart),
			CurrentFinish:  day(v.CurrentFinish),
			StartVariance:  v.StartVariance,
			FinishVariance: v.FinishVariance,
			Status:         string(v.Status),
		})
	}
	return out
}

type metricsView struct {
	Baseline int     `json:"baseline"`
	AsOf     string  `json:"as_of"`
	BAC      float64 `json:"bac"`
	BCWS     float64 `json:"bcws"`
	BCWP     float64 `json:"bcwp"`
	ACWP     float64 `json:"acwp"`
	SPI      float64 `json:"spi"`
	CPI      float64 `json:"cpi"`
	SV       float64 `json:"sv"`
	CV       float64 `json:"cv"`
	EAC      float64 `json:"eac"`
	VAC      float64 `json:"vac"`
}

func metricsViewOf(b baseline.Baseline, m baseline.Metrics) metricsView {
	return metricsView{
		Baseline: b.Number,
		AsOf:     calendar.FormatDay(m.AsOf),
		BAC:      m.BAC,
		BCWS:     m.BCWS,
		BCWP:     m.BCWP,
		ACWP:     m.ACWP,
		SPI:      m.SPI,
		CPI:      m.CPI,
		SV:       m.SV,
		CV:       m.CV,
		EAC:      m.EAC,
		VAC:      m.VAC,
	}
}

type changeView struct {
	ID        uint      `json:"id"`
	TaskID    string    `json:"task_id,omitempty"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func day(t *time.Time) string {
	if t == nil {
		return ""
	}
	return calendar.FormatDay(*t)
}
