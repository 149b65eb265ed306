package api

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/graph"
	"github.com/zulandar/timetable/internal/project"
)

type createProjectRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Start        string `json:"start"`
	MustFinishBy string `json:"must_finish_by"`
	Calendar     string `json:"calendar"`
}

func (r createProjectRequest) opts() (project.CreateOpts, error) {
	opts := project.CreateOpts{ID: r.ID, Name: r.Name, CalendarID: r.Calendar}
	if r.Start != "" {
		start, err := parseDay("start", r.Start)
		if err != nil {
			return opts, err
		}
		opts.Start = start
	}
	deadline, err := parseDayPtr("must_finish_by", &r.MustFinishBy)
	if err != nil {
		return opts, err
	}
	opts.MustFinishBy = deadline
	return opts, nil
}

// updateProjectRequest patches project settings. An empty must_finish_by
// clears the deadline; active archives or restores the project.
type updateProjectRequest struct {
	Name         *string `json:"name"`
	Start        *string `json:"start"`
	MustFinishBy *string `json:"must_finish_by"`
	Calendar     *string `json:"calendar"`
	Active       *bool   `json:"active"`
}

func (r updateProjectRequest) patch() (project.ProjectPatch, error) {
	p := project.ProjectPatch{Name: r.Name, CalendarID: r.Calendar}
	if r.Start != nil {
		start, err := parseDay("start", *r.Start)
		if err != nil {
			return p, err
		}
		p.Start = &start
	}
	if r.MustFinishBy != nil {
		if *r.MustFinishBy == "" {
			p.ClearMustFinishBy = true
		} else {
			d, err := parseDay("must_finish_by", *r.MustFinishBy)
			if err != nil {
				return p, err
			}
			p.MustFinishBy = &d
		}
	}
	return p, nil
}

func (r updateProjectRequest) changesSettings() bool {
	return r.Name != nil || r.Start != nil || r.MustFinishBy != nil || r.Calendar != nil
}

// taskRequest carries task inputs for create and update. Absent fields are
// left alone on update.
type taskRequest struct {
	ID                *string  `json:"id"`
	Code              *string  `json:"code"`
	Name              *string  `json:"name"`
	ParentID          *string  `json:"parent_id"`
	Kind              *string  `json:"kind"`
	CalendarID        *string  `json:"calendar_id"`
	OriginalDuration  *int     `json:"original_duration"`
	RemainingDuration *int     `json:"remaining_duration"`
	ClearRemaining    bool     `json:"clear_remaining"`
	PlannedStart      *string  `json:"planned_start"`
	PlannedFinish     *string  `json:"planned_finish"`
	Constraint        *string  `json:"constraint"`
	ConstraintDate    *string  `json:"constraint_date"`
	BudgetedCost      *float64 `json:"budgeted_cost"`
	ActualCost        *float64 `json:"actual_cost"`
	SortOrder         *int     `json:"sort_order"`
}

func (r taskRequest) patch() (project.TaskPatch, error) {
	p := project.TaskPatch{
		Code:              r.Code,
		Name:              r.Name,
		ParentID:          r.ParentID,
		CalendarID:        r.CalendarID,
		OriginalDuration:  r.OriginalDuration,
		RemainingDuration: r.RemainingDuration,
		ClearRemaining:    r.ClearRemaining,
		BudgetedCost:      r.BudgetedCost,
		ActualCost:        r.ActualCost,
		SortOrder:         r.SortOrder,
	}
	if r.Kind != nil {
		k := graph.Kind(*r.Kind)
		p.Kind = &k
	}
	if r.Constraint != nil {
		c, err := graph.ParseConstraintType(*r.Constraint)
		if err != nil {
			return p, err
		}
		p.Constraint = &c
	}
	var err error
	if p.PlannedStart, err = parseDayPtr("planned_start", r.PlannedStart); err != nil {
		return p, err
	}
	if p.PlannedFinish, err = parseDayPtr("planned_finish", r.PlannedFinish); err != nil {
		return p, err
	}
	if p.ConstraintDate, err = parseDayPtr("constraint_date", r.ConstraintDate); err != nil {
		return p, err
	}
	return p, nil
}

// task builds a new task from the request.
func (r taskRequest) task() (graph.Task, error) {
	p, err := r.patch()
	if err != nil {
		return graph.Task{}, err
	}
	t := graph.Task{Kind: graph.KindTask}
	if r.ID != nil {
		t.ID = *r.ID
	}
	return p.Apply(t), nil
}

type dependencyRequest struct {
	PredecessorID string `json:"predecessor_id"`
	SuccessorID   string `json:"successor_id"`
	Type          string `json:"type"`
	Lag           int    `json:"lag"`
}

func (r dependencyRequest) dependency() (graph.Dependency, error) {
	typ, err := graph.ParseDependencyType(r.Type)
	if err != nil {
		return graph.Dependency{}, err
	}
	return graph.Dependency{PredecessorID: r.PredecessorID, SuccessorID: r.SuccessorID, Type: typ, Lag: r.Lag}, nil
}

// progressRequest records progress on one task. Fields are applied in
// order: actual dates, percent complete, remaining duration.
type progressRequest struct {
	PercentComplete   *float64 `json:"percent_complete"`
	ActualStart       *string  `json:"actual_start"`
	ActualFinish      *string  `json:"actual_finish"`
	RemainingDuration *int     `json:"remaining_duration"`
	ClearRemaining    bool     `json:"clear_remaining"`
}

func (r progressRequest) empty() bool {
	return r.PercentComplete == nil && r.ActualStart == nil && r.ActualFinish == nil &&
		r.RemainingDuration == nil && !r.ClearRemaining
}

type baselineRequest struct {
	Name string `json:"name"`
}

// bindJSON decodes the request body into v. An empty body leaves v as is.
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequestf("invalid request body: %v", err)
	}
	return nil
}

func parseDay(field, s string) (time.Time, error) {
	d, err := calendar.ParseDay(s)
	if err != nil {
		return time.Time{}, badRequestf("%s: want YYYY-MM-DD, got %q", field, s)
	}
	return d, nil
}

func parseDayPtr(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := parseDay(field, *s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// queryDay reads an optional YYYY-MM-DD query parameter.
func queryDay(c *gin.Context, name string) (time.Time, error) {
	s := c.Query(name)
	if s == "" {
		return time.Time{}, nil
	}
	return parseDay(name, s)
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	s := c.Query(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, badRequestf("%s: want an integer, got %q", name, s)
	}
	return n, nil
}

func queryBool(c *gin.Context, name string) bool {
	b, _ := strconv.ParseBool(c.Query(name))
	return b
}
