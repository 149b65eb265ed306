package recompute

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/timetable/internal/project"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ProjectLister returns the ids of projects a sweep should solve.
type ProjectLister func() ([]string, error)

// Sweeper requests a solve of every listed project on a cron schedule.
type Sweeper struct {
	cron  *cron.Cron
	entry cron.EntryID
	lane  *Lane
	list  ProjectLister
}

// NewSweeper schedules sweeps by the 5-field cron expression expr.
func NewSweeper(expr string, lane *Lane, list ProjectLister) (*Sweeper, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("recompute: sweep schedule %q: %w", expr, err)
	}
	s := &Sweeper{
		cron: cron.New(cron.WithParser(cronParser)),
		lane: lane,
		list: list,
	}
	s.entry = s.cron.Schedule(sched, cron.FuncJob(func() { s.Sweep() }))
	return s, nil
}

// Sweep requests a solve of every listed project and returns how many
// requests it made.
func (s *Sweeper) Sweep() int {
	ids, err := s.list()
	if err != nil {
		log.Printf("recompute: sweep: list projects: %v", err)
		return 0
	}
	for _, id := range ids {
		s.lane.Request(id)
	}
	return len(ids)
}

// Start runs the schedule in the background.
func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running sweep to return.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// NextRun returns when the next sweep fires; zero before Start.
func (s *Sweeper) NextRun() time.Time {
	return s.cron.Entry(s.entry).Next
}

// NextSweep returns the first time after from that expr fires.
func NextSweep(expr string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("recompute: sweep schedule %q: %w", expr, err)
	}
	return sched.Next(from), nil
}

// ServiceSolver adapts the schedule service to a SolveFunc.
func ServiceSolver(svc *project.Service) SolveFunc {
	return func(ctx context.Context, projectID string) (Outcome, error) {
		res, err := svc.Recalculate(ctx, projectID)
		if err != nil {
			return Outcome{}, err
		}
		return OutcomeOf(res), nil
	}
}

// OutcomeOf summarizes a recalculation.
func OutcomeOf(res *project.RecalcResult) Outcome {
	out := Outcome{
		ProjectID:  res.Graph.Project().ID,
		Finish:     res.Result.ProjectFinish,
		Critical:   len(res.Result.CriticalPath),
		Violations: len(res.Result.Violations),
		At:         time.Now().UTC(),
	}
	if res.Slip != nil {
		out.SlipDays = res.Slip.SlipDays
	}
	return out
}

// ActiveProjects lists the ids of the service's active projects.
func ActiveProjects(svc *project.Service) ProjectLister {
	return func() ([]string, error) {
		rows, err := svc.List(false)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		return ids, nil
	}
}
