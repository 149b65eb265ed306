// Package project orchestrates edits, solves and reports over stored
// schedules. Every operation loads the project's graph, applies one engine
// call and writes the result back in a single transaction; operations on
// the same project are serialized.
package project

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/cpm"
	"github.com/zulandar/timetable/internal/db"
	"github.com/zulandar/timetable/internal/graph"
	"github.com/zulandar/timetable/internal/models"
	"github.com/zulandar/timetable/internal/notify"
	"github.com/zulandar/timetable/internal/store"
	"gorm.io/gorm"
)

// ErrProjectExists is returned when creating or importing over an existing
// project id without asking to replace it.
var ErrProjectExists = errors.New("project already exists")

// ErrInvalidProject is returned for project settings that cannot be stored.
var ErrInvalidProject = errors.New("invalid project")

// ErrProjectNotFound aliases the storage sentinel so callers need only
// this package.
var ErrProjectNotFound = store.ErrProjectNotFound

// Service is the schedule service.
type Service struct {
	DB        *gorm.DB
	Calendars *store.CalendarCache
	Notifier  *notify.Notifier
	// DefaultCalendar is used for projects created without a calendar.
	DefaultCalendar string
	// Now stamps progress, baselines and the change log. Defaults to time.Now.
	Now func() time.Time

	mu         sync.Mutex
	locks      map[string]*sync.Mutex
	lastSolved map[string]*graph.Graph
}

// New returns a Service over gdb. A nil cache gets a fresh one.
func New(gdb *gorm.DB, cache *store.CalendarCache) *Service {
	if cache == nil {
		cache = store.NewCalendarCache()
	}
	return &Service{
		DB:              gdb,
		Calendars:       cache,
		DefaultCalendar: db.DefaultCalendarID,
		Now:             time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// lock serializes operations on one project.
func (s *Service) lock(projectID string) func() {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	m, ok := s.locks[projectID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[projectID] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (s *Service) rememberSolved(projectID string, g *graph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSolved == nil {
		s.lastSolved = make(map[string]*graph.Graph)
	}
	if g == nil {
		delete(s.lastSolved, projectID)
		return
	}
	s.lastSolved[projectID] = g
}

func (s *Service) previousSolve(projectID string) *graph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSolved[projectID]
}

// CreateOpts holds parameters for creating a project.
type CreateOpts struct {
	ID           string // generated when empty
	Name         string
	Start        time.Time
	MustFinishBy *time.Time
	CalendarID   string // defaults to the service default calendar
}

// Create stores a new, empty project.
func (s *Service) Create(opts CreateOpts) (*graph.Graph, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("project: %w: name is required", ErrInvalidProject)
	}
	if opts.Start.IsZero() {
		return nil, fmt.Errorf("project: %w: start date is required", ErrInvalidProject)
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.CalendarID == "" {
		opts.CalendarID = s.DefaultCalendar
	}
	if opts.MustFinishBy != nil && opts.MustFinishBy.Before(calendar.Day(opts.Start)) {
		return nil, fmt.Errorf("project: %w: must finish by %s is before the start %s",
			ErrInvalidProject, calendar.FormatDay(*opts.MustFinishBy), calendar.FormatDay(opts.Start))
	}

	unlock := s.lock(opts.ID)
	defer unlock()

	exists, err := store.ProjectExists(s.DB, opts.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("project: %s: %w", opts.ID, ErrProjectExists)
	}
	cal, err := s.Calendars.Get(s.DB, opts.CalendarID)
	if err != nil {
		return nil, err
	}
	g, err := graph.New(graph.Project{
		ID:                opts.ID,
		Name:              opts.Name,
		PlannedStart:      opts.Start,
		MustFinishBy:      opts.MustFinishBy,
		DefaultCalendarID: cal.ID,
	}, cal)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	if err := s.save(g, "", store.ActionProjectCreated, opts.Name); err != nil {
		return nil, err
	}
	return g, nil
}

// Get returns the stored project row.
func (s *Service) Get(projectID string) (*models.Project, error) {
	return store.GetProject(s.DB, projectID)
}

// Graph loads the project's current graph.
func (s *Service) Graph(projectID string) (*graph.Graph, error) {
	return store.LoadGraph(s.DB, s.Calendars, projectID)
}

// List returns stored projects; archived ones only when all is set.
func (s *Service) List(all bool) ([]models.Project, error) {
	return store.ListProjects(s.DB, !all)
}

// Delete removes a project and everything recorded for it.
func (s *Service) Delete(projectID string) error {
	unlock := s.lock(projectID)
	defer unlock()
	if err := store.DeleteProject(s.DB, projectID); err != nil {
		return err
	}
	s.rememberSolved(projectID, nil)
	return nil
}

// SetActive archives or reactivates a project. Archived projects are
// skipped by the recompute sweep.
func (s *Service) SetActive(projectID string, active bool) error {
	return store.SetActive(s.DB, projectID, active)
}

// ProjectPatch changes project settings. Nil fields are left alone.
type ProjectPatch struct {
	Name              *string
	Start             *time.Time
	MustFinishBy      *time.Time
	ClearMustFinishBy bool
	CalendarID        *string
}

// UpdateProject applies patch to the project settings.
func (s *Service) UpdateProject(projectID string, patch ProjectPatch) (*graph.Graph, error) {
	var newCal *calendar.Calendar
	if patch.CalendarID != nil {
		cal, err := s.Calendars.Get(s.DB, *patch.CalendarID)
		if err != nil {
			return nil, err
		}
		newCal = &cal
	}
	return s.edit(projectID, "", store.ActionProjectUpdated, "settings", func(g *graph.Graph) (*graph.Graph, error) {
		return g.Batch(func(tx *graph.Tx) error {
			p := tx.Graph().Project()
			if patch.Name != nil {
				p.Name = *patch.Name
			}
			if patch.Start != nil {
				p.PlannedStart = *patch.Start
			}
			if patch.ClearMustFinishBy {
				p.MustFinishBy = nil
			}
			if patch.MustFinishBy != nil {
				p.MustFinishBy = patch.MustFinishBy
			}
			if newCal != nil {
				if _, ok := tx.Graph().Calendar(newCal.ID); !ok {
					if err := tx.SetCalendar(*newCal); err != nil {
						return err
					}
				}
				p.DefaultCalendarID = newCal.ID
			}
			return tx.SetProject(p)
		})
	})
}

// edit runs fn against the project's graph and saves the result together
// with a change log row.
func (s *Service) edit(projectID, taskID, action, detail string, fn func(*graph.Graph) (*graph.Graph, error)) (*graph.Graph, error) {
	unlock := s.lock(projectID)
	defer unlock()

	g, err := store.LoadGraph(s.DB, s.Calendars, projectID)
	if err != nil {
		return nil, err
	}
	next, err := fn(g)
	if err != nil {
		return nil, err
	}
	if err := s.save(next, taskID, action, detail); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Service) save(g *graph.Graph, taskID, action, detail string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := store.SaveGraph(tx, s.Calendars, g); err != nil {
			return err
		}
		return store.RecordChange(tx, g.Project().ID, taskID, action, detail)
	})
}

// Changes returns the newest change log rows of a project.
func (s *Service) Changes(projectID string, limit int) ([]models.TaskChange, error) {
	if _, err := store.GetProject(s.DB, projectID); err != nil {
		return nil, err
	}
	return store.ListChanges(s.DB, projectID, limit)
}

// RecalcResult is the outcome of a recalculation.
type RecalcResult struct {
	Graph  *graph.Graph
	Result *cpm.Result
	// PreviousFinish is the finish of the solve before this one, if any.
	PreviousFinish *time.Time
	// Slip is set when the schedule got worse than the previous solve.
	Slip *notify.Slip
}

// Recalculate solves the project and stores the result. When the schedule
// got worse than the previous solve, the slip is sent to the notifier once
// the project lock is released; notification failures are logged and do
// not fail the recalculation.
func (s *Service) Recalculate(ctx context.Context, projectID string) (*RecalcResult, error) {
	out, err := s.solveAndStore(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if out.Slip != nil {
		if err := s.Notifier.NotifySlip(ctx, *out.Slip); err != nil {
			log.Printf("project: %s: slip notification: %v", projectID, err)
		}
	}
	return out, nil
}

func (s *Service) solveAndStore(ctx context.Context, projectID string) (*RecalcResult, error) {
	unlock := s.lock(projectID)
	defer unlock()

	row, err := store.GetProject(s.DB, projectID)
	if err != nil {
		return nil, err
	}
	g, err := store.LoadGraph(s.DB, s.Calendars, projectID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	solved, res, err := cpm.Solve(g)
	if err != nil {
		return nil, fmt.Errorf("project: recalculate %s: %w", projectID, err)
	}

	now := s.now()
	detail := fmt.Sprintf("finish %s, %d critical, %d violations",
		calendar.FormatDay(res.ProjectFinish), len(res.CriticalPath), len(res.Violations))
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := store.SaveGraph(tx, s.Calendars, solved); err != nil {
			return err
		}
		if err := store.MarkSolved(tx, projectID, res.ProjectFinish, now); err != nil {
			return err
		}
		return store.RecordChange(tx, projectID, "", store.ActionRecalculated, detail)
	})
	if err != nil {
		return nil, err
	}

	out := &RecalcResult{Graph: solved, Result: res, PreviousFinish: row.ProjectFinish}

	before := s.previousSolve(projectID)
	if before == nil && g.Solved() {
		before = g
	}
	s.rememberSolved(projectID, solved)

	var prev time.Time
	if row.ProjectFinish != nil {
		prev = *row.ProjectFinish
	}
	if slip, worse := notify.DetectSlip(before, solved, prev, res.ProjectFinish); worse {
		out.Slip = &slip
	}
	return out, nil
}
