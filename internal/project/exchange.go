package project

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/zulandar/timetable/internal/exchange"
	"github.com/zulandar/timetable/internal/graph"
	"github.com/zulandar/timetable/internal/store"
)

// ImportOpts controls Import.
type ImportOpts struct {
	Format    string // yaml or json
	ProjectID string // generated when empty
	// Replace overwrites an existing project's tasks and dependencies.
	// Task ids derive from activity codes, so baselines keep matching.
	Replace bool
}

// Import reads a schedule document and stores it as a project. Calendars
// the document references without defining are taken from the catalogue,
// so importing never resets a shared calendar to the built-in default. A
// document that redefines a calendar other solved projects use is rejected
// with ErrCalendarLocked.
func (s *Service) Import(r io.Reader, opts ImportOpts) (*graph.Graph, error) {
	adapter, err := exchange.Lookup(opts.Format)
	if err != nil {
		return nil, err
	}
	sched, err := adapter.Import(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", exchange.ErrInvalidDocument, err)
	}
	if opts.ProjectID == "" {
		opts.ProjectID = uuid.NewString()
	}
	if err := s.fillCalendars(sched); err != nil {
		return nil, err
	}
	g, err := exchange.Build(sched, opts.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", exchange.ErrInvalidDocument, err)
	}

	unlock := s.lock(opts.ProjectID)
	defer unlock()

	exists, err := store.ProjectExists(s.DB, opts.ProjectID)
	if err != nil {
		return nil, err
	}
	if exists && !opts.Replace {
		return nil, fmt.Errorf("project: %s: %w", opts.ProjectID, ErrProjectExists)
	}
	if err := s.checkCalendarLocks(g.Calendars(), opts.ProjectID); err != nil {
		return nil, err
	}
	detail := fmt.Sprintf("%s, %d tasks", adapter.Name(), g.Len())
	if err := s.save(g, "", store.ActionImported, detail); err != nil {
		return nil, err
	}
	return g, nil
}

// fillCalendars adds catalogue calendars the document names but does not
// define. A document without calendars uses the service default.
func (s *Service) fillCalendars(sched *exchange.Schedule) error {
	defined := make(map[string]bool)
	for _, doc := range sched.Calendars {
		defined[doc.ID] = true
	}
	if sched.Project.Calendar == "" && len(sched.Calendars) == 0 {
		sched.Project.Calendar = s.DefaultCalendar
	}
	wanted := []string{sched.Project.Calendar}
	for _, a := range sched.Activities {
		wanted = append(wanted, a.Calendar)
	}
	for _, id := range wanted {
		if id == "" || defined[id] {
			continue
		}
		cal, err := s.Calendars.Get(s.DB, id)
		if err != nil {
			return err
		}
		sched.Calendars = append(sched.Calendars, exchange.CalendarDocFor(cal))
		defined[id] = true
	}
	return nil
}

// Export writes the project's current graph in format.
func (s *Service) Export(w io.Writer, projectID, format string) error {
	adapter, err := exchange.Lookup(format)
	if err != nil {
		return err
	}
	g, err := s.Graph(projectID)
	if err != nil {
		return err
	}
	return adapter.Export(w, g)
}
