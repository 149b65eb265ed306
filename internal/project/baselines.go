package project

import (
	"fmt"
	"time"

	"github.com/zulandar/timetable/internal/baseline"
	"github.com/zulandar/timetable/internal/store"
	"gorm.io/gorm"
)

// CaptureBaseline snapshots the project's current schedule under the next
// baseline number.
func (s *Service) CaptureBaseline(projectID, name string) (baseline.Baseline, error) {
	unlock := s.lock(projectID)
	defer unlock()

	g, err := store.LoadGraph(s.DB, s.Calendars, projectID)
	if err != nil {
		return baseline.Baseline{}, err
	}
	existing, err := store.ListBaselines(s.DB, projectID, true)
	if err != nil {
		return baseline.Baseline{}, err
	}
	b := baseline.Capture(g, name, existing, s.now())
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := store.SaveBaseline(tx, b); err != nil {
			return err
		}
		return store.RecordChange(tx, projectID, "", store.ActionBaselineCaptured, fmt.Sprintf("#%d %s", b.Number, b.Name))
	})
	if err != nil {
		return baseline.Baseline{}, err
	}
	return b, nil
}

// ListBaselines returns the project's baselines in number order. Deleted
// baselines are included only when includeDeleted is set.
func (s *Service) ListBaselines(projectID string, includeDeleted bool) ([]baseline.Baseline, error) {
	if _, err := store.GetProject(s.DB, projectID); err != nil {
		return nil, err
	}
	return store.ListBaselines(s.DB, projectID, includeDeleted)
}

// DeleteBaseline hides a baseline from listings and reports. Its number is
// never reused.
func (s *Service) DeleteBaseline(projectID string, number int) error {
	unlock := s.lock(projectID)
	defer unlock()
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := store.DeleteBaseline(tx, projectID, number, s.now()); err != nil {
			return err
		}
		return store.RecordChange(tx, projectID, "", store.ActionBaselineDeleted, fmt.Sprintf("#%d", number))
	})
}

// Baseline returns an active baseline; number 0 selects the latest one.
func (s *Service) Baseline(projectID string, number int) (baseline.Baseline, error) {
	if number != 0 {
		return store.GetBaseline(s.DB, projectID, number)
	}
	all, err := s.ListBaselines(projectID, false)
	if err != nil {
		return baseline.Baseline{}, err
	}
	b, ok := baseline.Latest(all)
	if !ok {
		return baseline.Baseline{}, fmt.Errorf("project: %s has no baselines: %w", projectID, store.ErrBaselineNotFound)
	}
	return b, nil
}

// Variance compares the project's current schedule with a baseline; number
// 0 selects the latest one.
func (s *Service) Variance(projectID string, number int) (baseline.Baseline, []baseline.TaskVariance, error) {
	b, err := s.Baseline(projectID, number)
	if err != nil {
		return baseline.Baseline{}, nil, err
	}
	g, err := s.Graph(projectID)
	if err != nil {
		return baseline.Baseline{}, nil, err
	}
	rows, err := baseline.VarianceReport(b, g)
	if err != nil {
		return baseline.Baseline{}, nil, fmt.Errorf("project: variance %s: %w", projectID, err)
	}
	return b, rows, nil
}

// EarnedValue computes earned value metrics against a baseline as of asOf;
// number 0 selects the latest baseline and a zero asOf uses the service clock.
func (s *Service) EarnedValue(projectID string, number int, asOf time.Time) (baseline.Baseline, baseline.Metrics, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	b, err := s.Baseline(projectID, number)
	if err != nil {
		return baseline.Baseline{}, baseline.Metrics{}, err
	}
	g, err := s.Graph(projectID)
	if err != nil {
		return baseline.Baseline{}, baseline.Metrics{}, err
	}
	m, err := baseline.EarnedValue(b, g, asOf)
	if err != nil {
		return baseline.Baseline{}, baseline.Metrics{}, fmt.Errorf("project: earned value %s: %w", projectID, err)
	}
	return b, m, nil
}
