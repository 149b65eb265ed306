// Package progress applies percent-complete and actual-date updates to a
// task graph. Every update clears the solved schedule; callers batch edits
// and run the solver once afterwards.
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/graph"
)

// SuggestionCap is the highest percent Suggest will propose. Reaching 100
// is always an explicit edit.
const SuggestionCap = 95

// SuggestionThreshold is how far expected progress must exceed the
// recorded percent before Suggest reports it.
const SuggestionThreshold = 5

// SetPercentComplete returns a copy of g with the task's percent complete
// updated. See ApplyPercentComplete.
func SetPercentComplete(g *graph.Graph, taskID string, pct float64, now time.Time) (*graph.Graph, error) {
	return g.Batch(func(tx *graph.Tx) error { return ApplyPercentComplete(tx, taskID, pct, now) })
}

// ApplyPercentComplete sets percent complete inside a batch. Starting work
// stamps the actual start, finishing stamps the actual finish and zeroes the
// remaining duration, and reopening a finished task clears its actual finish
// and remaining duration so it is scheduled as if it never finished.
func ApplyPercentComplete(tx *graph.Tx, taskID string, pct float64, now time.Time) error {
	t, err := leaf(tx, taskID)
	if err != nil {
		return err
	}
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return &graph.EditError{Kind: graph.ErrInvalidPercentComplete, TaskID: taskID, Msg: fmt.Sprintf("%v is outside 0..100", pct)}
	}
	today := calendar.Day(now)
	wasComplete := t.IsComplete()

	t.PercentComplete = pct
	switch {
	case pct >= 100:
		if t.ActualStart == nil {
			t.ActualStart = &today
		}
		if t.ActualFinish == nil {
			t.ActualFinish = &today
		}
		zero := 0
		t.RemainingDuration = &zero
	case pct > 0:
		if t.ActualStart == nil {
			t.ActualStart = &today
		}
		fallthrough
	default:
		if wasComplete {
			t.ActualFinish = nil
			t.RemainingDuration = nil
		}
	}
	return tx.UpdateTask(t)
}

// RecordActuals returns a copy of g with explicit actual dates. See
// ApplyActuals.
func RecordActuals(g *graph.Graph, taskID string, start, finish *time.Time) (*graph.Graph, error) {
	return g.Batch(func(tx *graph.Tx) error { return ApplyActuals(tx, taskID, start, finish) })
}

// ApplyActuals records actual start and finish dates. A finish date marks
// the task 100% complete; a start date alone on an untouched task leaves the
// percent at zero.
func ApplyActuals(tx *graph.Tx, taskID string, start, finish *time.Time) error {
	t, err := leaf(tx, taskID)
	if err != nil {
		return err
	}
	if finish != nil && start == nil && t.ActualStart == nil {
		start = finish
	}
	if start != nil {
		s := calendar.Day(*start)
		t.ActualStart = &s
	}
	if finish != nil {
		f := calendar.Day(*finish)
		if t.ActualStart != nil && f.Before(*t.ActualStart) {
			return &graph.EditError{Kind: graph.ErrInvalidTask, TaskID: taskID,
				Msg: "actual finish " + calendar.FormatDay(f) + " is before actual start " + calendar.FormatDay(*t.ActualStart)}
		}
		t.ActualFinish = &f
		t.PercentComplete = 100
		zero := 0
		t.RemainingDuration = &zero
	}
	return tx.UpdateTask(t)
}

// SetRemainingDuration returns a copy of g with the task's remaining
// duration set; nil falls back to the original duration.
func SetRemainingDuration(g *graph.Graph, taskID string, remaining *int) (*graph.Graph, error) {
	return g.Batch(func(tx *graph.Tx) error { return ApplyRemaining(tx, taskID, remaining) })
}

// ApplyRemaining sets the remaining duration inside a batch.
func ApplyRemaining(tx *graph.Tx, taskID string, remaining *int) error {
	t, err := leaf(tx, taskID)
	if err != nil {
		return err
	}
	t.RemainingDuration = remaining
	return tx.UpdateTask(t)
}

// Update is one progress report for a task. Nil fields are left alone;
// ClearRemaining drops a remaining override when Remaining is nil.
type Update struct {
	ActualStart     *time.Time
	ActualFinish    *time.Time
	PercentComplete *float64
	Remaining       *int
	ClearRemaining  bool
}

// Empty reports whether u changes nothing.
func (u Update) Empty() bool {
	return u.ActualStart == nil && u.ActualFinish == nil && u.PercentComplete == nil &&
		u.Remaining == nil && !u.ClearRemaining
}

// Record applies u to the task as one edit: actual dates, then percent
// complete, then remaining duration. If any step is rejected g is left
// as it was.
func Record(g *graph.Graph, taskID string, u Update, now time.Time) (*graph.Graph, error) {
	return g.Batch(func(tx *graph.Tx) error {
		if u.ActualStart != nil || u.ActualFinish != nil {
			if err := ApplyActuals(tx, taskID, u.ActualStart, u.ActualFinish); err != nil {
				return err
			}
		}
		if u.PercentComplete != nil {
			if err := ApplyPercentComplete(tx, taskID, *u.PercentComplete, now); err != nil {
				return err
			}
		}
		if u.Remaining != nil || u.ClearRemaining {
			if err := ApplyRemaining(tx, taskID, u.Remaining); err != nil {
				return err
			}
		}
		return nil
	})
}

// CompleteAll marks every open leaf task finished as of now.
func CompleteAll(g *graph.Graph, now time.Time) (*graph.Graph, error) {
	return g.Batch(func(tx *graph.Tx) error {
		for _, id := range tx.Graph().LeafIDs() {
			t, _ := tx.Task(id)
			if t.Kind == graph.KindSummary || t.IsComplete() {
				continue
			}
			if err := ApplyPercentComplete(tx, id, 100, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Suggestion proposes a percent complete for a task that is behind its
// planned window.
type Suggestion struct {
	TaskID    string
	Name      string
	Current   float64
	Suggested float64
}

// Suggest compares each open leaf task's recorded progress with how far
// asOf sits inside its planned window (early dates when unplanned) and
// proposes the expected percent, capped at SuggestionCap, when it exceeds
// the recorded one by more than SuggestionThreshold points.
func Suggest(g *graph.Graph, asOf time.Time) []Suggestion {
	asOf = calendar.Day(asOf)
	var out []Suggestion
	for _, id := range g.LeafIDs() {
		t, _ := g.Task(id)
		if t.Kind != graph.KindTask || t.IsComplete() {
			continue
		}
		start, finish := t.PlannedStart, t.PlannedFinish
		if start == nil || finish == nil {
			start, finish = t.EarlyStart, t.EarlyFinish
		}
		if start == nil || finish == nil || asOf.Before(*start) || asOf.After(*finish) {
			continue
		}
		cal, ok := g.CalendarFor(id)
		if !ok {
			continue
		}
		r, err := calendar.NewResolver(cal)
		if err != nil {
			continue
		}
		span := r.WorkingDurationBetween(*start, *finish)
		if span <= 0 {
			continue
		}
		expected := math.Round(float64(r.WorkingDurationBetween(*start, asOf)) / float64(span) * 100)
		if expected <= t.PercentComplete+SuggestionThreshold {
			continue
		}
		out = append(out, Suggestion{
			TaskID:    id,
			Name:      t.Name,
			Current:   t.PercentComplete,
			Suggested: math.Min(expected, SuggestionCap),
		})
	}
	return out
}

// leaf loads a task that progress can be recorded against.
func leaf(tx *graph.Tx, taskID string) (graph.Task, error) {
	t, ok := tx.Task(taskID)
	if !ok {
		return graph.Task{}, &graph.EditError{Kind: graph.ErrTaskNotFound, TaskID: taskID}
	}
	if t.Kind == graph.KindSummary {
		return graph.Task{}, &graph.EditError{Kind: graph.ErrSummaryNotEditable, TaskID: taskID,
			Msg: "progress rolls up from children"}
	}
	return t, nil
}
