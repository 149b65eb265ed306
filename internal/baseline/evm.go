package baseline

import (
	"fmt"
	"time"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/graph"
)

// Metrics are earned value figures for a project as of a date.
type Metrics struct {
	AsOf time.Time
	// BCWS is the budgeted cost of work scheduled (planned value).
	BCWS float64
	// BCWP is the budgeted cost of work performed (earned value).
	BCWP float64
	// ACWP is the actual cost of work performed.
	ACWP float64
	SPI  float64
	CPI  float64
	SV   float64
	CV   float64
	BAC  float64
	EAC  float64
	VAC  float64
}

// EarnedValue computes earned value metrics for g against b. Summary tasks
// are excluded so costs are not counted twice. Scheduled work for a task is
// the share of its baseline duration elapsed by asOf, clamped to [0, 1];
// a milestone counts once asOf reaches it. SPI and CPI are 1.0 when their
// denominator is zero.
func EarnedValue(b Baseline, g *graph.Graph, asOf time.Time) (Metrics, error) {
	asOf = calendar.Day(asOf)
	m := Metrics{AsOf: asOf}

	resolvers := make(map[string]*calendar.Resolver)
	for _, bt := range b.Tasks {
		if bt.Kind == graph.KindSummary {
			continue
		}
		m.BAC += bt.BudgetedCost

		if cur, ok := g.Task(bt.TaskID); ok {
			m.BCWP += bt.BudgetedCost * cur.PercentComplete / 100
		}

		if bt.PlannedStart == nil {
			continue
		}
		r, ok := resolvers[bt.CalendarID]
		if !ok {
			cal, found := g.Calendar(bt.CalendarID)
			if !found {
				cal, _ = g.Calendar(g.Project().DefaultCalendarID)
			}
			var err error
			if r, err = calendar.NewResolver(cal); err != nil {
				return Metrics{}, fmt.Errorf("baseline: calendar %q: %w", bt.CalendarID, err)
			}
			resolvers[bt.CalendarID] = r
		}
		m.BCWS += bt.BudgetedCost * scheduledFraction(r, bt, asOf)
	}

	for _, t := range g.Tasks() {
		if t.Kind != graph.KindSummary {
			m.ACWP += t.ActualCost
		}
	}

	m.SPI = ratio(m.BCWP, m.BCWS)
	m.CPI = ratio(m.BCWP, m.ACWP)
	m.SV = m.BCWP - m.BCWS
	m.CV = m.BCWP - m.ACWP
	if m.CPI > 0 {
		m.EAC = m.BAC / m.CPI
	} else {
		m.EAC = m.ACWP + m.BAC
	}
	m.VAC = m.BAC - m.EAC
	return m, nil
}

func scheduledFraction(r *calendar.Resolver, bt Task, asOf time.Time) float64 {
	start := *bt.PlannedStart
	if bt.PlannedDuration <= 0 {
		if asOf.Before(start) {
			return 0
		}
		return 1
	}
	f := float64(r.WorkingDurationBetween(start, asOf)) / float64(bt.PlannedDuration)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 1
	}
	return num / den
}
