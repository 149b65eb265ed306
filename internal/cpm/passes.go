package cpm

import (
	"time"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/graph"
)

// forward computes early dates in topological order.
func (s *solver) forward() {
	for _, id := range s.order {
		n := s.nodes[id]
		logic := n.r.NextWorkingDay(s.project.PlannedStart)
		for _, dep := range s.preds[id] {
			logic = maxDay(logic, s.earlyBound(dep, s.nodes[dep.PredecessorID], n))
		}
		logic = n.r.NextWorkingDay(logic)

		switch {
		case n.complete:
			s.pinComplete(n, logic)
		case n.task.ActualStart != nil:
			n.es = calendar.Day(*n.task.ActualStart)
			n.pinnedStart = true
			if n.d == 0 {
				n.fb = n.es
			} else {
				n.fb = n.finishFromStart(n.r.NextWorkingDay(n.es))
			}
		default:
			n.es = s.constrainStart(n, logic)
			n.fb = n.finishFromStart(n.es)
			s.checkLatest(n)
		}
	}
}

// earlyBound is the earliest start of succ implied by one dependency. Lag is
// counted on the successor's calendar.
func (s *solver) earlyBound(dep graph.Dependency, pred, succ *node) time.Time {
	r := succ.r
	switch dep.Type {
	case graph.StartToStart:
		return r.AddWorkingDuration(pred.es, dep.Lag)
	case graph.FinishToFinish:
		return succ.startFromFinish(r.AddWorkingDuration(pred.fb, dep.Lag))
	case graph.StartToFinish:
		return succ.startFromFinish(r.AddWorkingDuration(pred.es, dep.Lag))
	default:
		return r.AddWorkingDuration(pred.fb, dep.Lag)
	}
}

// constrainStart applies the task's date constraint to the logic-driven
// start. Hard constraints that would break predecessor logic are recorded
// as violations and logic wins.
func (s *solver) constrainStart(n *node, logic time.Time) time.Time {
	t := n.task
	if t.ConstraintDate == nil {
		return logic
	}
	cd := *t.ConstraintDate
	switch t.Constraint {
	case graph.StartNoEarlierThan:
		return maxDay(logic, n.r.NextWorkingDay(cd))
	case graph.FinishNoEarlierThan:
		return maxDay(logic, n.startFromFinish(n.finishFloor(cd)))
	case graph.MustStartOn:
		target := n.r.NextWorkingDay(cd)
		if target.Before(logic) {
			s.violate(n, "must start on %s but predecessors allow %s at the earliest",
				calendar.FormatDay(cd), calendar.FormatDay(logic))
			return logic
		}
		return target
	case graph.MustFinishOn:
		target := n.startFromFinish(n.finishCeil(cd))
		if target.Before(logic) {
			s.violate(n, "must finish on %s but predecessors allow %s at the earliest",
				calendar.FormatDay(cd), calendar.FormatDay(n.displayFinish(n.finishFromStart(logic))))
			return logic
		}
		return target
	}
	return logic
}

// checkLatest flags one-sided upper bounds the early dates already miss.
func (s *solver) checkLatest(n *node) {
	t := n.task
	if t.ConstraintDate == nil {
		return
	}
	cd := calendar.Day(*t.ConstraintDate)
	switch t.Constraint {
	case graph.StartNoLaterThan:
		if n.es.After(cd) {
			s.violate(n, "starts %s, after start-no-later-than %s",
				calendar.FormatDay(n.es), calendar.FormatDay(cd))
		}
	case graph.FinishNoLaterThan:
		if n.fb.After(n.finishCeil(cd)) {
			s.violate(n, "finishes %s, after finish-no-later-than %s",
				calendar.FormatDay(n.displayFinish(n.fb)), calendar.FormatDay(cd))
		}
	}
}

// pinComplete anchors a finished task on its actual dates, falling back to
// planned dates and then to the logic-driven start.
func (s *solver) pinComplete(n *node, logic time.Time) {
	t := n.task
	start := firstDate(t.ActualStart, t.PlannedStart)
	finish := firstDate(t.ActualFinish, t.PlannedFinish)

	n.pinnedStart = true
	n.es = logic
	if start != nil {
		n.es = calendar.Day(*start)
	}
	if n.d == 0 {
		if finish != nil {
			n.es = calendar.Day(*finish)
		}
		n.fb = n.es
		return
	}
	if finish != nil {
		f := calendar.Day(*finish)
		n.actualFinish = &f
		n.fb = n.r.AddWorkingDuration(f, 1)
	} else {
		n.fb = n.finishFromStart(n.r.NextWorkingDay(n.es))
	}
	if n.fb.Before(n.es) {
		n.fb = n.es
	}
}

func firstDate(ds ...*time.Time) *time.Time {
	for _, d := range ds {
		if d != nil {
			return d
		}
	}
	return nil
}

// seedFinish sets the project finish boundary the backward pass starts from.
func (s *solver) seedFinish() {
	s.projectFB = s.defaultCal.NextWorkingDay(s.project.PlannedStart)
	for _, id := range s.order {
		s.projectFB = maxDay(s.projectFB, s.nodes[id].fb)
	}
	if s.project.MustFinishBy != nil {
		s.projectFB = s.defaultCal.AddWorkingDuration(s.defaultCal.PrevWorkingDay(*s.project.MustFinishBy), 1)
	}
}

// waits reports whether a successor's dates still depend on its
// predecessors. Started and finished tasks no longer do.
func (n *node) waits() bool {
	return !n.complete && !n.pinnedStart
}

// backward computes late dates in reverse topological order.
func (s *solver) backward() {
	for i := len(s.order) - 1; i >= 0; i-- {
		id := s.order[i]
		n := s.nodes[id]
		if n.complete {
			n.ls, n.lfb = n.es, n.fb
			continue
		}
		lfb := s.projectFB
		for _, dep := range s.succs[id] {
			succ := s.nodes[dep.SuccessorID]
			if !succ.waits() {
				continue
			}
			lfb = minDay(lfb, s.lateBound(dep, n, succ))
		}
		lfb = s.constrainFinish(n, lfb)
		if n.d == 0 {
			n.ls = n.r.PrevWorkingDay(lfb)
			n.lfb = n.ls
			continue
		}
		n.lfb = lfb
		n.ls = n.startFromFinish(lfb)
	}
}

// lateBound is the latest finish boundary of pred allowed by one dependency.
func (s *solver) lateBound(dep graph.Dependency, pred, succ *node) time.Time {
	r := succ.r
	switch dep.Type {
	case graph.StartToStart:
		return pred.finishFromStart(r.AddWorkingDuration(succ.ls, -dep.Lag))
	case graph.FinishToFinish:
		return r.AddWorkingDuration(succ.lfb, -dep.Lag)
	case graph.StartToFinish:
		return pred.finishFromStart(r.AddWorkingDuration(succ.lfb, -dep.Lag))
	default:
		return r.AddWorkingDuration(succ.ls, -dep.Lag)
	}
}

// constrainFinish caps the late finish with the task's upper-bound
// constraints.
func (s *solver) constrainFinish(n *node, lfb time.Time) time.Time {
	t := n.task
	if t.ConstraintDate == nil {
		return lfb
	}
	cd := *t.ConstraintDate
	switch t.Constraint {
	case graph.MustStartOn:
		return minDay(lfb, n.finishFromStart(n.r.NextWorkingDay(cd)))
	case graph.StartNoLaterThan:
		return minDay(lfb, n.finishFromStart(n.r.PrevWorkingDay(cd)))
	case graph.MustFinishOn, graph.FinishNoLaterThan:
		return minDay(lfb, n.finishCeil(cd))
	}
	return lfb
}

// floats computes total and free float for every task.
func (s *solver) floats() {
	for _, id := range s.order {
		n := s.nodes[id]
		if n.complete {
			n.tf, n.ff = 0, 0
			continue
		}
		n.tf = n.r.WorkingDurationBetween(n.es, n.ls)
		n.ff = minInt(s.freeSlack(id), n.tf)
	}
}

// freeSlack is how far a task can slip without moving any successor's
// early dates, or the project finish for terminal tasks.
func (s *solver) freeSlack(id string) int {
	n := s.nodes[id]
	slack, found := 0, false
	for _, dep := range s.succs[id] {
		succ := s.nodes[dep.SuccessorID]
		if !succ.waits() {
			continue
		}
		r := succ.r
		var v int
		switch dep.Type {
		case graph.StartToStart:
			v = r.WorkingDurationBetween(r.AddWorkingDuration(n.es, dep.Lag), succ.es)
		case graph.FinishToFinish:
			v = r.WorkingDurationBetween(r.AddWorkingDuration(n.fb, dep.Lag), succ.fb)
		case graph.StartToFinish:
			v = r.WorkingDurationBetween(r.AddWorkingDuration(n.es, dep.Lag), succ.fb)
		default:
			v = r.WorkingDurationBetween(r.AddWorkingDuration(n.fb, dep.Lag), succ.es)
		}
		if !found || v < slack {
			slack, found = v, true
		}
	}
	if !found {
		slack = n.r.WorkingDurationBetween(n.fb, s.projectFB)
	}
	return slack
}

// delayALAP moves as-late-as-possible tasks forward by their free float,
// successors first, then recomputes floats.
func (s *solver) delayALAP() {
	moved := false
	for i := len(s.order) - 1; i >= 0; i-- {
		id := s.order[i]
		n := s.nodes[id]
		if n.task.Constraint != graph.ALAP || !n.waits() {
			continue
		}
		ff := minInt(s.freeSlack(id), n.r.WorkingDurationBetween(n.es, n.ls))
		if ff <= 0 {
			continue
		}
		n.es = n.r.AddWorkingDuration(n.es, ff)
		n.fb = n.finishFromStart(n.es)
		moved = true
	}
	if moved {
		s.floats()
	}
}

func minInt(a, b int) int {
	if b < a {
		return b
	}
	return a
}
