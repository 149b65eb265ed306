package graph

import (
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes work tasks, zero-duration milestones and summary
// (WBS parent) tasks.
type Kind string

const (
	KindTask      Kind = "task"
	KindMilestone Kind = "milestone"
	KindSummary   Kind = "summary"
)

func (k Kind) valid() bool {
	return k == KindTask || k == KindMilestone || k == KindSummary
}

// ConstraintType is a scheduling constraint on a single task.
type ConstraintType string

const (
	ASAP                ConstraintType = "asap"
	ALAP                ConstraintType = "alap"
	MustStartOn         ConstraintType = "mso"
	MustFinishOn        ConstraintType = "mfo"
	StartNoEarlierThan  ConstraintType = "snet"
	StartNoLaterThan    ConstraintType = "snlt"
	FinishNoEarlierThan ConstraintType = "fnet"
	FinishNoLaterThan   ConstraintType = "fnlt"
)

// NeedsDate reports whether the constraint is date-based.
func (c ConstraintType) NeedsDate() bool {
	switch c {
	case MustStartOn, MustFinishOn, StartNoEarlierThan, StartNoLaterThan, FinishNoEarlierThan, FinishNoLaterThan:
		return true
	}
	return false
}

func (c ConstraintType) valid() bool {
	return c == ASAP || c == ALAP || c.NeedsDate()
}

var constraintAliases = map[string]ConstraintType{
	"asap": ASAP, "as-soon-as-possible": ASAP,
	"alap": ALAP, "as-late-as-possible": ALAP,
	"mso": MustStartOn, "must-start-on": MustStartOn,
	"mfo": MustFinishOn, "must-finish-on": MustFinishOn,
	"snet": StartNoEarlierThan, "start-no-earlier-than": StartNoEarlierThan,
	"snlt": StartNoLaterThan, "start-no-later-than": StartNoLaterThan,
	"fnet": FinishNoEarlierThan, "finish-no-earlier-than": FinishNoEarlierThan,
	"fnlt": FinishNoLaterThan, "finish-no-later-than": FinishNoLaterThan,
}

// ParseConstraintType accepts short codes ("snet") or long names
// ("start-no-earlier-than"). Empty means ASAP.
func ParseConstraintType(s string) (ConstraintType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ASAP, nil
	}
	if c, ok := constraintAliases[s]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown constraint type %q", ErrInvalidConstraint, s)
}

// DependencyType is the relationship between predecessor and successor.
type DependencyType string

const (
	FinishToStart  DependencyType = "FS"
	StartToStart   DependencyType = "SS"
	FinishToFinish DependencyType = "FF"
	StartToFinish  DependencyType = "SF"
)

func (d DependencyType) valid() bool {
	return d == FinishToStart || d == StartToStart || d == FinishToFinish || d == StartToFinish
}

// ParseDependencyType accepts "FS", "fs" or "finish-to-start" forms.
// Empty means finish-to-start.
func ParseDependencyType(s string) (DependencyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fs", "finish-to-start":
		return FinishToStart, nil
	case "ss", "start-to-start":
		return StartToStart, nil
	case "ff", "finish-to-finish":
		return FinishToFinish, nil
	case "sf", "start-to-finish":
		return StartToFinish, nil
	}
	return "", fmt.Errorf("graph: unknown dependency type %q", s)
}

// Project holds the project-level scheduling inputs.
type Project struct {
	ID                string
	Name              string
	PlannedStart      time.Time
	MustFinishBy      *time.Time
	DefaultCalendarID string
}

// Task is a node of the schedule. Early/late dates, float, IsCritical and
// Violations are solver output and are cleared by any scheduling edit.
type Task struct {
	ID                string
	Code              string // external activity code, kept across re-imports
	Name              string
	ParentID          string
	Kind              Kind
	CalendarID        string // empty means the project default calendar
	OriginalDuration  int
	RemainingDuration *int
	PercentComplete   float64
	PlannedStart      *time.Time
	PlannedFinish     *time.Time
	ActualStart       *time.Time
	ActualFinish      *time.Time
	Constraint        ConstraintType
	ConstraintDate    *time.Time
	BudgetedCost      float64
	ActualCost        float64
	SortOrder         int

	EarlyStart  *time.Time
	EarlyFinish *time.Time
	LateStart   *time.Time
	LateFinish  *time.Time
	TotalFloat  *int
	FreeFloat   *int
	IsCritical  bool
	Violations  []ConstraintViolation
}

// Duration returns the remaining duration when set, otherwise the original
// duration.
func (t Task) Duration() int {
	if t.RemainingDuration != nil {
		return *t.RemainingDuration
	}
	return t.OriginalDuration
}

// IsComplete reports whether the task is 100% complete.
func (t Task) IsComplete() bool {
	return t.PercentComplete >= 100
}

// IsSolved reports whether solver output is present on the task.
func (t Task) IsSolved() bool {
	return t.EarlyStart != nil && t.EarlyFinish != nil
}

func (t *Task) clearSolved() {
	t.EarlyStart, t.EarlyFinish = nil, nil
	t.LateStart, t.LateFinish = nil, nil
	t.TotalFloat, t.FreeFloat = nil, nil
	t.IsCritical = false
	t.Violations = nil
}

// Dependency links two tasks. Lag is in working days; negative lag is lead.
type Dependency struct {
	PredecessorID string
	SuccessorID   string
	Type          DependencyType
	Lag           int
}

func (d Dependency) key() [2]string {
	return [2]string{d.PredecessorID, d.SuccessorID}
}

// Computed is the solver output for a single leaf task.
type Computed struct {
	EarlyStart  time.Time
	EarlyFinish time.Time
	LateStart   time.Time
	LateFinish  time.Time
	TotalFloat  int
	FreeFloat   int
	IsCritical  bool
	Violations  []ConstraintViolation
}

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(n int) *int { return &n }

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
