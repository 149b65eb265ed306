package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCycleDetected          = errors.New("cycle detected")
	ErrTaskNotFound           = errors.New("task not found")
	ErrDependencyNotFound     = errors.New("dependency not found")
	ErrDuplicateTask          = errors.New("duplicate task")
	ErrDuplicateDependency    = errors.New("duplicate dependency")
	ErrInvalidDependency      = errors.New("invalid dependency")
	ErrInvalidTask            = errors.New("invalid task")
	ErrInvalidConstraint      = errors.New("invalid constraint config")
	ErrInvalidPercentComplete = errors.New("invalid percent complete")
	ErrUnknownCalendar        = errors.New("unknown calendar reference")
	ErrSummaryNotEditable     = errors.New("summary task fields are derived")
	ErrCalendarLocked         = errors.New("calendar is referenced by a solved schedule")
)

// EditError describes a rejected mutation. Kind is one of the sentinel
// errors above and is what errors.Is matches against.
type EditError struct {
	Kind   error
	TaskID string
	Msg    string
}

func (e *EditError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("graph: ")
	b.WriteString(e.Kind.Error())
	if e.TaskID != "" {
		b.WriteString(": ")
		b.WriteString(e.TaskID)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *EditError) Unwrap() error { return e.Kind }

func editErr(kind error, taskID, format string, args ...any) error {
	return &EditError{Kind: kind, TaskID: taskID, Msg: fmt.Sprintf(format, args...)}
}

// CycleError reports a dependency or hierarchy cycle. Path starts and ends
// at the same task.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Path) == 0 {
		return "graph: " + ErrCycleDetected.Error()
	}
	return "graph: " + ErrCycleDetected.Error() + ": " + strings.Join(e.Path, " -> ")
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// ConstraintViolation is a non-fatal solve warning: a hard or one-sided date
// constraint could not be honored without breaking predecessor logic.
type ConstraintViolation struct {
	TaskID string
	Detail string
}

func (v ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violated on %s: %s", v.TaskID, v.Detail)
}
