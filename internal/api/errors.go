package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/exchange"
	"github.com/zulandar/timetable/internal/graph"
	"github.com/zulandar/timetable/internal/project"
	"github.com/zulandar/timetable/internal/store"
	"gorm.io/gorm"
)

// badRequest marks malformed input: unreadable bodies, bad query values.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, graph.ErrCycleDetected),
		errors.Is(err, graph.ErrDuplicateTask),
		errors.Is(err, graph.ErrDuplicateDependency),
		errors.Is(err, graph.ErrCalendarLocked),
		errors.Is(err, project.ErrProjectExists):
		return http.StatusConflict
	case errors.Is(err, exchange.ErrInvalidDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrProjectNotFound),
		errors.Is(err, store.ErrBaselineNotFound),
		errors.Is(err, graph.ErrTaskNotFound),
		errors.Is(err, graph.ErrDependencyNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrInvalidTask),
		errors.Is(err, graph.ErrInvalidDependency),
		errors.Is(err, graph.ErrInvalidConstraint),
		errors.Is(err, graph.ErrInvalidPercentComplete),
		errors.Is(err, graph.ErrUnknownCalendar),
		errors.Is(err, graph.ErrSummaryNotEditable),
		errors.Is(err, calendar.ErrEmptyCalendar),
		errors.Is(err, project.ErrInvalidProject):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": ...}. Cycle errors carry the path.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	body := gin.H{"error": err.Error()}
	var cycle *graph.CycleError
	if errors.As(err, &cycle) && len(cycle.Path) > 0 {
		body["cycle"] = cycle.Path
	}
	c.AbortWithStatusJSON(status, body)
}
