package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/graph"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// maxListed caps how many task names an alert spells out.
const maxListed = 5

// Slip describes what got worse between two solves of a project.
type Slip struct {
	ProjectID      string
	ProjectName    string
	PreviousFinish time.Time
	Finish         time.Time
	// SlipDays is the signed working-day move of the project finish on the
	// project calendar; positive is later.
	SlipDays      int
	MustFinishBy  *time.Time
	NewViolations []graph.ConstraintViolation
	NewlyCritical []string // task names
}

// DetectSlip compares a freshly solved graph with the previous finish and
// the last solved graph, which may be nil. It reports false when nothing
// got worse: the finish did not move later, no task gained a violation and
// no task turned critical. A zero previousFinish means the project was never
// solved, in which case only violations are reported.
func DetectSlip(before, after *graph.Graph, previousFinish, finish time.Time) (Slip, bool) {
	p := after.Project()
	s := Slip{
		ProjectID:      p.ID,
		ProjectName:    p.Name,
		PreviousFinish: previousFinish,
		Finish:         finish,
		MustFinishBy:   p.MustFinishBy,
	}
	if !previousFinish.IsZero() {
		if cal, ok := after.Calendar(p.DefaultCalendarID); ok {
			if n, err := calendar.WorkingDurationBetween(cal, previousFinish, finish); err == nil {
				s.SlipDays = n
			}
		}
	}

	seen := make(map[string]bool)
	wasCritical := make(map[string]bool)
	if before != nil {
		for _, t := range before.Tasks() {
			for _, v := range t.Violations {
				seen[v.TaskID] = true
			}
			if t.IsCritical {
				wasCritical[t.ID] = true
			}
		}
	}
	leaves := after.LeafSet()
	for _, t := range after.Tasks() {
		if !leaves[t.ID] {
			continue
		}
		for _, v := range t.Violations {
			if !seen[v.TaskID] {
				s.NewViolations = append(s.NewViolations, v)
			}
		}
		if t.IsCritical && !wasCritical[t.ID] && before != nil && before.Solved() {
			s.NewlyCritical = append(s.NewlyCritical, t.Name)
		}
	}
	sort.Strings(s.NewlyCritical)

	worse := s.SlipDays > 0 || len(s.NewViolations) > 0 || len(s.NewlyCritical) > 0
	return s, worse
}

// FormatSlip formats a slip for chat. Violations or a finish past the
// project deadline make it an error; other slips are warnings.
func FormatSlip(s Slip) FormattedEvent {
	name := s.ProjectName
	if name == "" {
		name = s.ProjectID
	}

	var title string
	switch {
	case s.SlipDays > 0:
		title = fmt.Sprintf("%s finish slipped %d %s", name, s.SlipDays, plural(s.SlipDays, "day", "days"))
	case len(s.NewViolations) > 0:
		title = fmt.Sprintf("%s has %d new constraint %s", name, len(s.NewViolations),
			plural(len(s.NewViolations), "violation", "violations"))
	default:
		title = fmt.Sprintf("%s critical path changed", name)
	}

	severity := "warning"
	late := s.MustFinishBy != nil && s.Finish.After(*s.MustFinishBy)
	if late || len(s.NewViolations) > 0 {
		severity = "error"
	}

	var body []string
	if !s.PreviousFinish.IsZero() && s.SlipDays != 0 {
		body = append(body, fmt.Sprintf("%s → %s", calendar.FormatDay(s.PreviousFinish), calendar.FormatDay(s.Finish)))
	}
	if late {
		body = append(body, fmt.Sprintf("Finish is past the deadline of %s", calendar.FormatDay(*s.MustFinishBy)))
	}
	for i, v := range s.NewViolations {
		if i == maxListed {
			body = append(body, fmt.Sprintf("…and %d more", len(s.NewViolations)-maxListed))
			break
		}
		body = append(body, v.Error())
	}

	fields := []Field{
		{Name: "Project", Value: s.ProjectID, Short: true},
		{Name: "Finish", Value: calendar.FormatDay(s.Finish), Short: true},
	}
	if len(s.NewlyCritical) > 0 {
		fields = append(fields, Field{Name: "Newly critical", Value: listNames(s.NewlyCritical)})
	}

	return FormattedEvent{
		Title:    title,
		Body:     strings.Join(body, "\n"),
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

func listNames(names []string) string {
	if len(names) <= maxListed {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:maxListed], ", ") + fmt.Sprintf(" (+%d)", len(names)-maxListed)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
