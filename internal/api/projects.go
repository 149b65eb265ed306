package api

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/timetable/internal/exchange"
	"github.com/zulandar/timetable/internal/progress"
	"github.com/zulandar/timetable/internal/project"
)

func (h *handler) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (h *handler) handleListProjects() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := h.svc.List(queryBool(c, "all"))
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]projectSummary, 0, len(rows))
		for _, r := range rows {
			out = append(out, summaryOf(r))
		}
		c.JSON(http.StatusOK, out)
	}
}

func (h *handler) handleCreateProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProjectRequest
		if err := bindJSON(c, &req); err != nil {
			writeError(c, err)
			return
		}
		opts, err := req.opts()
		if err != nil {
			writeError(c, err)
			return
		}
		g, err := h.svc.Create(opts)
		if err != nil {
			writeError(c, err)
			return
		}
		h.writeProject(c, http.StatusCreated, g.Project().ID)
	}
}

func (h *handler) handleGetProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.writeProject(c, http.StatusOK, c.Param("id"))
	}
}

// writeProject renders the stored project with its tasks and dependencies.
func (h *handler) writeProject(c *gin.Context, status int, id string) {
	row, err := h.svc.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	g, err := h.svc.Graph(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, projectViewOf(row, g))
}

func (h *handler) handleUpdateProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var req updateProjectRequest
		if err := bindJSON(c, &req); err != nil {
			writeError(c, err)
			return
		}
		if req.changesSettings() {
			patch, err := req.patch()
			if err != nil {
				writeError(c, err)
				return
			}
			if _, err := h.svc.UpdateProject(id, patch); err != nil {
				writeError(c, err)
				return
			}
		}
		if req.Active != nil {
			if err := h.svc.SetActive(id, *req.Active); err != nil {
				writeError(c, err)
				return
			}
		}
		h.writeProject(c, http.StatusOK, id)
	}
}

func (h *handler) handleDeleteProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.svc.Delete(c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *handler) handleChanges() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := queryInt(c, "limit", 50)
		if err != nil {
			writeError(c, err)
			return
		}
		id := c.Param("id")
		if _, err := h.svc.Get(id); err != nil {
			writeError(c, err)
			return
		}
		rows, err := h.svc.Changes(id, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]changeView, 0, len(rows))
		for _, r := range rows {
			out = append(out, changeView{ID: r.ID, TaskID: r.TaskID, Action: r.Action, Detail: r.Detail, CreatedAt: r.CreatedAt})
		}
		c.JSON(http.StatusOK, out)
	}
}

// formatParam validates the ?format query parameter, defaulting to yaml.
func formatParam(c *gin.Context) (exchange.Adapter, error) {
	format := c.DefaultQuery("format", "yaml")
	a, err := exchange.Lookup(format)
	if err != nil {
		return nil, badRequestf("%v", err)
	}
	return a, nil
}

var contentTypes = map[string]string{
	"yaml": "application/yaml",
	"json": "application/json",
}

func (h *handler) handleExport() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := formatParam(c)
		if err != nil {
			writeError(c, err)
			return
		}
		var buf bytes.Buffer
		if err := h.svc.Export(&buf, c.Param("id"), a.Name()); err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, contentTypes[a.Name()], buf.Bytes())
	}
}

// handleImport reads a schedule document from the request body. ?id names
// the project (generated when absent) and ?replace=true overwrites it.
func (h *handler) handleImport() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := formatParam(c)
		if err != nil {
			writeError(c, err)
			return
		}
		g, err := h.svc.Import(c.Request.Body, project.ImportOpts{
			Format:    a.Name(),
			ProjectID: c.Query("id"),
			Replace:   queryBool(c, "replace"),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		h.writeProject(c, http.StatusCreated, g.Project().ID)
	}
}

func (h *handler) handleListCalendars() gin.HandlerFunc {
	return func(c *gin.Context) {
		cals, err := h.svc.ListCalendars()
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]exchange.CalendarDoc, 0, len(cals))
		for _, cal := range cals {
			out = append(out, exchange.CalendarDocFor(cal))
		}
		c.JSON(http.StatusOK, out)
	}
}

func (h *handler) handleGetCalendar() gin.HandlerFunc {
	return func(c *gin.Context) {
		cal, err := h.svc.Calendar(c.Param("cal"))
		if err != nil {
			if statusFor(err) == http.StatusUnprocessableEntity {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, exchange.CalendarDocFor(cal))
	}
}

// handlePutCalendar stores a calendar document under the path id. A
// calendar in use by solved projects is replaced only with
// ?invalidate=true, which marks those projects unsolved.
func (h *handler) handlePutCalendar() gin.HandlerFunc {
	return func(c *gin.Context) {
		var doc exchange.CalendarDoc
		if err := bindJSON(c, &doc); err != nil {
			writeError(c, err)
			return
		}
		doc.ID = c.Param("cal")
		cal, err := exchange.CalendarFromDoc(doc)
		if err != nil {
			if statusFor(err) == http.StatusInternalServerError {
				err = badRequestf("%v", err)
			}
			writeError(c, err)
			return
		}
		ids, err := h.svc.PutCalendar(cal, queryBool(c, "invalidate"))
		if err != nil {
			writeError(c, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		c.JSON(http.StatusOK, gin.H{
			"calendar":    exchange.CalendarDocFor(cal),
			"invalidated": ids,
		})
	}
}

// taskParam returns the project and task ids from the path.
func taskParam(c *gin.Context) (string, string) {
	return c.Param("id"), c.Param("task")
}

func (h *handler) handleAddTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req taskRequest
		if err := bindJSON(c, &req); err != nil {
			writeError(c, err)
			return
		}
		t, err := req.task()
		if err != nil {
			writeError(c, err)
			return
		}
		added, err := h.svc.AddTask(c.Param("id"), t)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, taskViewOf(added))
	}
}

func (h *handler) handleUpdateTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, tid := taskParam(c)
		var req taskRequest
		if err := bindJSON(c, &req); err != nil {
			writeError(c, err)
			return
		}
		if req.ID != nil && *req.ID != tid {
			writeError(c, badRequestf("task id cannot be changed"))
			return
		}
		patch, err := req.patch()
		if err != nil {
			writeError(c, err)
			return
		}
		t, err := h.svc.UpdateTask(pid, tid, patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, taskViewOf(t))
	}
}

func (h *handler) handleRemoveTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, tid := taskParam(c)
		if err := h.svc.RemoveTask(pid, tid); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *handler) handleAddDependency() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dependencyRequest
		if err := bindJSON(c, &req); err != nil {
			writeError(c, err)
			return
		}
		d, err := req.dependency()
		if err != nil {
			writeError(c, err)
			return
		}
		if err := h.svc.AddDependency(c.Param("id"), d); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, depViewOf(d))
	}
}

func (h *handler) handleUpdateDependency() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dependencyRequest
		if err := bindJSON(c, &req); err != nil {
			writeError(c, err)
			return
		}
		req.PredecessorID, req.SuccessorID = c.Param("pred"), c.Param("succ")
		d, err := req.dependency()
		if err != nil {
			writeError(c, err)
			return
		}
		if err := h.svc.UpdateDependency(c.Param("id"), d); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, depViewOf(d))
	}
}

func (h *handler) handleRemoveDependency() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.svc.RemoveDependency(c.Param("id"), c.Param("pred"), c.Param("succ")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// handleProgress applies actual dates, then percent complete, then the
// remaining duration as one edit. Any rejected field rejects them all.
func (h *handler) handleProgress() gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, tid := taskParam(c)
		var req progressRequest
		if err := bindJSON(c, &req); err != nil {
			writeError(c, err)
			return
		}
		if req.empty() {
			writeError(c, badRequestf("no progress fields given"))
			return
		}
		start, err := parseDayPtr("actual_start", req.ActualStart)
		if err != nil {
			writeError(c, err)
			return
		}
		finish, err := parseDayPtr("actual_finish", req.ActualFinish)
		if err != nil {
			writeError(c, err)
			return
		}

		t, err := h.svc.RecordProgress(pid, tid, progress.Update{
			ActualStart:     start,
			ActualFinish:    finish,
			PercentComplete: req.PercentComplete,
			Remaining:       req.RemainingDuration,
			ClearRemaining:  req.ClearRemaining,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, taskViewOf(t))
	}
}

func (h *handler) handleCompleteAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := h.svc.CompleteAll(id); err != nil {
			writeError(c, err)
			return
		}
		h.writeProject(c, http.StatusOK, id)
	}
}

type suggestionView struct {
	TaskID    string  `json:"task_id"`
	Name      string  `json:"name"`
	Current   float64 `json:"current"`
	Suggested float64 `json:"suggested"`
}

func (h *handler) handleSuggest() gin.HandlerFunc {
	return func(c *gin.Context) {
		asOf, err := queryDay(c, "as_of")
		if err != nil {
			writeError(c, err)
			return
		}
		sugs, err := h.svc.Suggest(c.Param("id"), asOf)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]suggestionView, 0, len(sugs))
		for _, s := range sugs {
			out = append(out, suggestionView{TaskID: s.TaskID, Name: s.Name, Current: s.Current, Suggested: s.Suggested})
		}
		c.JSON(http.StatusOK, out)
	}
}
