package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/timetable/internal/recompute"
)

// handleRecalculate solves the project. With ?async=true the solve is
// queued on the recompute lane and the request returns 202 at once;
// requests for a project already being solved are folded into one rerun.
func (h *handler) handleRecalculate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if queryBool(c, "async") {
			if h.lane == nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "background recalculation is not running"})
				return
			}
			if _, err := h.svc.Get(id); err != nil {
				writeError(c, err)
				return
			}
			started := h.lane.Request(id)
			c.JSON(http.StatusAccepted, gin.H{"project_id": id, "queued": true, "coalesced": !started})
			return
		}

		res, err := h.svc.Recalculate(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		if h.lane != nil {
			h.lane.Publish(recompute.OutcomeOf(res))
		}
		c.JSON(http.StatusOK, recalcViewOf(res))
	}
}

func (h *handler) handleListBaselines() gin.HandlerFunc {
	return func(c *gin.Context) {
		bs, err := h.svc.ListBaselines(c.Param("id"), queryBool(c, "all"))
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]baselineView, 0, len(bs))
		for _, b := range bs {
			out = append(out, baselineViewOf(b, false))
		}
		c.JSON(http.StatusOK, out)
	}
}

func (h *handler) handleCaptureBaseline() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req baselineRequest
		if err := bindJSON(c, &req); err != nil {
			writeError(c, err)
			return
		}
		b, err := h.svc.CaptureBaseline(c.Param("id"), req.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, baselineViewOf(b, true))
	}
}

// baselineNumber reads the :number path parameter; "latest" means 0.
func baselineNumber(c *gin.Context) (int, error) {
	s := c.Param("number")
	if s == "latest" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, badRequestf("baseline number: want a positive integer or latest, got %q", s)
	}
	return n, nil
}

func (h *handler) handleGetBaseline() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := baselineNumber(c)
		if err != nil {
			writeError(c, err)
			return
		}
		b, err := h.svc.Baseline(c.Param("id"), n)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, baselineViewOf(b, true))
	}
}

func (h *handler) handleDeleteBaseline() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := baselineNumber(c)
		if err != nil || n == 0 {
			writeError(c, badRequestf("baseline number: want a positive integer, got %q", c.Param("number")))
			return
		}
		if err := h.svc.DeleteBaseline(c.Param("id"), n); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *handler) handleVariance() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := queryInt(c, "baseline", 0)
		if err != nil {
			writeError(c, err)
			return
		}
		b, rows, err := h.svc.Variance(c.Param("id"), n)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"baseline": baselineViewOf(b, false),
			"tasks":    varianceViews(rows),
		})
	}
}

func (h *handler) handleEarnedValue() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := queryInt(c, "baseline", 0)
		if err != nil {
			writeError(c, err)
			return
		}
		asOf, err := queryDay(c, "as_of")
		if err != nil {
			writeError(c, err)
			return
		}
		b, m, err := h.svc.EarnedValue(c.Param("id"), n, asOf)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, metricsViewOf(b, m))
	}
}
