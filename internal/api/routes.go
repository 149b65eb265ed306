package api

import (
	"github.com/gin-gonic/gin"
	"github.com/zulandar/timetable/internal/project"
	"github.com/zulandar/timetable/internal/recompute"
)

type handler struct {
	svc  *project.Service
	lane *recompute.Lane
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handler) {
	api := router.Group("/api")
	api.GET("/health", h.handleHealth())
	api.GET("/events", h.handleEvents())

	api.GET("/calendars", h.handleListCalendars())
	api.GET("/calendars/:cal", h.handleGetCalendar())
	api.PUT("/calendars/:cal", h.handlePutCalendar())

	api.POST("/import", h.handleImport())

	projects := api.Group("/projects")
	projects.GET("", h.handleListProjects())
	projects.POST("", h.handleCreateProject())

	p := projects.Group("/:id")
	p.GET("", h.handleGetProject())
	p.PATCH("", h.handleUpdateProject())
	p.DELETE("", h.handleDeleteProject())
	p.GET("/export", h.handleExport())
	p.GET("/changes", h.handleChanges())

	p.POST("/tasks", h.handleAddTask())
	p.PATCH("/tasks/:task", h.handleUpdateTask())
	p.DELETE("/tasks/:task", h.handleRemoveTask())
	p.POST("/tasks/:task/progress", h.handleProgress())
	p.POST("/complete", h.handleCompleteAll())
	p.GET("/suggestions", h.handleSuggest())

	p.POST("/dependencies", h.handleAddDependency())
	p.PATCH("/dependencies/:pred/:succ", h.handleUpdateDependency())
	p.DELETE("/dependencies/:pred/:succ", h.handleRemoveDependency())

	p.POST("/recalculate", h.handleRecalculate())

	p.GET("/baselines", h.handleListBaselines())
	p.POST("/baselines", h.handleCaptureBaseline())
	p.GET("/baselines/:number", h.handleGetBaseline())
	p.DELETE("/baselines/:number", h.handleDeleteBaseline())
	p.GET("/variance", h.handleVariance())
	p.GET("/evm", h.handleEarnedValue())
}
