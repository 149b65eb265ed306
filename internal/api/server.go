// Package api serves the schedule service over HTTP: project and task
// edits, recalculation, baselines and reports under /api, plus a
// server-sent event stream of recalculation outcomes.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/timetable/internal/project"
	"github.com/zulandar/timetable/internal/recompute"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Service *project.Service
	// Lane runs ?async=true recalculations and feeds /api/events. Optional.
	Lane *recompute.Lane
	Port int
	Out  io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Service == nil {
		return fmt.Errorf("api: service is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts.Service, opts.Lane),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d/api\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every API route registered.
func NewRouter(svc *project.Service, lane *recompute.Lane) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, &handler{svc: svc, lane: lane})
	return router
}
