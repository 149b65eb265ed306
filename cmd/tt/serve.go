package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/timetable/internal/api"
	"github.com/zulandar/timetable/internal/recompute"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the schedule API server",
		Long: `Serves the JSON API under /api and streams recalculation outcomes on
/api/events. When recompute.sweep is configured, every active project is
recalculated on that cron schedule in the background.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (server.port from config when 0)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, svc, err := serviceFromConfig(configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	lane := recompute.NewLane(recompute.ServiceSolver(svc))
	defer lane.Close()

	if cfg.Recompute.Sweep != "" {
		sweeper, err := recompute.NewSweeper(cfg.Recompute.Sweep, lane, recompute.ActiveProjects(svc))
		if err != nil {
			return err
		}
		sweeper.Start()
		defer sweeper.Stop()
		fmt.Fprintf(out, "Recompute sweep %q, next run %s\n", cfg.Recompute.Sweep, sweeper.NextRun().Format("2006-01-02 15:04"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return api.Start(ctx, api.StartOpts{
		Service: svc,
		Lane:    lane,
		Port:    port,
		Out:     out,
	})
}
