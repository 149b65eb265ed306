package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/project"
)

func newRecalcCmd() *cobra.Command {
	var (
		configPath string
		showTasks  bool
	)

	cmd := &cobra.Command{
		Use:     "recalc <project>",
		Aliases: []string{"solve"},
		Short:   "Recalculate a project schedule",
		Long: `Runs the forward and backward passes over the project, stores early and
late dates, float and the critical path, and reports constraint violations.
When the finish moves later than the previous solve, configured chat
targets are alerted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			res, err := svc.Recalculate(context.Background(), args[0])
			if err != nil {
				return err
			}
			printRecalc(cmd.OutOrStdout(), res)
			if showTasks {
				fmt.Fprintln(cmd.OutOrStdout())
				printTasks(cmd.OutOrStdout(), res.Graph)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().BoolVar(&showTasks, "tasks", false, "print the solved task table")
	return cmd
}

func printRecalc(out io.Writer, res *project.RecalcResult) {
	g := res.Graph
	p := g.Project()

	fmt.Fprintf(out, "Project %s recalculated\n", p.ID)
	fmt.Fprintf(out, "Start:    %s\n", calendar.FormatDay(res.Result.ProjectStart))
	fmt.Fprintf(out, "Finish:   %s\n", calendar.FormatDay(res.Result.ProjectFinish))
	if p.MustFinishBy != nil {
		status := "met"
		if res.Result.ProjectFinish.After(*p.MustFinishBy) {
			status = "MISSED"
		}
		fmt.Fprintf(out, "Deadline: %s (%s)\n", calendar.FormatDay(*p.MustFinishBy), status)
	}
	if res.PreviousFinish != nil && !res.PreviousFinish.Equal(res.Result.ProjectFinish) {
		fmt.Fprintf(out, "Previous: %s\n", calendar.FormatDay(*res.PreviousFinish))
	}
	fmt.Fprintf(out, "Critical: %s\n", joinOrDash(res.Result.CriticalPath))

	if len(res.Result.Violations) > 0 {
		fmt.Fprintf(out, "\n%s:\n", plural(len(res.Result.Violations), "constraint violation"))
		for _, v := range res.Result.Violations {
			fmt.Fprintf(out, "  %s: %s\n", v.TaskID, v.Detail)
		}
	}

	if s := res.Slip; s != nil && s.SlipDays > 0 {
		fmt.Fprintf(out, "\nSlipped %s (was %s)\n", plural(s.SlipDays, "working day"), calendar.FormatDay(s.PreviousFinish))
		if len(s.NewlyCritical) > 0 {
			fmt.Fprintf(out, "Newly critical: %s\n", joinOrDash(s.NewlyCritical))
		}
	}
}
