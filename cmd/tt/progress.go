package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/timetable/internal/progress"
)

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Record and review task progress",
	}

	cmd.AddCommand(newProgressSetCmd())
	cmd.AddCommand(newProgressSuggestCmd())
	cmd.AddCommand(newProgressCompleteAllCmd())
	return cmd
}

func newProgressSetCmd() *cobra.Command {
	var (
		configPath     string
		percent        float64
		start          string
		finish         string
		remaining      int
		clearRemaining bool
	)

	cmd := &cobra.Command{
		Use:   "set <project> <task>",
		Short: "Record progress on a task",
		Long: `Records progress on a leaf task. Actual dates are applied first, then
percent complete, then the remaining duration, all as one change: if any
value is rejected nothing is recorded. Setting 100% without an actual
finish stamps today.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("percent") && start == "" && finish == "" && !flags.Changed("remaining") && !clearRemaining {
				return fmt.Errorf("nothing to record: pass --percent, --start, --finish or --remaining")
			}
			actualStart, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			actualFinish, err := parseDateFlag("finish", finish)
			if err != nil {
				return err
			}

			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			u := progress.Update{ActualStart: actualStart, ActualFinish: actualFinish, ClearRemaining: clearRemaining}
			if flags.Changed("percent") {
				u.PercentComplete = &percent
			}
			if flags.Changed("remaining") {
				u.Remaining = &remaining
			}
			t, err := svc.RecordProgress(args[0], args[1], u)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task %s: %.0f%% complete\n", t.ID, t.PercentComplete)
			fmt.Fprintf(out, "Actual:    %s to %s\n", dateOrDash(t.ActualStart), dateOrDash(t.ActualFinish))
			fmt.Fprintf(out, "Remaining: %s\n", intOrDash(t.RemainingDuration))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().Float64VarP(&percent, "percent", "p", 0, "percent complete, 0 to 100")
	cmd.Flags().StringVar(&start, "start", "", "actual start, YYYY-MM-DD")
	cmd.Flags().StringVar(&finish, "finish", "", "actual finish, YYYY-MM-DD")
	cmd.Flags().IntVar(&remaining, "remaining", 0, "remaining duration in working days")
	cmd.Flags().BoolVar(&clearRemaining, "clear-remaining", false, "drop the remaining duration override")
	return cmd
}

func newProgressSuggestCmd() *cobra.Command {
	var (
		configPath string
		asOf       string
	)

	cmd := &cobra.Command{
		Use:   "suggest <project>",
		Short: "Suggest percent complete for tasks behind their planned window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDateFlag("as-of", asOf)
			if err != nil {
				return err
			}
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			when := svc.Now()
			if day != nil {
				when = *day
			}
			rows, err := svc.Suggest(args[0], when)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "All tasks are on track.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCURRENT\tSUGGESTED")
			for _, s := range rows {
				fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%.0f%%\n", s.TaskID, truncate(s.Name, 40), s.Current, s.Suggested)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().StringVar(&asOf, "as-of", "", "status date, YYYY-MM-DD (today when empty)")
	return cmd
}

func newProgressCompleteAllCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "complete-all <project>",
		Short: "Mark every task 100% complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			g, err := svc.CompleteAll(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed %s in project %s\n", plural(len(g.LeafIDs()), "task"), args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	return cmd
}
