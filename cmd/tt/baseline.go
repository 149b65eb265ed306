package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/timetable/internal/baseline"
)

func newBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "baseline",
		Aliases: []string{"bl"},
		Short:   "Baseline snapshots and reports",
	}

	cmd.AddCommand(newBaselineCaptureCmd())
	cmd.AddCommand(newBaselineListCmd())
	cmd.AddCommand(newBaselineDeleteCmd())
	cmd.AddCommand(newBaselineVarianceCmd())
	cmd.AddCommand(newBaselineEVMCmd())
	return cmd
}

// parseBaselineNumber accepts a baseline number or "latest", returned as 0.
func parseBaselineNumber(s string) (int, error) {
	if s == "" || s == "latest" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("baseline must be a positive number or \"latest\", got %q", s)
	}
	return n, nil
}

func newBaselineCaptureCmd() *cobra.Command {
	var (
		configPath string
		name       string
	)

	cmd := &cobra.Command{
		Use:   "capture <project>",
		Short: "Snapshot the current schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			b, err := svc.CaptureBaseline(args[0], name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Captured baseline #%d %q with %s\n", b.Number, b.Name, plural(len(b.Tasks), "task"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().StringVar(&name, "name", "", "baseline name (\"Baseline N\" when empty)")
	return cmd
}

func newBaselineListCmd() *cobra.Command {
	var (
		configPath     string
		includeDeleted bool
	)

	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List baselines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			rows, err := svc.ListBaselines(args[0], includeDeleted)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No baselines found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NUMBER\tNAME\tTASKS\tCAPTURED\tDELETED")
			for _, b := range rows {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
					b.Number, truncate(b.Name, 40), len(b.Tasks), b.CreatedAt.Format("2006-01-02 15:04"), dateOrDash(b.DeletedAt))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().BoolVar(&includeDeleted, "deleted", false, "include deleted baselines")
	return cmd
}

func newBaselineDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <project> <number>",
		Short: "Delete a baseline",
		Long:  "Hides a baseline from reports. Its number is not reused.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("baseline number must be positive, got %q", args[1])
			}
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := svc.DeleteBaseline(args[0], n); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted baseline #%d\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	return cmd
}

func newBaselineVarianceCmd() *cobra.Command {
	var (
		configPath string
		number     string
	)

	cmd := &cobra.Command{
		Use:   "variance <project>",
		Short: "Compare the schedule with a baseline",
		Long:  "Lists start and finish variance per task in working days. Positive means later than the baseline.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseBaselineNumber(number)
			if err != nil {
				return err
			}
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			b, rows, err := svc.Variance(args[0], n)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Baseline #%d %q\n\n", b.Number, b.Name)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tBASE FINISH\tFINISH\tSTART VAR\tFINISH VAR\tSTATUS")
			for _, v := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					v.TaskID, dateOrDash(v.BaselineFinish), dateOrDash(v.CurrentFinish),
					signedDays(v), fmt.Sprintf("%+d", v.FinishVariance), v.Status)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().StringVarP(&number, "baseline", "b", "latest", "baseline number or \"latest\"")
	return cmd
}

func signedDays(v baseline.TaskVariance) string {
	if v.BaselineStart == nil || v.CurrentStart == nil {
		return "-"
	}
	return fmt.Sprintf("%+d", v.StartVariance)
}

func newBaselineEVMCmd() *cobra.Command {
	var (
		configPath string
		number     string
		asOf       string
	)

	cmd := &cobra.Command{
		Use:   "evm <project>",
		Short: "Earned value metrics against a baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseBaselineNumber(number)
			if err != nil {
				return err
			}
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
			b, m, err := svc.EarnedValue(args[0], n, when)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Baseline #%d %q as of %s\n\n", b.Number, b.Name, m.AsOf.Format("2006-01-02"))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "BAC\t%.2f\n", m.BAC)
			fmt.Fprintf(w, "BCWS\t%.2f\n", m.BCWS)
			fmt.Fprintf(w, "BCWP\t%.2f\n", m.BCWP)
			fmt.Fprintf(w, "ACWP\t%.2f\n", m.ACWP)
			fmt.Fprintf(w, "SV\t%.2f\n", m.SV)
			fmt.Fprintf(w, "CV\t%.2f\n", m.CV)
			fmt.Fprintf(w, "SPI\t%.2f\n", m.SPI)
			fmt.Fprintf(w, "CPI\t%.2f\n", m.CPI)
			fmt.Fprintf(w, "EAC\t%.2f\n", m.EAC)
			fmt.Fprintf(w, "VAC\t%.2f\n", m.VAC)
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().StringVarP(&number, "baseline", "b", "latest", "baseline number or \"latest\"")
	cmd.Flags().StringVar(&asOf, "as-of", "", "status date, YYYY-MM-DD (today when empty)")
	return cmd
}
