package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/exchange"
	"gopkg.in/yaml.v3"
)

func newCalendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calendar",
		Aliases: []string{"cal"},
		Short:   "Working calendar commands",
	}

	cmd.AddCommand(newCalendarListCmd())
	cmd.AddCommand(newCalendarShowCmd())
	cmd.AddCommand(newCalendarPutCmd())
	return cmd
}

func newCalendarListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List working calendars",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			cals, err := svc.ListCalendars()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cals) == 0 {
				fmt.Fprintln(out, "No calendars found. Run 'tt db init' to seed them.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tWORKDAYS\tHOURS\tEXCEPTIONS")
			for _, cal := range cals {
				fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%d\n",
					cal.ID, truncate(cal.Name, 30), weekdayList(cal), cal.HoursPerDay, len(cal.Exceptions))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	return cmd
}

func newCalendarShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a calendar with its exceptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			cal, err := svc.Calendar(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %s\n", cal.ID)
			fmt.Fprintf(out, "Name:     %s\n", cal.Name)
			fmt.Fprintf(out, "Workdays: %s\n", weekdayList(cal))
			fmt.Fprintf(out, "Hours:    %g\n", cal.HoursPerDay)
			if len(cal.Exceptions) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tWORKING\tHOURS")
			for _, ex := range cal.SortedExceptions() {
				fmt.Fprintf(w, "%s\t%t\t%g\n", calendar.FormatDay(ex.Date), ex.Working, ex.Hours)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	return cmd
}

func newCalendarPutCmd() *cobra.Command {
	var (
		configPath string
		invalidate bool
	)

	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Create or replace a calendar from a YAML document",
		Long: `Reads a calendar document (id, name, workdays, hours_per_day, exceptions)
and stores it. Calendars used by solved projects are locked; pass
--invalidate to change them anyway and mark those projects unsolved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			var doc exchange.CalendarDoc
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			cal, err := exchange.CalendarFromDoc(doc)
			if err != nil {
				return err
			}

			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			affected, err := svc.PutCalendar(cal, invalidate)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Saved calendar %s\n", cal.ID)
			if len(affected) > 0 {
				fmt.Fprintf(out, "Marked unsolved: %s\n", joinOrDash(affected))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().BoolVar(&invalidate, "invalidate", false, "allow changing a calendar used by solved projects")
	return cmd
}

func weekdayList(cal calendar.Calendar) string {
	days := make([]string, 0, len(cal.Workdays))
	for _, wd := range cal.Workdays {
		days = append(days, wd.String()[:3])
	}
	if len(days) == 0 {
		return "-"
	}
	return strings.Join(days, ",")
}
