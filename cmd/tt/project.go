package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/timetable/internal/calendar"
	"github.com/zulandar/timetable/internal/project"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"p"},
		Short:   "Project management commands",
	}

	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectShowCmd())
	cmd.AddCommand(newProjectUpdateCmd())
	cmd.AddCommand(newProjectArchiveCmd())
	cmd.AddCommand(newProjectDeleteCmd())
	cmd.AddCommand(newProjectLogCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var (
		configPath string
		id         string
		name       string
		start      string
		deadline   string
		cal        string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new project",
		Long:  "Creates an empty project. Tasks are added with 'tt task add' or brought in with 'tt import'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDay, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			if startDay == nil {
				return fmt.Errorf("--start is required")
			}
			due, err := parseDateFlag("must-finish-by", deadline)
			if err != nil {
				return err
			}
			return runProjectCreate(cmd, configPath, project.CreateOpts{
				ID:           id,
				Name:         name,
				Start:        *startDay,
				MustFinishBy: due,
				CalendarID:   cal,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().StringVar(&id, "id", "", "project id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "project name (required)")
	cmd.Flags().StringVar(&start, "start", "", "planned start date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&deadline, "must-finish-by", "", "deadline, YYYY-MM-DD")
	cmd.Flags().StringVar(&cal, "calendar", "", "default calendar id (config project_defaults.calendar when empty)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("start")
	return cmd
}

func runProjectCreate(cmd *cobra.Command, configPath string, opts project.CreateOpts) error {
	_, svc, err := serviceFromConfig(configPath)
	if err != nil {
		return err
	}
	g, err := svc.Create(opts)
	if err != nil {
		return err
	}
	p := g.Project()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created project %s\n", p.ID)
	fmt.Fprintf(out, "Start:    %s\n", calendar.FormatDay(p.PlannedStart))
	fmt.Fprintf(out, "Calendar: %s\n", p.DefaultCalendarID)
	return nil
}

func newProjectListCmd() *cobra.Command {
	var (
		configPath string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Long:  "Lists active projects. Use --all to include archived ones.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			rows, err := svc.List(all)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No projects found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTART\tFINISH\tSOLVED\tACTIVE")
			for _, p := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\n",
					p.ID, truncate(p.Name, 40), calendar.FormatDay(p.PlannedStart), dateOrDash(p.ProjectFinish), p.Solved, p.Active)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().BoolVar(&all, "all", false, "include archived projects")
	return cmd
}

func newProjectShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show project details",
		Long:  "Displays project settings and the task table with solved dates and float.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	return cmd
}

func runProjectShow(cmd *cobra.Command, configPath, id string) error {
	_, svc, err := serviceFromConfig(configPath)
	if err != nil {
		return err
	}
	row, err := svc.Get(id)
	if err != nil {
		return err
	}
	g, err := svc.Graph(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", row.ID)
	fmt.Fprintf(out, "Name:        %s\n", row.Name)
	fmt.Fprintf(out, "Start:       %s\n", calendar.FormatDay(row.PlannedStart))
	if row.MustFinishBy != nil {
		fmt.Fprintf(out, "Deadline:    %s\n", calendar.FormatDay(*row.MustFinishBy))
	}
	fmt.Fprintf(out, "Calendar:    %s\n", row.DefaultCalendarID)
	fmt.Fprintf(out, "Active:      %t\n", row.Active)
	if row.Solved {
		fmt.Fprintf(out, "Finish:      %s\n", dateOrDash(row.ProjectFinish))
	} else {
		fmt.Fprintf(out, "Finish:      %s (not recalculated since last edit)\n", dateOrDash(row.ProjectFinish))
	}
	fmt.Fprintf(out, "Tasks:       %d\n", g.Len())

	if g.Len() == 0 {
		return nil
	}
	fmt.Fprintln(out)
	printTasks(out, g)
	return nil
}

func newProjectUpdateCmd() *cobra.Command {
	var (
		configPath string
		name       string
		start      string
		deadline   string
		cal        string
		noDeadline bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change project settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch project.ProjectPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			var err error
			if patch.Start, err = parseDateFlag("start", start); err != nil {
				return err
			}
			if patch.MustFinishBy, err = parseDateFlag("must-finish-by", deadline); err != nil {
				return err
			}
			patch.ClearMustFinishBy = noDeadline
			if flags.Changed("calendar") {
				patch.CalendarID = &cal
			}

			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if _, err := svc.UpdateProject(args[0], patch); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated project %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().StringVar(&name, "name", "", "new project name")
	cmd.Flags().StringVar(&start, "start", "", "new planned start, YYYY-MM-DD")
	cmd.Flags().StringVar(&deadline, "must-finish-by", "", "new deadline, YYYY-MM-DD")
	cmd.Flags().BoolVar(&noDeadline, "no-deadline", false, "remove the deadline")
	cmd.Flags().StringVar(&cal, "calendar", "", "new default calendar id")
	return cmd
}

func newProjectArchiveCmd() *cobra.Command {
	var (
		configPath string
		restore    bool
	)

	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive or restore a project",
		Long:  "Archived projects are hidden from listings and skipped by the background recompute sweep.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := svc.SetActive(args[0], restore); err != nil {
				return err
			}
			verb := "Archived"
			if restore {
				verb = "Restored"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s project %s\n", verb, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().BoolVar(&restore, "restore", false, "make an archived project active again")
	return cmd
}

func newProjectDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project with its tasks, baselines and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := svc.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	return cmd
}

func newProjectLogCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "log <id>",
		Short: "Show the project change log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if _, err := svc.Get(args[0]); err != nil {
				return err
			}
			rows, err := svc.Changes(args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No changes recorded.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tTASK\tDETAIL")
			for _, r := range rows {
				task := r.TaskID
				if task == "" {
					task = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.Action, truncate(task, 12), truncate(r.Detail, 50))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	return cmd
}
