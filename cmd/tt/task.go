package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zulandar/timetable/internal/graph"
	"github.com/zulandar/timetable/internal/project"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"t"},
		Short:   "Task management commands",
	}

	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskUpdateCmd())
	cmd.AddCommand(newTaskRemoveCmd())
	cmd.AddCommand(newTaskListCmd())
	return cmd
}

// taskFlags holds the task fields shared by add and update.
type taskFlags struct {
	code          string
	name          string
	parent        string
	kind          string
	calendar      string
	duration      int
	remaining     int
	plannedStart  string
	plannedFinish string
	constraint    string
	constraintOn  string
	budget        float64
	cost          float64
	sortOrder     int
}

func (f *taskFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.code, "code", "", "external activity code")
	fs.StringVar(&f.name, "name", "", "task name")
	fs.StringVar(&f.parent, "parent", "", "parent summary task id")
	fs.StringVar(&f.kind, "kind", "", "task kind: task, milestone, summary")
	fs.StringVar(&f.calendar, "calendar", "", "calendar id (project default when empty)")
	fs.IntVarP(&f.duration, "duration", "d", 0, "original duration in working days")
	fs.IntVar(&f.remaining, "remaining", 0, "remaining duration in working days")
	fs.StringVar(&f.plannedStart, "planned-start", "", "planned start, YYYY-MM-DD")
	fs.StringVar(&f.plannedFinish, "planned-finish", "", "planned finish, YYYY-MM-DD")
	fs.StringVar(&f.constraint, "constraint", "", "constraint: asap, alap, mso, mfo, snet, snlt, fnet, fnlt")
	fs.StringVar(&f.constraintOn, "constraint-date", "", "constraint date, YYYY-MM-DD")
	fs.Float64Var(&f.budget, "budget", 0, "budgeted cost")
	fs.Float64Var(&f.cost, "cost", 0, "actual cost")
	fs.IntVar(&f.sortOrder, "sort", 0, "display order among siblings")
}

// patch turns the flags the user set into a task patch.
func (f *taskFlags) patch(fs *pflag.FlagSet) (project.TaskPatch, error) {
	var p project.TaskPatch
	if fs.Changed("code") {
		p.Code = &f.code
	}
	if fs.Changed("name") {
		p.Name = &f.name
	}
	if fs.Changed("parent") {
		p.ParentID = &f.parent
	}
	if fs.Changed("kind") {
		k := graph.Kind(strings.ToLower(f.kind))
		p.Kind = &k
	}
	if fs.Changed("calendar") {
		p.CalendarID = &f.calendar
	}
	if fs.Changed("duration") {
		p.OriginalDuration = &f.duration
	}
	if fs.Changed("remaining") {
		p.RemainingDuration = &f.remaining
	}
	if fs.Changed("constraint") {
		c, err := graph.ParseConstraintType(f.constraint)
		if err != nil {
			return p, err
		}
		p.Constraint = &c
	}
	if fs.Changed("budget") {
		p.BudgetedCost = &f.budget
	}
	if fs.Changed("cost") {
		p.ActualCost = &f.cost
	}
	if fs.Changed("sort") {
		p.SortOrder = &f.sortOrder
	}

	var err error
	if p.PlannedStart, err = parseDateFlag("planned-start", f.plannedStart); err != nil {
		return p, err
	}
	if p.PlannedFinish, err = parseDateFlag("planned-finish", f.plannedFinish); err != nil {
		return p, err
	}
	if p.ConstraintDate, err = parseDateFlag("constraint-date", f.constraintOn); err != nil {
		return p, err
	}
	return p, nil
}

func newTaskAddCmd() *cobra.Command {
	var (
		configPath string
		id         string
		f          taskFlags
	)

	cmd := &cobra.Command{
		Use:   "add <project>",
		Short: "Add a task to a project",
		Long:  "Adds a task, milestone or summary task. The schedule is not recalculated; run 'tt recalc' afterwards.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.patch(cmd.Flags())
			if err != nil {
				return err
			}
			t := p.Apply(graph.Task{ID: id, Kind: graph.KindTask})

			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			added, err := svc.AddTask(args[0], t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n", added.Kind, added.ID, added.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().StringVar(&id, "id", "", "task id (generated when empty)")
	f.register(cmd.Flags())
	cmd.MarkFlagRequired("name")
	return cmd
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		configPath     string
		clearRemaining bool
		f              taskFlags
	)

	cmd := &cobra.Command{
		Use:   "update <project> <task>",
		Short: "Change task fields",
		Long:  "Updates only the fields whose flags are given.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.patch(cmd.Flags())
			if err != nil {
				return err
			}
			p.ClearRemaining = clearRemaining

			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := svc.UpdateTask(args[0], args[1], p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s (%s)\n", t.ID, t.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().BoolVar(&clearRemaining, "clear-remaining", false, "drop the remaining duration override")
	f.register(cmd.Flags())
	return cmd
}

func newTaskRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "remove <project> <task>",
		Aliases: []string{"rm"},
		Short:   "Remove a task and its dependencies",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := svc.RemoveTask(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed task %s\n", args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath   string
		criticalOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List project tasks with solved dates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			g, err := svc.Graph(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if g.Len() == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}
			if criticalOnly {
				printCritical(out, g)
				return nil
			}
			printTasks(out, g)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().BoolVar(&criticalOnly, "critical", false, "show only critical tasks")
	return cmd
}

// printTasks writes the task table in hierarchy order, indenting children
// under their summary.
func printTasks(out io.Writer, g *graph.Graph) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tDUR\tPCT\tSTART\tFINISH\tTF\tCRIT")

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		t, _ := g.Task(id)
		crit := ""
		if t.IsCritical {
			crit = "*"
		}
		name := strings.Repeat("  ", depth) + truncate(t.Name, 40)
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.0f%%\t%s\t%s\t%s\t%s\n",
			t.ID, name, t.Kind, t.Duration(), t.PercentComplete,
			dateOrDash(t.EarlyStart), dateOrDash(t.EarlyFinish), intOrDash(t.TotalFloat), crit)
		for _, child := range g.Children(id) {
			walk(child, depth+1)
		}
	}
	for _, t := range g.Tasks() {
		if t.ParentID == "" {
			walk(t.ID, 0)
		}
	}
	w.Flush()
}

func printCritical(out io.Writer, g *graph.Graph) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTART\tFINISH")
	for _, t := range g.Tasks() {
		if !t.IsCritical {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, truncate(t.Name, 40), dateOrDash(t.EarlyStart), dateOrDash(t.EarlyFinish))
	}
	w.Flush()
}

func newDepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dep",
		Aliases: []string{"dependency"},
		Short:   "Dependency management commands",
	}

	cmd.AddCommand(newDepAddCmd())
	cmd.AddCommand(newDepUpdateCmd())
	cmd.AddCommand(newDepRemoveCmd())
	cmd.AddCommand(newDepListCmd())
	return cmd
}

func newDepAddCmd() *cobra.Command {
	var (
		configPath string
		typ        string
		lag        int
	)

	cmd := &cobra.Command{
		Use:   "add <project> <predecessor> <successor>",
		Short: "Link two tasks",
		Long:  "Adds a dependency. Lag is in working days; a negative lag is a lead.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dependencyFromArgs(args, typ, lag)
			if err != nil {
				return err
			}
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := svc.AddDependency(args[0], d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", formatDep(d))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().StringVar(&typ, "type", "FS", "dependency type: FS, SS, FF, SF")
	cmd.Flags().IntVar(&lag, "lag", 0, "lag in working days (negative for lead)")
	return cmd
}

func newDepUpdateCmd() *cobra.Command {
	var (
		configPath string
		typ        string
		lag        int
	)

	cmd := &cobra.Command{
		Use:   "update <project> <predecessor> <successor>",
		Short: "Change the type or lag of a dependency",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dependencyFromArgs(args, typ, lag)
			if err != nil {
				return err
			}
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := svc.UpdateDependency(args[0], d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", formatDep(d))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().StringVar(&typ, "type", "FS", "dependency type: FS, SS, FF, SF")
	cmd.Flags().IntVar(&lag, "lag", 0, "lag in working days (negative for lead)")
	return cmd
}

func newDepRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "remove <project> <predecessor> <successor>",
		Aliases: []string{"rm"},
		Short:   "Unlink two tasks",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := svc.RemoveDependency(args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed dependency %s -> %s\n", args[1], args[2])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	return cmd
}

func newDepListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List project dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			g, err := svc.Graph(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			deps := g.Dependencies()
			if len(deps) == 0 {
				fmt.Fprintln(out, "No dependencies found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PREDECESSOR\tSUCCESSOR\tTYPE\tLAG")
			for _, d := range deps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", d.PredecessorID, d.SuccessorID, d.Type, d.Lag)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	return cmd
}

func dependencyFromArgs(args []string, typ string, lag int) (graph.Dependency, error) {
	dt, err := graph.ParseDependencyType(typ)
	if err != nil {
		return graph.Dependency{}, err
	}
	return graph.Dependency{PredecessorID: args[1], SuccessorID: args[2], Type: dt, Lag: lag}, nil
}

func formatDep(d graph.Dependency) string {
	s := fmt.Sprintf("%s -> %s (%s", d.PredecessorID, d.SuccessorID, d.Type)
	if d.Lag != 0 {
		s += fmt.Sprintf("%+d", d.Lag)
	}
	return s + ")"
}
