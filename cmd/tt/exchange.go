package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/timetable/internal/exchange"
	"github.com/zulandar/timetable/internal/project"
)

// formatFor picks the interchange format from an explicit flag, falling
// back to the file extension and then YAML.
func formatFor(flag, path string) string {
	if flag != "" {
		return flag
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	}
	return "yaml"
}

func newImportCmd() *cobra.Command {
	var (
		configPath string
		format     string
		id         string
		replace    bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a project from a schedule document",
		Long: `Reads a schedule document and stores it as a project. Use "-" to read
standard input. Activity codes become task ids, so re-importing with
--replace keeps baselines matching.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			g, err := svc.Import(in, project.ImportOpts{
				Format:    formatFor(format, args[0]),
				ProjectID: id,
				Replace:   replace,
			})
			if err != nil {
				return err
			}
			p := g.Project()
			fmt.Fprintf(cmd.OutOrStdout(), "Imported project %s (%s) with %s and %s\n",
				p.ID, p.Name, plural(g.Len(), "task"), plural(len(g.Dependencies()), "dependency"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().StringVarP(&format, "format", "f", "", fmt.Sprintf("document format: %s (from the file extension when empty)", strings.Join(exchange.Formats(), ", ")))
	cmd.Flags().StringVar(&id, "id", "", "project id (generated when empty)")
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an existing project with the same id")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		configPath string
		format     string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "export <project>",
		Short: "Export a project as a schedule document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return svc.Export(cmd.OutOrStdout(), args[0], formatFor(format, ""))
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := svc.Export(f, args[0], formatFor(format, output)); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to timetable config file")
	cmd.Flags().StringVarP(&format, "format", "f", "", "document format: yaml or json (from the output extension when empty)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of standard output")
	return cmd
}
