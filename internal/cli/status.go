package cli

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sirilflow/internal/status"
)

func newStatusCommand(app *App) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last run in a workflow directory",
		Long: `Show the run report of the most recent workflow run in --dir,
command by command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			run, err := status.NewReader(status.ResolvePath(abs, app.Config.Report.Path)).Read()
			if err != nil {
				return err
			}
			printRun(app, run)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "workflow directory")
	return cmd
}

func newHistoryCommand(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past runs, or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openHistory()
			if err != nil {
				return err
			}
			if store == nil {
				app.Printer.Text("run history is disabled (history.enabled: false)")
				return nil
			}
			defer store.Close()

			if len(args) == 1 {
				run, err := store.Get(args[0])
				if err != nil {
					return err
				}
				printRun(app, run)
				return nil
			}

			entries, err := store.List(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				app.Printer.Text("no runs recorded")
				return nil
			}
			for _, e := range entries {
				mode := ""
				if e.DryRun {
					mode = " (dry run)"
				}
				app.Printer.Text(fmt.Sprintf("%s  %-18s %-9s %-14s %s%s",
					e.ID, e.Script, e.Status, humanize.Time(e.Started), e.Dir, mode))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list (0 for all)")
	return cmd
}

func printRun(app *App, run *status.Run) {
	app.Printer.Text(fmt.Sprintf("Run %s started %s in %s", run.ID, humanize.Time(run.Started), run.Dir))
	for _, c := range run.Commands {
		line := fmt.Sprintf("  [%d] %-9s %s", c.Index, c.Status, c.Text)
		if c.Message != "" {
			line += "  (" + c.Message + ")"
		}
		app.Printer.Text(line)
	}
	app.Printer.RunSummary(run)
}
