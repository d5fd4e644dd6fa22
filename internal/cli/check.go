package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sirilflow/internal/stage"
)

func newCheckCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check <workflow|script.ssf>",
		Short: "Check a script's command order without running it",
		Long: `Check that every sequence a command uses is produced by an earlier
command, and list the files the script writes.

Exits with status 1 when a command uses a sequence before it is produced.
Sequences the script never produces are reported as warnings, since they
may already exist on disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := app.Catalog.Resolve(args[0])
			if err != nil {
				return err
			}

			a := stage.Analyze(s)
			app.Printer.Findings(a.Findings)

			if outputs := s.Outputs(); len(outputs) > 0 {
				app.Printer.Text("Outputs:")
				for _, o := range outputs {
					app.Printer.Text(fmt.Sprintf("  %s", o))
				}
			}

			if a.Err() != nil {
				return NewExitError(1)
			}
			return nil
		},
	}
}
