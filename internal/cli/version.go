package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sirilflow and engine versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Printer.Text(fmt.Sprintf("sirilflow %s", Version))

			v, err := app.Engine.Version(cmd.Context())
			if err != nil {
				app.Printer.Text(fmt.Sprintf("siril: unavailable (%v)", err))
				return NewExitError(1)
			}
			app.Printer.Text(fmt.Sprintf("siril %s", v))
			return nil
		},
	}
}
