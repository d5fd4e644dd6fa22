package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sirilflow/internal/catalog"
)

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, w := range app.Catalog.Workflows {
				app.Printer.Text(fmt.Sprintf("%-18s %s", w.Name, w.Description))
				if len(w.Inputs) > 0 {
					app.Printer.Text(fmt.Sprintf("%-18s needs: %s", "", strings.Join(w.Inputs, ", ")))
				}
			}
			for _, w := range []catalog.Workflow{catalog.MultisessionWorkflow, catalog.AlignWorkflow} {
				app.Printer.Text(fmt.Sprintf("%-18s %s (see \"sirilflow %s\")", w.Name, w.Description, w.Name))
			}
			return nil
		},
	}
}

func newShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <workflow>",
		Short: "Print the script of a built-in workflow",
		Long: `Print the script of a built-in workflow. Save it to a file to use it
as the starting point of a custom script:

  sirilflow show calibrated-stack > my-stack.ssf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := app.Catalog.Source(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), src)
			return nil
		},
	}
}
