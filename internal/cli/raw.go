package cli

import (
	"github.com/spf13/cobra"

	"sirilflow/internal/script"
)

func newRawCommand(app *App) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "raw <command...>",
		Short: "Forward a single command to the engine",
		Long: `Forward one engine command in a fresh session.
Useful for testing or one-off commands.

Example:
  sirilflow raw --dir /data/m42 seqstat light stats.csv basic`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &script.Script{Name: "raw", Commands: []script.Command{script.NewCommand(args[0], args[1:]...)}}
			if _, err := runScript(cmd.Context(), app, s, nil, opts); err != nil {
				return NewExitError(1)
			}
			return nil
		},
	}
	opts.addFlags(cmd)
	// Engine flags such as -out= must reach the script, not cobra.
	cmd.Flags().SetInterspersed(false)
	return cmd
}
