package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"sirilflow/internal/catalog"
)

func newMultisessionCommand(app *App) *cobra.Command {
	opts := &runOptions{}
	var prefix string
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "multisession",
		Short: "Integrate several nights of lights into one drizzle stack",
		Long: `Generate and run a workflow over every session directory in --dir.

A session directory starts with --prefix and holds lights/ and masters/
with that night's dark_stacked and flat_stacked. Each session's lights are
calibrated with its own masters. The calibrated sequences are merged,
registered with drizzle, stacked into result and plate-solved.

Example layout:
  /data/m42/session1/{lights,masters}
  /data/m42/session2/{lights,masters}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(opts.dir)
			if err != nil {
				return err
			}
			s, wf, err := catalog.Multisession(root, prefix)
			if err != nil {
				return err
			}

			if printOnly {
				fmt.Fprint(cmd.OutOrStdout(), s.String())
				return nil
			}

			opts.dir = root
			if _, err := runScript(cmd.Context(), app, s, wf, opts); err != nil {
				return NewExitError(1)
			}
			return nil
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&prefix, "prefix", catalog.DefaultSessionPrefix, "name prefix of session directories")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the generated script instead of running it")
	return cmd
}
