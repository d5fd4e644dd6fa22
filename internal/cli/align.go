package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"sirilflow/internal/catalog"
)

func newAlignCommand(app *App) *cobra.Command {
	opts := &runOptions{}
	var keep, printOnly bool

	cmd := &cobra.Command{
		Use:   "align <image> <image>...",
		Short: "Register images against each other and save aligned copies",
		Long: `Align images of the same field taken at different times or with
different filters.

The images are copied into align_working/ under --dir, registered with two
passes and resampled onto the area they all cover. Each result is written
next to its source as <name>-aligned.fit(s), replacing an earlier result.
The work directory is removed afterwards unless --keep is given.

Example:
  sirilflow align ha.fits oiii.fits sii.fits --dir /tmp`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(opts.dir)
			if err != nil {
				return err
			}
			a, err := catalog.NewAlignment(root, args)
			if err != nil {
				return err
			}
			s := a.Script()

			if printOnly {
				fmt.Fprint(cmd.OutOrStdout(), s.String())
				return nil
			}

			exts := app.Config.Engine.FITSExtensions
			if !opts.dryRun {
				ext := ".fit"
				if len(exts) > 0 {
					ext = exts[0]
				}
				if !keep {
					defer func() {
						if err := a.Cleanup(); err != nil {
							app.logger().Warn("failed to remove work directory", "dir", catalog.AlignWorkDir, "error", err)
						}
					}()
				}
				if err := a.Prepare(ext); err != nil {
					return err
				}
			}

			opts.dir = root
			if _, err := runScript(cmd.Context(), app, s, a.Workflow(), opts); err != nil {
				return NewExitError(1)
			}
			if opts.dryRun {
				return nil
			}

			outputs, err := a.Finish(exts)
			for _, o := range outputs {
				app.Printer.Text("  → " + o)
			}
			if err != nil {
				app.Printer.Text(fmt.Sprintf("✗ %s: %v", s.Name, err))
				return NewExitError(1)
			}
			return nil
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&keep, "keep", false, "keep the work directory")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the generated script instead of running it")
	return cmd
}
