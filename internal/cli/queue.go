package cli

import (
	"time"

	"github.com/spf13/cobra"

	"sirilflow/internal/catalog"
	"sirilflow/internal/output"
	"sirilflow/internal/script"
)

func newQueueCommand(app *App) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "queue <workflow|script.ssf> [workflow|script.ssf...]",
		Short: "Run several workflows in sequence",
		Long: `Run several workflows one after another in the same directory.
The queue stops on the first failing workflow.

Example:
  sirilflow queue master-dark master-flat calibrated-stack --dir /data/m42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			type item struct {
				script   *script.Script
				workflow *catalog.Workflow
			}
			items := make([]item, len(args))
			for i, arg := range args {
				s, wf, err := app.Catalog.Resolve(arg)
				if err != nil {
					return err
				}
				items[i] = item{script: s, workflow: wf}
			}

			app.Printer.QueueHeader(args)
			start := time.Now()
			var results []output.QueueResult
			failed := false
			for i, it := range items {
				app.Printer.QueueItemStart(i+1, len(items), args[i])
				itemStart := time.Now()
				run, err := runScript(cmd.Context(), app, it.script, it.workflow, opts)
				result := output.QueueResult{Name: args[i], Success: err == nil, Duration: time.Since(itemStart)}
				if run != nil {
					if c := run.Failed(); c != nil {
						result.FailedAt = c.Text
					}
				}
				results = append(results, result)
				if err != nil {
					failed = true
					break
				}
			}

			app.Printer.QueueSummary(results, args, time.Since(start))
			if failed {
				return NewExitError(1)
			}
			return nil
		},
	}
	opts.addFlags(cmd)
	return cmd
}
