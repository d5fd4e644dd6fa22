package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sirilflow/internal/catalog"
	"sirilflow/internal/script"
	"sirilflow/internal/status"
	"sirilflow/internal/workflow"
)

// runOptions are the flags shared by commands that execute scripts.
type runOptions struct {
	dir     string
	vars    []string
	envFile string
	dryRun  bool
}

func (o *runOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.dir, "dir", "d", ".", "workflow directory holding darks/, flats/, lights/")
	cmd.Flags().StringArrayVar(&o.vars, "var", nil, "set a script variable as NAME=VALUE (repeatable)")
	cmd.Flags().StringVar(&o.envFile, "env-file", "", "read script variables from a .env file")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "print the commands without starting the engine")
}

// variables merges config variables, the env file and --var flags, later
// sources taking precedence. Names are upper-cased like config variables.
func (o *runOptions) variables(base map[string]string) (map[string]string, error) {
	vars := make(map[string]string, len(base))
	for k, v := range base {
		vars[k] = v
	}

	if o.envFile != "" {
		fromFile, err := godotenv.Read(o.envFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", o.envFile, err)
		}
		for k, v := range fromFile {
			vars[strings.ToUpper(k)] = v
		}
	}

	for _, kv := range o.vars {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q: expected NAME=VALUE", kv)
		}
		vars[strings.ToUpper(name)] = value
	}
	return vars, nil
}

func newRunCommand(app *App) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <workflow|script.ssf>",
		Short: "Run a built-in workflow or a script file",
		Long: `Run a workflow script against siril-cli.

The argument is either a path to a script file or the name of a built-in
workflow (see "sirilflow list"). Built-in workflows check that their input
directories exist and create their work directories first.

Variables are interpolated into arguments as $NAME or ${NAME}.

Examples:
  sirilflow run no-flats --dir /data/m42
  sirilflow run master-flat --var OFFSET=2048
  sirilflow run ./my-stack.ssf --env-file camera.env --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, wf, err := app.Catalog.Resolve(args[0])
			if err != nil {
				return err
			}
			if _, err := runScript(cmd.Context(), app, s, wf, opts); err != nil {
				return NewExitError(1)
			}
			return nil
		},
	}
	opts.addFlags(cmd)
	return cmd
}

// runScript executes s with the run report and history recorders attached.
//
// An error returned before the runner starts is printed here, since no run
// summary covers it.
func runScript(ctx context.Context, app *App, s *script.Script, wf *catalog.Workflow, opts *runOptions) (*status.Run, error) {
	run, err := executeScript(ctx, app, s, wf, opts)
	if err != nil && run == nil {
		app.Printer.Text(fmt.Sprintf("✗ %s: %v", s.Name, err))
	}
	return run, err
}

func executeScript(ctx context.Context, app *App, s *script.Script, wf *catalog.Workflow, opts *runOptions) (*status.Run, error) {
	log := app.logger()

	vars, err := opts.variables(app.Config.Variables)
	if err != nil {
		return nil, err
	}
	c, err := workflow.NewContext(opts.dir, vars)
	if err != nil {
		return nil, err
	}

	if wf != nil && !opts.dryRun {
		if missing := wf.MissingInputs(c.Dir); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s needs %s in %s", workflow.ErrMissingInput, wf.Name, strings.Join(missing, ", "), c.Dir)
		}
		if err := wf.PrepareWorkDirs(c.Dir); err != nil {
			return nil, err
		}
	}

	runner := workflow.NewRunner(app.Engine, app.Printer, app.Config)
	runner.SetLogger(log)
	runner.SetDryRun(opts.dryRun)
	runner.SetProgressCallback(func(index, total int, command string) {
		log.Debug("starting command", "script", s.Name, "index", index, "total", total, "command", command)
	})
	runner.AddRecorder(status.NewWriter(status.ResolvePath(c.Dir, app.Config.Report.Path)))

	store, err := app.openHistory()
	if err != nil {
		log.Warn("run history unavailable", "error", err)
	} else if store != nil {
		defer store.Close()
		runner.AddRecorder(store)
	}

	return runner.Run(ctx, s, c)
}
