// Package cli wires the sirilflow commands together with cobra.
//
// [App] holds the shared dependencies. Production code builds it with
// [NewApp]; tests construct it directly with a mock engine and a buffered
// printer, then drive [NewRootCommand] with SetArgs.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sirilflow/internal/catalog"
	"sirilflow/internal/config"
	"sirilflow/internal/engine"
	"sirilflow/internal/history"
	"sirilflow/internal/logging"
	"sirilflow/internal/output"
)

// Version is the sirilflow release, set at build time with -ldflags.
var Version = "dev"

// App holds the dependencies shared by all commands.
type App struct {
	Config  *config.Config
	Engine  engine.Engine
	Printer output.Printer
	Catalog *catalog.Catalog
	Logger  *slog.Logger
}

// NewApp builds the production dependencies from cfg.
func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	cat, err := catalog.Default()
	if err != nil {
		return nil, err
	}

	e := engine.NewSirilEngine(cfg.Engine.BinaryPath, logger)
	e.StartTimeout = cfg.Engine.StartTimeout
	if cfg.Output.ShowEngineLog {
		e.Stderr = os.Stderr
	}

	printer := output.NewPrinter()
	printer.SetTruncateLength(cfg.Output.TruncateLength)

	return &App{
		Config:  cfg,
		Engine:  e,
		Printer: printer,
		Catalog: cat,
		Logger:  logger,
	}, nil
}

func (app *App) logger() *slog.Logger {
	if app.Logger == nil {
		return slog.Default()
	}
	return app.Logger
}

// openHistory opens the history database, or returns nil when history is
// disabled.
func (app *App) openHistory() (*history.Store, error) {
	if !app.Config.History.Enabled {
		return nil, nil
	}
	path := app.Config.History.DatabasePath
	if path == "" {
		var err error
		if path, err = config.DefaultHistoryPath(); err != nil {
			return nil, err
		}
	}
	return history.New(path)
}

// NewRootCommand creates the root command with all subcommands attached.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sirilflow",
		Short: "Run Siril astrophotography workflows",
		Long: `sirilflow drives the Siril image processing engine through workflow
scripts: calibration masters, calibrated stacks, drizzle stacks and
multi-session integrations.

Each script command is forwarded to a headless siril-cli session in file
order. The first failing command stops the workflow.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCommand(app),
		newQueueCommand(app),
		newCheckCommand(app),
		newListCommand(app),
		newShowCommand(app),
		newMultisessionCommand(app),
		newAlignCommand(app),
		newRawCommand(app),
		newVersionCommand(app),
		newStatusCommand(app),
		newHistoryCommand(app),
	)

	return rootCmd
}

// ExecuteResult is the outcome of [RunWithConfig].
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// RunWithConfig builds the application from cfg and runs the command line
// args. It never exits the process.
func RunWithConfig(ctx context.Context, cfg *config.Config, args []string) ExecuteResult {
	app, err := NewApp(cfg)
	if err != nil {
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	return run(ctx, app, args, os.Stderr)
}

func run(ctx context.Context, app *App, args []string, stderr io.Writer) ExecuteResult {
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	return ExecuteResult{}
}

// Execute loads the configuration, runs the command line and exits.
// Ctrl-C cancels the running workflow.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	result := RunWithConfig(ctx, cfg, os.Args[1:])
	stop()

	os.Exit(result.ExitCode)
}
