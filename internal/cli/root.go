// Package cli implements the cobra command tree for filaserve.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/filaserve/internal/config"
	"github.com/hupe1980/filaserve/internal/logging"
	"github.com/hupe1980/filaserve/internal/stage"
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command tree, runs it until it finishes or the process
// is interrupted, and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}

		return 1
	}

	return 0
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached. Without a subcommand it serves.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "filaserve",
		Short: "Stage and serve the filament.js browser tests",
		Long: `filaserve prepares and serves the filament.js browser test pages.

On start it copies the prebuilt sample assets, the vector-math scripts and
the test pages into the serving directory, compiles the parquet material
with matc and generates the environment maps with cmgen. It then serves
that directory over HTTP on port 8000 and restarts itself whenever a file
in the harness directory is modified.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			logger := logging.SetupWithWriter(cfg, cmd.ErrOrStderr())

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("restartMode", cfg.RestartMode),
				slog.Int("port", cfg.Port),
			)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	d := config.Default()

	// Global persistent flags.
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .filaserve.yaml)")
	pf.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	pf.String("log-format", d.LogFormat, "log format: text, json")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")

	// Layout flags.
	pf.String("root", "", "repository root (default: three levels above the harness directory)")
	pf.String("harness-dir", "", "test page directory; it is both the fixture source and the watched tree (default: working directory, so run from the tests directory or set this)")
	pf.String("build-dir", d.BuildDir, "web build directory, relative to the root")
	pf.String("tools-dir", d.ToolsDir, "host tools directory, relative to the root")
	pf.String("serve-dir", d.ServeDir, "serving directory, relative to the build directory")
	pf.String("vendor-dir", d.VendorDir, "vector-math script directory, relative to the root")
	pf.String("manifest", "", "asset manifest replacing the built-in plan")

	// Serving flags.
	pf.Int("port", d.Port, "HTTP port")
	pf.String("restart-mode", d.RestartMode, "restart mode: loop, exec")
	pf.Duration("debounce", 0, "coalesce modifications within this interval (0 restarts on every event)")
	pf.StringSlice("ignore", nil, "glob of harness paths that never trigger a restart (repeatable)")

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})

	cmd.AddCommand(
		newServeCommand(),
		newStageCommand(),
		newPlanCommand(),
		newCheckCommand(),
		newVersionCommand(),
		newCompletionCommand(),
	)

	return cmd
}

// toolExit maps a failed external tool to the tool's own exit status.
func toolExit(err error) error {
	if err == nil {
		return nil
	}

	var toolErr *stage.ToolError
	if errors.As(err, &toolErr) {
		code := toolErr.ExitCode
		if code <= 0 {
			code = 1
		}

		return &ExitError{Code: code, Err: err}
	}

	return err
}
