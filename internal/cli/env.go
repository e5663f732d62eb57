package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/filaserve/internal/config"
	"github.com/hupe1980/filaserve/internal/harness"
	"github.com/hupe1980/filaserve/internal/layout"
	"github.com/hupe1980/filaserve/internal/logging"
	"github.com/hupe1980/filaserve/internal/stage"
)

// env is the per-invocation state shared by the commands.
type env struct {
	cfg    *config.Config
	layout layout.Layout
	logger *slog.Logger
}

func newEnv(cmd *cobra.Command) (*env, error) {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)

	l, err := layout.Resolve(cfg)
	if err != nil {
		return nil, &ExitError{Code: 2, Err: err}
	}

	logger := logging.FromContext(ctx)
	logging.Component(ctx, "layout").Debug("resolved",
		slog.String("root", l.Root),
		slog.String("harness", l.HarnessDir),
		slog.String("serve", l.ServeDir),
	)

	return &env{cfg: cfg, layout: l, logger: logger}, nil
}

// harness builds a Harness whose tools and status lines go to the
// command's streams.
func (e *env) harness(cmd *cobra.Command, opts ...harness.Option) (*harness.Harness, error) {
	base := []harness.Option{
		harness.WithLogger(e.logger),
		harness.WithOutput(cmd.OutOrStdout()),
		harness.WithRunner(stage.NewExecRunner(cmd.OutOrStdout(), cmd.ErrOrStderr())),
	}

	return harness.New(e.cfg, e.layout, append(base, opts...)...)
}
