package cli

import (
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Stage assets, serve them and restart on changes",
		Long: `Serve stages every asset into the serving directory, starts the
static HTTP server and watches the harness directory. Any modification
stops the server and starts over from staging.

This is also what filaserve does when run without a subcommand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	h, err := e.harness(cmd)
	if err != nil {
		return err
	}

	return toolExit(h.Run(cmd.Context()))
}
