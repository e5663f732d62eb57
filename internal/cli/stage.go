package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/filaserve/internal/stage"
)

func newStageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stage",
		Short: "Stage assets into the serving directory once",
		Long: `Stage runs the asset plan once without serving or watching: copy the
prebuilt samples, scripts and pages, compile materials with matc and
generate environment maps with cmgen. A failing tool's exit status
becomes the exit status of filaserve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}

			h, err := e.harness(cmd)
			if err != nil {
				return err
			}

			if err := h.Stage(cmd.Context()); err != nil {
				return toolExit(err)
			}

			plan, err := h.Plan()
			if err != nil {
				return err
			}

			report, err := stage.Verify(e.layout.ServeDir, plan.Resolve(e.layout))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Staged %s: %s\n", e.layout.ServeDir, report)

			return err
		},
	}
}
