package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/filaserve/internal/stage"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the serving directory against the asset plan",
		Long: `Check compares the serving directory with the files the asset plan
places there. Missing files are shown as a unified diff and leftover
cmgen output directories are reported. The exit status is 1 when the
directory is incomplete.`,
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

			plan, err := h.Plan()
			if err != nil {
				return err
			}

			report, err := stage.Verify(e.layout.ServeDir, plan.Resolve(e.layout))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()

			if report.Diff != "" {
				fmt.Fprint(w, report.Diff)
			}

			fmt.Fprintf(w, "%s: %s\n", e.layout.ServeDir, report)

			if !report.Complete() {
				return &ExitError{Code: 1, Err: fmt.Errorf("serving directory %s is incomplete", e.layout.ServeDir)}
			}

			return nil
		},
	}
}
