package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/filaserve/internal/output"
	"github.com/hupe1980/filaserve/internal/stage"
)

type planOptions struct {
	format   string
	output   string
	resolved bool
}

func newPlanCommand() *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the asset plan as a manifest",
		Long: `Plan prints the staging plan in manifest form. Without --manifest this is
the built-in plan, which makes a good starting point for a custom
manifest. Use --resolved to expand the layout placeholders into the
absolute paths of this checkout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.format, "format", "yaml", "output format: yaml, json")
	f.StringVarP(&opts.output, "output", "o", "", "write to file instead of stdout")
	f.BoolVar(&opts.resolved, "resolved", false, "expand layout placeholders")

	return cmd
}

func runPlan(cmd *cobra.Command, opts *planOptions) error {
	enc, err := output.DefaultRegistry().Encoder(opts.format)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

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

	if opts.resolved {
		plan = plan.Resolve(e.layout)
	}

	data, err := enc(stage.Manifest{Version: stage.ManifestVersion, Plan: plan})
	if err != nil {
		return err
	}

	return output.For(opts.output, cmd.OutOrStdout(), output.WithLogger(e.logger)).Write(data)
}
