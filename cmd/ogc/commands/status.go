package commands

import (
	"github.com/spf13/cobra"

	"github.com/adam-stokes/ogc-sub000/cmd/ogc/handlers"
)

// Status returns the status command.
func Status(g *handlers.GlobalOptions) *cobra.Command {
	var opts handlers.StatusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show how far each layout is from its scale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Reconcile, "reconcile", false, "Reconcile every layout first and fail if any stays degraded")
	cmd.Flags().BoolVar(&opts.Drift, "drift", false, "Compare the inventory with what providers report")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")

	return cmd
}
