package commands

import (
	"github.com/spf13/cobra"

	"github.com/adam-stokes/ogc-sub000/cmd/ogc/handlers"
)

// Up returns the up command.
func Up(g *handlers.GlobalOptions) *cobra.Command {
	var opts handlers.UpOptions

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Bring layouts to their desired scale",
		Long: `Up compares each layout's scale with the nodes in the inventory.

Missing nodes are created in parallel and, once every create has finished,
their scripts are deployed. Surplus nodes are destroyed without running
their teardown script.

Example:
  ogc up
  ogc up --layout web --scale 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ScaleSet = cmd.Flags().Changed("scale")
			return handlers.Up(cmd.Context(), g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Layout, "layout", "l", "", "Only reconcile this layout")
	cmd.Flags().IntVar(&opts.Scale, "scale", 0, "Override the layout scale")
	cmd.Flags().BoolVar(&opts.SkipDeploy, "skip-deploy", false, "Create nodes without running their scripts")
	cmd.Flags().StringToStringVarP(&opts.Env, "env", "e", nil, "Extra template variables (KEY=VALUE)")

	return cmd
}
