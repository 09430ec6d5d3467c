package commands

import (
	"github.com/spf13/cobra"

	"github.com/adam-stokes/ogc-sub000/cmd/ogc/handlers"
)

// Down returns the down command.
func Down(g *handlers.GlobalOptions) *cobra.Command {
	var opts handlers.DownOptions

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Destroy nodes",
		Long: `Down destroys every node in the inventory, or the ones selected.

Unless --force is given, each node first runs its ~/teardown script and
its artifacts are copied into the data directory.

Example:
  ogc down --layout web
  ogc down --force --yes

WARNING: This operation is irreversible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Down(cmd.Context(), g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Layout, "layout", "l", "", "Only destroy nodes of this layout")
	cmd.Flags().StringArrayVarP(&opts.Filters, "filter", "f", nil, "Select nodes (field=value, field~value, field^value)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Skip teardown scripts and artifact collection")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
