package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/adam-stokes/ogc-sub000/cmd/ogc/handlers"
)

// Ls returns the ls command.
func Ls(g *handlers.GlobalOptions) *cobra.Command {
	var opts handlers.LsOptions

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List nodes in the inventory",
		Long: `List nodes in the inventory.

Filters are field=value (equal), field~value (contains) or field^value
(prefix). Fields: name, id, provider, layout, state, tag, label.<key>.

Example:
  ogc ls --filter layout=web --filter tag~gpu`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Ls(cmd.Context(), g, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Filters, "filter", "f", nil, "Select nodes")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print JSON")

	return cmd
}

// Exec returns the exec command.
func Exec(g *handlers.GlobalOptions) *cobra.Command {
	var opts handlers.ExecOptions

	cmd := &cobra.Command{
		Use:   "exec [flags] -- <command>",
		Short: "Run a command on nodes",
		Long: `Run a command on every selected node in parallel.

Each run is recorded in the node's action log.

Example:
  ogc exec --filter layout=web -- uptime`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Exec(cmd.Context(), g, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Filters, "filter", "f", nil, "Select nodes")

	return cmd
}

// ExecScripts returns the exec-scripts command.
func ExecScripts(g *handlers.GlobalOptions) *cobra.Command {
	var opts handlers.ExecScriptsOptions

	cmd := &cobra.Command{
		Use:   "exec-scripts [node]",
		Short: "Run a scripts directory on nodes",
		Long: `Run a scripts directory on one node or on every selected node.

Scripts run in reverse directory-listing order. A script named teardown
is uploaded to ~/teardown instead of being run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var node string
			if len(args) == 1 {
				node = args[0]
			}
			return handlers.ExecScripts(cmd.Context(), g, node, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Filters, "filter", "f", nil, "Select nodes")
	cmd.Flags().StringVarP(&opts.Path, "path", "p", "", "Scripts directory (default: the node's layout scripts)")
	cmd.Flags().StringToStringVarP(&opts.Env, "env", "e", nil, "Extra template variables (KEY=VALUE)")

	return cmd
}

// SSH returns the ssh command.
func SSH(g *handlers.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ssh <node>",
		Short: "Open a shell on a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.SSH(cmd.Context(), g, args[0])
		},
	}
}

// Log returns the log command.
func Log(g *handlers.GlobalOptions) *cobra.Command {
	var opts handlers.LogOptions

	cmd := &cobra.Command{
		Use:   "log <node>",
		Short: "Show the action history of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Log(cmd.Context(), g, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Only show the last N actions")
	cmd.Flags().BoolVarP(&opts.Output, "output", "o", false, "Include stdout and stderr")

	return cmd
}

// Push returns the push command.
func Push(g *handlers.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push <node> <local> <remote>",
		Short: "Copy a file to a node",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Push(cmd.Context(), g, args[0], args[1], args[2])
		},
	}
}

// Pull returns the pull command.
func Pull(g *handlers.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <node> <remote> <local>",
		Short: "Copy a file from a node",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Pull(cmd.Context(), g, args[0], args[1], args[2])
		},
	}
}
