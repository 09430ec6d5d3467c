// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/adam-stokes/ogc-sub000/cmd/ogc/handlers"
)

// Root returns the root command for the ogc CLI.
func Root() *cobra.Command {
	g := &handlers.GlobalOptions{}

	cmd := &cobra.Command{
		Use:           "ogc",
		Short:         "Provision, deploy and tear down fleets of remote nodes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.Spec, "spec", "s", "", "Path to the plan file (default ogc.yml, ogc.yaml or ogc.toml)")
	flags.StringVar(&g.DataDir, "data-dir", "", "Directory holding the inventory (default $OGC_DATA_DIR or ~/.local/share/ogc)")
	flags.StringVar(&g.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flags.StringVar(&g.LogFormat, "log-format", "console", "Log format: console or json")

	// Fleet
	cmd.AddCommand(Up(g))
	cmd.AddCommand(Down(g))
	cmd.AddCommand(Status(g))

	// Nodes
	cmd.AddCommand(Ls(g))
	cmd.AddCommand(Exec(g))
	cmd.AddCommand(ExecScripts(g))
	cmd.AddCommand(SSH(g))
	cmd.AddCommand(Log(g))
	cmd.AddCommand(Push(g))
	cmd.AddCommand(Pull(g))

	// Utility
	cmd.AddCommand(Keygen())
	cmd.AddCommand(Version())

	return cmd
}
