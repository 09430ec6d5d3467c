// Package main is the entry point for the ogc CLI.
//
// ogc provisions fleets of nodes across cloud providers from a plan file,
// runs deployment scripts on them and keeps a local inventory of every
// node and every command run on it.
//
// For detailed usage information, run:
//
//	ogc --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adam-stokes/ogc-sub000/cmd/ogc/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
