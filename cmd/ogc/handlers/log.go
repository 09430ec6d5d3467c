package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
)

// LogOptions are the flags of the log command.
type LogOptions struct {
	Limit  int
	Output bool
}

// Log prints the action history of a node, oldest first.
func Log(ctx context.Context, g *GlobalOptions, name string, opts LogOptions) error {
	e, err := openEnv(ctx, g, false)
	if err != nil {
		return err
	}
	defer e.close()

	node, err := lookupNode(ctx, e.Store, name)
	if err != nil {
		return err
	}
	actions := node.Actions
	if opts.Limit > 0 && len(actions) > opts.Limit {
		actions = actions[len(actions)-opts.Limit:]
	}
	renderActions(stdout, node.Name, actions, opts.Output)
	return nil
}

func renderActions(w io.Writer, node string, actions []inventory.Action, output bool) {
	title(w, "ogc log: "+node)
	if len(actions) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  No actions recorded"))
		return
	}
	for _, a := range actions {
		status := dimStyle.Render("--")
		if a.HasStatus() {
			status = okStyle.Render(fmt.Sprintf("%2d", *a.ExitCode))
			if a.Failed() {
				status = failStyle.Render(fmt.Sprintf("%2d", *a.ExitCode))
			}
		}
		fmt.Fprintf(w, "  %s  %s  %s\n", dimStyle.Render(a.Timestamp.Format("2006-01-02 15:04:05")), status, a.Command)
		if !output {
			continue
		}
		for _, stream := range []string{a.Stdout, a.Stderr} {
			if s := strings.TrimRight(stream, "\n"); s != "" {
				for _, line := range strings.Split(s, "\n") {
					fmt.Fprintln(w, dimStyle.Render("      │ ")+line)
				}
			}
		}
	}
}
