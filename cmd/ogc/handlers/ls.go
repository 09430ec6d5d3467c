package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
)

// LsOptions are the flags of the ls command.
type LsOptions struct {
	Filters []string
	JSON    bool
}

// Ls lists stored nodes.
func Ls(ctx context.Context, g *GlobalOptions, opts LsOptions) error {
	e, err := openEnv(ctx, g, false)
	if err != nil {
		return err
	}
	defer e.close()

	nodes, err := selectNodes(ctx, e.Store, opts.Filters)
	if err != nil {
		return err
	}
	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	}
	renderNodes(stdout, nodes)
	return nil
}

func renderNodes(w io.Writer, nodes []*inventory.Node) {
	title(w, fmt.Sprintf("ogc nodes (%d)", len(nodes)))
	if len(nodes) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  No nodes recorded"))
		return
	}
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		last := dimStyle.Render("-")
		if a := n.LastAction(); a != nil && a.HasStatus() {
			last = mark(!a.Failed())
		}
		rows = append(rows, []string{
			n.Name,
			n.Layout.Name,
			n.Provider,
			string(n.State),
			orDash(n.PublicIP),
			orDash(strings.Join(n.Layout.Tags, ",")),
			strconv.Itoa(len(n.Actions)),
			last,
		})
	}
	fmt.Fprint(w, table([]string{"NAME", "LAYOUT", "PROVIDER", "STATE", "PUBLIC IP", "TAGS", "ACTIONS", "LAST"}, rows))
}
