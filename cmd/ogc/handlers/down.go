package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/destroy"
	"github.com/adam-stokes/ogc-sub000/internal/util/async"
)

// DownOptions are the flags of the down command.
type DownOptions struct {
	Layout  string
	Filters []string
	Force   bool
	Yes     bool
}

// Down destroys the selected nodes. Without --force each node runs its
// teardown script and hands over its artifacts first.
func Down(ctx context.Context, g *GlobalOptions, opts DownOptions) error {
	e, err := openEnv(ctx, g, false)
	if err != nil {
		return err
	}
	defer e.close()

	filters := opts.Filters
	if opts.Layout != "" {
		filters = append(filters, "layout="+opts.Layout)
	}
	nodes, err := selectNodes(ctx, e.Store, filters)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		fmt.Fprintln(stdout, dimStyle.Render("  No nodes to destroy"))
		return nil
	}

	if !opts.Yes {
		mode := "teardown scripts run first"
		if opts.Force {
			mode = "teardown scripts are skipped"
		}
		if err := confirm(ctx, fmt.Sprintf("Destroy %d node(s)?", len(nodes)), mode); err != nil {
			return err
		}
	}

	for _, n := range nodes {
		if _, err := e.Adapter(n.Provider); err != nil {
			return err
		}
	}

	results := destroy.NewDestroyer(e.Context).DestroyAll(ctx, nodes, destroy.Options{Force: opts.Force})
	renderDown(stdout, nodes, results)

	if errs := async.Errors(results); len(errs) > 0 {
		return fmt.Errorf("%d of %d node(s) could not be destroyed", len(errs), len(nodes))
	}
	return nil
}

func renderDown(w io.Writer, nodes []*inventory.Node, results []async.Result[*destroy.Outcome]) {
	title(w, "ogc down")
	rows := make([][]string, 0, len(results))
	for i, r := range results {
		status, note := mark(r.Err == nil), ""
		switch {
		case r.Err != nil:
			note = r.Err.Error()
		case !r.Value.Existed:
			note = "already gone at provider"
		case r.Value.Artifacts != "":
			note = r.Value.Artifacts
		}
		rows = append(rows, []string{r.Name, nodes[i].Layout.Name, nodes[i].Provider, status, orDash(note)})
	}
	fmt.Fprint(w, table([]string{"NODE", "LAYOUT", "PROVIDER", "RESULT", "NOTE"}, rows))
}
