package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/deploy"
	"github.com/adam-stokes/ogc-sub000/internal/util/async"
)

// ExecOptions are the flags of the exec command.
type ExecOptions struct {
	Filters []string
}

// Exec runs command on every selected node and records it as an action.
func Exec(ctx context.Context, g *GlobalOptions, command string, opts ExecOptions) error {
	if strings.TrimSpace(command) == "" {
		return errors.New("no command given")
	}
	e, err := openEnv(ctx, g, false)
	if err != nil {
		return err
	}
	defer e.close()

	nodes, err := selectNodes(ctx, e.Store, opts.Filters)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return errors.New("no nodes match")
	}

	results := deploy.NewRunner(e.Context).ExecAll(nodes, command)
	failed := renderExec(stdout, results)
	if failed > 0 {
		return fmt.Errorf("command failed on %d of %d node(s)", failed, len(nodes))
	}
	return nil
}

func renderExec(w io.Writer, results []async.Result[*inventory.Action]) int {
	failed := 0
	for _, r := range results {
		ok := r.Err == nil && !r.Value.Failed()
		if !ok {
			failed++
		}
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render(r.Name), mark(ok))
		switch {
		case r.Err != nil:
			fmt.Fprintln(w, failStyle.Render("  "+r.Err.Error()))
		default:
			if out := strings.TrimRight(r.Value.Stdout, "\n"); out != "" {
				fmt.Fprintln(w, out)
			}
			if errOut := strings.TrimRight(r.Value.Stderr, "\n"); errOut != "" {
				fmt.Fprintln(w, dimStyle.Render(errOut))
			}
		}
	}
	return failed
}

// ExecScriptsOptions are the flags of the exec-scripts command.
type ExecScriptsOptions struct {
	Filters []string
	Path    string
	Env     map[string]string
}

// ExecScripts runs a scripts directory on a node, or on every node
// matching the filters. Without a path each node uses its layout's
// scripts.
func ExecScripts(ctx context.Context, g *GlobalOptions, node string, opts ExecScriptsOptions) error {
	e, err := openEnv(ctx, g, false)
	if err != nil {
		return err
	}
	defer e.close()

	var nodes []*inventory.Node
	if node != "" {
		n, err := lookupNode(ctx, e.Store, node)
		if err != nil {
			return err
		}
		nodes = []*inventory.Node{n}
	} else {
		nodes, err = selectNodes(ctx, e.Store, opts.Filters)
		if err != nil {
			return err
		}
	}
	if len(nodes) == 0 {
		return errors.New("no nodes match")
	}

	results := deploy.NewRunner(e.Context).DeployDirAll(nodes, opts.Path, opts.Env)

	title(stdout, "ogc exec-scripts")
	rows := make([][]string, 0, len(results))
	failed := 0
	for _, r := range results {
		ok := r.Err == nil && r.Value.Passed
		if !ok {
			failed++
		}
		note := ""
		if r.Err != nil {
			note = r.Err.Error()
		} else {
			note = fmt.Sprintf("%d step(s)", len(r.Value.Steps))
		}
		rows = append(rows, []string{r.Name, mark(ok), note})
	}
	fmt.Fprint(stdout, table([]string{"NODE", "RESULT", "NOTE"}, rows))

	if failed > 0 {
		return fmt.Errorf("scripts failed on %d of %d node(s)", failed, len(nodes))
	}
	return nil
}
