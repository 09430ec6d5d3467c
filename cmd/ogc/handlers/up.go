package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/reconcile"
)

// UpOptions are the flags of the up command.
type UpOptions struct {
	Layout     string
	Scale      int
	ScaleSet   bool
	SkipDeploy bool
	Env        map[string]string
}

// Up reconciles one layout, or every layout of the plan, to its scale.
func Up(ctx context.Context, g *GlobalOptions, opts UpOptions) error {
	e, err := openEnv(ctx, g, true)
	if err != nil {
		return err
	}
	defer e.close()

	var layouts []string
	if opts.Layout != "" {
		layouts = []string{opts.Layout}
	}
	if err := provisioning.Preflight(e.Context, layouts...); err != nil {
		return err
	}

	sopts := reconcile.Options{Env: opts.Env, SkipDeploy: opts.SkipDeploy}
	if opts.ScaleSet {
		sopts.Scale = &opts.Scale
	}

	r := reconcile.New(e.Context)
	var (
		results map[string]*reconcile.Result
		syncErr error
	)
	if opts.Layout != "" {
		res, err := r.Sync(ctx, opts.Layout, sopts)
		if res != nil {
			results = map[string]*reconcile.Result{opts.Layout: res}
		}
		syncErr = err
	} else {
		results, syncErr = r.SyncAll(ctx, sopts)
	}

	renderSync(stdout, results)
	return syncOutcome(results, syncErr)
}

// syncOutcome turns failed nodes into an error even when every layout
// reached its scale.
func syncOutcome(results map[string]*reconcile.Result, err error) error {
	if err != nil {
		return err
	}
	var failed int
	for _, res := range results {
		failed += len(res.Failures)
	}
	if failed > 0 {
		return fmt.Errorf("%d node(s) failed", failed)
	}
	return nil
}

func renderSync(w io.Writer, results map[string]*reconcile.Result) {
	if len(results) == 0 {
		return
	}
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	title(w, "ogc up")
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		res := results[name]
		rows = append(rows, []string{
			name,
			orDash(res.Before.Action),
			strconv.Itoa(len(res.Created)),
			strconv.Itoa(len(res.Removed)),
			fmt.Sprintf("%d/%d", res.After.Deployed, res.After.Scale),
			mark(res.After.Remaining == 0 && !res.Failed()),
		})
	}
	fmt.Fprint(w, table([]string{"LAYOUT", "ACTION", "CREATED", "REMOVED", "DEPLOYED", "RESULT"}, rows))

	for _, name := range names {
		for _, f := range results[name].Failures {
			fmt.Fprintln(w, failStyle.Render("  ✗ "+f.Error()))
		}
		for _, d := range results[name].Deployed {
			for _, step := range d.Steps {
				if step.Failed() {
					fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("    %s: %s exited %d", d.Node, step.Command, *step.ExitCode)))
				}
			}
		}
	}
}

// isDegraded reports whether err carries a degraded layout.
func isDegraded(err error) bool {
	return errors.Is(err, reconcile.ErrDegraded)
}
