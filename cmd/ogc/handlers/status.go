package handlers

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/reconcile"
)

// StatusOptions are the flags of the status command.
type StatusOptions struct {
	Reconcile   bool
	Drift       bool
	MetricsFile string
}

// Status prints every layout's count. With Reconcile it syncs first and
// fails when a layout stays degraded.
func Status(ctx context.Context, g *GlobalOptions, opts StatusOptions) error {
	e, err := openEnv(ctx, g, true)
	if err != nil {
		return err
	}
	defer e.close()

	r := reconcile.New(e.Context)

	var (
		results map[string]*reconcile.Result
		syncErr error
	)
	if opts.Reconcile {
		if err := provisioning.Preflight(e.Context); err != nil {
			return err
		}
		results, syncErr = r.SyncAll(ctx, reconcile.Options{})
		renderSync(stdout, results)
	}

	counts, err := r.Status(ctx, e.Plan)
	if err != nil {
		return err
	}
	for name, c := range counts {
		e.Metrics.LayoutCounts(name, c.Scale, c.Deployed)
	}
	renderStatus(stdout, e.Plan.Name, e.Plan.LayoutNames(), counts)

	if opts.Drift {
		report, err := r.Drift(ctx, e.Plan)
		if err != nil {
			return err
		}
		renderDrift(stdout, report)
	}

	if opts.MetricsFile != "" {
		if err := e.Metrics.WriteTextfile(opts.MetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if opts.Reconcile {
		if isDegraded(syncErr) {
			return fmt.Errorf("reconcile left layouts degraded: %w", syncErr)
		}
		return syncOutcome(results, syncErr)
	}
	return nil
}

func renderStatus(w io.Writer, plan string, names []string, counts map[string]reconcile.Count) {
	title(w, "ogc status: "+plan)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		c := counts[name]
		state := okStyle.Render("in sync")
		if c.Remaining != 0 {
			state = warnStyle.Render(fmt.Sprintf("%s %d", c.Action, c.Delta()))
		}
		rows = append(rows, []string{name, strconv.Itoa(c.Scale), strconv.Itoa(c.Deployed), strconv.Itoa(c.Remaining), state})
	}
	fmt.Fprint(w, table([]string{"LAYOUT", "SCALE", "DEPLOYED", "REMAINING", "STATE"}, rows))
}

func renderDrift(w io.Writer, report *reconcile.DriftReport) {
	title(w, "drift")
	if report.Empty() {
		fmt.Fprintln(w, okStyle.Render("  inventory matches providers"))
		return
	}
	rows := make([][]string, 0, len(report.MissingAtProvider)+len(report.UnknownAtProvider))
	for _, d := range report.MissingAtProvider {
		rows = append(rows, []string{d.Node, d.Layout, d.Provider, warnStyle.Render("missing at provider")})
	}
	for _, d := range report.UnknownAtProvider {
		rows = append(rows, []string{d.Node, d.Layout, d.Provider, warnStyle.Render("not in inventory")})
	}
	fmt.Fprint(w, table([]string{"NODE", "LAYOUT", "PROVIDER", "DRIFT"}, rows))
}
