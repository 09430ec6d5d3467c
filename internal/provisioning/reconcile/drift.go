package reconcile

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/util/async"
	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
)

// DriftEntry is a node known to only one side.
type DriftEntry struct {
	Layout   string `json:"layout"`
	Node     string `json:"node"`
	Provider string `json:"provider"`
}

// DriftReport lists the differences between the inventory and the
// providers. Neither kind is an error: the inventory stays the source of
// truth for which nodes are ours.
type DriftReport struct {
	// MissingAtProvider are recorded nodes the provider no longer has.
	MissingAtProvider []DriftEntry `json:"missing_at_provider"`
	// UnknownAtProvider are provider nodes carrying a layout label that
	// the inventory does not know.
	UnknownAtProvider []DriftEntry `json:"unknown_at_provider"`
}

// Empty reports whether both sides agree.
func (d *DriftReport) Empty() bool {
	return len(d.MissingAtProvider) == 0 && len(d.UnknownAtProvider) == 0
}

// Drift compares every layout of plan with what its provider reports.
func (r *Reconciler) Drift(ctx context.Context, plan *config.Plan) (*DriftReport, error) {
	report := &DriftReport{}

	recorded := map[string]map[string]bool{}
	for key, err := range r.pctx.Store.Keys(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to list inventory: %w", err)
		}
		if layout, ok := naming.LayoutOf(key); ok {
			if recorded[layout] == nil {
				recorded[layout] = map[string]bool{}
			}
			recorded[layout][key] = true
		}
	}

	names := plan.LayoutNames()
	live := make([][]*inventory.Node, len(names))
	tasks := make([]async.Task, 0, len(names))
	for i, name := range names {
		layout := plan.Layouts[name]
		adapter, err := r.pctx.Adapter(layout.Provider)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, async.Task{
			Name: name,
			Func: func(ctx context.Context) error {
				start := time.Now()
				nodes, err := adapter.ListNodes(ctx, provider.Selector{Plan: plan.Name, Layout: name})
				r.pctx.Metrics.ProviderCall(layout.Provider, "list_nodes", err == nil, time.Since(start).Seconds())
				if err != nil {
					return fmt.Errorf("failed to list nodes at %s: %w", layout.Provider, err)
				}
				live[i] = nodes
				return nil
			},
		})
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		return nil, err
	}

	for i, name := range names {
		prov := plan.Layouts[name].Provider
		seen := map[string]bool{}
		for _, n := range live[i] {
			seen[n.Name] = true
			if !recorded[name][n.Name] {
				report.UnknownAtProvider = append(report.UnknownAtProvider, DriftEntry{Layout: name, Node: n.Name, Provider: prov})
			}
		}
		for _, key := range slices.Sorted(maps.Keys(recorded[name])) {
			if !seen[key] {
				report.MissingAtProvider = append(report.MissingAtProvider, DriftEntry{Layout: name, Node: key, Provider: prov})
			}
		}
	}

	for _, e := range report.MissingAtProvider {
		r.pctx.Observer.Printf("[%s] %s is recorded but missing at %s", phase, e.Node, e.Provider)
	}
	for _, e := range report.UnknownAtProvider {
		r.pctx.Observer.Printf("[%s] %s exists at %s but is not recorded", phase, e.Node, e.Provider)
	}
	return report, nil
}
