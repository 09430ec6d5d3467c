package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/compute"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/deploy"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/destroy"
	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
)

const phase = "reconcile"

// ErrDegraded is returned when a layout is still off target after a pass.
var ErrDegraded = errors.New("layout degraded")

// Options adjusts one reconcile pass.
type Options struct {
	// Scale overrides the layout's desired scale when set.
	Scale *int
	// Env is layered over the plan env when rendering scripts.
	Env map[string]string
	// SkipDeploy provisions new nodes without running their scripts.
	SkipDeploy bool
}

// Failure is one node that did not reach its target state.
type Failure struct {
	Node  string
	Stage string
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Stage, f.Node, f.Err)
}

// Result is the outcome of a pass over one layout.
type Result struct {
	Layout   string
	Created  []*inventory.Node
	Deployed []*deploy.Result
	Removed  []*destroy.Outcome
	Failures []Failure
	Before   Count
	After    Count
}

// Failed reports whether any node failed.
func (r *Result) Failed() bool {
	return len(r.Failures) > 0
}

// Reconciler drives layouts towards their desired scale.
type Reconciler struct {
	pctx    *provisioning.Context
	compute *compute.Provisioner
}

// New creates a reconciler bound to the run context.
func New(pctx *provisioning.Context) *Reconciler {
	return &Reconciler{pctx: pctx, compute: compute.NewProvisioner()}
}

// Status counts every layout of plan against the inventory.
func (r *Reconciler) Status(ctx context.Context, plan *config.Plan) (map[string]Count, error) {
	return status(ctx, r.pctx.Store, plan)
}

// IsDegraded reports whether any layout of plan is off target.
func (r *Reconciler) IsDegraded(ctx context.Context, plan *config.Plan) (bool, error) {
	counts, err := r.Status(ctx, plan)
	if err != nil {
		return false, err
	}
	for _, c := range counts {
		if c.Remaining != 0 {
			return true, nil
		}
	}
	return false, nil
}

// Sync runs one pass over the named layout. A layout already on target
// submits no jobs. The result is always returned when the pass ran, also
// together with ErrDegraded.
func (r *Reconciler) Sync(ctx context.Context, name string, opts Options) (*Result, error) {
	layout, err := r.pctx.Layout(name)
	if err != nil {
		return nil, err
	}
	if opts.Scale != nil {
		if *opts.Scale < 0 {
			return nil, fmt.Errorf("invalid scale %d for layout %s", *opts.Scale, name)
		}
		layout.Scale = *opts.Scale
	}

	pctx := r.pctx.WithContext(ctx)
	obs := pctx.Observer.WithFields(map[string]string{"layout": name})

	before, err := r.count(ctx, layout)
	if err != nil {
		return nil, err
	}
	res := &Result{Layout: name, Before: before, After: before}
	if before.Action == "" {
		pctx.Metrics.LayoutCounts(name, before.Scale, before.Deployed)
		return res, nil
	}

	provisioning.LogPhaseStart(obs, phase)
	obs.Printf("[%s] Layout %s: %d deployed, scale %d, %s %d", phase, name, before.Deployed, before.Scale, before.Action, before.Delta())
	start := pctx.Now()

	switch before.Action {
	case ActionAdd:
		r.add(pctx, layout, before.Delta(), opts, res)
	case ActionRemove:
		if err := r.remove(pctx, layout, before.Delta(), res); err != nil {
			provisioning.LogPhaseFailed(obs, phase, err)
			pctx.Metrics.Reconcile(name, before.Action, false, pctx.Since(start).Seconds())
			return res, err
		}
	}

	after, err := r.count(ctx, layout)
	if err != nil {
		return res, err
	}
	res.After = after

	ok := after.Remaining == 0 && !res.Failed()
	pctx.Metrics.Reconcile(name, before.Action, ok, pctx.Since(start).Seconds())
	pctx.Metrics.LayoutCounts(name, after.Scale, after.Deployed)

	for _, f := range res.Failures {
		provisioning.LogResourceFailed(obs, phase, f.Stage, f.Node, f.Err)
	}
	if after.Remaining != 0 {
		err := fmt.Errorf("%w: %s has %d nodes, want %d", ErrDegraded, name, after.Deployed, after.Scale)
		provisioning.LogPhaseFailed(obs, phase, err)
		return res, err
	}
	provisioning.LogPhaseComplete(obs, phase, pctx.Since(start))
	return res, nil
}

// SyncAll runs Sync for every layout of the plan in name order and joins
// the errors. Results are keyed by layout.
func (r *Reconciler) SyncAll(ctx context.Context, opts Options) (map[string]*Result, error) {
	results := map[string]*Result{}
	var errs []error
	for _, name := range r.pctx.Plan.LayoutNames() {
		res, err := r.Sync(ctx, name, opts)
		if res != nil {
			results[name] = res
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// add provisions n nodes, then deploys to the ones that were created.
func (r *Reconciler) add(pctx *provisioning.Context, layout config.Layout, n int, opts Options, res *Result) {
	for _, cr := range r.compute.Provision(pctx, layout, n) {
		if cr.Err != nil {
			res.Failures = append(res.Failures, Failure{Node: cr.Name, Stage: "create", Err: cr.Err})
			continue
		}
		res.Created = append(res.Created, cr.Value)
	}
	if opts.SkipDeploy || len(res.Created) == 0 {
		return
	}

	for _, dr := range deploy.NewRunner(pctx).DeployAll(res.Created, opts.Env) {
		switch {
		case dr.Err != nil:
			res.Failures = append(res.Failures, Failure{Node: dr.Name, Stage: "deploy", Err: dr.Err})
		case !dr.Value.Passed:
			res.Deployed = append(res.Deployed, dr.Value)
			res.Failures = append(res.Failures, Failure{Node: dr.Name, Stage: "deploy", Err: errors.New("script step failed")})
		default:
			res.Deployed = append(res.Deployed, dr.Value)
		}
	}
}

// remove force-destroys n nodes of layout.
func (r *Reconciler) remove(pctx *provisioning.Context, layout config.Layout, n int, res *Result) error {
	victims, err := selectForRemoval(pctx, pctx.Store, layout.Name, n)
	if err != nil {
		return err
	}
	for _, dr := range destroy.NewDestroyer(pctx).DestroyAll(pctx, victims, destroy.Options{Force: true}) {
		if dr.Err != nil {
			res.Failures = append(res.Failures, Failure{Node: dr.Name, Stage: "destroy", Err: dr.Err})
			continue
		}
		res.Removed = append(res.Removed, dr.Value)
	}
	return nil
}

// selectForRemoval picks the first n nodes of layout ordered by provider
// id, then name, so repeated runs pick the same nodes.
func selectForRemoval(ctx context.Context, store inventory.Store, layout string, n int) ([]*inventory.Node, error) {
	all, err := store.Query(ctx, inventory.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	var nodes []*inventory.Node
	for _, node := range all {
		if naming.BelongsTo(node.Name, layout) {
			nodes = append(nodes, node)
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].ID != nodes[j].ID {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].Name < nodes[j].Name
	})
	if n < len(nodes) {
		nodes = nodes[:n]
	}
	return nodes, nil
}

func (r *Reconciler) count(ctx context.Context, layout config.Layout) (Count, error) {
	deployed, err := deployedByLayout(ctx, r.pctx.Store)
	if err != nil {
		return Count{}, err
	}
	return NewCount(layout.Scale, deployed[layout.Name]), nil
}
