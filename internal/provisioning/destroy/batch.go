package destroy

import (
	"context"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/util/async"
)

// DestroyAll tears down nodes through the run's worker pool and waits
// for every one of them.
func (d *Destroyer) DestroyAll(ctx context.Context, nodes []*inventory.Node, opts Options) []async.Result[*Outcome] {
	if len(nodes) == 0 {
		return nil
	}
	jobs := make([]async.Job[*Outcome], len(nodes))
	for i, n := range nodes {
		jobs[i] = async.Job[*Outcome]{
			Name: n.Name,
			Run: func(ctx context.Context) (*Outcome, error) {
				return d.Teardown(ctx, n, opts)
			},
		}
	}
	futures := async.Submit(ctx, d.pctx.Pool, jobs)
	return async.JoinAll(ctx, futures, 0)
}

// DestroyMatching tears down every stored node matching filter.
func (d *Destroyer) DestroyMatching(ctx context.Context, filter inventory.Filter, opts Options) ([]async.Result[*Outcome], error) {
	nodes, err := d.pctx.Store.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return d.DestroyAll(ctx, nodes, opts), nil
}
