package deploy

import (
	"context"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/util/async"
)

// DeployAll deploys to every node through the run's pool and waits for
// all of them under the deploy timeout. Results keep the order of nodes.
func (r *Runner) DeployAll(nodes []*inventory.Node, env map[string]string) []async.Result[*Result] {
	return r.DeployDirAll(nodes, "", env)
}

// DeployDirAll is DeployAll with the scripts directory overridden by dir
// when dir is not empty.
func (r *Runner) DeployDirAll(nodes []*inventory.Node, dir string, env map[string]string) []async.Result[*Result] {
	jobs := make([]async.Job[*Result], len(nodes))
	for i, node := range nodes {
		jobs[i] = async.Job[*Result]{
			Name: node.Name,
			Run: func(ctx context.Context) (*Result, error) {
				if dir != "" {
					return r.DeployDir(ctx, node, dir, env)
				}
				return r.Deploy(ctx, node, env)
			},
		}
	}
	futures := async.Submit(r.pctx, r.pctx.Pool, jobs)
	return async.JoinAll(r.pctx, futures, r.pctx.Timeouts.Deploy)
}

// ExecAll runs cmd on every node through the pool.
func (r *Runner) ExecAll(nodes []*inventory.Node, cmd string) []async.Result[*inventory.Action] {
	jobs := make([]async.Job[*inventory.Action], len(nodes))
	for i, node := range nodes {
		jobs[i] = async.Job[*inventory.Action]{
			Name: node.Name,
			Run: func(ctx context.Context) (*inventory.Action, error) {
				remote, err := r.pctx.Dialer.Dial(ctx, node)
				if err != nil {
					return nil, err
				}
				defer func() { _ = remote.Close() }()
				return r.Exec(ctx, remote, node, cmd)
			},
		}
	}
	futures := async.Submit(r.pctx, r.pctx.Pool, jobs)
	return async.JoinAll(r.pctx, futures, r.pctx.Timeouts.Deploy)
}
