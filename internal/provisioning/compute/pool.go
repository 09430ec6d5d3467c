package compute

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
	"github.com/adam-stokes/ogc-sub000/internal/util/async"
)

// maxNameAttempts bounds how often a clashing name is redrawn.
const maxNameAttempts = 16

// createNodes submits one create job per node and joins them under the
// create timeout. Instance names are picked before submission so every
// job, including a timed-out one, can be reported by name.
func (p *Provisioner) createNodes(ctx *provisioning.Context, obs provisioning.Observer, layout config.Layout, count int) []async.Result[*inventory.Node] {
	names, err := p.pickNames(ctx, layout.Name, count)
	if err != nil {
		results := make([]async.Result[*inventory.Node], count)
		for i := range results {
			results[i] = async.Result[*inventory.Node]{Name: layout.Name, Err: err}
		}
		return results
	}

	var done atomic.Int32

	jobs := make([]async.Job[*inventory.Node], count)
	for i, name := range names {
		jobs[i] = async.Job[*inventory.Node]{
			Name: name,
			Run: func(jobCtx context.Context) (*inventory.Node, error) {
				node, err := p.ensureNode(ctx.WithContext(jobCtx), obs, NodeSpec{
					Name:   name,
					Layout: layout,
				})
				obs.Progress(phase, int(done.Add(1)), count)
				return node, err
			},
		}
	}

	obs.Printf("[%s] Creating %d nodes for layout %s...", phase, count, layout.Name)
	futures := async.Submit(ctx, ctx.Pool, jobs)
	return async.JoinAll(ctx, futures, ctx.Timeouts.Create)
}

// pickNames draws count instance names that are neither recorded in the
// inventory nor repeated within the batch. Adapters adopt an existing
// node of the same name, so a clash would count one node twice and
// overwrite its record.
func (p *Provisioner) pickNames(ctx *provisioning.Context, layout string, count int) ([]string, error) {
	taken := map[string]bool{}
	for key, err := range ctx.Store.Keys(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to list inventory: %w", err)
		}
		taken[key] = true
	}

	names := make([]string, 0, count)
	for range count {
		name, free := "", false
		for range maxNameAttempts {
			name = p.newName(layout)
			if !taken[name] {
				free = true
				break
			}
		}
		if !free {
			return nil, fmt.Errorf("no free instance name for layout %s after %d attempts", layout, maxNameAttempts)
		}
		taken[name] = true
		names = append(names, name)
	}
	return names, nil
}
