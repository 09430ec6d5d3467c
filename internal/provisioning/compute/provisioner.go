package compute

import (
	"fmt"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
	"github.com/adam-stokes/ogc-sub000/internal/util/async"
	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
)

const phase = "compute"

// Provisioner creates nodes for layouts.
type Provisioner struct {
	newName func(layout string) string
}

// NewProvisioner creates a new compute provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{newName: naming.Instance}
}

// Name returns the phase name.
func (p *Provisioner) Name() string {
	return phase
}

// Provision creates count nodes of layout in parallel and waits for all
// of them. Results keep submission order; a failed node does not stop
// its siblings.
func (p *Provisioner) Provision(ctx *provisioning.Context, layout config.Layout, count int) []async.Result[*inventory.Node] {
	if count <= 0 {
		return nil
	}

	obs := ctx.Observer.WithFields(map[string]string{"layout": layout.Name, "provider": layout.Provider})
	provisioning.LogPhaseStart(obs, phase)
	start := ctx.Now()

	results := p.createNodes(ctx, obs, layout, count)

	failed := len(async.Errors(results))
	if failed > 0 {
		provisioning.LogPhaseFailed(obs, phase, fmt.Errorf("%d of %d nodes failed", failed, count))
	} else {
		provisioning.LogPhaseComplete(obs, phase, ctx.Since(start))
	}
	return results
}
