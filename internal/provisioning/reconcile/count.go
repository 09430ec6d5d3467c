package reconcile

import (
	"context"
	"fmt"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
)

// Reconcile actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// Count compares a layout's desired scale with its recorded nodes.
// Remaining is Deployed minus Scale.
type Count struct {
	Scale     int    `json:"scale"`
	Deployed  int    `json:"deployed"`
	Remaining int    `json:"remaining"`
	Action    string `json:"action"`
}

// NewCount computes the count for scale and deployed.
func NewCount(scale, deployed int) Count {
	c := Count{Scale: scale, Deployed: deployed, Remaining: deployed - scale}
	switch {
	case c.Remaining < 0:
		c.Action = ActionAdd
	case c.Remaining > 0:
		c.Action = ActionRemove
	}
	return c
}

// Delta is the number of nodes to add or remove.
func (c Count) Delta() int {
	if c.Remaining < 0 {
		return -c.Remaining
	}
	return c.Remaining
}

// deployedByLayout counts stored node names per layout. Names that do not
// parse are skipped.
func deployedByLayout(ctx context.Context, store inventory.Store) (map[string]int, error) {
	counts := map[string]int{}
	for key, err := range store.Keys(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to list inventory: %w", err)
		}
		if layout, ok := naming.LayoutOf(key); ok {
			counts[layout]++
		}
	}
	return counts, nil
}

// status counts every layout of plan in one pass over the inventory.
func status(ctx context.Context, store inventory.Store, plan *config.Plan) (map[string]Count, error) {
	deployed, err := deployedByLayout(ctx, store)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Count, len(plan.Layouts))
	for name, l := range plan.Layouts {
		out[name] = NewCount(l.Scale, deployed[name])
	}
	return out, nil
}
