package compute

import (
	"context"
	"fmt"
	"time"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

// NodeSpec describes one node to create.
type NodeSpec struct {
	Name   string
	Layout config.Layout
}

// ensureNode registers the key pair, creates the node and records both.
func (p *Provisioner) ensureNode(ctx *provisioning.Context, obs provisioning.Observer, spec NodeSpec) (*inventory.Node, error) {
	layout := spec.Layout
	adapter, err := ctx.Adapter(layout.Provider)
	if err != nil {
		return nil, err
	}

	publicKey, err := layout.ReadPublicKey()
	if err != nil {
		return nil, retry.Fatal(err)
	}

	provisioning.LogResourceCreating(obs, phase, "node", spec.Name)

	var (
		keyRef provider.KeyPairRef
		node   *inventory.Node
	)
	err = retry.WithExponentialBackoff(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, ctx.Timeouts.Create)
		defer cancel()

		var err error
		if keyRef.IsZero() {
			keyRef, err = timed(ctx, layout.Provider, "create_key_pair", func() (provider.KeyPairRef, error) {
				return adapter.CreateKeyPair(callCtx, spec.Name, publicKey)
			})
			if err != nil {
				return err
			}
		}

		node, err = timed(ctx, layout.Provider, "create", func() (*inventory.Node, error) {
			return adapter.Create(callCtx, provider.CreateRequest{
				Plan:     ctx.Plan.Name,
				Instance: spec.Name,
				Layout:   layout,
				KeyPair:  keyRef,
			})
		})
		return err
	},
		retry.WithMaxRetries(ctx.Timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(ctx.Timeouts.RetryInitialDelay),
		retry.WithOnRetry(func(attempt int, err error) {
			obs.Printf("[%s] Retrying %s (attempt %d): %v", phase, spec.Name, attempt, err)
		}),
	)
	ctx.Metrics.NodeCreated(layout.Name, layout.Provider, err == nil)
	if err != nil {
		provisioning.LogResourceFailed(obs, phase, "node", spec.Name, err)
		p.releaseKeyPair(ctx, obs, adapter, keyRef)
		return nil, fmt.Errorf("failed to create node %s: %w", spec.Name, err)
	}

	node.Layout = layout
	if node.Provider == "" {
		node.Provider = layout.Provider
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = ctx.Now()
	}

	if err := ctx.Store.Put(ctx, node); err != nil {
		provisioning.LogResourceFailed(obs, phase, "node", node.Name, err)
		p.discard(ctx, obs, adapter, node, keyRef)
		return nil, fmt.Errorf("failed to record node %s: %w", node.Name, err)
	}
	if err := ctx.Store.PutService(ctx, &inventory.Service{
		Name:      node.Name,
		Provider:  layout.Provider,
		KeyPairID: keyRef.ID,
		KeyPair:   keyRef.Name,
		Extra:     map[string]string{"node_id": node.ID},
		UpdatedAt: ctx.Now(),
	}); err != nil {
		provisioning.LogResourceFailed(obs, phase, "node", node.Name, err)
		if derr := ctx.Store.Delete(context.WithoutCancel(ctx), node.Name); derr != nil {
			obs.Printf("[%s] Failed to drop record of %s: %v", phase, node.Name, derr)
		}
		p.discard(ctx, obs, adapter, node, keyRef)
		return nil, fmt.Errorf("failed to record key pair of %s: %w", node.Name, err)
	}

	provisioning.LogResourceCreated(obs, phase, "node", node.Name, node.ID)
	return node, nil
}

// releaseKeyPair removes a key pair left behind by a failed create.
func (p *Provisioner) releaseKeyPair(ctx *provisioning.Context, obs provisioning.Observer, adapter provider.Adapter, ref provider.KeyPairRef) {
	if ref.IsZero() {
		return
	}
	// The run context may already be done; cleanup gets its own budget.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ctx.Timeouts.Destroy)
	defer cancel()
	if _, err := adapter.DeleteKeyPair(cleanupCtx, ref); err != nil {
		obs.Printf("[%s] Failed to remove key pair %s: %v", phase, ref.Name, err)
	}
}

// discard removes a node whose records could not be written, so nothing
// keeps running that no later run can find.
func (p *Provisioner) discard(ctx *provisioning.Context, obs provisioning.Observer, adapter provider.Adapter, node *inventory.Node, ref provider.KeyPairRef) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ctx.Timeouts.Destroy)
	defer cancel()
	if _, err := timed(ctx, node.Provider, "destroy", func() (bool, error) {
		return adapter.Destroy(cleanupCtx, node)
	}); err != nil {
		obs.Printf("[%s] Failed to remove unrecorded node %s: %v", phase, node.Name, err)
	}
	p.releaseKeyPair(ctx, obs, adapter, ref)
}

// timed runs call and records it as one provider call.
func timed[T any](ctx *provisioning.Context, providerName, operation string, call func() (T, error)) (T, error) {
	start := time.Now()
	v, err := call()
	ctx.Metrics.ProviderCall(providerName, operation, err == nil, time.Since(start).Seconds())
	return v, err
}
