package destroy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/platform/ssh"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/deploy"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

const phase = "destroy"

// Options controls a teardown.
type Options struct {
	// Force skips the remote teardown script and artifact collection.
	Force bool
}

// Outcome reports what happened to one node.
type Outcome struct {
	Node string
	// Existed is false when the provider no longer had the node.
	Existed     bool
	TeardownRan bool
	// Artifacts is the local archive path, empty when nothing was collected.
	Artifacts string
	Uploaded  bool
}

// Destroyer removes nodes.
type Destroyer struct {
	pctx   *provisioning.Context
	runner *deploy.Runner
}

// NewDestroyer creates a destroyer bound to the run context.
func NewDestroyer(pctx *provisioning.Context) *Destroyer {
	return &Destroyer{pctx: pctx, runner: deploy.NewRunner(pctx)}
}

// Teardown destroys node. Remote teardown and artifact failures are
// logged and never stop the destroy. When the provider call fails the
// inventory entries are kept so the node can be retried.
func (d *Destroyer) Teardown(ctx context.Context, node *inventory.Node, opts Options) (*Outcome, error) {
	obs := d.pctx.Observer.WithFields(map[string]string{"node": node.Name, "layout": node.Layout.Name})
	out := &Outcome{Node: node.Name}

	provisioning.LogResourceDeleting(obs, phase, "node", node.Name)

	if !opts.Force {
		d.collect(ctx, obs, node, out)
	}

	adapter, err := d.pctx.Adapter(node.Provider)
	if err != nil {
		provisioning.LogResourceFailed(obs, phase, "node", node.Name, err)
		return out, err
	}

	err = retry.WithExponentialBackoff(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, d.pctx.Timeouts.Destroy)
		defer cancel()

		start := time.Now()
		existed, err := adapter.Destroy(callCtx, node)
		d.pctx.Metrics.ProviderCall(node.Provider, "destroy", err == nil, time.Since(start).Seconds())
		out.Existed = existed
		return err
	},
		retry.WithMaxRetries(d.pctx.Timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(d.pctx.Timeouts.RetryInitialDelay),
		retry.WithOnRetry(func(attempt int, err error) {
			obs.Printf("[%s] Retrying %s (attempt %d): %v", phase, node.Name, attempt, err)
		}),
	)
	if err != nil {
		d.pctx.Metrics.NodeDestroyed(node.Layout.Name, false, false)
		provisioning.LogResourceFailed(obs, phase, "node", node.Name, err)
		return out, fmt.Errorf("failed to destroy node %s: %w", node.Name, err)
	}
	if !out.Existed {
		obs.Printf("[%s] Node %s was already gone at %s, removing it from the inventory", phase, node.Name, node.Provider)
	}

	d.releaseKeyPair(ctx, obs, adapter, node)

	if err := d.forget(ctx, node.Name); err != nil {
		d.pctx.Metrics.NodeDestroyed(node.Layout.Name, false, !out.Existed)
		return out, err
	}

	d.pctx.Metrics.NodeDestroyed(node.Layout.Name, true, !out.Existed)
	provisioning.LogResourceDeleted(obs, phase, "node", node.Name)
	return out, nil
}

// collect runs the teardown script and archives artifacts on a live node.
func (d *Destroyer) collect(ctx context.Context, obs provisioning.Observer, node *inventory.Node, out *Outcome) {
	remote, err := d.pctx.Dialer.Dial(ctx, node)
	if err != nil {
		obs.Printf("[%s] Skipping teardown of %s, connection failed: %v", phase, node.Name, err)
		return
	}
	defer func() { _ = remote.Close() }()

	out.TeardownRan = d.runTeardown(ctx, obs, remote, node)

	if node.Layout.Artifacts == "" {
		return
	}
	local, err := d.archive(ctx, remote, node)
	if err != nil {
		obs.Printf("[%s] Failed to collect artifacts from %s: %v", phase, node.Name, err)
		return
	}
	out.Artifacts = local
	out.Uploaded = d.upload(ctx, obs, node, local)
}

func (d *Destroyer) runTeardown(ctx context.Context, obs provisioning.Observer, remote provisioning.Remote, node *inventory.Node) bool {
	script := ssh.QuotePath(deploy.TeardownPath)
	probe, err := remote.Exec(ctx, "test -f "+script)
	if err != nil {
		obs.Printf("[%s] Failed to look for teardown on %s: %v", phase, node.Name, err)
		return false
	}
	if probe.ExitCode != 0 {
		return false
	}

	runCtx, cancel := context.WithTimeout(ctx, d.pctx.Timeouts.Deploy)
	defer cancel()
	action, err := d.runner.Exec(runCtx, remote, node, script)
	if err != nil {
		obs.Printf("[%s] Teardown on %s failed: %v", phase, node.Name, err)
		return false
	}
	if action.Failed() {
		obs.Printf("[%s] Teardown on %s exited %d", phase, node.Name, *action.ExitCode)
	}
	return true
}

func (d *Destroyer) releaseKeyPair(ctx context.Context, obs provisioning.Observer, adapter provider.Adapter, node *inventory.Node) {
	svc, err := d.pctx.Store.GetService(ctx, node.Name)
	if errors.Is(err, inventory.ErrNotFound) {
		return
	}
	if err != nil {
		obs.Printf("[%s] Failed to read key pair of %s: %v", phase, node.Name, err)
		return
	}
	ref := provider.KeyPairRef{Provider: svc.Provider, ID: svc.KeyPairID, Name: svc.KeyPair}
	if ref.IsZero() {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, d.pctx.Timeouts.Destroy)
	defer cancel()
	if _, err := adapter.DeleteKeyPair(callCtx, ref); err != nil {
		obs.Printf("[%s] Failed to remove key pair %s: %v", phase, ref.Name, err)
	}
}

func (d *Destroyer) forget(ctx context.Context, name string) error {
	return errors.Join(
		wrap("node", name, d.pctx.Store.Delete(ctx, name)),
		wrap("service", name, d.pctx.Store.DeleteService(ctx, name)),
	)
}

func wrap(kind, name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to delete %s record %s: %w", kind, name, err)
}
