package hetzner

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

// deleteOperation deletes a named per-node resource. Locked or in-use
// resources are retried: they are released once the owning server's
// delete action finishes.
type deleteOperation[T any] struct {
	Name         string
	ResourceType string
	Get          func(ctx context.Context, name string) (T, *hcloud.Response, error)
	Delete       func(ctx context.Context, resource T) (*hcloud.Response, error)
}

// execute returns false when the resource did not exist.
func (op *deleteOperation[T]) execute(ctx context.Context, a *Adapter) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeouts.Destroy)
	defer cancel()

	found := false
	err := retry.WithExponentialBackoff(ctx, func() error {
		resource, _, err := op.Get(ctx, op.Name)
		if err != nil {
			return classify(fmt.Errorf("failed to get %s: %w", op.ResourceType, err))
		}
		if reflect.ValueOf(resource).IsNil() {
			return nil
		}
		found = true

		if _, err := op.Delete(ctx, resource); err != nil {
			if IsNotFound(err) {
				return nil
			}
			if isResourceLocked(err) || IsRateLimited(err) {
				return err
			}
			return retry.Fatal(err)
		}
		return nil
	},
		retry.WithMaxRetries(a.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(a.timeouts.RetryInitialDelay))
	if err != nil {
		return found, fmt.Errorf("failed to delete %s %s: %w", op.ResourceType, op.Name, err)
	}
	return found, nil
}

// ensureOperation gets a named resource or creates it.
type ensureOperation[T any, CreateOpts any] struct {
	Name         string
	ResourceType string
	Get          func(ctx context.Context, name string) (T, *hcloud.Response, error)
	Create       func(ctx context.Context, opts CreateOpts) (T, []*hcloud.Action, error)
	Opts         func() CreateOpts
}

func (op *ensureOperation[T, CreateOpts]) execute(ctx context.Context, a *Adapter) (T, error) {
	var zero T

	resource, _, err := op.Get(ctx, op.Name)
	if err != nil {
		return zero, classify(fmt.Errorf("failed to get %s: %w", op.ResourceType, err))
	}
	if !reflect.ValueOf(resource).IsNil() {
		return resource, nil
	}

	resource, actions, err := op.Create(ctx, op.Opts())
	if err != nil {
		return zero, classify(fmt.Errorf("failed to create %s: %w", op.ResourceType, err))
	}
	if err := waitForActions(ctx, a.client, actions...); err != nil {
		return zero, fmt.Errorf("failed to wait for %s creation: %w", op.ResourceType, err)
	}
	return resource, nil
}

func waitForActions(ctx context.Context, client *hcloud.Client, actions ...*hcloud.Action) error {
	var pending []*hcloud.Action
	for _, action := range actions {
		if action != nil {
			pending = append(pending, action)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	return client.Action.WaitFor(ctx, pending...)
}
