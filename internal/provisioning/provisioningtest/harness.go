package provisioningtest

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/metrics"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
	ogctest "github.com/adam-stokes/ogc-sub000/internal/testing"
	"github.com/adam-stokes/ogc-sub000/internal/util/async"
)

// Harness bundles a run context with the fakes behind it.
type Harness struct {
	Ctx     *provisioning.Context
	Store   *inventory.BadgerStore
	Remotes *FakeDialer
	Events  *MockObserver
}

// Timeouts are short enough for tests and allow one retry.
func Timeouts() *config.Timeouts {
	return &config.Timeouts{
		Create:            10 * time.Second,
		Destroy:           10 * time.Second,
		Deploy:            20 * time.Second,
		SSHDial:           time.Second,
		SSHMaxRetries:     1,
		RetryMaxAttempts:  2,
		RetryInitialDelay: time.Millisecond,
		MaxWorkers:        4,
	}
}

// New builds a run context over an in-memory store with every adapter
// registered under its own name.
func New(t ogctest.TB, plan *config.Plan, adapters ...provider.Adapter) *Harness {
	t.Helper()

	reg := provider.NewRegistry()
	for _, a := range adapters {
		a := a
		reg.Register(a.Name(), func(context.Context) (provider.Adapter, error) { return a, nil })
	}

	store := ogctest.NewStore(t)
	dialer := NewFakeDialer(nil)
	obs := NewMockObserver()
	timeouts := Timeouts()

	ctx := &provisioning.Context{
		Context:   ogctest.TestContext(t),
		Plan:      plan,
		Store:     store,
		Providers: reg,
		Dialer:    dialer,
		Observer:  obs,
		Log:       logr.Discard(),
		Timeouts:  timeouts,
		Metrics:   metrics.New(),
		Pool:      async.NewPool(timeouts.MaxWorkers),
		DataDir:   t.TempDir(),
		Now:       time.Now,
	}
	return &Harness{Ctx: ctx, Store: store, Remotes: dialer, Events: obs}
}
