package provisioning

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/metrics"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/util/async"
)

// ArtifactSink receives artifact archives retrieved from nodes before
// they are destroyed.
type ArtifactSink interface {
	Upload(ctx context.Context, key, localPath string) error
}

// Context wraps all dependencies needed by a fleet operation. It is
// created once per run and passed by reference.
type Context struct {
	context.Context
	Plan      *config.Plan
	Store     inventory.Store
	Providers *provider.Registry
	Dialer    Dialer
	Observer  Observer
	Log       logr.Logger
	Timeouts  *config.Timeouts
	Metrics   *metrics.Recorder
	Pool      *async.Pool
	DataDir   string
	Artifacts ArtifactSink // optional
	Now       func() time.Time
}

// NewContext creates a run context with defaults for everything not
// passed in. Fields may be replaced before the context is used.
func NewContext(
	ctx context.Context,
	plan *config.Plan,
	store inventory.Store,
	providers *provider.Registry,
	log logr.Logger,
) *Context {
	timeouts := config.LoadTimeouts()
	return &Context{
		Context:   ctx,
		Plan:      plan,
		Store:     store,
		Providers: providers,
		Dialer:    NewSSHDialer(timeouts),
		Observer:  NewLogrObserver(log),
		Log:       log,
		Timeouts:  timeouts,
		Metrics:   metrics.New(),
		Pool:      async.NewPool(timeouts.MaxWorkers),
		DataDir:   config.DataDir(),
		Now:       time.Now,
	}
}

// WithContext returns a shallow copy bound to ctx.
func (c *Context) WithContext(ctx context.Context) *Context {
	cp := *c
	cp.Context = ctx
	return &cp
}

// Adapter connects to the named provider through the registry.
func (c *Context) Adapter(name string) (provider.Adapter, error) {
	return c.Providers.Connect(c, name)
}

// Layout returns a copy of the named plan layout.
func (c *Context) Layout(name string) (config.Layout, error) {
	l, err := c.Plan.Layout(name)
	if err != nil {
		return config.Layout{}, err
	}
	return *l, nil
}

// Since returns the elapsed time from start on the context's clock.
func (c *Context) Since(start time.Time) time.Duration {
	return c.Now().Sub(start)
}
