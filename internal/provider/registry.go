package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

// Factory connects to a provider using credentials from the environment.
type Factory func(ctx context.Context) (Adapter, error)

// Registry maps provider names to adapters and caches connected handles.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	handles   map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		handles:   make(map[string]Adapter),
	}
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	delete(r.handles, name)
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a provider name without connecting.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, &UnsupportedProviderError{Name: name, Known: r.namesLocked()}
	}
	return f, nil
}

// Connect returns the shared handle for name, connecting on first use.
// Connection errors are fatal: they mean the run is misconfigured.
func (r *Registry) Connect(ctx context.Context, name string) (Adapter, error) {
	f, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.handles[name]; ok {
		return a, nil
	}
	a, err := f(ctx)
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("failed to connect to %s: %w", name, err))
	}
	r.handles[name] = a
	return a, nil
}

// ConnectAll connects every named provider up front so configuration
// errors surface before any node is touched.
func (r *Registry) ConnectAll(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := r.Connect(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
