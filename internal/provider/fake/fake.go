// Package fake provides an in-memory provider.Adapter for tests and local
// dry runs. Failures can be injected per operation.
package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
)

// Name is the default provider name.
const Name = "fake"

// Adapter keeps nodes in memory. Created nodes are running immediately
// and share one address, so tests can point them at a single SSH server.
type Adapter struct {
	name string
	host string
	port int

	mu       sync.Mutex
	seq      int
	nodes    map[string]*inventory.Node
	keys     map[string]provider.KeyPairRef
	creates  int
	destroys int

	createErrs  []error
	destroyErrs []error
	createHook  func(provider.CreateRequest) error
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithName registers the adapter under another provider name.
func WithName(name string) Option {
	return func(a *Adapter) { a.name = name }
}

// WithAddress sets the address given to created nodes.
func WithAddress(host string, port int) Option {
	return func(a *Adapter) { a.host, a.port = host, port }
}

// WithCreateHook runs fn before each create; a non-nil error fails it.
func WithCreateHook(fn func(provider.CreateRequest) error) Option {
	return func(a *Adapter) { a.createHook = fn }
}

// New returns an empty adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		name:  Name,
		host:  "127.0.0.1",
		port:  22,
		nodes: make(map[string]*inventory.Node),
		keys:  make(map[string]provider.KeyPairRef),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Factory returns a registry factory handing out a.
func (a *Adapter) Factory() provider.Factory {
	return func(context.Context) (provider.Adapter, error) { return a, nil }
}

// FailCreates makes the next creates fail with errs, in order.
func (a *Adapter) FailCreates(errs ...error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.createErrs = append(a.createErrs, errs...)
}

// FailDestroys makes the next destroys fail with errs, in order.
func (a *Adapter) FailDestroys(errs ...error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyErrs = append(a.destroyErrs, errs...)
}

// Seed adds nodes as if they had been created earlier.
func (a *Adapter) Seed(nodes ...*inventory.Node) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, n := range nodes {
		c := *n
		a.nodes[n.Name] = &c
	}
}

// Forget drops a node behind the caller's back, simulating an external
// delete.
func (a *Adapter) Forget(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.nodes, name)
}

// Creates returns the number of create calls, failed ones included.
func (a *Adapter) Creates() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.creates
}

// Destroys returns the number of destroy calls.
func (a *Adapter) Destroys() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroys
}

// Keys returns the registered key pair names, sorted.
func (a *Adapter) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.keys))
	for name := range a.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *Adapter) Name() string {
	return a.name
}

func (a *Adapter) Create(ctx context.Context, req provider.CreateRequest) (*inventory.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.createHook != nil {
		if err := a.createHook(req); err != nil {
			a.mu.Lock()
			a.creates++
			a.mu.Unlock()
			return nil, err
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.creates++
	if len(a.createErrs) > 0 {
		err := a.createErrs[0]
		a.createErrs = a.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if n, ok := a.nodes[req.Instance]; ok {
		c := *n
		return &c, nil
	}

	a.seq++
	n := &inventory.Node{
		ID:        fmt.Sprintf("fake-%04d", a.seq),
		Name:      req.Instance,
		Provider:  a.name,
		State:     inventory.StateRunning,
		PublicIP:  a.host,
		PrivateIP: fmt.Sprintf("10.0.0.%d", a.seq%250+1),
		SSHPort:   a.port,
		Layout:    req.Layout,
		CreatedAt: time.Now().UTC(),
	}
	a.nodes[n.Name] = n
	c := *n
	return &c, nil
}

func (a *Adapter) Destroy(ctx context.Context, node *inventory.Node) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroys++
	if len(a.destroyErrs) > 0 {
		err := a.destroyErrs[0]
		a.destroyErrs = a.destroyErrs[1:]
		if err != nil {
			return false, err
		}
	}
	if _, ok := a.nodes[node.Name]; !ok {
		return false, nil
	}
	delete(a.nodes, node.Name)
	return true, nil
}

func (a *Adapter) ListNodes(_ context.Context, sel provider.Selector) ([]*inventory.Node, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*inventory.Node
	for _, n := range a.nodes {
		if sel.Layout != "" && !naming.BelongsTo(n.Name, sel.Layout) {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (a *Adapter) CreateKeyPair(_ context.Context, name, publicKey string) (provider.KeyPairRef, error) {
	if publicKey == "" {
		return provider.KeyPairRef{}, fmt.Errorf("empty public key")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if ref, ok := a.keys[name]; ok {
		return ref, nil
	}
	a.seq++
	ref := provider.KeyPairRef{Provider: a.name, ID: fmt.Sprintf("key-%04d", a.seq), Name: name}
	a.keys[name] = ref
	return ref, nil
}

func (a *Adapter) DeleteKeyPair(_ context.Context, ref provider.KeyPairRef) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.keys[ref.Name]; !ok {
		return false, nil
	}
	delete(a.keys, ref.Name)
	return true, nil
}

func (a *Adapter) ListImages(context.Context) ([]provider.Image, error) {
	return []provider.Image{{ID: "img-1", Name: "ubuntu-24.04", Architecture: "x86_64"}}, nil
}

func (a *Adapter) ListSizes(context.Context) ([]provider.Size, error) {
	return []provider.Size{{Name: "small", Cores: 1, MemoryGB: 1, DiskGB: 10}}, nil
}

var _ provider.Adapter = (*Adapter)(nil)
