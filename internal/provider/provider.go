package provider

import (
	"context"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
)

// Adapter is implemented by every cloud backend.
type Adapter interface {
	// Name returns the provider name used in plan files.
	Name() string

	// Create provisions one node and blocks until it is running with an
	// address. It does not retry.
	Create(ctx context.Context, req CreateRequest) (*inventory.Node, error)

	// Destroy removes the node and any per-node resources the adapter
	// created with it. It returns false when the node was already gone.
	Destroy(ctx context.Context, node *inventory.Node) (bool, error)

	// ListNodes returns the provider's view of managed nodes.
	ListNodes(ctx context.Context, sel Selector) ([]*inventory.Node, error)

	CreateKeyPair(ctx context.Context, name, publicKey string) (KeyPairRef, error)

	// DeleteKeyPair returns false when the key pair was already gone.
	DeleteKeyPair(ctx context.Context, ref KeyPairRef) (bool, error)

	ListImages(ctx context.Context) ([]Image, error)
	ListSizes(ctx context.Context) ([]Size, error)
}

// CreateRequest carries everything an adapter needs to create a node.
type CreateRequest struct {
	Plan     string
	Instance string
	Layout   config.Layout
	KeyPair  KeyPairRef
}

// Selector narrows ListNodes to one plan and optionally one layout.
type Selector struct {
	Plan   string
	Layout string
}

// KeyPairRef identifies a key pair registered with a provider.
type KeyPairRef struct {
	Provider string
	ID       string
	Name     string
}

// IsZero reports whether the reference is unset.
func (r KeyPairRef) IsZero() bool {
	return r.ID == "" && r.Name == ""
}

// Image is a bootable image offered by a provider.
type Image struct {
	ID           string
	Name         string
	Description  string
	Architecture string
}

// Size is a machine size class offered by a provider.
type Size struct {
	Name        string
	Cores       int
	MemoryGB    float64
	DiskGB      int
	Description string
}
