package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
)

// MockAdapter is a mock implementation of provider.Adapter.
type MockAdapter struct {
	mock.Mock
	ProviderName string
}

var _ provider.Adapter = (*MockAdapter)(nil)

// Name returns ProviderName, defaulting to "mock".
func (m *MockAdapter) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Factory returns a registry factory yielding m.
func (m *MockAdapter) Factory() provider.Factory {
	return func(context.Context) (provider.Adapter, error) { return m, nil }
}

// Create returns the mocked node.
func (m *MockAdapter) Create(ctx context.Context, req provider.CreateRequest) (*inventory.Node, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Node), args.Error(1)
}

// Destroy returns the mocked result.
func (m *MockAdapter) Destroy(ctx context.Context, node *inventory.Node) (bool, error) {
	args := m.Called(ctx, node)
	return args.Bool(0), args.Error(1)
}

// ListNodes returns the mocked nodes.
func (m *MockAdapter) ListNodes(ctx context.Context, sel provider.Selector) ([]*inventory.Node, error) {
	args := m.Called(ctx, sel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*inventory.Node), args.Error(1)
}

// CreateKeyPair returns the mocked reference.
func (m *MockAdapter) CreateKeyPair(ctx context.Context, name, publicKey string) (provider.KeyPairRef, error) {
	args := m.Called(ctx, name, publicKey)
	return args.Get(0).(provider.KeyPairRef), args.Error(1)
}

// DeleteKeyPair returns the mocked result.
func (m *MockAdapter) DeleteKeyPair(ctx context.Context, ref provider.KeyPairRef) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

// ListImages returns the mocked images.
func (m *MockAdapter) ListImages(ctx context.Context) ([]provider.Image, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.Image), args.Error(1)
}

// ListSizes returns the mocked sizes.
func (m *MockAdapter) ListSizes(ctx context.Context) ([]provider.Size, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.Size), args.Error(1)
}
