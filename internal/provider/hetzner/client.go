package hetzner

import (
	"context"
	"os"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
)

// Name is the provider name used in plan files.
const Name = "hetzner"

// TokenEnv holds the API token.
const TokenEnv = "HCLOUD_TOKEN"

// Adapter implements provider.Adapter. The underlying hcloud.Client is
// safe for concurrent use, so one Adapter serves every worker.
type Adapter struct {
	client   *hcloud.Client
	timeouts *config.Timeouts
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeouts sets custom timeouts.
func WithTimeouts(t *config.Timeouts) Option {
	return func(a *Adapter) {
		a.timeouts = t
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) Option {
	return func(a *Adapter) {
		a.client = hc
	}
}

// NewAdapter creates an adapter for the given API token.
func NewAdapter(token string, opts ...Option) *Adapter {
	a := &Adapter{
		client:   hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("ogc", "")),
		timeouts: config.LoadTimeouts(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// New is the registry factory. It reads the token from HCLOUD_TOKEN.
func New(_ context.Context) (provider.Adapter, error) {
	token := os.Getenv(TokenEnv)
	if token == "" {
		return nil, &provider.CredentialsError{Provider: Name, Detail: TokenEnv + " is not set"}
	}
	return NewAdapter(token), nil
}

func (a *Adapter) Name() string {
	return Name
}

var _ provider.Adapter = (*Adapter)(nil)
