package docker

import (
	"context"
	"net/url"

	"github.com/docker/docker/client"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
)

// Name is the provider name used in plan files.
const Name = "docker"

// sshPort is the port sshd listens on inside the container.
const sshPort = "22/tcp"

// Adapter implements provider.Adapter on one daemon.
type Adapter struct {
	client   *client.Client
	timeouts *config.Timeouts
	// host is the address published ports are reachable on.
	host string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeouts sets custom timeouts.
func WithTimeouts(t *config.Timeouts) Option {
	return func(a *Adapter) { a.timeouts = t }
}

// WithPublishHost overrides the address nodes are reached on.
func WithPublishHost(host string) Option {
	return func(a *Adapter) { a.host = host }
}

// NewAdapter wraps an existing docker client.
func NewAdapter(c *client.Client, opts ...Option) *Adapter {
	a := &Adapter{
		client:   c,
		timeouts: config.LoadTimeouts(),
		host:     publishHost(c.DaemonHost()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// New is the registry factory. The daemon is taken from DOCKER_HOST and
// the related variables, falling back to the local socket.
func New(ctx context.Context) (provider.Adapter, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, &provider.CredentialsError{Provider: Name, Detail: "invalid docker environment", Err: err}
	}
	if _, err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, &provider.CredentialsError{Provider: Name, Detail: "daemon unreachable", Err: err}
	}
	return NewAdapter(c), nil
}

func (a *Adapter) Name() string {
	return Name
}

// publishHost returns the host of a tcp daemon, or loopback for local
// sockets.
func publishHost(daemon string) string {
	u, err := url.Parse(daemon)
	if err != nil || u.Hostname() == "" || u.Scheme == "unix" || u.Scheme == "npipe" {
		return "127.0.0.1"
	}
	return u.Hostname()
}

var _ provider.Adapter = (*Adapter)(nil)
