package ssh

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

// Dialer opens sessions to inventory nodes using the credentials of the
// node's layout.
type Dialer struct {
	dialTimeout time.Duration
	maxRetries  int
	retryDelay  time.Duration
	hostKey     ssh.HostKeyCallback
}

// DialerOption configures a Dialer.
type DialerOption func(*Dialer)

// WithRetryDelay sets the initial backoff between dial attempts.
func WithRetryDelay(d time.Duration) DialerOption {
	return func(dl *Dialer) { dl.retryDelay = d }
}

// WithHostKeyCallback enables host key verification.
func WithHostKeyCallback(cb ssh.HostKeyCallback) DialerOption {
	return func(dl *Dialer) { dl.hostKey = cb }
}

// NewDialer returns a Dialer bounded by the SSH limits in t.
func NewDialer(t *config.Timeouts, opts ...DialerOption) *Dialer {
	d := &Dialer{
		dialTimeout: t.SSHDial,
		maxRetries:  t.SSHMaxRetries,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial connects to node as its layout's user. Missing or unreadable keys
// are fatal; unreachable hosts are retried before giving up.
func (d *Dialer) Dial(ctx context.Context, node *inventory.Node) (*Session, error) {
	if node.PublicIP == "" {
		return nil, retry.Fatal(fmt.Errorf("node %s has no public address", node.Name))
	}
	key, err := node.Layout.ReadPrivateKey()
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("node %s: %w", node.Name, err))
	}

	client, err := NewClient(&Config{
		Host:            node.PublicIP,
		Port:            node.Port(),
		User:            node.Layout.Username,
		PrivateKey:      key,
		DialTimeout:     d.dialTimeout,
		MaxRetries:      d.maxRetries,
		RetryDelay:      d.retryDelay,
		HostKeyCallback: d.hostKey,
	})
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("node %s: %w", node.Name, err))
	}

	sess, err := client.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", node.Name, err)
	}
	return sess, nil
}
