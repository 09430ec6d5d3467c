package provisioning

import (
	"context"
	"io"
	"os"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/platform/ssh"
)

// Remote is an open session on a node.
// *ssh.Session satisfies it.
type Remote interface {
	Exec(ctx context.Context, cmd string) (*ssh.Result, error)
	Upload(ctx context.Context, r io.Reader, remotePath string, mode os.FileMode) error
	Archive(ctx context.Context, remotePath string, w io.Writer) error
	Close() error
}

// Dialer opens sessions to nodes.
type Dialer interface {
	Dial(ctx context.Context, node *inventory.Node) (Remote, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, node *inventory.Node) (Remote, error)

// Dial implements Dialer.
func (f DialFunc) Dial(ctx context.Context, node *inventory.Node) (Remote, error) {
	return f(ctx, node)
}

// NewSSHDialer returns a Dialer backed by the SSH client.
func NewSSHDialer(t *config.Timeouts, opts ...ssh.DialerOption) Dialer {
	d := ssh.NewDialer(t, opts...)
	return DialFunc(func(ctx context.Context, node *inventory.Node) (Remote, error) {
		s, err := d.Dial(ctx, node)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
