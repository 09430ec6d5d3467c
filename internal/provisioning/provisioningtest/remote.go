// Package provisioningtest provides in-memory stand-ins for the remote
// side of fleet operations.
package provisioningtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/platform/ssh"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
)

// Upload is a file written through a FakeRemote.
type Upload struct {
	Data []byte
	Mode os.FileMode
}

// FakeRemote records everything done through it. Commands exit 0 unless
// ExitCodes or Handler say otherwise.
type FakeRemote struct {
	mu sync.Mutex

	// ExitCodes maps an exact command to its exit code.
	ExitCodes map[string]int
	// Handler overrides ExitCodes when set.
	Handler func(cmd string) *ssh.Result
	// Files are returned by Archive, keyed by remote path.
	Files map[string][]byte

	commands []string
	uploads  map[string]Upload
	order    []string
	closed   bool
}

// NewFakeRemote returns an empty FakeRemote.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		ExitCodes: map[string]int{},
		Files:     map[string][]byte{},
		uploads:   map[string]Upload{},
	}
}

// Exec implements provisioning.Remote.
func (r *FakeRemote) Exec(ctx context.Context, cmd string) (*ssh.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	if r.Handler != nil {
		return r.Handler(cmd), nil
	}
	code := r.ExitCodes[cmd]
	return &ssh.Result{
		ExitCode: code,
		Stdout:   "ran " + cmd + "\n",
		Stderr:   stderrFor(code),
	}, nil
}

func stderrFor(code int) string {
	if code == 0 {
		return ""
	}
	return fmt.Sprintf("exit status %d\n", code)
}

// Upload implements provisioning.Remote.
func (r *FakeRemote) Upload(ctx context.Context, src io.Reader, remotePath string, mode os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads[remotePath] = Upload{Data: data, Mode: mode}
	r.order = append(r.order, remotePath)
	return nil
}

// Archive implements provisioning.Remote.
func (r *FakeRemote) Archive(ctx context.Context, remotePath string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	data, ok := r.Files[remotePath]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("tar: %s: Cannot stat: No such file or directory", remotePath)
	}
	_, err := io.Copy(w, bytes.NewReader(data))
	return err
}

// Close implements provisioning.Remote.
func (r *FakeRemote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Commands returns the executed commands in order.
func (r *FakeRemote) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

// Uploaded returns the file written to path.
func (r *FakeRemote) Uploaded(path string) (Upload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.uploads[path]
	return u, ok
}

// UploadOrder returns the upload destinations in order.
func (r *FakeRemote) UploadOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Closed reports whether Close was called.
func (r *FakeRemote) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// FakeDialer hands out one FakeRemote per node name.
type FakeDialer struct {
	mu      sync.Mutex
	remotes map[string]*FakeRemote
	fail    map[string]error
	dials   map[string]int
	setup   func(*FakeRemote)
}

var _ provisioning.Dialer = (*FakeDialer)(nil)

// NewFakeDialer returns a dialer whose remotes are prepared by setup,
// which may be nil.
func NewFakeDialer(setup func(*FakeRemote)) *FakeDialer {
	return &FakeDialer{
		remotes: map[string]*FakeRemote{},
		fail:    map[string]error{},
		dials:   map[string]int{},
		setup:   setup,
	}
}

// Dial implements provisioning.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, node *inventory.Node) (provisioning.Remote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.dials[node.Name]++
	err := d.fail[node.Name]
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return d.Remote(node.Name), nil
}

// Remote returns the remote for name, creating it on first use.
func (d *FakeDialer) Remote(name string) *FakeRemote {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.remotes[name]
	if !ok {
		r = NewFakeRemote()
		if d.setup != nil {
			d.setup(r)
		}
		d.remotes[name] = r
	}
	return r
}

// FailFor makes every dial to name return err.
func (d *FakeDialer) FailFor(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[name] = err
}

// Dials returns how often name was dialed.
func (d *FakeDialer) Dials(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[name]
}

// Dialed returns the names of every node dialed at least once.
func (d *FakeDialer) Dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.dials))
	for n := range d.dials {
		names = append(names, n)
	}
	return names
}
