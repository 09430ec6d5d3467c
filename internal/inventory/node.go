package inventory

import (
	"time"

	"github.com/adam-stokes/ogc-sub000/internal/config"
)

// State mirrors the provider's view of a node.
type State string

const (
	StatePending    State = "pending"
	StateRunning    State = "running"
	StateStopped    State = "stopped"
	StateTerminated State = "terminated"
	StateUnknown    State = "unknown"
)

// Node is a provisioned machine and its execution history.
type Node struct {
	ID        string        `cbor:"id"`
	Name      string        `cbor:"name"`
	Provider  string        `cbor:"provider"`
	State     State         `cbor:"state"`
	PublicIP  string        `cbor:"public_ip,omitempty"`
	PrivateIP string        `cbor:"private_ip,omitempty"`
	SSHPort   int           `cbor:"ssh_port,omitempty"`
	Layout    config.Layout `cbor:"layout"`
	CreatedAt time.Time     `cbor:"created_at"`
	Actions   []Action      `cbor:"actions,omitempty"`
}

// Port returns the SSH port, defaulting to 22.
func (n *Node) Port() int {
	if n.SSHPort == 0 {
		return 22
	}
	return n.SSHPort
}

// LastAction returns the most recent action, or nil.
func (n *Node) LastAction() *Action {
	if len(n.Actions) == 0 {
		return nil
	}
	return &n.Actions[len(n.Actions)-1]
}

// Action is one executed remote step. Actions are never edited once
// recorded.
type Action struct {
	Command   string            `cbor:"command"`
	ExitCode  *int              `cbor:"exit_code,omitempty"`
	Stdout    string            `cbor:"stdout,omitempty"`
	Stderr    string            `cbor:"stderr,omitempty"`
	Timestamp time.Time         `cbor:"timestamp"`
	Extra     map[string]string `cbor:"extra,omitempty"`
}

// HasStatus reports whether the step produced an exit status.
// Uploads and other bookkeeping steps do not.
func (a Action) HasStatus() bool {
	return a.ExitCode != nil
}

// Failed reports whether the step ran and exited nonzero.
func (a Action) Failed() bool {
	return a.ExitCode != nil && *a.ExitCode != 0
}

// Service records the provider-side key pair created alongside a node.
type Service struct {
	Name      string            `cbor:"name"`
	Provider  string            `cbor:"provider"`
	KeyPairID string            `cbor:"key_pair_id,omitempty"`
	KeyPair   string            `cbor:"key_pair,omitempty"`
	Extra     map[string]string `cbor:"extra,omitempty"`
	UpdatedAt time.Time         `cbor:"updated_at"`
}
