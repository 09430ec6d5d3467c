package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// DefaultRemotePath is where deployment scripts are uploaded on a node.
const DefaultRemotePath = "/tmp/ogc"

// Plan is the root of a plan file.
type Plan struct {
	Name    string             `yaml:"name" toml:"name"`
	SSHKeys SSHKeys            `yaml:"ssh_keys" toml:"ssh_keys"`
	Env     map[string]string  `yaml:"env,omitempty" toml:"env"`
	Layouts map[string]*Layout `yaml:"layouts" toml:"layouts"`
}

// SSHKeys are the default key paths for every layout.
type SSHKeys struct {
	Public  string `yaml:"public" toml:"public"`
	Private string `yaml:"private" toml:"private"`
}

// Layout describes one homogeneous group of nodes. It is immutable once
// the plan is loaded, and every node keeps a copy of the layout that
// produced it.
type Layout struct {
	Name          string            `yaml:"-" toml:"-" cbor:"name"`
	Provider      string            `yaml:"provider" toml:"provider" cbor:"provider"`
	InstanceSize  string            `yaml:"instance_size" toml:"instance_size" cbor:"instance_size"`
	RunsOn        string            `yaml:"runs_on" toml:"runs_on" cbor:"runs_on"`
	Region        string            `yaml:"region,omitempty" toml:"region" cbor:"region,omitempty"`
	Scale         int               `yaml:"scale" toml:"scale" cbor:"scale"`
	Username      string            `yaml:"username" toml:"username" cbor:"username"`
	SSHPublicKey  string            `yaml:"ssh_public_key,omitempty" toml:"ssh_public_key" cbor:"ssh_public_key"`
	SSHPrivateKey string            `yaml:"ssh_private_key,omitempty" toml:"ssh_private_key" cbor:"ssh_private_key"`
	Ports         []string          `yaml:"ports,omitempty" toml:"ports" cbor:"ports,omitempty"`
	Tags          []string          `yaml:"tags,omitempty" toml:"tags" cbor:"tags,omitempty"`
	Labels        map[string]string `yaml:"labels,omitempty" toml:"labels" cbor:"labels,omitempty"`
	Scripts       string            `yaml:"scripts,omitempty" toml:"scripts" cbor:"scripts,omitempty"`
	Artifacts     string            `yaml:"artifacts,omitempty" toml:"artifacts" cbor:"artifacts,omitempty"`
	RemotePath    string            `yaml:"remote_path,omitempty" toml:"remote_path" cbor:"remote_path,omitempty"`
}

// PortRange is an inclusive TCP ingress range.
type PortRange struct {
	From int
	To   int
}

func (p PortRange) String() string {
	if p.From == p.To {
		return strconv.Itoa(p.From)
	}
	return fmt.Sprintf("%d-%d", p.From, p.To)
}

// ParsePort parses "22" or "8000:8080".
func ParsePort(s string) (PortRange, error) {
	from, to, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		to = from
	}
	f, err := strconv.Atoi(from)
	if err != nil {
		return PortRange{}, fmt.Errorf("invalid port %q", s)
	}
	t, err := strconv.Atoi(to)
	if err != nil {
		return PortRange{}, fmt.Errorf("invalid port %q", s)
	}
	if f < 1 || t > 65535 || f > t {
		return PortRange{}, fmt.Errorf("port range %q out of bounds", s)
	}
	return PortRange{From: f, To: t}, nil
}

// PortRanges parses every entry of Ports. Port 22 is always included so
// nodes stay reachable for deployment.
func (l *Layout) PortRanges() ([]PortRange, error) {
	ranges := make([]PortRange, 0, len(l.Ports)+1)
	hasSSH := false
	for _, p := range l.Ports {
		r, err := ParsePort(p)
		if err != nil {
			return nil, err
		}
		if r.From <= 22 && r.To >= 22 {
			hasSSH = true
		}
		ranges = append(ranges, r)
	}
	if !hasSSH {
		ranges = append([]PortRange{{From: 22, To: 22}}, ranges...)
	}
	return ranges, nil
}

// ReadPublicKey returns the layout's public key in authorized_keys format.
func (l *Layout) ReadPublicKey() (string, error) {
	data, err := os.ReadFile(l.SSHPublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to read public key for layout %s: %w", l.Name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ReadPrivateKey returns the layout's PEM private key.
func (l *Layout) ReadPrivateKey() ([]byte, error) {
	data, err := os.ReadFile(l.SSHPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key for layout %s: %w", l.Name, err)
	}
	return data, nil
}

// HasTag reports whether tag is one of the layout's tags.
func (l *Layout) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// LayoutNames returns the layout names in sorted order.
func (p *Plan) LayoutNames() []string {
	names := make([]string, 0, len(p.Layouts))
	for name := range p.Layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Layout returns the named layout.
func (p *Plan) Layout(name string) (*Layout, error) {
	l, ok := p.Layouts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLayout, name)
	}
	return l, nil
}

// Providers returns the distinct providers used by the plan, sorted.
func (p *Plan) Providers() []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range p.Layouts {
		if !seen[l.Provider] {
			seen[l.Provider] = true
			out = append(out, l.Provider)
		}
	}
	sort.Strings(out)
	return out
}
