package testing

import (
	"maps"

	"github.com/adam-stokes/ogc-sub000/internal/config"
)

// PlanBuilder provides a fluent interface for constructing test plans.
// Each method returns a new builder (immutable) for chaining.
type PlanBuilder struct {
	t    TB
	plan config.Plan
}

// NewPlanBuilder creates a PlanBuilder with a freshly generated key pair
// on disk and no layouts.
func NewPlanBuilder(t TB) *PlanBuilder {
	t.Helper()
	pub, priv := WriteKeyPair(t, t.TempDir())
	return &PlanBuilder{
		t: t,
		plan: config.Plan{
			Name:    "test-plan",
			SSHKeys: config.SSHKeys{Public: pub, Private: priv},
			Layouts: map[string]*config.Layout{},
		},
	}
}

// WithName sets the plan name.
func (b *PlanBuilder) WithName(name string) *PlanBuilder {
	nb := b.clone()
	nb.plan.Name = name
	return nb
}

// WithEnv sets a plan environment variable.
func (b *PlanBuilder) WithEnv(key, value string) *PlanBuilder {
	nb := b.clone()
	if nb.plan.Env == nil {
		nb.plan.Env = map[string]string{}
	}
	nb.plan.Env[key] = value
	return nb
}

// WithLayout adds a layout using the plan's keys.
func (b *PlanBuilder) WithLayout(name, provider string, scale int) *PlanBuilder {
	nb := b.clone()
	nb.plan.Layouts[name] = &config.Layout{
		Name:          name,
		Provider:      provider,
		InstanceSize:  "small",
		RunsOn:        "ubuntu-24.04",
		Scale:         scale,
		Username:      "ubuntu",
		SSHPublicKey:  nb.plan.SSHKeys.Public,
		SSHPrivateKey: nb.plan.SSHKeys.Private,
		RemotePath:    config.DefaultRemotePath,
	}
	return nb
}

// WithScale changes the scale of an existing layout.
func (b *PlanBuilder) WithScale(layout string, scale int) *PlanBuilder {
	return b.edit(layout, func(l *config.Layout) { l.Scale = scale })
}

// WithScripts writes files into a new scripts directory for the layout.
func (b *PlanBuilder) WithScripts(layout string, files map[string]string) *PlanBuilder {
	dir := WriteScripts(b.t, b.t.TempDir(), files)
	return b.edit(layout, func(l *config.Layout) { l.Scripts = dir })
}

// WithArtifacts sets the remote artifact path of the layout.
func (b *PlanBuilder) WithArtifacts(layout, path string) *PlanBuilder {
	return b.edit(layout, func(l *config.Layout) { l.Artifacts = path })
}

// WithTags sets the tags of the layout.
func (b *PlanBuilder) WithTags(layout string, tags ...string) *PlanBuilder {
	return b.edit(layout, func(l *config.Layout) { l.Tags = tags })
}

// WithPorts sets the ingress ports of the layout.
func (b *PlanBuilder) WithPorts(layout string, ports ...string) *PlanBuilder {
	return b.edit(layout, func(l *config.Layout) { l.Ports = ports })
}

// Build returns the constructed plan.
func (b *PlanBuilder) Build() *config.Plan {
	return &b.clone().plan
}

func (b *PlanBuilder) edit(layout string, fn func(*config.Layout)) *PlanBuilder {
	nb := b.clone()
	l, ok := nb.plan.Layouts[layout]
	if !ok {
		b.t.Fatalf("layout %q not defined, call WithLayout first", layout)
	}
	fn(l)
	return nb
}

// clone creates a deep copy of the builder for immutability.
func (b *PlanBuilder) clone() *PlanBuilder {
	p := b.plan
	p.Env = cloneStringMap(b.plan.Env)
	p.Layouts = make(map[string]*config.Layout, len(b.plan.Layouts))
	for name, l := range b.plan.Layouts {
		cl := *l
		cl.Ports = cloneStringSlice(l.Ports)
		cl.Tags = cloneStringSlice(l.Tags)
		cl.Labels = cloneStringMap(l.Labels)
		p.Layouts[name] = &cl
	}
	return &PlanBuilder{t: b.t, plan: p}
}

// cloneStringMap creates a deep copy of a string map.
func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cloned := make(map[string]string, len(m))
	maps.Copy(cloned, m)
	return cloned
}

// cloneStringSlice creates a copy of a string slice.
func cloneStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	cloned := make([]string, len(s))
	copy(cloned, s)
	return cloned
}
