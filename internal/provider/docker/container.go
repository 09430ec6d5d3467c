package docker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/util/labels"
	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

// Create starts a container for req. A container that already exists
// under the instance name is adopted and started.
func (a *Adapter) Create(ctx context.Context, req provider.CreateRequest) (*inventory.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeouts.Create)
	defer cancel()

	name := naming.Container(req.Instance)
	_, err := a.client.ContainerInspect(ctx, name)
	switch {
	case err == nil:
	case client.IsErrNotFound(err):
		if err := a.createContainer(ctx, name, req); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}

	if err := a.client.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container %s: %w", name, err)
	}

	info, err := a.client.ContainerInspect(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	node, err := a.nodeFromInspect(info)
	if err != nil {
		return nil, err
	}
	node.Layout = req.Layout
	return node, nil
}

func (a *Adapter) createContainer(ctx context.Context, name string, req provider.CreateRequest) error {
	l := req.Layout
	publicKey, err := l.ReadPublicKey()
	if err != nil {
		return retry.Fatal(err)
	}
	ranges, err := l.PortRanges()
	if err != nil {
		return retry.Fatal(err)
	}

	if err := a.pull(ctx, l.RunsOn); err != nil {
		return err
	}

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	bindIP := "127.0.0.1"
	if a.host != "127.0.0.1" {
		bindIP = "0.0.0.0"
	}
	for _, r := range ranges {
		for p := r.From; p <= r.To; p++ {
			port := nat.Port(strconv.Itoa(p) + "/tcp")
			exposed[port] = struct{}{}
			// host ports are picked by the daemon
			bindings[port] = []nat.PortBinding{{HostIP: bindIP}}
		}
	}

	ctrLabels := labels.NewLabelBuilder(req.Plan).
		WithLayout(l.Name).
		WithInstance(req.Instance).
		WithTags(l.Tags).
		Merge(l.Labels).
		Build()

	_, err = a.client.ContainerCreate(ctx,
		&container.Config{
			Image:    l.RunsOn,
			Hostname: name,
			Env: []string{
				"PUBLIC_KEY=" + publicKey,
				"USER_NAME=" + l.Username,
			},
			Labels:       ctrLabels,
			ExposedPorts: exposed,
		},
		&container.HostConfig{PortBindings: bindings},
		nil, nil, name)
	if err != nil {
		return fmt.Errorf("failed to create container %s: %w", name, err)
	}
	return nil
}

// pull fetches ref unless it is already present.
func (a *Adapter) pull(ctx context.Context, ref string) error {
	if _, _, err := a.client.ImageInspectWithRaw(ctx, ref); err == nil {
		return nil
	}
	rc, err := a.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		if client.IsErrNotFound(err) {
			return retry.Fatal(fmt.Errorf("image not found: %s", ref))
		}
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer func() { _ = rc.Close() }()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

// Destroy force-removes the node's container. It returns false when the
// container did not exist.
func (a *Adapter) Destroy(ctx context.Context, node *inventory.Node) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeouts.Destroy)
	defer cancel()

	name := naming.Container(node.Name)
	err := a.client.ContainerRemove(ctx, name, container.RemoveOptions{Force: true, RemoveVolumes: true})
	switch {
	case err == nil:
		return true, nil
	case client.IsErrNotFound(err):
		return false, nil
	}
	return false, fmt.Errorf("failed to remove container %s: %w", name, err)
}

// ListNodes returns managed containers matching sel, running or not.
func (a *Adapter) ListNodes(ctx context.Context, sel provider.Selector) ([]*inventory.Node, error) {
	args := filters.NewArgs(filters.Arg("label", labels.KeyManagedBy+"="+labels.ManagedByOGC))
	if sel.Plan != "" {
		args.Add("label", labels.KeyPlan+"="+labels.Sanitize(sel.Plan))
	}
	if sel.Layout != "" {
		args.Add("label", labels.KeyLayout+"="+labels.Sanitize(sel.Layout))
	}

	containers, err := a.client.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	nodes := make([]*inventory.Node, 0, len(containers))
	for _, c := range containers {
		nodes = append(nodes, a.nodeFromSummary(c))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

func (a *Adapter) nodeFromInspect(info types.ContainerJSON) (*inventory.Node, error) {
	if info.ContainerJSONBase == nil {
		return nil, fmt.Errorf("empty inspect response")
	}
	name := strings.TrimPrefix(info.Name, "/")
	n := &inventory.Node{
		ID:       info.ID,
		Name:     name,
		Provider: Name,
		PublicIP: a.host,
		State:    inventory.StateUnknown,
	}
	if info.State != nil {
		n.State = stateOf(info.State.Status)
	}
	if created, err := time.Parse(time.RFC3339Nano, info.Created); err == nil {
		n.CreatedAt = created.UTC()
	}
	if ns := info.NetworkSettings; ns != nil {
		n.PrivateIP = ns.IPAddress
		for _, b := range ns.Ports[sshPort] {
			if p, err := strconv.Atoi(b.HostPort); err == nil {
				n.SSHPort = p
				break
			}
		}
	}
	if n.SSHPort == 0 {
		return nil, fmt.Errorf("container %s does not publish %s", name, sshPort)
	}
	if info.Config != nil {
		n.Layout = layoutFromLabels(name, info.Config.Labels)
		n.Layout.RunsOn = info.Config.Image
	}
	return n, nil
}

func (a *Adapter) nodeFromSummary(c types.Container) *inventory.Node {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	n := &inventory.Node{
		ID:        c.ID,
		Name:      name,
		Provider:  Name,
		PublicIP:  a.host,
		State:     stateOf(c.State),
		CreatedAt: time.Unix(c.Created, 0).UTC(),
		Layout:    layoutFromLabels(name, c.Labels),
	}
	n.Layout.RunsOn = c.Image
	for _, p := range c.Ports {
		if p.PrivatePort == 22 && p.PublicPort != 0 {
			n.SSHPort = int(p.PublicPort)
		}
	}
	return n
}

func layoutFromLabels(name string, l map[string]string) config.Layout {
	layout := l[labels.KeyLayout]
	if layout == "" {
		layout, _ = naming.LayoutOf(name)
	}
	return config.Layout{
		Name:     layout,
		Provider: Name,
		Tags:     labels.TagsFrom(l),
		Labels:   labels.UserLabels(l),
	}
}

func stateOf(status string) inventory.State {
	switch status {
	case "created", "restarting":
		return inventory.StatePending
	case "running":
		return inventory.StateRunning
	case "paused", "exited":
		return inventory.StateStopped
	case "removing", "dead":
		return inventory.StateTerminated
	}
	return inventory.StateUnknown
}
