package hetzner

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/util/labels"
	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

// Create provisions a server for req and waits until it is running.
// A server that already exists under the instance name is adopted, so a
// retried create never trips over its own earlier attempt.
func (a *Adapter) Create(ctx context.Context, req provider.CreateRequest) (*inventory.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeouts.Create)
	defer cancel()

	existing, _, err := a.client.Server.Get(ctx, req.Instance)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to look up server %s: %w", req.Instance, err))
	}
	if existing != nil {
		return a.nodeFor(ctx, existing, req.Layout)
	}

	opts, err := a.buildServerCreateOpts(ctx, req)
	if err != nil {
		return nil, err
	}

	result, _, err := a.client.Server.Create(ctx, opts)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to create server %s: %w", req.Instance, err))
	}
	if err := waitForActions(ctx, a.client, append([]*hcloud.Action{result.Action}, result.NextActions...)...); err != nil {
		return nil, fmt.Errorf("failed to wait for server %s: %w", req.Instance, err)
	}

	server, _, err := a.client.Server.GetByID(ctx, result.Server.ID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to refresh server %s: %w", req.Instance, err))
	}
	if server == nil {
		return nil, fmt.Errorf("server %s disappeared after creation", req.Instance)
	}
	return a.nodeFor(ctx, server, req.Layout)
}

func (a *Adapter) nodeFor(_ context.Context, server *hcloud.Server, layout config.Layout) (*inventory.Node, error) {
	node := nodeFromServer(server)
	node.Layout = layout
	if node.PublicIP == "" {
		return nil, fmt.Errorf("server %s has no public IPv4", server.Name)
	}
	return node, nil
}

// buildServerCreateOpts resolves the layout's server type, image, region,
// key pair and firewall.
func (a *Adapter) buildServerCreateOpts(ctx context.Context, req provider.CreateRequest) (hcloud.ServerCreateOpts, error) {
	l := req.Layout

	serverType, _, err := a.client.ServerType.Get(ctx, l.InstanceSize)
	if err != nil {
		return hcloud.ServerCreateOpts{}, classify(fmt.Errorf("failed to get server type: %w", err))
	}
	if serverType == nil {
		return hcloud.ServerCreateOpts{}, retry.Fatal(fmt.Errorf("server type not found: %s", l.InstanceSize))
	}

	image, _, err := a.client.Image.GetForArchitecture(ctx, l.RunsOn, serverType.Architecture)
	if err != nil {
		return hcloud.ServerCreateOpts{}, classify(fmt.Errorf("failed to get image: %w", err))
	}
	if image == nil {
		return hcloud.ServerCreateOpts{}, retry.Fatal(fmt.Errorf("image %s not found for %s", l.RunsOn, serverType.Architecture))
	}

	var location *hcloud.Location
	if l.Region != "" {
		location, _, err = a.client.Location.Get(ctx, l.Region)
		if err != nil {
			return hcloud.ServerCreateOpts{}, classify(fmt.Errorf("failed to get location %s: %w", l.Region, err))
		}
		if location == nil {
			return hcloud.ServerCreateOpts{}, retry.Fatal(fmt.Errorf("location not found: %s", l.Region))
		}
	}

	key, err := a.resolveKeyPair(ctx, req.KeyPair)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	serverLabels := labels.NewLabelBuilder(req.Plan).
		WithLayout(l.Name).
		WithInstance(req.Instance).
		WithTags(l.Tags).
		Merge(l.Labels).
		Build()

	fw, err := a.ensureFirewall(ctx, req.Instance, l, serverLabels)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	return hcloud.ServerCreateOpts{
		Name:       req.Instance,
		ServerType: serverType,
		Image:      image,
		SSHKeys:    []*hcloud.SSHKey{key},
		Location:   location,
		Labels:     serverLabels,
		Firewalls:  []*hcloud.ServerCreateFirewall{{Firewall: *fw}},
	}, nil
}

// Destroy deletes the node's server and firewall.
func (a *Adapter) Destroy(ctx context.Context, node *inventory.Node) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeouts.Destroy)
	defer cancel()

	server, _, err := a.client.Server.Get(ctx, node.Name)
	if err != nil {
		return false, classify(fmt.Errorf("failed to look up server %s: %w", node.Name, err))
	}

	existed := server != nil
	if existed {
		result, _, err := a.client.Server.DeleteWithResult(ctx, server)
		switch {
		case IsNotFound(err):
			existed = false
		case err != nil:
			return false, classify(fmt.Errorf("failed to delete server %s: %w", node.Name, err))
		default:
			if err := waitForActions(ctx, a.client, result.Action); err != nil {
				return true, fmt.Errorf("failed to wait for server %s deletion: %w", node.Name, err)
			}
		}
	}

	if _, err := a.deleteFirewall(ctx, node.Name); err != nil {
		return existed, err
	}
	return existed, nil
}

// ListNodes returns managed servers matching sel.
func (a *Adapter) ListNodes(ctx context.Context, sel provider.Selector) ([]*inventory.Node, error) {
	selector := labels.SelectorForPlan(sel.Plan)
	if sel.Layout != "" {
		selector = labels.SelectorForLayout(sel.Plan, sel.Layout)
	}

	servers, err := a.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list servers: %w", err))
	}

	nodes := make([]*inventory.Node, 0, len(servers))
	for _, s := range servers {
		nodes = append(nodes, nodeFromServer(s))
	}
	return nodes, nil
}

func nodeFromServer(s *hcloud.Server) *inventory.Node {
	n := &inventory.Node{
		ID:        strconv.FormatInt(s.ID, 10),
		Name:      s.Name,
		Provider:  Name,
		State:     stateOf(s.Status),
		SSHPort:   22,
		CreatedAt: s.Created.UTC(),
	}
	if ip := s.PublicNet.IPv4.IP; ip != nil && !ip.IsUnspecified() {
		n.PublicIP = ip.String()
	}
	if len(s.PrivateNet) > 0 && s.PrivateNet[0].IP != nil {
		n.PrivateIP = s.PrivateNet[0].IP.String()
	}

	layout := s.Labels[labels.KeyLayout]
	if layout == "" {
		layout, _ = naming.LayoutOf(s.Name)
	}
	n.Layout = config.Layout{
		Name:     layout,
		Provider: Name,
		Tags:     labels.TagsFrom(s.Labels),
		Labels:   labels.UserLabels(s.Labels),
	}
	if s.ServerType != nil {
		n.Layout.InstanceSize = s.ServerType.Name
	}
	if s.Image != nil {
		n.Layout.RunsOn = s.Image.Name
	}
	if s.Datacenter != nil && s.Datacenter.Location != nil { //nolint:staticcheck // location is only reachable through the datacenter on older API versions
		n.Layout.Region = s.Datacenter.Location.Name //nolint:staticcheck
	}
	return n
}

func stateOf(status hcloud.ServerStatus) inventory.State {
	switch status {
	case hcloud.ServerStatusRunning:
		return inventory.StateRunning
	case hcloud.ServerStatusInitializing, hcloud.ServerStatusStarting:
		return inventory.StatePending
	case hcloud.ServerStatusOff, hcloud.ServerStatusStopping:
		return inventory.StateStopped
	case hcloud.ServerStatusDeleting:
		return inventory.StateTerminated
	}
	return inventory.StateUnknown
}
