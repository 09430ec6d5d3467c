package aws

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/util/labels"
	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

// liveStates are the instance states still holding resources.
var liveStates = []string{"pending", "running", "stopping", "stopped", "shutting-down"}

// Create launches an instance for req and waits until it is running. An
// instance already carrying the instance name is adopted.
func (a *Adapter) Create(ctx context.Context, req provider.CreateRequest) (*inventory.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeouts.Create)
	defer cancel()

	l := req.Layout
	api := a.client(l.Region)

	existing, err := findByName(ctx, api, req.Instance)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return a.waitRunning(ctx, api, aws.ToString(existing.InstanceId), l)
	}

	imageID, err := resolveImage(ctx, api, l.RunsOn)
	if err != nil {
		return nil, err
	}

	tags := instanceTags(req)
	groupID, err := a.ensureSecurityGroup(ctx, api, req.Instance, l, tags)
	if err != nil {
		return nil, err
	}

	out, err := api.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:          aws.String(imageID),
		InstanceType:     types.InstanceType(l.InstanceSize),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		KeyName:          aws.String(req.KeyPair.Name),
		SecurityGroupIds: []string{groupID},
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeInstance,
			Tags:         tags,
		}},
	})
	if err != nil {
		return nil, classify(fmt.Errorf("failed to run instance %s: %w", req.Instance, err))
	}
	if len(out.Instances) == 0 {
		return nil, fmt.Errorf("no instance returned for %s", req.Instance)
	}
	return a.waitRunning(ctx, api, aws.ToString(out.Instances[0].InstanceId), l)
}

func (a *Adapter) waitRunning(ctx context.Context, api EC2API, id string, l config.Layout) (*inventory.Node, error) {
	input := &ec2.DescribeInstancesInput{InstanceIds: []string{id}}
	waiter := ec2.NewInstanceRunningWaiter(api)
	if err := waiter.Wait(ctx, input, a.timeouts.Create); err != nil {
		return nil, fmt.Errorf("failed to wait for instance %s: %w", id, err)
	}

	out, err := api.DescribeInstances(ctx, input)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to describe instance %s: %w", id, err))
	}
	inst := firstInstance(out)
	if inst == nil {
		return nil, fmt.Errorf("instance %s disappeared after launch", id)
	}

	node := nodeFromInstance(*inst)
	node.Layout = l
	if node.PublicIP == "" {
		return nil, fmt.Errorf("instance %s has no public IPv4", id)
	}
	return node, nil
}

// Destroy terminates the node's instance and deletes its security group.
// It returns false when no live instance was found.
func (a *Adapter) Destroy(ctx context.Context, node *inventory.Node) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeouts.Destroy)
	defer cancel()

	api := a.client(node.Layout.Region)
	id := node.ID
	if id == "" {
		inst, err := findByName(ctx, api, node.Name)
		if err != nil {
			return false, err
		}
		if inst != nil {
			id = aws.ToString(inst.InstanceId)
		}
	}

	existed := false
	if id != "" {
		out, err := api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{id}})
		switch {
		case hasCode(err, "InvalidInstanceID.NotFound", "InvalidInstanceID.Malformed"):
		case err != nil:
			return false, classify(fmt.Errorf("failed to terminate instance %s: %w", node.Name, err))
		default:
			existed = wasLive(out)
			waiter := ec2.NewInstanceTerminatedWaiter(api)
			if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}}, a.timeouts.Destroy); err != nil {
				return existed, fmt.Errorf("failed to wait for instance %s termination: %w", node.Name, err)
			}
		}
	}

	if err := a.deleteSecurityGroup(ctx, api, node.Name); err != nil {
		return existed, err
	}
	return existed, nil
}

func wasLive(out *ec2.TerminateInstancesOutput) bool {
	for _, change := range out.TerminatingInstances {
		if change.PreviousState != nil && change.PreviousState.Name != types.InstanceStateNameTerminated {
			return true
		}
	}
	return false
}

// ListNodes returns live managed instances matching sel in the default
// region.
func (a *Adapter) ListNodes(ctx context.Context, sel provider.Selector) ([]*inventory.Node, error) {
	filters := []types.Filter{
		tagFilter(labels.KeyManagedBy, labels.ManagedByOGC),
		{Name: aws.String("instance-state-name"), Values: liveStates},
	}
	if sel.Plan != "" {
		filters = append(filters, tagFilter(labels.KeyPlan, labels.Sanitize(sel.Plan)))
	}
	if sel.Layout != "" {
		filters = append(filters, tagFilter(labels.KeyLayout, labels.Sanitize(sel.Layout)))
	}

	var nodes []*inventory.Node
	p := ec2.NewDescribeInstancesPaginator(a.client(""), &ec2.DescribeInstancesInput{Filters: filters})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(fmt.Errorf("failed to list instances: %w", err))
		}
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				nodes = append(nodes, nodeFromInstance(inst))
			}
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

func findByName(ctx context.Context, api EC2API, name string) (*types.Instance, error) {
	out, err := api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			tagFilter("Name", name),
			{Name: aws.String("instance-state-name"), Values: liveStates},
		},
	})
	if err != nil {
		return nil, classify(fmt.Errorf("failed to look up instance %s: %w", name, err))
	}
	return firstInstance(out), nil
}

func firstInstance(out *ec2.DescribeInstancesOutput) *types.Instance {
	for _, r := range out.Reservations {
		if len(r.Instances) > 0 {
			return &r.Instances[0]
		}
	}
	return nil
}

// resolveImage accepts an AMI id or an image name; names resolve to the
// newest available image.
func resolveImage(ctx context.Context, api EC2API, runsOn string) (string, error) {
	if strings.HasPrefix(runsOn, "ami-") {
		return runsOn, nil
	}
	out, err := api.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Filters: []types.Filter{
			{Name: aws.String("name"), Values: []string{runsOn}},
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	})
	if err != nil {
		return "", classify(fmt.Errorf("failed to look up image %s: %w", runsOn, err))
	}
	if len(out.Images) == 0 {
		return "", retry.Fatal(fmt.Errorf("image not found: %s", runsOn))
	}
	images := out.Images
	sort.Slice(images, func(i, j int) bool {
		return aws.ToString(images[i].CreationDate) > aws.ToString(images[j].CreationDate)
	})
	return aws.ToString(images[0].ImageId), nil
}

func instanceTags(req provider.CreateRequest) []types.Tag {
	m := labels.NewLabelBuilder(req.Plan).
		WithLayout(req.Layout.Name).
		WithInstance(req.Instance).
		WithTags(req.Layout.Tags).
		Merge(req.Layout.Labels).
		Build()
	m["Name"] = req.Instance
	return toTags(m)
}

func toTags(m map[string]string) []types.Tag {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tags := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, types.Tag{Key: aws.String(k), Value: aws.String(m[k])})
	}
	return tags
}

func fromTags(tags []types.Tag) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return m
}

func tagFilter(key, value string) types.Filter {
	return types.Filter{Name: aws.String("tag:" + key), Values: []string{value}}
}

func nodeFromInstance(inst types.Instance) *inventory.Node {
	tags := fromTags(inst.Tags)
	n := &inventory.Node{
		ID:        aws.ToString(inst.InstanceId),
		Name:      tags["Name"],
		Provider:  Name,
		State:     inventory.StateUnknown,
		PublicIP:  aws.ToString(inst.PublicIpAddress),
		PrivateIP: aws.ToString(inst.PrivateIpAddress),
		SSHPort:   22,
	}
	if n.Name == "" {
		n.Name = tags[labels.KeyInstance]
	}
	if inst.State != nil {
		n.State = stateOf(inst.State.Name)
	}
	if inst.LaunchTime != nil {
		n.CreatedAt = inst.LaunchTime.UTC()
	}

	layout := tags[labels.KeyLayout]
	if layout == "" {
		layout, _ = naming.LayoutOf(n.Name)
	}
	delete(tags, "Name")
	n.Layout = config.Layout{
		Name:         layout,
		Provider:     Name,
		InstanceSize: string(inst.InstanceType),
		RunsOn:       aws.ToString(inst.ImageId),
		Tags:         labels.TagsFrom(tags),
		Labels:       labels.UserLabels(tags),
	}
	if inst.Placement != nil {
		n.Layout.Region = strings.TrimRight(aws.ToString(inst.Placement.AvailabilityZone), "abcdefghijklmnopqrstuvwxyz")
	}
	return n
}

func stateOf(name types.InstanceStateName) inventory.State {
	switch name {
	case types.InstanceStateNamePending:
		return inventory.StatePending
	case types.InstanceStateNameRunning:
		return inventory.StateRunning
	case types.InstanceStateNameStopping, types.InstanceStateNameStopped:
		return inventory.StateStopped
	case types.InstanceStateNameShuttingDown, types.InstanceStateNameTerminated:
		return inventory.StateTerminated
	}
	return inventory.StateUnknown
}
