package aws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// fakeEC2 keeps instances, security groups and key pairs in memory.
// Instances reach their target state immediately.
type fakeEC2 struct {
	mu        sync.Mutex
	seq       int
	instances map[string]*types.Instance
	groups    map[string]string
	keys      map[string]string
	images    []types.Image
	itypes    []types.InstanceTypeInfo

	runErr       error
	ingress      []types.IpPermission
	deleteGroups []string
}

func newFakeEC2() *fakeEC2 {
	return &fakeEC2{
		instances: make(map[string]*types.Instance),
		groups:    make(map[string]string),
		keys:      make(map[string]string),
	}
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func (f *fakeEC2) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%04d", prefix, f.seq)
}

func tagValue(tags []types.Tag, key string) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value)
		}
	}
	return ""
}

func (f *fakeEC2) matches(inst *types.Instance, filters []types.Filter) bool {
	for _, flt := range filters {
		name := aws.ToString(flt.Name)
		var got string
		switch {
		case name == "instance-state-name":
			got = string(inst.State.Name)
		case len(name) > 4 && name[:4] == "tag:":
			got = tagValue(inst.Tags, name[4:])
		default:
			continue
		}
		ok := false
		for _, v := range flt.Values {
			if v == got {
				ok = true
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func (f *fakeEC2) RunInstances(_ context.Context, in *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runErr != nil {
		return nil, f.runErr
	}
	id := f.nextID("i")
	inst := &types.Instance{
		InstanceId:       aws.String(id),
		ImageId:          in.ImageId,
		InstanceType:     in.InstanceType,
		PublicIpAddress:  aws.String(fmt.Sprintf("198.51.100.%d", f.seq)),
		PrivateIpAddress: aws.String(fmt.Sprintf("10.0.0.%d", f.seq)),
		State:            &types.InstanceState{Name: types.InstanceStateNameRunning},
		LaunchTime:       aws.Time(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		Placement:        &types.Placement{AvailabilityZone: aws.String("eu-west-1b")},
		Tags:             in.TagSpecifications[0].Tags,
	}
	f.instances[id] = inst
	return &ec2.RunInstancesOutput{Instances: []types.Instance{*inst}}, nil
}

func (f *fakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found []types.Instance
	if len(in.InstanceIds) > 0 {
		for _, id := range in.InstanceIds {
			inst, ok := f.instances[id]
			if !ok {
				return nil, apiError("InvalidInstanceID.NotFound")
			}
			found = append(found, *inst)
		}
	} else {
		for _, inst := range f.instances {
			if f.matches(inst, in.Filters) {
				found = append(found, *inst)
			}
		}
	}
	out := &ec2.DescribeInstancesOutput{}
	if len(found) > 0 {
		out.Reservations = []types.Reservation{{Instances: found}}
	}
	return out, nil
}

func (f *fakeEC2) TerminateInstances(_ context.Context, in *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &ec2.TerminateInstancesOutput{}
	for _, id := range in.InstanceIds {
		inst, ok := f.instances[id]
		if !ok {
			return nil, apiError("InvalidInstanceID.NotFound")
		}
		prev := *inst.State
		inst.State = &types.InstanceState{Name: types.InstanceStateNameTerminated}
		out.TerminatingInstances = append(out.TerminatingInstances, types.InstanceStateChange{
			InstanceId:    aws.String(id),
			PreviousState: &prev,
			CurrentState:  inst.State,
		})
	}
	return out, nil
}

func (f *fakeEC2) ImportKeyPair(_ context.Context, in *ec2.ImportKeyPairInput, _ ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.KeyName)
	if _, ok := f.keys[name]; ok {
		return nil, apiError("InvalidKeyPair.Duplicate")
	}
	id := f.nextID("key")
	f.keys[name] = id
	return &ec2.ImportKeyPairOutput{KeyName: in.KeyName, KeyPairId: aws.String(id)}, nil
}

func (f *fakeEC2) DescribeKeyPairs(_ context.Context, in *ec2.DescribeKeyPairsInput, _ ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &ec2.DescribeKeyPairsOutput{}
	for _, name := range in.KeyNames {
		id, ok := f.keys[name]
		if !ok {
			return nil, apiError("InvalidKeyPair.NotFound")
		}
		out.KeyPairs = append(out.KeyPairs, types.KeyPairInfo{KeyName: aws.String(name), KeyPairId: aws.String(id)})
	}
	return out, nil
}

func (f *fakeEC2) DeleteKeyPair(_ context.Context, in *ec2.DeleteKeyPairInput, _ ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, id := range f.keys {
		if id == aws.ToString(in.KeyPairId) {
			delete(f.keys, name)
		}
	}
	return &ec2.DeleteKeyPairOutput{}, nil
}

func (f *fakeEC2) CreateSecurityGroup(_ context.Context, in *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.GroupName)
	if _, ok := f.groups[name]; ok {
		return nil, apiError("InvalidGroup.Duplicate")
	}
	id := f.nextID("sg")
	f.groups[name] = id
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String(id)}, nil
}

func (f *fakeEC2) AuthorizeSecurityGroupIngress(_ context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingress = append(f.ingress, in.IpPermissions...)
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func (f *fakeEC2) DescribeSecurityGroups(_ context.Context, in *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &ec2.DescribeSecurityGroupsOutput{}
	for _, flt := range in.Filters {
		for _, name := range flt.Values {
			if id, ok := f.groups[name]; ok {
				out.SecurityGroups = append(out.SecurityGroups, types.SecurityGroup{GroupId: aws.String(id), GroupName: aws.String(name)})
			}
		}
	}
	return out, nil
}

func (f *fakeEC2) DeleteSecurityGroup(_ context.Context, in *ec2.DeleteSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, id := range f.groups {
		if id == aws.ToString(in.GroupId) {
			delete(f.groups, name)
			f.deleteGroups = append(f.deleteGroups, name)
			return &ec2.DeleteSecurityGroupOutput{}, nil
		}
	}
	return nil, apiError("InvalidGroup.NotFound")
}

func (f *fakeEC2) DescribeImages(_ context.Context, _ *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	return &ec2.DescribeImagesOutput{Images: f.images}, nil
}

func (f *fakeEC2) DescribeInstanceTypes(_ context.Context, _ *ec2.DescribeInstanceTypesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error) {
	return &ec2.DescribeInstanceTypesOutput{InstanceTypes: f.itypes}, nil
}

var _ EC2API = (*fakeEC2)(nil)
