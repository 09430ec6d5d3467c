package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

func ingressPermissions(l config.Layout) ([]types.IpPermission, error) {
	ranges, err := l.PortRanges()
	if err != nil {
		return nil, err
	}
	perms := make([]types.IpPermission, 0, len(ranges))
	for _, r := range ranges {
		perms = append(perms, types.IpPermission{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(int32(r.From)), //nolint:gosec // ports are validated to 1-65535
			ToPort:     aws.Int32(int32(r.To)),   //nolint:gosec // ports are validated to 1-65535
			IpRanges:   []types.IpRange{{CidrIp: aws.String("0.0.0.0/0"), Description: aws.String("ogc " + l.Name)}},
			Ipv6Ranges: []types.Ipv6Range{{CidrIpv6: aws.String("::/0"), Description: aws.String("ogc " + l.Name)}},
		})
	}
	return perms, nil
}

func findSecurityGroup(ctx context.Context, api EC2API, name string) (string, error) {
	out, err := api.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{{Name: aws.String("group-name"), Values: []string{name}}},
	})
	if err != nil {
		return "", classify(fmt.Errorf("failed to look up security group %s: %w", name, err))
	}
	if len(out.SecurityGroups) == 0 {
		return "", nil
	}
	return aws.ToString(out.SecurityGroups[0].GroupId), nil
}

// ensureSecurityGroup returns the instance's security group, creating it
// with the layout's ingress rules when missing.
func (a *Adapter) ensureSecurityGroup(ctx context.Context, api EC2API, instance string, l config.Layout, tags []types.Tag) (string, error) {
	perms, err := ingressPermissions(l)
	if err != nil {
		return "", retry.Fatal(err)
	}
	name := naming.SecurityGroup(instance)

	id, err := findSecurityGroup(ctx, api, name)
	if err != nil || id != "" {
		return id, err
	}

	out, err := api.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String("ogc ingress for " + instance),
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeSecurityGroup,
			Tags:         tags,
		}},
	})
	if hasCode(err, "InvalidGroup.Duplicate") {
		return findSecurityGroup(ctx, api, name)
	}
	if err != nil {
		return "", classify(fmt.Errorf("failed to create security group %s: %w", name, err))
	}
	id = aws.ToString(out.GroupId)

	_, err = api.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(id),
		IpPermissions: perms,
	})
	if err != nil && !hasCode(err, "InvalidPermission.Duplicate") {
		return "", classify(fmt.Errorf("failed to authorize ingress on %s: %w", name, err))
	}
	return id, nil
}

// deleteSecurityGroup removes the instance's security group. EC2 refuses
// while a terminating instance still references it, so that error is
// retried.
func (a *Adapter) deleteSecurityGroup(ctx context.Context, api EC2API, instance string) error {
	name := naming.SecurityGroup(instance)
	err := retry.WithExponentialBackoff(ctx, func() error {
		id, err := findSecurityGroup(ctx, api, name)
		if err != nil || id == "" {
			return err
		}
		_, err = api.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(id)})
		switch {
		case err == nil, hasCode(err, "InvalidGroup.NotFound"):
			return nil
		case hasCode(err, "DependencyViolation", "RequestLimitExceeded"):
			return err
		}
		return retry.Fatal(classify(err))
	},
		retry.WithMaxRetries(a.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(a.timeouts.RetryInitialDelay))
	if err != nil {
		return fmt.Errorf("failed to delete security group %s: %w", name, err)
	}
	return nil
}
