package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/util/labels"
)

// CreateKeyPair imports publicKey under name in the default region. An
// existing key of the same name is reused.
func (a *Adapter) CreateKeyPair(ctx context.Context, name, publicKey string) (provider.KeyPairRef, error) {
	api := a.client("")
	out, err := api.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(name),
		PublicKeyMaterial: []byte(publicKey),
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeKeyPair,
			Tags:         toTags(labels.NewLabelBuilder("").WithInstance(name).Build()),
		}},
	})
	if hasCode(err, "InvalidKeyPair.Duplicate") {
		info, lookupErr := describeKeyPair(ctx, api, name)
		if lookupErr != nil {
			return provider.KeyPairRef{}, lookupErr
		}
		if info != nil {
			return refFor(info.KeyPairId, info.KeyName), nil
		}
	}
	if err != nil {
		return provider.KeyPairRef{}, classify(fmt.Errorf("failed to import key pair %s: %w", name, err))
	}
	return refFor(out.KeyPairId, out.KeyName), nil
}

func refFor(id, name *string) provider.KeyPairRef {
	return provider.KeyPairRef{Provider: Name, ID: aws.ToString(id), Name: aws.ToString(name)}
}

func describeKeyPair(ctx context.Context, api EC2API, name string) (*types.KeyPairInfo, error) {
	out, err := api.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{KeyNames: []string{name}})
	if hasCode(err, "InvalidKeyPair.NotFound") {
		return nil, nil
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to describe key pair %s: %w", name, err))
	}
	if len(out.KeyPairs) == 0 {
		return nil, nil
	}
	return &out.KeyPairs[0], nil
}

// DeleteKeyPair deletes the key pair. It returns false when the key did
// not exist.
func (a *Adapter) DeleteKeyPair(ctx context.Context, ref provider.KeyPairRef) (bool, error) {
	api := a.client("")
	info, err := describeKeyPair(ctx, api, ref.Name)
	if err != nil || info == nil {
		return false, err
	}
	if _, err := api.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{KeyPairId: info.KeyPairId}); err != nil {
		if hasCode(err, "InvalidKeyPair.NotFound") {
			return false, nil
		}
		return true, classify(fmt.Errorf("failed to delete key pair %s: %w", ref.Name, err))
	}
	return true, nil
}
