package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/util/labels"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

func newTestAdapter(api EC2API) *Adapter {
	return NewAdapter(aws.Config{Region: "eu-west-1"},
		WithEC2Client(api),
		WithTimeouts(&config.Timeouts{
			Create:            10 * time.Second,
			Destroy:           10 * time.Second,
			RetryMaxAttempts:  2,
			RetryInitialDelay: 10 * time.Millisecond,
		}),
	)
}

func webRequest() provider.CreateRequest {
	return provider.CreateRequest{
		Plan:     "demo",
		Instance: "ogc-1a2b-web",
		Layout: config.Layout{
			Name:         "web",
			Provider:     Name,
			InstanceSize: "t3.micro",
			RunsOn:       "ami-0123456789",
			Ports:        []string{"80", "8000:8080"},
			Tags:         []string{"frontend"},
			Labels:       map[string]string{"team": "ops"},
		},
		KeyPair: provider.KeyPairRef{Provider: Name, ID: "key-1", Name: "ogc-1a2b-web"},
	}
}

func TestCreate_LaunchesTaggedInstance(t *testing.T) {
	t.Parallel()
	api := newFakeEC2()
	a := newTestAdapter(api)

	node, err := a.Create(context.Background(), webRequest())
	require.NoError(t, err)

	assert.Equal(t, "ogc-1a2b-web", node.Name)
	assert.Equal(t, inventory.StateRunning, node.State)
	assert.NotEmpty(t, node.PublicIP)
	assert.Equal(t, "web", node.Layout.Name)
	assert.Equal(t, "t3.micro", node.Layout.InstanceSize)

	inst := api.instances[node.ID]
	assert.Equal(t, "web", tagValue(inst.Tags, labels.KeyLayout))
	assert.Equal(t, "true", tagValue(inst.Tags, labels.TagPrefix+"frontend"))
	assert.Equal(t, "ops", tagValue(inst.Tags, "team"))

	assert.Contains(t, api.groups, "ogc-1a2b-web-sg")
	require.Len(t, api.ingress, 3)
	assert.Equal(t, int32(22), aws.ToInt32(api.ingress[0].FromPort))
	assert.Equal(t, int32(8080), aws.ToInt32(api.ingress[2].ToPort))
}

func TestCreate_AdoptsExistingInstance(t *testing.T) {
	t.Parallel()
	api := newFakeEC2()
	a := newTestAdapter(api)

	first, err := a.Create(context.Background(), webRequest())
	require.NoError(t, err)
	second, err := a.Create(context.Background(), webRequest())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, api.instances, 1)
}

func TestCreate_ResolvesImageByName(t *testing.T) {
	t.Parallel()
	api := newFakeEC2()
	api.images = []types.Image{
		{ImageId: aws.String("ami-old"), Name: aws.String("ubuntu"), CreationDate: aws.String("2024-01-01T00:00:00Z")},
		{ImageId: aws.String("ami-new"), Name: aws.String("ubuntu"), CreationDate: aws.String("2025-01-01T00:00:00Z")},
	}
	req := webRequest()
	req.Layout.RunsOn = "ubuntu"

	node, err := newTestAdapter(api).Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ami-new", aws.ToString(api.instances[node.ID].ImageId))
}

func TestCreate_UnknownImageIsFatal(t *testing.T) {
	t.Parallel()
	req := webRequest()
	req.Layout.RunsOn = "does-not-exist"

	_, err := newTestAdapter(newFakeEC2()).Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, retry.IsFatal(err))
}

func TestCreate_AuthFailureIsCredentialsError(t *testing.T) {
	t.Parallel()
	api := newFakeEC2()
	api.runErr = apiError("AuthFailure")

	_, err := newTestAdapter(api).Create(context.Background(), webRequest())
	require.Error(t, err)
	assert.True(t, retry.IsFatal(err))
	assert.ErrorIs(t, err, provider.ErrMissingCredentials)
}

func TestCreate_ThrottlingIsRetryable(t *testing.T) {
	t.Parallel()
	api := newFakeEC2()
	api.runErr = apiError("RequestLimitExceeded")

	_, err := newTestAdapter(api).Create(context.Background(), webRequest())
	require.Error(t, err)
	assert.False(t, retry.IsFatal(err))
}

func TestDestroy(t *testing.T) {
	t.Parallel()
	api := newFakeEC2()
	a := newTestAdapter(api)
	node, err := a.Create(context.Background(), webRequest())
	require.NoError(t, err)

	existed, err := a.Destroy(context.Background(), node)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, types.InstanceStateNameTerminated, api.instances[node.ID].State.Name)
	assert.Equal(t, []string{"ogc-1a2b-web-sg"}, api.deleteGroups)

	existed, err = a.Destroy(context.Background(), node)
	require.NoError(t, err)
	assert.False(t, existed, "an already terminated instance is reported absent")
}

func TestDestroy_UnknownInstanceReturnsFalse(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(newFakeEC2())

	existed, err := a.Destroy(context.Background(), &inventory.Node{ID: "i-missing", Name: "ogc-ffff-web"})
	require.NoError(t, err)
	assert.False(t, existed)

	existed, err = a.Destroy(context.Background(), &inventory.Node{Name: "ogc-ffff-web"})
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestListNodes_FiltersByLayout(t *testing.T) {
	t.Parallel()
	api := newFakeEC2()
	a := newTestAdapter(api)

	_, err := a.Create(context.Background(), webRequest())
	require.NoError(t, err)
	db := webRequest()
	db.Instance = "ogc-9f9f-db"
	db.Layout.Name = "db"
	_, err = a.Create(context.Background(), db)
	require.NoError(t, err)

	nodes, err := a.ListNodes(context.Background(), provider.Selector{Plan: "demo", Layout: "db"})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "ogc-9f9f-db", nodes[0].Name)
	assert.Equal(t, "eu-west-1", nodes[0].Layout.Region)
	assert.Equal(t, map[string]string{"team": "ops"}, nodes[0].Layout.Labels)

	all, err := a.ListNodes(context.Background(), provider.Selector{Plan: "demo"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestKeyPairs(t *testing.T) {
	t.Parallel()
	api := newFakeEC2()
	a := newTestAdapter(api)
	ctx := context.Background()

	ref, err := a.CreateKeyPair(ctx, "ogc-1a2b-web", "ssh-ed25519 AAAA test")
	require.NoError(t, err)
	assert.Equal(t, Name, ref.Provider)
	assert.NotEmpty(t, ref.ID)

	again, err := a.CreateKeyPair(ctx, "ogc-1a2b-web", "ssh-ed25519 AAAA test")
	require.NoError(t, err)
	assert.Equal(t, ref, again, "duplicate import reuses the key")

	found, err := a.DeleteKeyPair(ctx, ref)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = a.DeleteKeyPair(ctx, ref)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListSizes(t *testing.T) {
	t.Parallel()
	api := newFakeEC2()
	api.itypes = []types.InstanceTypeInfo{
		{
			InstanceType: "t3.small",
			VCpuInfo:     &types.VCpuInfo{DefaultVCpus: aws.Int32(2)},
			MemoryInfo:   &types.MemoryInfo{SizeInMiB: aws.Int64(2048)},
		},
		{InstanceType: "m5.large"},
	}

	sizes, err := newTestAdapter(api).ListSizes(context.Background())
	require.NoError(t, err)
	require.Len(t, sizes, 2)
	assert.Equal(t, "m5.large", sizes[0].Name)
	assert.Equal(t, provider.Size{Name: "t3.small", Cores: 2, MemoryGB: 2}, sizes[1])
}

func TestClassify(t *testing.T) {
	t.Parallel()
	assert.NoError(t, classify(nil))
	assert.True(t, retry.IsFatal(classify(apiError("UnauthorizedOperation"))))
	assert.True(t, retry.IsFatal(classify(apiError("InvalidAMIID.NotFound"))))
	assert.False(t, retry.IsFatal(classify(apiError("RequestLimitExceeded"))))
	assert.False(t, retry.IsFatal(classify(errors.New("connection reset"))))
}
