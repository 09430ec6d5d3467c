package aws

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
)

// Name is the provider name used in plan files.
const Name = "aws"

const defaultRegion = "us-east-1"

// EC2API is the subset of the EC2 client used by the adapter.
type EC2API interface {
	RunInstances(ctx context.Context, in *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	TerminateInstances(ctx context.Context, in *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	ImportKeyPair(ctx context.Context, in *ec2.ImportKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error)
	DescribeKeyPairs(ctx context.Context, in *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error)
	DeleteKeyPair(ctx context.Context, in *ec2.DeleteKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error)
	CreateSecurityGroup(ctx context.Context, in *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	DescribeSecurityGroups(ctx context.Context, in *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	DeleteSecurityGroup(ctx context.Context, in *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error)
	DescribeImages(ctx context.Context, in *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	DescribeInstanceTypes(ctx context.Context, in *ec2.DescribeInstanceTypesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error)
}

// Adapter implements provider.Adapter. EC2 clients are created per
// region on first use and shared by all workers.
type Adapter struct {
	cfg      aws.Config
	timeouts *config.Timeouts

	mu      sync.Mutex
	clients map[string]EC2API
	static  EC2API
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeouts sets custom timeouts.
func WithTimeouts(t *config.Timeouts) Option {
	return func(a *Adapter) { a.timeouts = t }
}

// WithEC2Client serves every region from api (useful for testing).
func WithEC2Client(api EC2API) Option {
	return func(a *Adapter) { a.static = api }
}

// NewAdapter returns an adapter using cfg for credentials and the
// default region.
func NewAdapter(cfg aws.Config, opts ...Option) *Adapter {
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	a := &Adapter{
		cfg:      cfg,
		timeouts: config.LoadTimeouts(),
		clients:  make(map[string]EC2API),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// New is the registry factory. Credentials come from the default AWS
// chain; an empty chain is a configuration error.
func New(ctx context.Context) (provider.Adapter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, &provider.CredentialsError{Provider: Name, Detail: "failed to load configuration", Err: err}
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, &provider.CredentialsError{Provider: Name, Detail: "no credentials in the default chain", Err: err}
	}
	return NewAdapter(cfg), nil
}

func (a *Adapter) Name() string {
	return Name
}

func (a *Adapter) client(region string) EC2API {
	if a.static != nil {
		return a.static
	}
	if region == "" {
		region = a.cfg.Region
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[region]; ok {
		return c
	}
	c := ec2.NewFromConfig(a.cfg, func(o *ec2.Options) { o.Region = region })
	a.clients[region] = c
	return c
}

var _ provider.Adapter = (*Adapter)(nil)
