package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/adam-stokes/ogc-sub000/internal/provider"
)

// ListImages returns available machine images owned by the account or
// by Amazon in the default region.
func (a *Adapter) ListImages(ctx context.Context) ([]provider.Image, error) {
	out, err := a.client("").DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{"self", "amazon"},
		Filters: []types.Filter{
			{Name: aws.String("state"), Values: []string{"available"}},
			{Name: aws.String("image-type"), Values: []string{"machine"}},
		},
	})
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list images: %w", err))
	}

	images := make([]provider.Image, 0, len(out.Images))
	for _, img := range out.Images {
		images = append(images, provider.Image{
			ID:           aws.ToString(img.ImageId),
			Name:         aws.ToString(img.Name),
			Description:  aws.ToString(img.Description),
			Architecture: string(img.Architecture),
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

// ListSizes returns the instance types offered in the default region.
func (a *Adapter) ListSizes(ctx context.Context) ([]provider.Size, error) {
	var sizes []provider.Size
	p := ec2.NewDescribeInstanceTypesPaginator(a.client(""), &ec2.DescribeInstanceTypesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(fmt.Errorf("failed to list instance types: %w", err))
		}
		for _, it := range page.InstanceTypes {
			sizes = append(sizes, sizeOf(it))
		}
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i].Name < sizes[j].Name })
	return sizes, nil
}

func sizeOf(it types.InstanceTypeInfo) provider.Size {
	s := provider.Size{Name: string(it.InstanceType)}
	if it.VCpuInfo != nil {
		s.Cores = int(aws.ToInt32(it.VCpuInfo.DefaultVCpus))
	}
	if it.MemoryInfo != nil {
		s.MemoryGB = float64(aws.ToInt64(it.MemoryInfo.SizeInMiB)) / 1024
	}
	if it.InstanceStorageInfo != nil {
		s.DiskGB = int(aws.ToInt64(it.InstanceStorageInfo.TotalSizeInGB))
	}
	if it.ProcessorInfo != nil && len(it.ProcessorInfo.SupportedArchitectures) > 0 {
		s.Description = string(it.ProcessorInfo.SupportedArchitectures[0])
	}
	return s
}
