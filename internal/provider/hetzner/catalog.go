package hetzner

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/adam-stokes/ogc-sub000/internal/provider"
)

// ListImages returns the available system images.
func (a *Adapter) ListImages(ctx context.Context) ([]provider.Image, error) {
	images, err := a.client.Image.AllWithOpts(ctx, hcloud.ImageListOpts{
		Type:   []hcloud.ImageType{hcloud.ImageTypeSystem},
		Status: []hcloud.ImageStatus{hcloud.ImageStatusAvailable},
	})
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list images: %w", err))
	}

	out := make([]provider.Image, 0, len(images))
	for _, img := range images {
		out = append(out, provider.Image{
			ID:           strconv.FormatInt(img.ID, 10),
			Name:         img.Name,
			Description:  img.Description,
			Architecture: string(img.Architecture),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListSizes returns the server types.
func (a *Adapter) ListSizes(ctx context.Context) ([]provider.Size, error) {
	types, err := a.client.ServerType.All(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list server types: %w", err))
	}

	out := make([]provider.Size, 0, len(types))
	for _, st := range types {
		out = append(out, provider.Size{
			Name:        st.Name,
			Cores:       st.Cores,
			MemoryGB:    float64(st.Memory),
			DiskGB:      st.Disk,
			Description: st.Description,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
