package docker

import (
	"context"
	"fmt"
	"sort"

	"github.com/docker/docker/api/types/image"

	"github.com/adam-stokes/ogc-sub000/internal/provider"
)

// CreateKeyPair returns a reference for name. The key itself travels in
// the container environment.
func (a *Adapter) CreateKeyPair(_ context.Context, name, _ string) (provider.KeyPairRef, error) {
	return provider.KeyPairRef{Provider: Name, Name: name}, nil
}

// DeleteKeyPair has nothing to delete and always reports false.
func (a *Adapter) DeleteKeyPair(context.Context, provider.KeyPairRef) (bool, error) {
	return false, nil
}

// ListImages returns the tagged images present on the daemon.
func (a *Adapter) ListImages(ctx context.Context) ([]provider.Image, error) {
	summaries, err := a.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	var images []provider.Image
	for _, s := range summaries {
		for _, tag := range s.RepoTags {
			images = append(images, provider.Image{ID: s.ID, Name: tag})
		}
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

// ListSizes reports the daemon host as the only size: containers share
// its resources.
func (a *Adapter) ListSizes(ctx context.Context) ([]provider.Size, error) {
	info, err := a.client.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query daemon: %w", err)
	}
	return []provider.Size{{
		Name:        "host",
		Cores:       info.NCPU,
		MemoryGB:    float64(info.MemTotal) / (1 << 30),
		Description: info.OperatingSystem + " " + info.Architecture,
	}}, nil
}
