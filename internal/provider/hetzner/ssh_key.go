package hetzner

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"golang.org/x/crypto/ssh"

	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/util/labels"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

// CreateKeyPair registers publicKey under name. Hetzner rejects a second
// key with the same fingerprint, so a key that is already registered is
// returned instead of creating a duplicate.
func (a *Adapter) CreateKeyPair(ctx context.Context, name, publicKey string) (provider.KeyPairRef, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey))
	if err != nil {
		return provider.KeyPairRef{}, retry.Fatal(fmt.Errorf("invalid public key: %w", err))
	}
	fingerprint := ssh.FingerprintLegacyMD5(pub)

	if key, err := a.keyByFingerprint(ctx, fingerprint); err != nil || key != nil {
		return refFor(key), err
	}

	key, _, err := a.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      name,
		PublicKey: publicKey,
		Labels:    labels.NewLabelBuilder("").WithInstance(name).Build(),
	})
	if isHCloudErrorCode(err, hcloud.ErrorCodeUniquenessError) {
		// lost a race with a sibling registering the same key
		existing, lookupErr := a.keyByFingerprint(ctx, fingerprint)
		if lookupErr == nil && existing != nil {
			return refFor(existing), nil
		}
	}
	if err != nil {
		return provider.KeyPairRef{}, classify(fmt.Errorf("failed to create ssh key %s: %w", name, err))
	}
	return refFor(key), nil
}

func (a *Adapter) keyByFingerprint(ctx context.Context, fingerprint string) (*hcloud.SSHKey, error) {
	key, _, err := a.client.SSHKey.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to look up ssh key: %w", err))
	}
	return key, nil
}

func refFor(key *hcloud.SSHKey) provider.KeyPairRef {
	if key == nil {
		return provider.KeyPairRef{}
	}
	return provider.KeyPairRef{Provider: Name, ID: strconv.FormatInt(key.ID, 10), Name: key.Name}
}

func (a *Adapter) resolveKeyPair(ctx context.Context, ref provider.KeyPairRef) (*hcloud.SSHKey, error) {
	idOrName := ref.ID
	if idOrName == "" {
		idOrName = ref.Name
	}
	key, _, err := a.client.SSHKey.Get(ctx, idOrName)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get ssh key %s: %w", idOrName, err))
	}
	if key == nil {
		// deleted by a sibling's teardown; the caller's retry registers it again
		return nil, fmt.Errorf("ssh key not found: %s", idOrName)
	}
	return key, nil
}

// DeleteKeyPair deletes the key by ID, falling back to its name.
func (a *Adapter) DeleteKeyPair(ctx context.Context, ref provider.KeyPairRef) (bool, error) {
	op := &deleteOperation[*hcloud.SSHKey]{
		Name:         ref.Name,
		ResourceType: "ssh key",
		Get:          a.client.SSHKey.Get,
		Delete:       a.client.SSHKey.Delete,
	}
	if id, err := strconv.ParseInt(ref.ID, 10, 64); err == nil {
		op.Name = ref.ID
		op.Get = func(ctx context.Context, _ string) (*hcloud.SSHKey, *hcloud.Response, error) {
			return a.client.SSHKey.GetByID(ctx, id)
		}
	}
	return op.execute(ctx, a)
}
