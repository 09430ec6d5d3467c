package destroy

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
)

const archiveName = "artifacts.tar.gz"

// ArchivePath is where the artifacts of node are stored locally.
func ArchivePath(dataDir, node string) string {
	return filepath.Join(dataDir, "artifacts", node, archiveName)
}

// ArchiveKey is the object key for the artifacts of node.
func ArchiveKey(plan, node string) string {
	return path.Join(plan, node, archiveName)
}

func (d *Destroyer) archive(ctx context.Context, remote provisioning.Remote, node *inventory.Node) (string, error) {
	local := ArchivePath(d.pctx.DataDir, node.Name)
	if err := os.MkdirAll(filepath.Dir(local), 0o750); err != nil {
		return "", err
	}

	f, err := os.Create(local) //nolint:gosec // path built from the data dir
	if err != nil {
		return "", err
	}
	if err := remote.Archive(ctx, node.Layout.Artifacts, f); err != nil {
		_ = f.Close()
		_ = os.Remove(local)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", local, err)
	}
	return local, nil
}

func (d *Destroyer) upload(ctx context.Context, obs provisioning.Observer, node *inventory.Node, local string) bool {
	if d.pctx.Artifacts == nil {
		return false
	}
	key := ArchiveKey(d.pctx.Plan.Name, node.Name)
	if err := d.pctx.Artifacts.Upload(ctx, key, local); err != nil {
		obs.Printf("[%s] Failed to upload artifacts of %s: %v", phase, node.Name, err)
		return false
	}
	obs.Printf("[%s] Uploaded artifacts of %s to %s", phase, node.Name, key)
	return true
}
