package testing

import (
	"os"
	"path/filepath"

	"github.com/adam-stokes/ogc-sub000/internal/util/keygen"
)

// WriteKeyPair generates an ed25519 key pair into dir and returns the
// public and private key paths.
func WriteKeyPair(t TB, dir string) (pub, priv string) {
	t.Helper()
	kp, err := keygen.GenerateEd25519KeyPair("ogc-test")
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	priv = filepath.Join(dir, "id_ed25519")
	if err := kp.WriteFiles(priv); err != nil {
		t.Fatalf("write key pair: %v", err)
	}
	return priv + ".pub", priv
}

// WriteScripts writes each file into dir and returns dir.
func WriteScripts(t TB, dir string, files map[string]string) string {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return dir
}
