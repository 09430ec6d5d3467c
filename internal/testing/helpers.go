package testing

import (
	"context"
	"time"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// NewStore opens an in-memory inventory store closed at test cleanup.
func NewStore(t TB) *inventory.BadgerStore {
	t.Helper()
	s, err := inventory.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TB is the subset of testing.TB the helpers use. Both *testing.T and
// ginkgo's GinkgoT() satisfy it.
type TB interface {
	Helper()
	TempDir() string
	Cleanup(func())
	Fatalf(format string, args ...any)
}
