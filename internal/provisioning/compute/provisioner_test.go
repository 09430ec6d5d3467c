package compute

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/provider/fake"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/provisioningtest"
	ogctest "github.com/adam-stokes/ogc-sub000/internal/testing"
	"github.com/adam-stokes/ogc-sub000/internal/util/async"
	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

func newHarness(t *testing.T, adapters ...provider.Adapter) *provisioningtest.Harness {
	t.Helper()
	plan := ogctest.NewPlanBuilder(t).WithLayout("web", fake.Name, 3).Build()
	return provisioningtest.New(t, plan, adapters...)
}

func nodes(t *testing.T, results []async.Result[*inventory.Node]) []*inventory.Node {
	t.Helper()
	out := make([]*inventory.Node, 0, len(results))
	for _, r := range results {
		require.NoError(t, r.Err, r.Name)
		out = append(out, r.Value)
	}
	return out
}

func TestProvisioner_Name(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "compute", NewProvisioner().Name())
}

func TestProvision_CreatesAndRecords(t *testing.T) {
	t.Parallel()
	adapter := fake.New()
	h := newHarness(t, adapter)
	layout := *h.Ctx.Plan.Layouts["web"]

	created := nodes(t, NewProvisioner().Provision(h.Ctx, layout, 3))
	require.Len(t, created, 3)
	assert.Equal(t, 3, adapter.Creates())
	assert.Len(t, adapter.Keys(), 3)

	seen := map[string]bool{}
	for _, n := range created {
		assert.True(t, naming.BelongsTo(n.Name, "web"), n.Name)
		assert.False(t, seen[n.Name], "names are unique")
		seen[n.Name] = true

		stored, err := h.Store.Get(h.Ctx, n.Name)
		require.NoError(t, err)
		assert.Equal(t, "web", stored.Layout.Name)
		assert.Equal(t, inventory.StateRunning, stored.State)

		svc, err := h.Store.GetService(h.Ctx, n.Name)
		require.NoError(t, err)
		assert.Equal(t, n.Name, svc.KeyPair)
		assert.NotEmpty(t, svc.KeyPairID)
		assert.Equal(t, n.ID, svc.Extra["node_id"])
	}

	assert.Len(t, h.Events.EventsOf(provisioning.EventResourceCreated), 3)
	assert.Len(t, h.Events.EventsOf(provisioning.EventPhaseCompleted), 1)
}

func TestProvision_ZeroCount(t *testing.T) {
	t.Parallel()
	adapter := fake.New()
	h := newHarness(t, adapter)
	assert.Nil(t, NewProvisioner().Provision(h.Ctx, *h.Ctx.Plan.Layouts["web"], 0))
	assert.Zero(t, adapter.Creates())
}

func TestProvision_RetriesTransientFailure(t *testing.T) {
	t.Parallel()
	adapter := fake.New()
	adapter.FailCreates(errors.New("rate limit exceeded"))
	h := newHarness(t, adapter)

	created := nodes(t, NewProvisioner().Provision(h.Ctx, *h.Ctx.Plan.Layouts["web"], 1))
	require.Len(t, created, 1)
	assert.Equal(t, 2, adapter.Creates())
	assert.Len(t, adapter.Keys(), 1, "key pair registered once across attempts")
}

func TestProvision_ExhaustedReleasesKeyPair(t *testing.T) {
	t.Parallel()
	adapter := fake.New()
	transient := errors.New("service unavailable")
	adapter.FailCreates(transient, transient, transient)
	h := newHarness(t, adapter)

	results := NewProvisioner().Provision(h.Ctx, *h.Ctx.Plan.Layouts["web"], 1)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.True(t, retry.IsExhausted(results[0].Err))
	assert.ErrorIs(t, results[0].Err, transient)
	assert.Equal(t, 3, adapter.Creates())
	assert.Empty(t, adapter.Keys())

	_, err := h.Store.Get(h.Ctx, results[0].Name)
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	series, err := testutil.GatherAndCount(h.Ctx.Metrics.Registry(), "ogc_nodes_created_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series, "only the failure series is recorded")
}

func TestProvision_FatalErrorNotRetried(t *testing.T) {
	t.Parallel()
	adapter := fake.New()
	adapter.FailCreates(retry.Fatal(errors.New("image not found")))
	h := newHarness(t, adapter)

	results := NewProvisioner().Provision(h.Ctx, *h.Ctx.Plan.Layouts["web"], 1)
	require.Error(t, results[0].Err)
	assert.True(t, retry.IsFatal(results[0].Err))
	assert.Equal(t, 1, adapter.Creates())
}

func TestProvision_PartialFailureKeepsSiblings(t *testing.T) {
	t.Parallel()
	adapter := fake.New()
	bad := retry.Fatal(errors.New("quota exceeded"))
	adapter.FailCreates(bad)
	h := newHarness(t, adapter)

	results := NewProvisioner().Provision(h.Ctx, *h.Ctx.Plan.Layouts["web"], 3)
	require.Len(t, results, 3)
	assert.Len(t, async.Errors(results), 1)

	stored, err := h.Store.Query(h.Ctx, inventory.ByLayout("web"))
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Len(t, h.Events.EventsOf(provisioning.EventPhaseFailed), 1)
}

func TestProvision_MissingPublicKeyIsFatal(t *testing.T) {
	t.Parallel()
	adapter := fake.New()
	h := newHarness(t, adapter)
	layout := *h.Ctx.Plan.Layouts["web"]
	layout.SSHPublicKey = "/nonexistent/key.pub"

	results := NewProvisioner().Provision(h.Ctx, layout, 1)
	require.Error(t, results[0].Err)
	assert.True(t, retry.IsFatal(results[0].Err))
	assert.Zero(t, adapter.Creates())
}

func TestProvision_PassesRequestToAdapter(t *testing.T) {
	t.Parallel()
	m := &ogctest.MockAdapter{ProviderName: fake.Name}
	h := newHarness(t, m)
	layout := *h.Ctx.Plan.Layouts["web"]
	ref := provider.KeyPairRef{Provider: fake.Name, ID: "42", Name: "k"}

	m.On("CreateKeyPair", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return(ref, nil).Once()
	m.On("Create", mock.Anything, mock.MatchedBy(func(req provider.CreateRequest) bool {
		return req.Plan == "test-plan" && req.KeyPair == ref && req.Layout.Name == "web" && naming.BelongsTo(req.Instance, "web")
	})).Return(&inventory.Node{ID: "srv-1", Name: "placeholder", State: inventory.StateRunning}, nil).Once()

	results := NewProvisioner().Provision(h.Ctx, layout, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, fake.Name, results[0].Value.Provider, "provider filled from layout")
	assert.False(t, results[0].Value.CreatedAt.IsZero())
	m.AssertExpectations(t)
}

// suffixes returns a name generator handing out the given suffixes in
// order.
func suffixes(list ...string) func(string) string {
	var i int
	return func(layout string) string {
		s := list[i%len(list)]
		i++
		return naming.InstanceWithSuffix(layout, s)
	}
}

func TestProvision_RedrawsClashingNames(t *testing.T) {
	t.Parallel()
	adapter := fake.New()
	h := newHarness(t, adapter)
	layout := *h.Ctx.Plan.Layouts["web"]

	existing := &inventory.Node{
		ID:      "old-1",
		Name:    naming.InstanceWithSuffix("web", "aaaaaaaa"),
		Layout:  layout,
		Actions: []inventory.Action{{Command: "uptime"}},
	}
	require.NoError(t, h.Store.Put(h.Ctx, existing))
	adapter.Seed(existing)

	p := NewProvisioner()
	p.newName = suffixes("aaaaaaaa", "bbbbbbbb", "bbbbbbbb", "cccccccc")

	created := nodes(t, p.Provision(h.Ctx, layout, 2))
	names := []string{created[0].Name, created[1].Name}
	assert.ElementsMatch(t, []string{
		naming.InstanceWithSuffix("web", "bbbbbbbb"),
		naming.InstanceWithSuffix("web", "cccccccc"),
	}, names)
	assert.Equal(t, 2, adapter.Creates())

	kept, err := h.Store.Get(h.Ctx, existing.Name)
	require.NoError(t, err)
	assert.Equal(t, "old-1", kept.ID)
	assert.Len(t, kept.Actions, 1, "existing history untouched")

	stored, err := h.Store.Query(h.Ctx, inventory.ByLayout("web"))
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestProvision_NoFreeNameCreatesNothing(t *testing.T) {
	t.Parallel()
	adapter := fake.New()
	h := newHarness(t, adapter)
	layout := *h.Ctx.Plan.Layouts["web"]
	require.NoError(t, h.Store.Put(h.Ctx, &inventory.Node{Name: naming.InstanceWithSuffix("web", "aaaaaaaa")}))

	p := NewProvisioner()
	p.newName = suffixes("aaaaaaaa")

	results := p.Provision(h.Ctx, layout, 2)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorContains(t, r.Err, "no free instance name")
	}
	assert.Zero(t, adapter.Creates())
}

// failingStore fails node or service writes on demand.
type failingStore struct {
	inventory.Store
	putErr     error
	serviceErr error
}

func (s *failingStore) Put(ctx context.Context, node *inventory.Node) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.Store.Put(ctx, node)
}

func (s *failingStore) PutService(ctx context.Context, svc *inventory.Service) error {
	if s.serviceErr != nil {
		return s.serviceErr
	}
	return s.Store.PutService(ctx, svc)
}

func TestProvision_UnrecordedNodeIsRemoved(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		store func(inventory.Store) *failingStore
		want  string
	}{
		{
			name:  "node record",
			store: func(s inventory.Store) *failingStore { return &failingStore{Store: s, putErr: errors.New("disk full")} },
			want:  "failed to record node",
		},
		{
			name:  "service record",
			store: func(s inventory.Store) *failingStore { return &failingStore{Store: s, serviceErr: errors.New("disk full")} },
			want:  "failed to record key pair",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			adapter := fake.New()
			h := newHarness(t, adapter)
			h.Ctx.Store = tt.store(h.Store)

			results := NewProvisioner().Provision(h.Ctx, *h.Ctx.Plan.Layouts["web"], 1)
			require.Len(t, results, 1)
			assert.ErrorContains(t, results[0].Err, tt.want)

			assert.Equal(t, 1, adapter.Destroys())
			assert.Empty(t, adapter.Keys(), "key pair released")
			live, err := adapter.ListNodes(h.Ctx, provider.Selector{})
			require.NoError(t, err)
			assert.Empty(t, live, "nothing left at the provider")

			_, err = h.Store.Get(h.Ctx, results[0].Name)
			assert.ErrorIs(t, err, inventory.ErrNotFound)
		})
	}
}
