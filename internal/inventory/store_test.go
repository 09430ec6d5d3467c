package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adam-stokes/ogc-sub000/internal/config"
)

func newTestStore(t *testing.T, opts ...Option) *BadgerStore {
	t.Helper()
	s, err := OpenInMemory(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testNode(name, id string) *Node {
	return &Node{
		ID:       id,
		Name:     name,
		Provider: "hetzner",
		State:    StateRunning,
		PublicIP: "203.0.113.10",
		Layout: config.Layout{
			Name:     "web",
			Provider: "hetzner",
			Scale:    2,
			Tags:     []string{"frontend"},
			Labels:   map[string]string{"team": "ops"},
		},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func intPtr(i int) *int { return &i }

func TestStore_PutGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	n := testNode("ogc-1a2b-web", "101")
	require.NoError(t, s.Put(ctx, n))

	got, err := s.Get(ctx, n.Name)
	require.NoError(t, err)
	assert.Equal(t, n, got)

	require.NoError(t, s.Delete(ctx, n.Name))
	_, err = s.Get(ctx, n.Name)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, n.Name), "deleting twice is idempotent")
}

func TestStore_PutRequiresName(t *testing.T) {
	t.Parallel()
	assert.Error(t, newTestStore(t).Put(context.Background(), &Node{}))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, testNode("ogc-1a2b-web", "1")))
	_, err = s.AppendAction(ctx, "ogc-1a2b-web", Action{Command: "uname", ExitCode: intPtr(0)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "ogc-1a2b-web")
	require.NoError(t, err)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, "uname", got.Actions[0].Command)
}

func TestStore_QueryAndKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	web1 := testNode("ogc-aaaa-web", "3")
	web2 := testNode("ogc-bbbb-web", "1")
	api := testNode("ogc-cccc-web-api", "2")
	api.Provider = "aws"
	api.Layout.Tags = nil
	api.Layout.Labels = nil
	for _, n := range []*Node{web2, api, web1} {
		require.NoError(t, s.Put(ctx, n))
	}

	names := func(nodes []*Node) []string {
		var out []string
		for _, n := range nodes {
			out = append(out, n.Name)
		}
		return out
	}

	all, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ogc-aaaa-web", "ogc-bbbb-web", "ogc-cccc-web-api"}, names(all))

	byLayout, err := s.Query(ctx, ByLayout("web"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ogc-aaaa-web", "ogc-bbbb-web"}, names(byLayout))

	byProvider, err := s.Query(ctx, ByProvider("aws"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ogc-cccc-web-api"}, names(byProvider))

	byTag, err := s.Query(ctx, ByTag("frontend"))
	require.NoError(t, err)
	assert.Len(t, byTag, 2)

	byLabel, err := s.Query(ctx, Where("label.team", OpEq, "ops").And(FieldName, OpContains, "bbbb"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ogc-bbbb-web"}, names(byLabel))

	_, err = s.Query(ctx, Where("colour", OpEq, "red"))
	assert.ErrorIs(t, err, ErrUnknownField)

	var keys []string
	for k, err := range s.Keys(ctx) {
		require.NoError(t, err)
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"ogc-aaaa-web", "ogc-bbbb-web", "ogc-cccc-web-api"}, keys)

	var first []string
	for k := range s.Keys(ctx) {
		first = append(first, k)
		break
	}
	assert.Len(t, first, 1)
}

func TestStore_AppendActionIsAppendOnlyAndMonotonic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Hour), base.Add(time.Minute)}
	var mu sync.Mutex
	tick := 0
	s := newTestStore(t, WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ts := clock[tick%len(clock)]
		tick++
		return ts
	}))

	require.NoError(t, s.Put(ctx, testNode("ogc-1a2b-web", "1")))

	prev := 0
	for i := range 3 {
		n, err := s.AppendAction(ctx, "ogc-1a2b-web", Action{Command: fmt.Sprintf("step-%d", i), ExitCode: intPtr(i)})
		require.NoError(t, err)
		assert.Greater(t, len(n.Actions), prev)
		prev = len(n.Actions)
	}

	got, err := s.Get(ctx, "ogc-1a2b-web")
	require.NoError(t, err)
	require.Len(t, got.Actions, 3)
	for i := 1; i < len(got.Actions); i++ {
		assert.False(t, got.Actions[i].Timestamp.Before(got.Actions[i-1].Timestamp))
	}
	assert.Equal(t, base, got.Actions[1].Timestamp, "clock going backwards is clamped")
}

func TestStore_AppendActionMissingNode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := s.AppendAction(context.Background(), "ogc-none-web", Action{Command: "true"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, held := s.locks.Load("ogc-none-web")
	assert.False(t, held)
}

func TestStore_DeleteDropsNodeLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	n := testNode("ogc-1a2b-web", "101")
	require.NoError(t, s.Put(ctx, n))
	_, err := s.AppendAction(ctx, n.Name, Action{Command: "uname", ExitCode: intPtr(0)})
	require.NoError(t, err)
	_, held := s.locks.Load(n.Name)
	require.True(t, held)

	require.NoError(t, s.Delete(ctx, n.Name))
	_, held = s.locks.Load(n.Name)
	assert.False(t, held)
}

func TestStore_ConcurrentAppendsLoseNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	nodes := []string{"ogc-aaaa-web", "ogc-bbbb-web"}
	for i, name := range nodes {
		require.NoError(t, s.Put(ctx, testNode(name, fmt.Sprint(i))))
	}

	const perNode = 20
	var wg sync.WaitGroup
	for _, name := range nodes {
		for i := range perNode {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.AppendAction(ctx, name, Action{Command: fmt.Sprintf("cmd-%d", i)})
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	for _, name := range nodes {
		got, err := s.Get(ctx, name)
		require.NoError(t, err)
		assert.Len(t, got.Actions, perNode)
	}
}

func TestStore_UpdateErrorLeavesRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Put(ctx, testNode("ogc-1a2b-web", "1")))

	boom := errors.New("boom")
	_, err := s.Update(ctx, "ogc-1a2b-web", func(n *Node) error {
		n.State = StateTerminated
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, "ogc-1a2b-web")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, got.State)

	_, err = s.Update(ctx, "ogc-1a2b-web", func(n *Node) error {
		n.Name = "other"
		return nil
	})
	assert.Error(t, err)
}

func TestStore_Services(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.PutService(ctx, &Service{Name: "ogc-1a2b-web", Provider: "aws", KeyPair: "ogc-1a2b-web", KeyPairID: "key-0abc"}))
	require.NoError(t, s.Put(ctx, testNode("ogc-1a2b-web", "1")))

	svc, err := s.GetService(ctx, "ogc-1a2b-web")
	require.NoError(t, err)
	assert.Equal(t, "key-0abc", svc.KeyPairID)
	assert.False(t, svc.UpdatedAt.IsZero())

	all, err := s.Services(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	nodes, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, nodes, 1, "service records live in their own namespace")

	require.NoError(t, s.DeleteService(ctx, "ogc-1a2b-web"))
	_, err = s.GetService(ctx, "ogc-1a2b-web")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestStore(t)

	assert.ErrorIs(t, s.Put(ctx, testNode("ogc-1a2b-web", "1")), context.Canceled)
	_, err := s.Get(ctx, "ogc-1a2b-web")
	assert.ErrorIs(t, err, context.Canceled)
}
