package docker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/util/labels"
)

const apiVersion = "1.45"

// fakeDaemon serves the parts of the Engine API the adapter uses.
type fakeDaemon struct {
	mu         sync.Mutex
	containers map[string]*types.ContainerJSON
	pulled     []string
	created    []container.Config
}

func newFakeDaemon(t *testing.T) (*fakeDaemon, *client.Client) {
	t.Helper()
	d := &fakeDaemon{containers: make(map[string]*types.ContainerJSON)}

	mux := http.NewServeMux()
	prefix := "/v" + apiVersion
	mux.HandleFunc("GET "+prefix+"/containers/{name}/json", d.inspect)
	mux.HandleFunc("POST "+prefix+"/containers/create", d.create)
	mux.HandleFunc("POST "+prefix+"/containers/{name}/start", d.start)
	mux.HandleFunc("DELETE "+prefix+"/containers/{name}", d.remove)
	mux.HandleFunc("GET "+prefix+"/containers/json", d.list)
	mux.HandleFunc("GET "+prefix+"/images/{ref...}", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusNotFound, map[string]string{"message": "No such image"})
	})
	mux.HandleFunc("POST "+prefix+"/images/create", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.pulled = append(d.pulled, r.URL.Query().Get("fromImage"))
		d.mu.Unlock()
		jsonResponse(w, http.StatusOK, map[string]string{"status": "done"})
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	c, err := client.NewClientWithOpts(
		client.WithHost("tcp://"+strings.TrimPrefix(ts.URL, "http://")),
		client.WithHTTPClient(ts.Client()),
		client.WithVersion(apiVersion),
	)
	require.NoError(t, err)
	return d, c
}

func jsonResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func notFound(w http.ResponseWriter, name string) {
	jsonResponse(w, http.StatusNotFound, map[string]string{"message": "No such container: " + name})
}

func (d *fakeDaemon) inspect(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.containers[r.PathValue("name")]
	if !ok {
		notFound(w, r.PathValue("name"))
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

func (d *fakeDaemon) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		container.Config
		HostConfig *container.HostConfig
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("name")

	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, body.Config)
	cfg := body.Config
	d.containers[name] = &types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:      "id-" + name,
			Name:    "/" + name,
			Created: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC).Format(time.RFC3339Nano),
			State:   &types.ContainerState{Status: "created"},
		},
		Config:          &cfg,
		NetworkSettings: &types.NetworkSettings{},
	}
	jsonResponse(w, http.StatusCreated, container.CreateResponse{ID: "id-" + name})
}

func (d *fakeDaemon) start(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.containers[r.PathValue("name")]
	if !ok {
		notFound(w, r.PathValue("name"))
		return
	}
	c.State.Status = "running"
	c.NetworkSettings.IPAddress = "172.17.0.2"
	c.NetworkSettings.Ports = nat.PortMap{sshPort: {{HostIP: "127.0.0.1", HostPort: "32768"}}}
	w.WriteHeader(http.StatusNoContent)
}

func (d *fakeDaemon) remove(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := r.PathValue("name")
	if _, ok := d.containers[name]; !ok {
		notFound(w, name)
		return
	}
	delete(d.containers, name)
	w.WriteHeader(http.StatusNoContent)
}

func (d *fakeDaemon) list(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []types.Container
	for _, c := range d.containers {
		out = append(out, types.Container{
			ID:      c.ID,
			Names:   []string{c.Name},
			Image:   c.Config.Image,
			Labels:  c.Config.Labels,
			State:   c.State.Status,
			Created: 1767225600,
			Ports:   []types.Port{{IP: "127.0.0.1", PrivatePort: 22, PublicPort: 32768, Type: "tcp"}},
		})
	}
	jsonResponse(w, http.StatusOK, out)
}

func testRequest(t *testing.T) provider.CreateRequest {
	t.Helper()
	pub := filepath.Join(t.TempDir(), "id.pub")
	require.NoError(t, os.WriteFile(pub, []byte("ssh-ed25519 AAAA test\n"), 0o600))
	return provider.CreateRequest{
		Plan:     "demo",
		Instance: "ogc-1a2b-web",
		Layout: config.Layout{
			Name:         "web",
			Provider:     Name,
			RunsOn:       "linuxserver/openssh-server",
			Username:     "ogc",
			SSHPublicKey: pub,
			Ports:        []string{"80"},
			Tags:         []string{"frontend"},
		},
	}
}

func newTestAdapter(c *client.Client) *Adapter {
	return NewAdapter(c, WithTimeouts(&config.Timeouts{Create: 10 * time.Second, Destroy: 10 * time.Second}))
}

func TestCreate(t *testing.T) {
	t.Parallel()
	d, c := newFakeDaemon(t)
	a := newTestAdapter(c)

	node, err := a.Create(context.Background(), testRequest(t))
	require.NoError(t, err)

	assert.Equal(t, "ogc-1a2b-web", node.Name)
	assert.Equal(t, inventory.StateRunning, node.State)
	assert.Equal(t, 32768, node.SSHPort)
	assert.Equal(t, "172.17.0.2", node.PrivateIP)
	assert.Equal(t, "web", node.Layout.Name)

	require.Len(t, d.created, 1)
	cfg := d.created[0]
	assert.Contains(t, cfg.Env, "PUBLIC_KEY=ssh-ed25519 AAAA test")
	assert.Contains(t, cfg.Env, "USER_NAME=ogc")
	assert.Equal(t, "web", cfg.Labels[labels.KeyLayout])
	assert.Contains(t, cfg.ExposedPorts, nat.Port("22/tcp"))
	assert.Contains(t, cfg.ExposedPorts, nat.Port("80/tcp"))
	assert.Equal(t, []string{"linuxserver/openssh-server"}, d.pulled)
}

func TestCreate_AdoptsExisting(t *testing.T) {
	t.Parallel()
	d, c := newFakeDaemon(t)
	a := newTestAdapter(c)

	_, err := a.Create(context.Background(), testRequest(t))
	require.NoError(t, err)
	_, err = a.Create(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Len(t, d.created, 1)
}

func TestDestroy(t *testing.T) {
	t.Parallel()
	_, c := newFakeDaemon(t)
	a := newTestAdapter(c)
	node, err := a.Create(context.Background(), testRequest(t))
	require.NoError(t, err)

	existed, err := a.Destroy(context.Background(), node)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = a.Destroy(context.Background(), node)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestListNodes(t *testing.T) {
	t.Parallel()
	_, c := newFakeDaemon(t)
	a := newTestAdapter(c)
	_, err := a.Create(context.Background(), testRequest(t))
	require.NoError(t, err)

	nodes, err := a.ListNodes(context.Background(), provider.Selector{Plan: "demo", Layout: "web"})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "ogc-1a2b-web", nodes[0].Name)
	assert.Equal(t, 32768, nodes[0].SSHPort)
	assert.Equal(t, []string{"frontend"}, nodes[0].Layout.Tags)
}

func TestKeyPairIsReferenceOnly(t *testing.T) {
	t.Parallel()
	_, c := newFakeDaemon(t)
	a := newTestAdapter(c)

	ref, err := a.CreateKeyPair(context.Background(), "ogc-1a2b-web", "ssh-ed25519 AAAA")
	require.NoError(t, err)
	assert.Equal(t, provider.KeyPairRef{Provider: Name, Name: "ogc-1a2b-web"}, ref)

	found, err := a.DeleteKeyPair(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPublishHost(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "127.0.0.1", publishHost("unix:///var/run/docker.sock"))
	assert.Equal(t, "10.1.2.3", publishHost("tcp://10.1.2.3:2376"))
	assert.Equal(t, "127.0.0.1", publishHost("npipe:////./pipe/docker_engine"))
}
