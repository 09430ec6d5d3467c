package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/logging"
	"github.com/adam-stokes/ogc-sub000/internal/platform/s3"
	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/provider/aws"
	"github.com/adam-stokes/ogc-sub000/internal/provider/docker"
	"github.com/adam-stokes/ogc-sub000/internal/provider/hetzner"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
)

// GlobalOptions are the flags shared by every command.
type GlobalOptions struct {
	Spec      string
	DataDir   string
	LogLevel  string
	LogFormat string
}

// Factory function variables - can be replaced in tests.
var (
	// newRegistry returns the providers the CLI can reach.
	newRegistry = func() *provider.Registry {
		reg := provider.NewRegistry()
		reg.Register(hetzner.Name, hetzner.New)
		reg.Register(aws.Name, aws.New)
		reg.Register(docker.Name, docker.New)
		return reg
	}

	// openStore opens the durable inventory.
	openStore = func(dir string, log logr.Logger) (inventory.Store, error) {
		return inventory.Open(dir, inventory.WithLogger(log))
	}

	// newArtifactSink connects the optional artifact upload target.
	newArtifactSink = func(ctx context.Context, sink *config.ArtifactSink) (provisioning.ArtifactSink, error) {
		return s3.NewClient(ctx, sink)
	}

	// newLogger builds the process logger.
	newLogger = logging.New

	// configure adjusts the run context before use.
	configure = func(*provisioning.Context) {}

	stdout io.Writer = os.Stdout
)

// env is everything one command needs.
type env struct {
	*provisioning.Context
	close func()
}

// openEnv loads the plan and opens the inventory. When requirePlan is
// false a missing plan file is replaced by an empty plan, so commands
// that only look at the inventory work anywhere.
func openEnv(ctx context.Context, g *GlobalOptions, requirePlan bool) (*env, error) {
	log, flush, err := newLogger(logging.Options{Level: g.LogLevel, Format: g.LogFormat})
	if err != nil {
		return nil, err
	}

	plan, err := loadPlan(g.Spec, requirePlan)
	if err != nil {
		flush()
		return nil, err
	}

	dataDir := g.DataDir
	if dataDir == "" {
		dataDir = config.DataDir()
	}
	store, err := openStore(filepath.Join(dataDir, "inventory"), log)
	if err != nil {
		flush()
		return nil, fmt.Errorf("failed to open inventory in %s: %w", dataDir, err)
	}

	pctx := provisioning.NewContext(ctx, plan, store, newRegistry(), log)
	pctx.DataDir = dataDir

	if sink := config.LoadArtifactSink(); sink != nil {
		client, err := newArtifactSink(ctx, sink)
		if err != nil {
			_ = store.Close()
			flush()
			return nil, fmt.Errorf("failed to configure artifact upload: %w", err)
		}
		pctx.Artifacts = client
	}
	configure(pctx)

	return &env{
		Context: pctx,
		close: func() {
			if err := store.Close(); err != nil {
				log.Error(err, "failed to close inventory")
			}
			flush()
		},
	}, nil
}

func loadPlan(path string, required bool) (*config.Plan, error) {
	if path == "" {
		found, err := config.FindPlanFile(".")
		if err != nil {
			if required {
				return nil, err
			}
			return &config.Plan{Layouts: map[string]*config.Layout{}}, nil
		}
		path = found
	}

	plan, err := config.Load(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return &config.Plan{Layouts: map[string]*config.Layout{}}, nil
		}
		return nil, err
	}
	return plan, nil
}

// lookupNode returns the stored node or a readable error.
func lookupNode(ctx context.Context, store inventory.Store, name string) (*inventory.Node, error) {
	node, err := store.Get(ctx, name)
	if errors.Is(err, inventory.ErrNotFound) {
		return nil, fmt.Errorf("node %s is not in the inventory", name)
	}
	return node, err
}

// selectNodes returns the stored nodes matching the filter expressions.
func selectNodes(ctx context.Context, store inventory.Store, exprs []string) ([]*inventory.Node, error) {
	filter, err := inventory.ParseFilter(exprs)
	if err != nil {
		return nil, err
	}
	return store.Query(ctx, filter)
}
