package provisioning_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adam-stokes/ogc-sub000/internal/provider"
	"github.com/adam-stokes/ogc-sub000/internal/provider/fake"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/provisioningtest"
	ogctest "github.com/adam-stokes/ogc-sub000/internal/testing"
)

func TestPreflight_Passes(t *testing.T) {
	t.Parallel()
	plan := ogctest.NewPlanBuilder(t).
		WithLayout("web", fake.Name, 2).
		WithScripts("web", map[string]string{"10-base": "true"}).
		Build()
	h := provisioningtest.New(t, plan, fake.New())

	require.NoError(t, provisioning.Preflight(h.Ctx))
	assert.Empty(t, h.Events.EventsOf(provisioning.EventValidationError))
}

func TestPreflight_UnsupportedProvider(t *testing.T) {
	t.Parallel()
	plan := ogctest.NewPlanBuilder(t).WithLayout("web", "google", 1).Build()
	h := provisioningtest.New(t, plan, fake.New())

	err := provisioning.Preflight(h.Ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layouts.web.provider")

	errs := h.Events.EventsOf(provisioning.EventValidationError)
	require.Len(t, errs, 1)
	assert.Equal(t, "layouts.web.provider", errs[0].Fields["field"])
}

func TestPreflight_MissingKeyAndScripts(t *testing.T) {
	t.Parallel()
	plan := ogctest.NewPlanBuilder(t).WithLayout("web", fake.Name, 1).Build()
	plan.Layouts["web"].SSHPrivateKey = filepath.Join(t.TempDir(), "missing")
	plan.Layouts["web"].Scripts = filepath.Join(t.TempDir(), "nope")
	h := provisioningtest.New(t, plan, fake.New())

	err := provisioning.Preflight(h.Ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ssh_private_key")
	assert.Contains(t, err.Error(), "scripts directory not readable")
}

func TestPreflight_Warnings(t *testing.T) {
	t.Parallel()
	plan := ogctest.NewPlanBuilder(t).WithLayout("web", fake.Name, 0).Build()
	plan.Layouts["web"].Scripts = t.TempDir()
	h := provisioningtest.New(t, plan, fake.New())

	require.NoError(t, provisioning.Preflight(h.Ctx))
	assert.Len(t, h.Events.EventsOf(provisioning.EventValidationWarning), 2)
}

func TestPreflight_InvalidPlan(t *testing.T) {
	t.Parallel()
	plan := ogctest.NewPlanBuilder(t).WithLayout("web", fake.Name, 1).Build()
	plan.Layouts["web"].Username = ""
	h := provisioningtest.New(t, plan, fake.New())

	err := provisioning.Preflight(h.Ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username")
}

func TestPreflight_CredentialsFailureStopsRun(t *testing.T) {
	t.Parallel()
	plan := ogctest.NewPlanBuilder(t).WithLayout("web", "hetzner", 1).Build()
	h := provisioningtest.New(t, plan)
	h.Ctx.Providers.Register("hetzner", func(context.Context) (provider.Adapter, error) {
		return nil, &provider.CredentialsError{Provider: "hetzner", Detail: "HCLOUD_TOKEN is not set"}
	})

	err := provisioning.Preflight(h.Ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, provider.ErrMissingCredentials))
}
