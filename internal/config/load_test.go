package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlan = `
name: demo
ssh_keys:
  public: keys/id.pub
  private: keys/id
env:
  APP_VERSION: "1.2.3"
layouts:
  web:
    provider: hetzner
    instance_size: cx22
    runs_on: ubuntu-22.04
    region: ${OGC_TEST_REGION}
    scale: 3
    username: root
    scripts: scripts/web
    ports: ["80", "8000:8080"]
    tags: [frontend]
    labels:
      team: ops
  db:
    provider: aws
    instance_size: t3.medium
    runs_on: ami-123
    scale: 1
    username: ubuntu
    ssh_private_key: /abs/db_key
    remote_path: /opt/deploy
`

func writePlan(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("OGC_TEST_REGION", "fsn1")
	path := writePlan(t, "ogc.yml", samplePlan)
	dir := filepath.Dir(path)

	plan, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", plan.Name)
	assert.Equal(t, []string{"db", "web"}, plan.LayoutNames())
	assert.Equal(t, []string{"aws", "hetzner"}, plan.Providers())

	web, err := plan.Layout("web")
	require.NoError(t, err)
	assert.Equal(t, "web", web.Name)
	assert.Equal(t, "fsn1", web.Region)
	assert.Equal(t, 3, web.Scale)
	assert.Equal(t, filepath.Join(dir, "keys/id.pub"), web.SSHPublicKey)
	assert.Equal(t, filepath.Join(dir, "scripts/web"), web.Scripts)
	assert.Equal(t, DefaultRemotePath, web.RemotePath)
	assert.True(t, web.HasTag("frontend"))
	assert.Equal(t, "ops", web.Labels["team"])

	db, err := plan.Layout("db")
	require.NoError(t, err)
	assert.Equal(t, "/abs/db_key", db.SSHPrivateKey)
	assert.Equal(t, filepath.Join(dir, "keys/id.pub"), db.SSHPublicKey)
	assert.Equal(t, "/opt/deploy", db.RemotePath)
	assert.Empty(t, db.Scripts)

	_, err = plan.Layout("cache")
	assert.ErrorIs(t, err, ErrUnknownLayout)
}

func TestLoad_TOML(t *testing.T) {
	t.Parallel()
	path := writePlan(t, "ogc.toml", `
name = "demo"

[ssh_keys]
public = "/k/id.pub"
private = "/k/id"

[layouts.local]
provider = "docker"
runs_on = "ogc/sshd:latest"
scale = 2
username = "ogc"
tags = ["dev"]
`)

	plan, err := Load(path)
	require.NoError(t, err)

	local, err := plan.Layout("local")
	require.NoError(t, err)
	assert.Equal(t, "docker", local.Provider)
	assert.Equal(t, 2, local.Scale)
	assert.Equal(t, "/k/id", local.SSHPrivateKey)
	assert.Equal(t, []string{"dev"}, local.Tags)
}

func TestLoad_UnsetVariableIsReported(t *testing.T) {
	t.Parallel()
	path := writePlan(t, "ogc.yml", `
name: demo
ssh_keys: {public: /k.pub, private: /k}
layouts:
  web:
    provider: hetzner
    runs_on: ${OGC_SURELY_UNSET_IMAGE}
    scale: 1
    username: root
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unset environment variable")
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	path := writePlan(t, "ogc.yml", `
name: demo
layouts:
  web:
    provider: hetzner
    replicas: 3
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestFindPlanFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := FindPlanFile(dir)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ogc.toml"), nil, 0o600))
	path, err := FindPlanFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ogc.toml"), path)
}

func TestResolvePath(t *testing.T) {
	t.Parallel()
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", resolvePath("/base", ""))
	assert.Equal(t, "/abs", resolvePath("/base", "/abs"))
	assert.Equal(t, "/base/rel", resolvePath("/base", "rel"))
	assert.Equal(t, filepath.Join(home, ".ssh/id"), resolvePath("/base", "~/.ssh/id"))
	assert.Equal(t, "/base/~user", resolvePath("/base", "~user"))
}
