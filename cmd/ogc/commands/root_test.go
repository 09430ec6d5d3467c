package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "ogc", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	expected := []string{
		"up", "down", "status", "ls", "exec", "exec-scripts",
		"ssh", "log", "push", "pull", "keygen", "version",
	}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, subcommands[name], "Expected subcommand %s not found", name)
	}
	assert.Len(t, cmd.Commands(), len(expected))
}

func TestRoot_GlobalFlags(t *testing.T) {
	cmd := Root()

	spec := cmd.PersistentFlags().Lookup("spec")
	require.NotNil(t, spec)
	assert.Equal(t, "s", spec.Shorthand)

	for _, name := range []string{"data-dir", "log-level", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestDown_Flags(t *testing.T) {
	cmd := Down(nil)
	for _, name := range []string{"layout", "filter", "force", "yes"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestStatus_Flags(t *testing.T) {
	cmd := Status(nil)
	for _, name := range []string{"reconcile", "drift", "metrics-file"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestArgs(t *testing.T) {
	tests := []struct {
		args    []string
		wantErr bool
	}{
		{[]string{"ssh"}, true},
		{[]string{"push", "node", "local"}, true},
		{[]string{"pull", "a", "b", "c", "d"}, true},
		{[]string{"exec"}, true},
		{[]string{"up", "extra"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			cmd := Root()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
			}
		})
	}
}
