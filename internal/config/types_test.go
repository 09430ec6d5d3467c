package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePort(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    PortRange
		wantErr bool
	}{
		{"22", PortRange{22, 22}, false},
		{" 80 ", PortRange{80, 80}, false},
		{"8000:8080", PortRange{8000, 8080}, false},
		{"8080:8000", PortRange{}, true},
		{"0", PortRange{}, true},
		{"70000", PortRange{}, true},
		{"http", PortRange{}, true},
		{"80:", PortRange{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePort(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortRanges_AlwaysIncludesSSH(t *testing.T) {
	t.Parallel()
	l := &Layout{Ports: []string{"80", "443"}}
	got, err := l.PortRanges()
	require.NoError(t, err)
	assert.Equal(t, []PortRange{{22, 22}, {80, 80}, {443, 443}}, got)

	l = &Layout{Ports: []string{"20:30"}}
	got, err = l.PortRanges()
	require.NoError(t, err)
	assert.Equal(t, []PortRange{{20, 30}}, got)
	assert.Equal(t, "20-30", got[0].String())
	assert.Equal(t, "22", PortRange{22, 22}.String())
}

func TestReadKeys(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	pub := filepath.Join(dir, "id.pub")
	require.NoError(t, os.WriteFile(pub, []byte("ssh-ed25519 AAAA test\n"), 0o600))

	l := &Layout{Name: "web", SSHPublicKey: pub, SSHPrivateKey: filepath.Join(dir, "missing")}
	key, err := l.ReadPublicKey()
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 AAAA test", key)

	_, err = l.ReadPrivateKey()
	assert.ErrorContains(t, err, "layout web")
}
