package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultPlanFilenames are tried in order when no plan path is given.
var DefaultPlanFilenames = []string{"ogc.yml", "ogc.yaml", "ogc.toml"}

// Format selects the plan file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the format from a file extension. Anything that is not
// .toml is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads, normalizes and validates a plan file. Relative key and
// script paths are resolved against the plan file's directory.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan directory: %w", err)
	}
	return LoadFromBytes(data, FormatFor(path), base)
}

// LoadFromBytes parses, normalizes and validates plan data.
func LoadFromBytes(data []byte, format Format, baseDir string) (*Plan, error) {
	plan, err := parse(expandEnv(data), format)
	if err != nil {
		return nil, err
	}
	plan.normalize(baseDir)
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("plan validation failed: %w", err)
	}
	return plan, nil
}

func parse(data []byte, format Format) (*Plan, error) {
	var plan Plan
	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&plan); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&plan); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	return &plan, nil
}

// expandEnv substitutes $VAR and ${VAR} from the process environment.
// Unset variables are left in place so validation can point at them.
func expandEnv(data []byte) []byte {
	return []byte(os.Expand(string(data), func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return "${" + key + "}"
	}))
}

func (p *Plan) normalize(baseDir string) {
	p.SSHKeys.Public = resolvePath(baseDir, p.SSHKeys.Public)
	p.SSHKeys.Private = resolvePath(baseDir, p.SSHKeys.Private)

	for name, l := range p.Layouts {
		if l == nil {
			continue
		}
		l.Name = name
		if l.SSHPublicKey == "" {
			l.SSHPublicKey = p.SSHKeys.Public
		} else {
			l.SSHPublicKey = resolvePath(baseDir, l.SSHPublicKey)
		}
		if l.SSHPrivateKey == "" {
			l.SSHPrivateKey = p.SSHKeys.Private
		} else {
			l.SSHPrivateKey = resolvePath(baseDir, l.SSHPrivateKey)
		}
		l.Scripts = resolvePath(baseDir, l.Scripts)
		if l.RemotePath == "" {
			l.RemotePath = DefaultRemotePath
		}
	}
}

func resolvePath(baseDir, p string) string {
	if p == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(p, "~"); ok && (rest == "" || rest[0] == '/') {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

// FindPlanFile returns the first default plan file in dir.
func FindPlanFile(dir string) (string, error) {
	for _, name := range DefaultPlanFilenames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no plan file found in %s (looked for %s)", dir, strings.Join(DefaultPlanFilenames, ", "))
}
