package deploy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/inventory"
)

// TeardownName is the script name excluded from deployment.
const TeardownName = "teardown"

// TeardownPath is where the teardown script is uploaded on the node.
const TeardownPath = "~/teardown"

// Script is one file of a scripts directory.
type Script struct {
	Name string
	Path string
}

// CollectScripts returns the deployment steps of dir in execution order
// and the teardown script, if present. Hidden files and directories are
// skipped.
func CollectScripts(dir string) (steps []Script, teardown *Script, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read scripts directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !isScriptFile(entry) {
			continue
		}
		s := Script{Name: entry.Name(), Path: filepath.Join(dir, entry.Name())}
		if s.Name == TeardownName {
			teardown = &s
			continue
		}
		steps = append(steps, s)
	}

	// ReadDir sorts by name; execution runs the listing backwards.
	slices.Reverse(steps)
	return steps, teardown, nil
}

func isScriptFile(entry os.DirEntry) bool {
	if strings.HasPrefix(entry.Name(), ".") {
		return false
	}
	return entry.Type().IsRegular()
}

// RenderContext is the data every script template is executed with.
type RenderContext struct {
	Env    map[string]string
	Node   *inventory.Node
	Layout config.Layout
	Plan   *config.Plan
}

// NewRenderContext builds the render data for node. Env layers the
// process environment, the plan's env and then overrides.
func NewRenderContext(plan *config.Plan, node *inventory.Node, overrides map[string]string) RenderContext {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	if plan != nil {
		for k, v := range plan.Env {
			env[k] = v
		}
	}
	for k, v := range overrides {
		env[k] = v
	}
	return RenderContext{Env: env, Node: node, Layout: node.Layout, Plan: plan}
}

// Render executes a script template. Missing keys are errors.
func Render(name string, content []byte, data RenderContext) ([]byte, error) {
	tmpl, err := template.New(name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func renderFile(s Script, data RenderContext) ([]byte, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", s.Path, err)
	}
	return Render(s.Name, content, data)
}
