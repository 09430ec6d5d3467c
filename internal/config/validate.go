package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnknownLayout is returned when a layout name is not in the plan.
var ErrUnknownLayout = errors.New("unknown layout")

// ValidationError describes one invalid plan field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Validate reports every problem in the plan, joined.
func (p *Plan) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if p.Name == "" {
		add("name", "is required")
	}
	if len(p.Layouts) == 0 {
		add("layouts", "at least one layout is required")
	}

	for _, name := range p.LayoutNames() {
		l := p.Layouts[name]
		field := "layouts." + name
		if l == nil {
			add(field, "is empty")
			continue
		}
		if !namePattern.MatchString(name) {
			add(field, "name must match %s", namePattern)
		}
		if l.Provider == "" {
			add(field+".provider", "is required")
		}
		if l.RunsOn == "" {
			add(field+".runs_on", "is required")
		}
		if l.Scale < 0 {
			add(field+".scale", "must not be negative, got %d", l.Scale)
		}
		if l.Username == "" {
			add(field+".username", "is required")
		}
		if l.SSHPublicKey == "" {
			add(field+".ssh_public_key", "is required (set ssh_keys.public or a layout override)")
		}
		if l.SSHPrivateKey == "" {
			add(field+".ssh_private_key", "is required (set ssh_keys.private or a layout override)")
		}
		if !strings.HasPrefix(l.RemotePath, "/") {
			add(field+".remote_path", "must be absolute, got %q", l.RemotePath)
		}
		for _, port := range l.Ports {
			if _, err := ParsePort(port); err != nil {
				add(field+".ports", "%v", err)
			}
		}
		if strings.Contains(l.InstanceSize+l.RunsOn+l.Region, "${") {
			add(field, "references an unset environment variable")
		}
	}

	return errors.Join(errs...)
}
