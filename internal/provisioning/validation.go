package provisioning

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError represents a preflight error or warning.
type ValidationError struct {
	Field    string // Plan field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == "error"
}

// Preflight checks the plan against the local machine and the provider
// registry, then connects every provider the given layouts use. It runs
// before any node is created so configuration errors stop the run early.
// An empty layouts list checks every layout.
func Preflight(ctx *Context, layouts ...string) error {
	if err := ctx.Plan.Validate(); err != nil {
		return err
	}
	if len(layouts) == 0 {
		layouts = ctx.Plan.LayoutNames()
	}

	var errs, warnings []ValidationError
	for _, ve := range validate(ctx, layouts) {
		if ve.IsError() {
			errs = append(errs, ve)
		} else {
			warnings = append(warnings, ve)
		}
	}

	for _, w := range warnings {
		ctx.Observer.Event(Event{
			Type:    EventValidationWarning,
			Phase:   "preflight",
			Message: w.Message,
			Fields:  map[string]string{"field": w.Field},
		})
	}

	if len(errs) > 0 {
		var msgs []string
		for _, e := range errs {
			ctx.Observer.Event(Event{
				Type:    EventValidationError,
				Phase:   "preflight",
				Message: e.Message,
				Fields:  map[string]string{"field": e.Field},
			})
			msgs = append(msgs, e.Error())
		}
		return fmt.Errorf("preflight failed:\n  %s", strings.Join(msgs, "\n  "))
	}

	providers := make([]string, 0, len(layouts))
	seen := map[string]bool{}
	for _, name := range layouts {
		l := ctx.Plan.Layouts[name]
		if !seen[l.Provider] {
			seen[l.Provider] = true
			providers = append(providers, l.Provider)
		}
	}
	return ctx.Providers.ConnectAll(ctx, providers)
}

func validate(ctx *Context, layouts []string) []ValidationError {
	var errs []ValidationError

	for _, name := range layouts {
		l, ok := ctx.Plan.Layouts[name]
		if !ok {
			errs = append(errs, ValidationError{
				Field:    "layouts",
				Message:  fmt.Sprintf("unknown layout %q", name),
				Severity: "error",
			})
			continue
		}
		field := "layouts." + name

		if _, err := ctx.Providers.Lookup(l.Provider); err != nil {
			errs = append(errs, ValidationError{
				Field:    field + ".provider",
				Message:  err.Error(),
				Severity: "error",
			})
		}

		for _, key := range []struct{ field, path string }{
			{"ssh_public_key", l.SSHPublicKey},
			{"ssh_private_key", l.SSHPrivateKey},
		} {
			if _, err := os.Stat(key.path); err != nil {
				errs = append(errs, ValidationError{
					Field:    field + "." + key.field,
					Message:  fmt.Sprintf("key file not readable: %v", err),
					Severity: "error",
				})
			}
		}

		if l.Scripts != "" {
			entries, err := os.ReadDir(l.Scripts)
			switch {
			case err != nil:
				errs = append(errs, ValidationError{
					Field:    field + ".scripts",
					Message:  fmt.Sprintf("scripts directory not readable: %v", err),
					Severity: "error",
				})
			case len(entries) == 0:
				errs = append(errs, ValidationError{
					Field:    field + ".scripts",
					Message:  "scripts directory is empty, nodes will not be deployed to",
					Severity: "warning",
				})
			}
		}

		if l.Scale == 0 {
			errs = append(errs, ValidationError{
				Field:    field + ".scale",
				Message:  "scale is 0, every node of this layout will be removed",
				Severity: "warning",
			})
		}
	}

	return errs
}
