package provider

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedProvider matches every UnsupportedProviderError.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingCredentials matches every CredentialsError.
	ErrMissingCredentials = errors.New("missing provider credentials")
)

// UnsupportedProviderError is returned for provider names with no adapter.
type UnsupportedProviderError struct {
	Name  string
	Known []string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider %q (available: %s)", e.Name, strings.Join(e.Known, ", "))
}

func (e *UnsupportedProviderError) Is(target error) bool {
	return target == ErrUnsupportedProvider
}

// CredentialsError reports credentials that are absent or rejected.
// It is a configuration error and must never be retried.
type CredentialsError struct {
	Provider string
	Detail   string
	Err      error
}

func (e *CredentialsError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CredentialsError) Is(target error) bool {
	return target == ErrMissingCredentials
}

func (e *CredentialsError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports errors that must stop a run before any
// provisioning starts.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrUnsupportedProvider) || errors.Is(err, ErrMissingCredentials)
}
