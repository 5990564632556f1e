package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupported marks a declared capability a variant does not implement.
// Callers treat it as a permanent gap, never a retryable failure.
var ErrUnsupported = errors.New("capability not supported by this provider")

// ErrPreparationFailed is returned by LaunchJob when handed a Preparation
// whose preparation step already failed.
var ErrPreparationFailed = errors.New("cannot launch: job preparation failed")

// ConfigError reports every missing required field for a provider variant,
// not just the first one found.
type ConfigError struct {
	Provider string
	Missing  []string
}

func (e *ConfigError) Error() string {
	missing := append([]string(nil), e.Missing...)
	sort.Strings(missing)
	return fmt.Sprintf("%s provider config missing required fields: %s",
		e.Provider, strings.Join(missing, ", "))
}

// UnknownProviderError reports an unresolvable variant name along with the
// supported set.
type UnknownProviderError struct {
	Name      string
	Supported []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q, supported: %s",
		e.Name, strings.Join(e.Supported, ", "))
}

// RemoteError wraps a failed network or API call to a provider backend.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote call %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// BackendError reports a logical failure the backend itself returned, e.g.
// a cluster not in a runnable state. Distinct from RemoteError: the call
// succeeded, the backend said no.
type BackendError struct {
	Op     string
	Reason string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s rejected by backend: %s", e.Op, e.Reason)
}
