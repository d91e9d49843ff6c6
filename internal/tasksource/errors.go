package tasksource

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientFetch is returned when a fetch fails on the network or HTTP layer.
	ErrTransientFetch = errors.New("transient fetch error")

	// ErrUnauthorized is returned when the service rejects the credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidConfig is returned when source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid source configuration")

	// ErrProjectNotFound is returned when a project is not known to the source.
	ErrProjectNotFound = errors.New("project not found")
)

// FetchError describes a failed request against the task service.
type FetchError struct {
	Op         string // e.g. "list projects", "project data"
	StatusCode int    // 0 when the request never got a response
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap lets errors.Is match ErrTransientFetch, ErrUnauthorized and the cause.
func (e *FetchError) Unwrap() []error {
	errs := []error{ErrTransientFetch}
	if e.StatusCode == 401 {
		errs = append(errs, ErrUnauthorized)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
