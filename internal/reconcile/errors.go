package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrEntityNotFound is terminal for a refresh cycle.
	ErrEntityNotFound = errors.New("reconcile: entity not found")
	// ErrSourceFetch marks a failed source query; the source contributes nothing.
	ErrSourceFetch = errors.New("reconcile: source fetch failed")
	// ErrMalformedRecord marks a record kept with a coerced field.
	ErrMalformedRecord = errors.New("reconcile: malformed record")
	// ErrComputation marks an inconsistent transaction list reaching the calculator.
	ErrComputation = errors.New("reconcile: computation error")
	// ErrNothingLoaded is returned by Controller.Refresh before any Load.
	ErrNothingLoaded = errors.New("reconcile: no entity loaded")
)

// SourceError wraps a failure of a single source query.
type SourceError struct {
	Source SourceType
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("reconcile: source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceFetch, e.Err}
}
