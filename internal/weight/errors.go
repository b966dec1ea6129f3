package weight

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned when the series is requested before the first
	// successful load.
	ErrNotLoaded = errors.New("weight data not loaded yet")

	// ErrNoOverrides is returned by export when nothing was recorded locally.
	ErrNoOverrides = errors.New("no locally recorded samples")
)

// ValidationError reports a rejected input. The state it was aimed at is left
// untouched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LoadError reports a base data fetch that failed or returned a malformed
// payload. No partial data is published when it occurs.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("failed to load weight data: %v", e.Err)
	}
	return fmt.Sprintf("failed to load weight data from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PersistenceError reports a failed read or write of the override store.
// Callers recover from it and surface it as a warning.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("override store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
