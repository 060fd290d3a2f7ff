package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the media and reminder cores. Callers classify
// failures with errors.Is; detail is carried by wrapping.
var (
	// ErrValidation marks malformed input rejected before any side effect.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an operation that referenced a missing row or one
	// not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrStorage marks a persistence-layer write failure. Fatal for the
	// call; no partial state is left behind.
	ErrStorage = errors.New("storage failure")

	// ErrFetch marks a network or redirection failure while ingesting an
	// attachment. Recoverable; the caller may retry the whole ingest.
	ErrFetch = errors.New("media fetch failed")
)

// Validationf wraps ErrValidation with a formatted detail message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// Storagef wraps ErrStorage with a formatted detail message.
func Storagef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrStorage}, args...)...)
}

// Fetchf wraps ErrFetch with a formatted detail message.
func Fetchf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrFetch}, args...)...)
}
