package engine

import (
	"errors"
	"fmt"
)

// ValidationError marks a configuration problem detected before the state
// machine starts. It short-circuits the run straight to the failed state.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// SystemError marks an uncategorized internal fault. It is always surfaced,
// never silently swallowed.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("system: %v", e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }
