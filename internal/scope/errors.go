package scope

import (
	"errors"
	"fmt"
)

// ErrInvalidPattern is returned when an ignore or follow pattern does not compile.
var ErrInvalidPattern = errors.New("invalid scope pattern")

// ConfigurationError reports a scope option that cannot be used.
type ConfigurationError struct {
	// Option is the name of the offending option (ignore_regex, follow_regex).
	Option string

	// Pattern is the rejected value.
	Pattern string

	// Err is the underlying compile error.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Option, e.Pattern, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInvalidPattern) match any ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidPattern
}
