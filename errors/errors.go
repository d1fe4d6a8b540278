package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrGenerationFailed indicates that the text-generation capability
	// failed or returned empty output
	ErrGenerationFailed = errors.New("generation failed")

	// ErrNoContent indicates that no supporting content was found
	ErrNoContent = errors.New("no content found")

	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrConfiguration indicates invalid startup configuration, such as a
	// weight profile that does not sum to 1.0
	ErrConfiguration = errors.New("invalid configuration")
)
