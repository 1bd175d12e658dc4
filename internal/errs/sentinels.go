// Package errs contains sentinel errors and typed error kinds shared by the client layers.
package errs

import "errors"

// Common sentinels across session/transport/cache layers.
var (
	// ErrNotFound indicates the requested entity does not exist locally or remotely.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated indicates a missing or rejected session token.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrTransient indicates a network/timeout/5xx failure that survived all retries.
	ErrTransient = errors.New("transient failure")

	// ErrRequest indicates a non-retryable 4xx rejection by the remote API.
	ErrRequest = errors.New("request rejected")

	// ErrValidation indicates a local precondition failed before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrLimitExceeded indicates the contact cap is reached.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrStorage indicates a local persistence read/write failure.
	ErrStorage = errors.New("storage failure")

	// ErrDecode indicates a response body that could not be parsed.
	ErrDecode = errors.New("decode failure")
)
