package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RequestError is a non-retryable 4xx response. Message is the server text when present.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request rejected (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request rejected (%d): %s", e.Status, strings.ToLower(http.StatusText(e.Status)))
}

// Is matches ErrRequest.
func (e *RequestError) Is(target error) bool { return target == ErrRequest }

// TransientError wraps the last cause after retries were exhausted.
type TransientError struct {
	Attempts int
	Cause    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure after %d attempt(s): %v", e.Attempts, e.Cause)
}

// Unwrap exposes the last underlying cause for logging.
func (e *TransientError) Unwrap() error { return e.Cause }

// Is matches ErrTransient.
func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// ValidationError is a local precondition failure; it never reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// LimitExceededError reports that Max entries already exist.
type LimitExceededError struct {
	Max int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("limit exceeded: at most %d entries allowed", e.Max)
}

// Is matches both ErrLimitExceeded and ErrValidation.
func (e *LimitExceededError) Is(target error) bool {
	return target == ErrLimitExceeded || target == ErrValidation
}

// StorageError wraps a local persistence failure.
type StorageError struct {
	Op    string
	Key   string
	Cause error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// Is matches ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// DecodeError wraps a response parse failure.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode response: %v", e.Cause) }

func (e *DecodeError) Unwrap() error { return e.Cause }

// Is matches ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Message returns text suitable for showing to the user: the server message of a
// RequestError, the text of a validation failure, or fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var re *RequestError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Message != "" {
		return ve.Message
	}
	var le *LimitExceededError
	if errors.As(err, &le) {
		return fmt.Sprintf("You can add at most %d contacts", le.Max)
	}
	if errors.Is(err, ErrUnauthenticated) {
		return "Your session has expired, please log in again"
	}
	if errors.Is(err, ErrTransient) {
		return "Network problem, please try again"
	}
	return fallback
}
