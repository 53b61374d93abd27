package devops

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when the circuit breaker is open. No network
	// attempt is made; callers should answer with a retry-later hint.
	ErrUnavailable = errors.New("azure devops unavailable: circuit breaker open")

	// ErrNoOrganization is returned when a client is constructed without an
	// Azure DevOps organization.
	ErrNoOrganization = errors.New("azure devops organization is required")

	// ErrResponseTooLarge is returned when a response body exceeds the size cap.
	ErrResponseTooLarge = errors.New("response body too large")
)

// APIError is a non-2xx response from Azure DevOps on the terminal attempt of
// a call. Message is truncated and has URLs redacted before it reaches callers.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("azure devops: status %d: %s", e.StatusCode, e.Message)
}

// TransportError is a connection-level failure: no response was received at
// all. It is not subject to the status-based retry policy and propagates
// immediately.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "azure devops: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }
