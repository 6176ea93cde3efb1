package collector

import "errors"

// Sentinel errors for gateway communication.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrRequestFailed is returned when an HTTP request to the gateway fails.
	ErrRequestFailed = errors.New("collector: gateway request failed")

	// ErrUnexpectedStatus is returned when the gateway answers with a
	// non-200 status code.
	ErrUnexpectedStatus = errors.New("collector: unexpected gateway status")

	// ErrUnexpectedPayload is returned when a gateway response does not
	// decode into the expected JSON shape.
	ErrUnexpectedPayload = errors.New("collector: unexpected gateway payload")

	// ErrBreakerOpen is returned while the circuit breaker is refusing
	// requests after repeated gateway failures.
	ErrBreakerOpen = errors.New("collector: gateway circuit breaker open")
)
