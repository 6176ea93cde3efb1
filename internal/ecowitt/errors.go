package ecowitt

import (
	"errors"
	"fmt"
)

// Domain errors for the ecowitt package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, ecowitt.ErrParse) {
//	    // value was present but could not be normalised
//	}
var (
	// ErrMissingField is returned when a required key is absent from a
	// response payload and no default applies.
	ErrMissingField = errors.New("ecowitt: required field missing")

	// ErrParse is the classification wrapped by every *ParseError. A value
	// was present but unparseable: no numeric substring, failed numeric
	// conversion, unrecognised unit token, or missing unit-group
	// configuration when no explicit unit was supplied.
	ErrParse = errors.New("ecowitt: unparseable value")

	// ErrUnknownObservation is returned when a device-reported type code has
	// no registered processor.
	ErrUnknownObservation = errors.New("ecowitt: unknown observation type")

	// ErrInvalidResponse is returned when an endpoint-level parse receives
	// something other than a JSON object.
	ErrInvalidResponse = errors.New("ecowitt: response is not a JSON object")
)

// ParseError describes a single observation field that could not be
// normalised. It carries enough context (field key, raw value, unit group)
// for the caller to log a useful diagnostic; the parser itself never logs.
type ParseError struct {
	Key    string // field key within the response object
	Raw    string // raw value as received from the device
	Group  string // unit group the observation was parsed against
	Reason string // what went wrong
}

func (e *ParseError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("ecowitt: field %q (%s): %s", e.Key, e.Group, e.Reason)
	}
	return fmt.Sprintf("ecowitt: field %q value %q (%s): %s", e.Key, e.Raw, e.Group, e.Reason)
}

// Unwrap lets errors.Is(err, ErrParse) match any *ParseError.
func (e *ParseError) Unwrap() error { return ErrParse }

func newParseError(key, raw, group, reason string) *ParseError {
	return &ParseError{Key: key, Raw: raw, Group: group, Reason: reason}
}
