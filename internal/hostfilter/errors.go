package hostfilter

import (
	"errors"
	"fmt"
)

// HostNotAllowedError is returned when no allowed-host rule accepts the
// request's Host header.
type HostNotAllowedError struct {
	Host string // Host header as received, empty when missing
}

// Error implements the error interface.
func (e *HostNotAllowedError) Error() string {
	return fmt.Sprintf("Host not allowed: %s", e.Host)
}

// IsHostNotAllowed returns true if the error is a HostNotAllowedError.
func IsHostNotAllowed(err error) bool {
	var he *HostNotAllowedError
	return errors.As(err, &he)
}

// AsHostNotAllowed extracts the HostNotAllowedError from an error if present.
func AsHostNotAllowed(err error) (*HostNotAllowedError, bool) {
	var he *HostNotAllowedError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}
