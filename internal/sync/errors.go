package sync

import (
	"errors"
	"fmt"
)

// ErrSessionExpired reports that the server rejected the bearer credential.
// The engine fires its session-expiry callback before returning this.
var ErrSessionExpired = errors.New("session expired")

// TransportError wraps a network-level failure reaching the server.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError reports a non-2xx application response.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}
