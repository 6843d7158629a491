package client

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is returned before any network I/O when a call has no
// explicit api key and no default is configured
var ErrMissingCredential = errors.New("missing credential: no api key supplied and no default configured")

// APIError is a non-2xx HTTP response from the gateway
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agent api error (status %d): %s", e.StatusCode, e.Message)
}

// RPCError is an error envelope returned by an agent method
type RPCError struct {
	Code    int
	Message string
	Method  string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("agent rpc error calling %s (code %d): %s", e.Method, e.Code, e.Message)
}
