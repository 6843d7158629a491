package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// MethodHandler implements one method for one agent. Params are passed through
// untouched; agentID is the id of the addressed agent instance. A handler
// signals a business failure by returning a *types.JSONRPCError.
type MethodHandler func(ctx context.Context, params json.RawMessage, agentID string) (any, error)

// ErrMethodNotFound is returned by Resolve on a lookup miss
var ErrMethodNotFound = errors.New("method not found")

// MethodRegistry maps method names to handlers for a single agent
type MethodRegistry interface {
	// Register stores a handler. Registering an existing name replaces the
	// previous handler (last write wins).
	Register(method string, handler MethodHandler)

	// Resolve returns the handler for method or an error wrapping ErrMethodNotFound
	Resolve(method string) (MethodHandler, error)

	// Methods returns the registered method names in sorted order
	Methods() []string
}

var _ MethodRegistry = (*DefaultMethodRegistry)(nil)

// DefaultMethodRegistry is a concurrency-safe map backed MethodRegistry
type DefaultMethodRegistry struct {
	mu       sync.RWMutex
	handlers map[string]MethodHandler
}

// NewMethodRegistry creates an empty registry
func NewMethodRegistry() *DefaultMethodRegistry {
	return &DefaultMethodRegistry{
		handlers: make(map[string]MethodHandler),
	}
}

// Register stores handler under method, replacing any previous handler
func (r *DefaultMethodRegistry) Register(method string, handler MethodHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = handler
}

// Resolve looks up the handler for method
func (r *DefaultMethodRegistry) Resolve(method string) (MethodHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, exists := r.handlers[method]
	if !exists || handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}
	return handler, nil
}

// Methods returns the registered method names in sorted order
func (r *DefaultMethodRegistry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.handlers))
	for method := range r.handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}
