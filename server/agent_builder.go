package server

import (
	"fmt"

	types "github.com/inference-gateway/menu-agents/types"
	zap "go.uber.org/zap"
)

// AgentBuilder provides a fluent interface for building agents.
//
// Example:
//
//	agent, err := NewAgentBuilder(logger).
//	  WithAddress("menu", "store-1").
//	  WithName("Menu").
//	  WithMethod(types.MethodMessageSend, "Answers menu questions", handler).
//	  Build()
type AgentBuilder interface {
	// WithAddress sets the agent type and id
	WithAddress(agentType, agentID string) AgentBuilder
	// WithName sets the human readable agent name shown on the card
	WithName(name string) AgentBuilder
	// WithDescription sets the card description
	WithDescription(description string) AgentBuilder
	// WithMethod declares a method; declaring the same name twice keeps the last handler
	WithMethod(name, description string, handler MethodHandler) AgentBuilder
	// WithRegistry sets a custom registry (defaults to NewMethodRegistry)
	WithRegistry(registry MethodRegistry) AgentBuilder
	// Build validates the configuration and returns the agent, not yet initialized
	Build() (*AgentImpl, error)
}

var _ AgentBuilder = (*AgentBuilderImpl)(nil)

// AgentBuilderImpl is the concrete implementation of the AgentBuilder interface.
type AgentBuilderImpl struct {
	logger      *zap.Logger
	address     types.AgentAddress
	name        string
	description string
	methods     []MethodSpec
	registry    MethodRegistry
}

// NewAgentBuilder creates a new agent builder
func NewAgentBuilder(logger *zap.Logger) AgentBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentBuilderImpl{
		logger: logger,
	}
}

// WithAddress sets the agent type and id
func (b *AgentBuilderImpl) WithAddress(agentType, agentID string) AgentBuilder {
	b.address = types.AgentAddress{AgentType: agentType, AgentID: agentID}
	return b
}

// WithName sets the agent name
func (b *AgentBuilderImpl) WithName(name string) AgentBuilder {
	b.name = name
	return b
}

// WithDescription sets the agent description
func (b *AgentBuilderImpl) WithDescription(description string) AgentBuilder {
	b.description = description
	return b
}

// WithMethod declares a method
func (b *AgentBuilderImpl) WithMethod(name, description string, handler MethodHandler) AgentBuilder {
	b.methods = append(b.methods, MethodSpec{
		Name:        name,
		Description: description,
		Handler:     handler,
	})
	return b
}

// WithRegistry sets a custom registry
func (b *AgentBuilderImpl) WithRegistry(registry MethodRegistry) AgentBuilder {
	b.registry = registry
	return b
}

// Build creates the agent
func (b *AgentBuilderImpl) Build() (*AgentImpl, error) {
	if err := b.address.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent address: %w", err)
	}

	for _, method := range b.methods {
		if method.Name == "" {
			return nil, fmt.Errorf("agent %s declares a method without a name", b.address)
		}
		if method.Handler == nil {
			return nil, fmt.Errorf("agent %s declares method %s without a handler", b.address, method.Name)
		}
	}

	registry := b.registry
	if registry == nil {
		registry = NewMethodRegistry()
	}

	name := b.name
	if name == "" {
		name = b.address.AgentType
	}

	methods := make([]MethodSpec, len(b.methods))
	copy(methods, b.methods)

	return &AgentImpl{
		logger:      b.logger.With(zap.String("agent", b.address.String())),
		address:     b.address,
		name:        name,
		description: b.description,
		methods:     methods,
		registry:    registry,
	}, nil
}
