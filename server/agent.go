package server

import (
	"context"
	"encoding/json"

	types "github.com/inference-gateway/menu-agents/types"
	zap "go.uber.org/zap"
)

// Agent is an addressable bundle of method handlers
type Agent interface {
	// Address returns the immutable (agentType, agentId) pair of the agent
	Address() types.AgentAddress

	// Initialize registers every method of the agent, including the well-known
	// card method, into its registry. Calling it twice re-registers.
	Initialize()

	// Registry returns the registry the router resolves methods against
	Registry() MethodRegistry

	// Card builds the capability card from the declared methods
	Card() types.AgentCapabilityCard
}

// MethodSpec declares one agent method
type MethodSpec struct {
	Name        string
	Description string
	Handler     MethodHandler
}

var _ Agent = (*AgentImpl)(nil)

// AgentImpl is the default Agent runtime. Build it with NewAgentBuilder.
type AgentImpl struct {
	logger      *zap.Logger
	address     types.AgentAddress
	name        string
	description string
	methods     []MethodSpec
	registry    MethodRegistry
}

// Address returns the agent address
func (a *AgentImpl) Address() types.AgentAddress {
	return a.address
}

// Registry returns the agent's method registry
func (a *AgentImpl) Registry() MethodRegistry {
	return a.registry
}

// Initialize registers all declared methods plus agent/authenticatedExtendedCard
func (a *AgentImpl) Initialize() {
	for _, method := range a.methods {
		a.registry.Register(method.Name, method.Handler)
	}
	a.registry.Register(types.MethodAgentCard, a.handleCard)

	a.logger.Info("agent initialized",
		zap.String("agent_type", a.address.AgentType),
		zap.String("agent_id", a.address.AgentID),
		zap.String("name", a.name),
		zap.Strings("methods", a.registry.Methods()))
}

// Card builds the capability card. Methods declared more than once are listed
// with their last description.
func (a *AgentImpl) Card() types.AgentCapabilityCard {
	capabilities := make([]types.Capability, 0, len(a.methods)+1)
	index := make(map[string]int, len(a.methods))

	for _, method := range a.methods {
		if i, exists := index[method.Name]; exists {
			capabilities[i].Description = method.Description
			continue
		}
		index[method.Name] = len(capabilities)
		capabilities = append(capabilities, types.Capability{
			Method:      method.Name,
			Description: method.Description,
		})
	}

	if _, exists := index[types.MethodAgentCard]; !exists {
		capabilities = append(capabilities, types.Capability{
			Method:      types.MethodAgentCard,
			Description: "Returns this capability card",
		})
	}

	return types.AgentCapabilityCard{
		AgentID:      a.address.AgentID,
		AgentType:    a.address.AgentType,
		Name:         a.name,
		Description:  a.description,
		Capabilities: capabilities,
	}
}

func (a *AgentImpl) handleCard(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	return a.Card(), nil
}
