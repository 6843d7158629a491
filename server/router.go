package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	types "github.com/inference-gateway/menu-agents/types"
	zap "go.uber.org/zap"
)

// Router resolves (agentType, agentId, method) to a registered handler and
// wraps the outcome into a response envelope
type Router interface {
	// Mount makes an initialized agent routable. Mounting a second agent at
	// the same address replaces the first.
	Mount(agent Agent)

	// Route executes req against the addressed agent. It always returns an
	// envelope carrying req.ID.
	Route(ctx context.Context, agentType, agentID string, req *types.JSONRPCRequest) *types.JSONRPCResponse

	// Agent returns the agent mounted at the address
	Agent(agentType, agentID string) (Agent, bool)

	// Agents returns every mounted agent ordered by address
	Agents() []Agent
}

var _ Router = (*DefaultRouter)(nil)

// DefaultRouter is the stateless-per-call Router implementation
type DefaultRouter struct {
	logger *zap.Logger
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewDefaultRouter creates an empty router
func NewDefaultRouter(logger *zap.Logger) *DefaultRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultRouter{
		logger: logger,
		agents: make(map[string]Agent),
	}
}

// Mount makes the agent routable
func (r *DefaultRouter) Mount(agent Agent) {
	address := agent.Address()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[address.String()]; exists {
		r.logger.Warn("replacing agent mounted at the same address", zap.String("address", address.String()))
	}
	r.agents[address.String()] = agent

	r.logger.Debug("agent mounted", zap.String("address", address.String()))
}

// Agent returns the agent mounted at the address
func (r *DefaultRouter) Agent(agentType, agentID string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[types.AgentAddress{AgentType: agentType, AgentID: agentID}.String()]
	return agent, exists
}

// Agents returns every mounted agent ordered by address
func (r *DefaultRouter) Agents() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].Address().String() < agents[j].Address().String()
	})
	return agents
}

// Route resolves and invokes the handler for req
func (r *DefaultRouter) Route(ctx context.Context, agentType, agentID string, req *types.JSONRPCRequest) (resp *types.JSONRPCResponse) {
	logger := r.logger.With(
		zap.String("agent_type", agentType),
		zap.String("agent_id", agentID),
		zap.String("method", req.Method),
		zap.String("id", req.ID))

	agent, exists := r.Agent(agentType, agentID)
	if !exists {
		logger.Warn("no agent mounted at address")
		return types.NewErrorResponse(req.ID, types.NewErrorf(int(types.ErrAgentNotFound), "agent not found: %s/%s", agentType, agentID))
	}

	handler, err := resolveMethod(agent.Registry(), agentType, req.Method)
	if err != nil {
		logger.Warn("unknown method requested")
		return types.NewErrorResponse(req.ID, types.NewErrorf(int(types.ErrMethodNotFound), "method not found: %s", req.Method))
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("method handler panicked", zap.Any("panic", recovered))
			resp = types.NewErrorResponse(req.ID, types.NewError(int(types.ErrInternalError), "internal error"))
		}
	}()

	result, err := handler(ctx, req.Params, agentID)
	if err != nil {
		var rpcErr *types.JSONRPCError
		if errors.As(err, &rpcErr) {
			logger.Info("method returned error",
				zap.Int("code", rpcErr.Code),
				zap.String("message", rpcErr.Message))
			return types.NewErrorResponse(req.ID, rpcErr)
		}

		logger.Error("method failed", zap.Error(err))
		return types.NewErrorResponse(req.ID, types.NewError(int(types.ErrInternalError), "internal error"))
	}

	resp, err = types.NewSuccessResponse(req.ID, result)
	if err != nil {
		logger.Error("failed to encode method result", zap.Error(err))
		return types.NewErrorResponse(req.ID, types.NewError(int(types.ErrInternalError), fmt.Sprintf("failed to encode result: %v", err)))
	}

	logger.Debug("method completed")
	return resp
}

// resolveMethod strips the "{agentType}/" namespace before lookup and falls
// back to the raw name so un-namespaced calls still resolve.
func resolveMethod(registry MethodRegistry, agentType, method string) (MethodHandler, error) {
	if stripped, ok := strings.CutPrefix(method, agentType+"/"); ok {
		if handler, err := registry.Resolve(stripped); err == nil {
			return handler, nil
		}
	}
	return registry.Resolve(method)
}
