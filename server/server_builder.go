package server

import (
	"context"
	"fmt"

	config "github.com/inference-gateway/menu-agents/server/config"
	otel "github.com/inference-gateway/menu-agents/server/otel"
	zap "go.uber.org/zap"
)

// A2AServerBuilder provides a fluent interface for building the gateway server.
//
// Example:
//
//	server, err := NewA2AServerBuilder(cfg, logger).
//	  WithAgent(menuAgent).
//	  WithAgent(promotionsAgent).
//	  Build()
type A2AServerBuilder interface {
	// WithAgent adds an agent. Build initializes it and mounts it on the router.
	WithAgent(agent Agent) A2AServerBuilder

	// WithRouter sets a custom router (defaults to NewDefaultRouter)
	WithRouter(router Router) A2AServerBuilder

	// WithTelemetry sets the telemetry used by the metrics middleware
	WithTelemetry(telemetry otel.OpenTelemetry) A2AServerBuilder

	// WithFileStore serves stored uploads under /files
	WithFileStore(files FileStore) A2AServerBuilder

	// WithLogger sets a custom logger for the builder and resulting server
	WithLogger(logger *zap.Logger) A2AServerBuilder

	// Build initializes and mounts every agent and returns the server
	Build() (A2AServer, error)
}

var _ A2AServerBuilder = (*A2AServerBuilderImpl)(nil)

// A2AServerBuilderImpl is the concrete implementation of the A2AServerBuilder interface.
type A2AServerBuilderImpl struct {
	cfg       config.Config
	logger    *zap.Logger
	agents    []Agent
	router    Router
	telemetry otel.OpenTelemetry
	files     FileStore
}

// NewA2AServerBuilder creates a new server builder. Zero valued server
// settings are filled from the configuration defaults.
func NewA2AServerBuilder(cfg config.Config, logger *zap.Logger) A2AServerBuilder {
	if cfg.ServerConfig.Port == "" {
		defaultCfg, err := config.NewWithDefaults(context.Background(), nil)
		if err == nil {
			cfg.ServerConfig = defaultCfg.ServerConfig
			if cfg.GatewayName == "" {
				cfg.GatewayName = defaultCfg.GatewayName
			}
		}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &A2AServerBuilderImpl{
		cfg:    cfg,
		logger: logger,
	}
}

// WithAgent adds an agent
func (b *A2AServerBuilderImpl) WithAgent(agent Agent) A2AServerBuilder {
	b.agents = append(b.agents, agent)
	return b
}

// WithRouter sets a custom router
func (b *A2AServerBuilderImpl) WithRouter(router Router) A2AServerBuilder {
	b.router = router
	return b
}

// WithTelemetry sets the telemetry instance
func (b *A2AServerBuilderImpl) WithTelemetry(telemetry otel.OpenTelemetry) A2AServerBuilder {
	b.telemetry = telemetry
	return b
}

// WithFileStore sets the file store uploads are served from
func (b *A2AServerBuilderImpl) WithFileStore(files FileStore) A2AServerBuilder {
	b.files = files
	return b
}

// WithLogger sets a custom logger
func (b *A2AServerBuilderImpl) WithLogger(logger *zap.Logger) A2AServerBuilder {
	b.logger = logger
	return b
}

// Build creates the server
func (b *A2AServerBuilderImpl) Build() (A2AServer, error) {
	if len(b.agents) == 0 {
		return nil, fmt.Errorf("at least one agent must be configured")
	}

	router := b.router
	if router == nil {
		router = NewDefaultRouter(b.logger)
	}

	for i, agent := range b.agents {
		if agent == nil {
			return nil, fmt.Errorf("agent at index %d is nil", i)
		}
		agent.Initialize()
		router.Mount(agent)
	}

	cfg := b.cfg
	return NewA2AServer(&cfg, b.logger, b.telemetry, router, b.files), nil
}
