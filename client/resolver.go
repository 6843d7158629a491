package client

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	types "github.com/inference-gateway/menu-agents/types"
	yaml "gopkg.in/yaml.v3"
)

// Resolver maps an agent address to the endpoint its calls are posted to
type Resolver interface {
	Resolve(ctx context.Context, agentType, agentID string) (string, error)
}

var (
	_ Resolver = (*GatewayResolver)(nil)
	_ Resolver = (*StaticResolver)(nil)
)

// GatewayResolver sends every agent through one gateway at <base>/<type>/<id>
type GatewayResolver struct {
	baseURL string
}

// NewGatewayResolver creates a resolver for a single reverse-proxying gateway
func NewGatewayResolver(baseURL string) *GatewayResolver {
	return &GatewayResolver{baseURL: strings.TrimRight(baseURL, "/")}
}

// Resolve returns <base>/<agentType>/<agentId>
func (r *GatewayResolver) Resolve(ctx context.Context, agentType, agentID string) (string, error) {
	addr, err := types.NewAgentAddress(agentType, agentID)
	if err != nil {
		return "", err
	}
	if r.baseURL == "" {
		return "", fmt.Errorf("gateway url is not configured")
	}
	return r.baseURL + "/" + url.PathEscape(addr.AgentType) + "/" + url.PathEscape(addr.AgentID), nil
}

// StaticResolver serves endpoints from a fixed table and defers unknown
// addresses to a fallback resolver
type StaticResolver struct {
	endpoints map[string]string
	fallback  Resolver
}

type staticResolverFile struct {
	Agents []staticResolverEntry `yaml:"agents"`
}

type staticResolverEntry struct {
	Type string `yaml:"type"`
	ID   string `yaml:"id"`
	URL  string `yaml:"url"`
}

// LoadStaticResolver reads a YAML endpoint table:
//
//	agents:
//	  - type: menu
//	    id: store-1
//	    url: https://menu.internal/menu/store-1
func LoadStaticResolver(path string, fallback Resolver) (*StaticResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resolver file: %w", err)
	}
	return ParseStaticResolver(data, fallback)
}

// ParseStaticResolver builds a StaticResolver from YAML bytes
func ParseStaticResolver(data []byte, fallback Resolver) (*StaticResolver, error) {
	var file staticResolverFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse resolver file: %w", err)
	}

	endpoints := make(map[string]string, len(file.Agents))
	for i, entry := range file.Agents {
		addr, err := types.NewAgentAddress(entry.Type, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("resolver entry %d: %w", i, err)
		}
		if _, err := url.ParseRequestURI(entry.URL); err != nil {
			return nil, fmt.Errorf("resolver entry %d (%s): invalid url: %w", i, addr, err)
		}
		endpoints[addr.String()] = entry.URL
	}

	return &StaticResolver{endpoints: endpoints, fallback: fallback}, nil
}

// Resolve returns the configured endpoint or asks the fallback
func (r *StaticResolver) Resolve(ctx context.Context, agentType, agentID string) (string, error) {
	addr := types.AgentAddress{AgentType: agentType, AgentID: agentID}
	if endpoint, ok := r.endpoints[addr.String()]; ok {
		return endpoint, nil
	}
	if r.fallback == nil {
		return "", fmt.Errorf("no endpoint configured for agent %s", addr)
	}
	return r.fallback.Resolve(ctx, agentType, agentID)
}
