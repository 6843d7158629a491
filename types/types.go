package types

import (
	"fmt"
	"strings"
)

// MessagePartKind represents the different types of message parts an agent accepts.
type MessagePartKind string

// MessagePartKind enum values
const (
	// MessagePartKindText represents a text segment within message parts
	MessagePartKindText MessagePartKind = "text"

	// MessagePartKindFile represents a file segment within message parts
	MessagePartKindFile MessagePartKind = "file"
)

// IsValid checks if the MessagePartKind is one of the supported values
func (k MessagePartKind) IsValid() bool {
	switch k {
	case MessagePartKindText, MessagePartKindFile:
		return true
	default:
		return false
	}
}

// HealthStatusHealthy is reported by GET /health
const HealthStatusHealthy = "healthy"

// Well-known and conventional method names. Agents register them without the
// agent type namespace; callers send them as "{agentType}/{method}".
const (
	MethodAgentCard      = "agent/authenticatedExtendedCard"
	MethodMessageSend    = "message/send"
	MethodMessageStream  = "message/stream"
	MethodTasksGet       = "tasks/get"
	MethodTasksSubscribe = "tasks/subscribe"
	MethodFileUpload     = "file/upload"
)

// APIKeyHeader carries the credential on every agent call.
const APIKeyHeader = "x-api-key"

// Security scheme types advertised on GET /agents
const (
	SecuritySchemeAPIKey = "apiKey"
	SecuritySchemeOAuth2 = "oauth2"
)

// SecurityScheme describes one credential the gateway accepts on agent calls
type SecurityScheme struct {
	Type             string   `json:"type"`
	Name             string   `json:"name,omitempty"`
	In               string   `json:"in,omitempty"`
	AuthorizationURL string   `json:"authorizationUrl,omitempty"`
	TokenURL         string   `json:"tokenUrl,omitempty"`
	Scopes           []string `json:"scopes,omitempty"`
}

// AgentAddress identifies a routable agent instance.
type AgentAddress struct {
	AgentType string `json:"agentType"`
	AgentID   string `json:"agentId"`
}

// NewAgentAddress validates and returns an AgentAddress
func NewAgentAddress(agentType, agentID string) (AgentAddress, error) {
	addr := AgentAddress{AgentType: agentType, AgentID: agentID}
	if err := addr.Validate(); err != nil {
		return AgentAddress{}, err
	}
	return addr, nil
}

// Validate checks that both components are present and usable as a path segment
func (a AgentAddress) Validate() error {
	if a.AgentType == "" {
		return fmt.Errorf("agent type cannot be empty")
	}
	if a.AgentID == "" {
		return fmt.Errorf("agent id cannot be empty")
	}
	if strings.Contains(a.AgentType, "/") || strings.Contains(a.AgentID, "/") {
		return fmt.Errorf("agent address %q must not contain '/'", a.String())
	}
	return nil
}

// String returns the "{agentType}/{agentId}" form used as a path and map key
func (a AgentAddress) String() string {
	return a.AgentType + "/" + a.AgentID
}

// Namespaced prefixes a method with the agent type, leaving already namespaced
// methods untouched.
func (a AgentAddress) Namespaced(method string) string {
	return NamespacedMethod(a.AgentType, method)
}

// NamespacedMethod returns "{agentType}/{method}" unless method already carries the prefix
func NamespacedMethod(agentType, method string) string {
	if strings.HasPrefix(method, agentType+"/") {
		return method
	}
	return agentType + "/" + method
}

// Capability describes one method an agent exposes.
type Capability struct {
	Method      string `json:"method"`
	Description string `json:"description"`
}

// AgentCapabilityCard is the self-describing manifest returned by
// agent/authenticatedExtendedCard. It is recomputed on every call.
type AgentCapabilityCard struct {
	AgentID      string       `json:"agentId"`
	AgentType    string       `json:"agentType,omitempty"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Capabilities []Capability `json:"capabilities"`
}

// HasMethod reports whether the card advertises the given method
func (c AgentCapabilityCard) HasMethod(method string) bool {
	for _, capability := range c.Capabilities {
		if capability.Method == method {
			return true
		}
	}
	return false
}
