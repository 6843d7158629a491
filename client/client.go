package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	config "github.com/inference-gateway/menu-agents/server/config"
	types "github.com/inference-gateway/menu-agents/types"
	zap "go.uber.org/zap"
)

// A2AClient dispatches JSON-RPC calls to agents addressed by (agentType, agentId)
type A2AClient interface {
	// Conventional methods
	SendMessage(ctx context.Context, agentType, agentID string, message types.Message, opts ...CallOption) (json.RawMessage, error)
	SendStream(ctx context.Context, agentType, agentID string, chunk types.StreamChunk, opts ...CallOption) (json.RawMessage, error)
	GetTaskResult(ctx context.Context, agentType, agentID, taskID string, opts ...CallOption) (json.RawMessage, error)
	GetAgentCard(ctx context.Context, agentType, agentID string, opts ...CallOption) (*types.AgentCapabilityCard, error)
	Subscribe(ctx context.Context, agentType, agentID, eventName, callbackURL string, opts ...CallOption) (json.RawMessage, error)
	UploadFile(ctx context.Context, agentType, agentID string, file types.FilePart, opts ...CallOption) (*types.FileUploadResult, error)

	// Call invokes any method; it is namespaced with agentType unless already prefixed
	Call(ctx context.Context, agentType, agentID, method string, params any, opts ...CallOption) (json.RawMessage, error)

	// Configuration
	SetTimeout(timeout time.Duration)
	SetHTTPClient(client *http.Client)
	GetGatewayURL() string

	// Logger configuration
	SetLogger(logger *zap.Logger)
	GetLogger() *zap.Logger
}

var _ A2AClient = (*Client)(nil)

// Config holds configuration options for the client
type Config struct {
	GatewayURL string
	// APIKey is used when a call does not pass WithAPIKey
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	// Resolver overrides the default gateway resolver built from GatewayURL
	Resolver  Resolver
	UserAgent string
	Headers   map[string]string
	Logger    *zap.Logger
}

// DefaultConfig returns a default configuration
func DefaultConfig(gatewayURL string) *Config {
	return &Config{
		GatewayURL: gatewayURL,
		Timeout:    30 * time.Second,
		UserAgent:  "menu-agents-client/1.0",
		Headers:    make(map[string]string),
		Logger:     zap.NewNop(),
	}
}

var defaultAPIKey atomic.Pointer[string]

// SetDefaultAPIKey sets the process-wide credential used when neither the call
// nor the client config supplies one. Safe to call while requests are in flight.
func SetDefaultAPIKey(apiKey string) {
	defaultAPIKey.Store(&apiKey)
}

// DefaultAPIKey returns the process-wide credential, or "" when unset
func DefaultAPIKey() string {
	if key := defaultAPIKey.Load(); key != nil {
		return *key
	}
	return ""
}

// CallOption customizes a single call
type CallOption func(*callOptions)

type callOptions struct {
	apiKey       string
	customParams map[string]any
}

// WithAPIKey sets the credential for one call, taking precedence over any default
func WithAPIKey(apiKey string) CallOption {
	return func(o *callOptions) {
		o.apiKey = apiKey
	}
}

// WithCustomParams merges extra top-level params into the request. Keys set
// by the method itself win on conflict.
func WithCustomParams(params map[string]any) CallOption {
	return func(o *callOptions) {
		if o.customParams == nil {
			o.customParams = make(map[string]any, len(params))
		}
		for k, v := range params {
			o.customParams[k] = v
		}
	}
}

// Client is the default A2AClient
type Client struct {
	config     *Config
	httpClient *http.Client
	resolver   Resolver
	logger     *zap.Logger
}

// NewClient creates a client for a gateway with default configuration
func NewClient(gatewayURL string) A2AClient {
	return NewClientWithConfig(DefaultConfig(gatewayURL))
}

// NewClientWithConfig creates a client with custom configuration
func NewClientWithConfig(cfg *Config) A2AClient {
	if cfg == nil {
		cfg = DefaultConfig("")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = NewGatewayResolver(cfg.GatewayURL)
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		resolver:   resolver,
		logger:     logger,
	}
}

// NewClientFromConfig builds a client from the CLIENT_* environment settings.
// A resolver file, when set, takes precedence over the gateway for the agents it lists.
func NewClientFromConfig(cfg config.ClientConfig, logger *zap.Logger) (A2AClient, error) {
	clientCfg := DefaultConfig(cfg.GatewayURL)
	clientCfg.APIKey = cfg.APIKey
	clientCfg.Logger = logger
	if cfg.Timeout > 0 {
		clientCfg.Timeout = cfg.Timeout
	}

	if cfg.ResolverFile != "" {
		resolver, err := LoadStaticResolver(cfg.ResolverFile, NewGatewayResolver(cfg.GatewayURL))
		if err != nil {
			return nil, err
		}
		clientCfg.Resolver = resolver
	}

	return NewClientWithConfig(clientCfg), nil
}

// SendMessage calls "{agentType}/message/send" with params {"message": message, ...custom}
func (c *Client) SendMessage(ctx context.Context, agentType, agentID string, message types.Message, opts ...CallOption) (json.RawMessage, error) {
	c.logger.Debug("sending message",
		zap.String("agent_type", agentType),
		zap.String("agent_id", agentID),
		zap.String("message_id", message.MessageID))

	return c.Call(ctx, agentType, agentID, types.MethodMessageSend, map[string]any{"message": message}, opts...)
}

// SendStream delivers one chunk through "{agentType}/message/stream". Each
// call is independent; there is no open stream between calls.
func (c *Client) SendStream(ctx context.Context, agentType, agentID string, chunk types.StreamChunk, opts ...CallOption) (json.RawMessage, error) {
	c.logger.Debug("sending stream chunk",
		zap.String("agent_type", agentType),
		zap.String("agent_id", agentID),
		zap.Int("sequence", chunk.Sequence),
		zap.Bool("final", chunk.Final))

	return c.Call(ctx, agentType, agentID, types.MethodMessageStream, chunk, opts...)
}

// GetTaskResult calls "{agentType}/tasks/get"
func (c *Client) GetTaskResult(ctx context.Context, agentType, agentID, taskID string, opts ...CallOption) (json.RawMessage, error) {
	return c.Call(ctx, agentType, agentID, types.MethodTasksGet, types.TaskQueryParams{TaskID: taskID}, opts...)
}

// GetAgentCard fetches the capability card of an agent
func (c *Client) GetAgentCard(ctx context.Context, agentType, agentID string, opts ...CallOption) (*types.AgentCapabilityCard, error) {
	result, err := c.Call(ctx, agentType, agentID, types.MethodAgentCard, nil, opts...)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("agent %s/%s returned no capability card", agentType, agentID)
	}

	var card types.AgentCapabilityCard
	if err := json.Unmarshal(result, &card); err != nil {
		c.logger.Error("failed to decode agent card", zap.Error(err))
		return nil, fmt.Errorf("failed to decode agent card: %w", err)
	}
	return &card, nil
}

// Subscribe registers callbackURL for eventName through "{agentType}/tasks/subscribe"
func (c *Client) Subscribe(ctx context.Context, agentType, agentID, eventName, callbackURL string, opts ...CallOption) (json.RawMessage, error) {
	return c.Call(ctx, agentType, agentID, types.MethodTasksSubscribe, types.SubscribeParams{
		Event:       eventName,
		CallbackURL: callbackURL,
	}, opts...)
}

// UploadFile sends an inline file through "{agentType}/file/upload"
func (c *Client) UploadFile(ctx context.Context, agentType, agentID string, file types.FilePart, opts ...CallOption) (*types.FileUploadResult, error) {
	result, err := c.Call(ctx, agentType, agentID, types.MethodFileUpload, map[string]any{"file": file}, opts...)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("agent %s/%s returned no upload result", agentType, agentID)
	}

	var upload types.FileUploadResult
	if err := json.Unmarshal(result, &upload); err != nil {
		return nil, fmt.Errorf("failed to decode upload result: %w", err)
	}
	return &upload, nil
}

// Call is the generic request function behind every other method. It returns
// nil without error when the response carries no result.
func (c *Client) Call(ctx context.Context, agentType, agentID, method string, params any, opts ...CallOption) (json.RawMessage, error) {
	options := callOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	method = types.NamespacedMethod(agentType, method)

	apiKey := c.resolveAPIKey(options.apiKey)
	if apiKey == "" {
		c.logger.Error("no credential for agent call", zap.String("method", method))
		return nil, ErrMissingCredential
	}

	endpoint, err := c.resolver.Resolve(ctx, agentType, agentID)
	if err != nil {
		c.logger.Error("failed to resolve agent endpoint", zap.Error(err),
			zap.String("agent_type", agentType), zap.String("agent_id", agentID))
		return nil, fmt.Errorf("failed to resolve agent endpoint: %w", err)
	}

	if len(options.customParams) > 0 {
		params, err = mergeParams(params, options.customParams)
		if err != nil {
			c.logger.Error("failed to merge custom params", zap.Error(err))
			return nil, err
		}
	}

	req, err := types.NewRequest(method, params)
	if err != nil {
		c.logger.Error("failed to build request", zap.Error(err))
		return nil, err
	}

	body, err := types.EncodeRequest(req)
	if err != nil {
		c.logger.Error("failed to marshal request", zap.Error(err))
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to create request", zap.Error(err))
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq, apiKey)

	c.logger.Debug("sending request",
		zap.String("url", endpoint),
		zap.String("method", method),
		zap.String("request_id", req.ID))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("failed to send request", zap.Error(err), zap.String("method", method))
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.logger.Error("failed to read response", zap.Error(err))
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: httpResp.StatusCode,
			Message:    extractErrorMessage(respBody, httpResp.Status),
		}
		c.logger.Error("unexpected status code",
			zap.Int("status_code", apiErr.StatusCode),
			zap.String("message", apiErr.Message),
			zap.String("method", method))
		return nil, apiErr
	}

	resp, err := types.DecodeResponse(respBody)
	if err != nil {
		c.logger.Error("failed to decode response", zap.Error(err), zap.String("method", method))
		return nil, err
	}

	if resp.Error != nil {
		c.logger.Debug("agent returned error",
			zap.String("method", method),
			zap.String("request_id", req.ID),
			zap.Int("code", resp.Error.Code),
			zap.String("message", resp.Error.Message))
		return nil, &RPCError{Code: resp.Error.Code, Message: resp.Error.Message, Method: method}
	}

	if !resp.HasResult() {
		c.logger.Warn("response carried no result", zap.String("method", method), zap.String("request_id", req.ID))
		return nil, nil
	}

	if bytes.Equal(bytes.TrimSpace(resp.Result), []byte("null")) {
		return nil, nil
	}

	c.logger.Debug("request completed", zap.String("method", method), zap.String("request_id", req.ID))
	return resp.Result, nil
}

// resolveAPIKey picks the per-call key, then the client config, then the process default
func (c *Client) resolveAPIKey(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c.config.APIKey != "" {
		return c.config.APIKey
	}
	return DefaultAPIKey()
}

// setHeaders sets the common headers for requests
func (c *Client) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}

	req.Header.Set(types.APIKeyHeader, apiKey)
}

// mergeParams flattens params into an object and adds custom keys it does not set
func mergeParams(params any, custom map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(custom)+1)
	for k, v := range custom {
		merged[k] = v
	}

	if params == nil {
		return merged, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	var base map[string]any
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("custom params require object params: %w", err)
	}
	for k, v := range base {
		merged[k] = v
	}
	return merged, nil
}

// extractErrorMessage prefers a JSON "message" or "error" field and falls back to the raw body
func extractErrorMessage(body []byte, status string) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if len(payload.Error) > 0 {
			var text string
			if err := json.Unmarshal(payload.Error, &text); err == nil && text != "" {
				return text
			}
			var nested struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
				return nested.Message
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return status
}

// SetTimeout sets the timeout for HTTP requests
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetGatewayURL returns the gateway URL of the client
func (c *Client) GetGatewayURL() string {
	return c.config.GatewayURL
}

// SetLogger sets the logger for the client
func (c *Client) SetLogger(logger *zap.Logger) {
	c.logger = logger
}

// GetLogger returns the logger of the client
func (c *Client) GetLogger() *zap.Logger {
	return c.logger
}

// IsMissingCredential reports whether err is ErrMissingCredential
func IsMissingCredential(err error) bool {
	return errors.Is(err, ErrMissingCredential)
}
