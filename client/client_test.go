package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	client "github.com/inference-gateway/menu-agents/client"
	config "github.com/inference-gateway/menu-agents/server/config"
	types "github.com/inference-gateway/menu-agents/types"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
	zap "go.uber.org/zap"
)

// spyTransport records every request and answers with a canned response
type spyTransport struct {
	mu       sync.Mutex
	status   int
	body     string
	requests []*http.Request
	bodies   [][]byte
}

func (s *spyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	s.requests = append(s.requests, req)
	s.bodies = append(s.bodies, body)

	return &http.Response{
		StatusCode: s.status,
		Status:     fmt.Sprintf("%d %s", s.status, http.StatusText(s.status)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Request:    req,
	}, nil
}

func (s *spyTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *spyTransport) lastRequest(t *testing.T) (*http.Request, types.JSONRPCRequest) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	require.NotEmpty(t, s.requests)
	var rpc types.JSONRPCRequest
	require.NoError(t, json.Unmarshal(s.bodies[len(s.bodies)-1], &rpc))
	return s.requests[len(s.requests)-1], rpc
}

func newSpyClient(t *testing.T, spy *spyTransport, apiKey string) client.A2AClient {
	t.Helper()
	t.Cleanup(func() { client.SetDefaultAPIKey("") })

	cfg := client.DefaultConfig("http://gateway.test")
	cfg.APIKey = apiKey
	cfg.HTTPClient = &http.Client{Transport: spy}
	return client.NewClientWithConfig(cfg)
}

func TestNewClient(t *testing.T) {
	c := client.NewClient("http://localhost:8080")

	assert.NotNil(t, c)
	assert.Equal(t, "http://localhost:8080", c.GetGatewayURL())
	assert.NotNil(t, c.GetLogger())
}

func TestNewClientFromConfig(t *testing.T) {
	c, err := client.NewClientFromConfig(config.ClientConfig{
		GatewayURL: "http://gateway.test",
		APIKey:     "key",
		Timeout:    5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "http://gateway.test", c.GetGatewayURL())

	_, err = client.NewClientFromConfig(config.ClientConfig{
		GatewayURL:   "http://gateway.test",
		ResolverFile: "/does/not/exist.yaml",
	}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read resolver file")
}

func TestClient_MissingCredential(t *testing.T) {
	spy := &spyTransport{status: http.StatusOK, body: `{"jsonrpc":"2.0","id":"x","result":{}}`}
	c := newSpyClient(t, spy, "")

	_, err := c.SendMessage(context.Background(), "menu", "store-1", types.NewUserMessage("hi"))

	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrMissingCredential)
	assert.True(t, client.IsMissingCredential(err))
	assert.Equal(t, 0, spy.calls())
}

func TestClient_CredentialPrecedence(t *testing.T) {
	tests := []struct {
		name        string
		defaultKey  string
		configKey   string
		explicitKey string
		expectedKey string
	}{
		{name: "explicit over everything", defaultKey: "default", configKey: "config", explicitKey: "explicit", expectedKey: "explicit"},
		{name: "config over default", defaultKey: "default", configKey: "config", expectedKey: "config"},
		{name: "default when nothing else", defaultKey: "default", expectedKey: "default"},
		{name: "explicit without default", explicitKey: "explicit", expectedKey: "explicit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyTransport{status: http.StatusOK, body: `{"jsonrpc":"2.0","id":"x","result":{"status":"ok"}}`}
			c := newSpyClient(t, spy, tt.configKey)
			client.SetDefaultAPIKey(tt.defaultKey)

			var opts []client.CallOption
			if tt.explicitKey != "" {
				opts = append(opts, client.WithAPIKey(tt.explicitKey))
			}

			_, err := c.SendMessage(context.Background(), "menu", "store-1", types.NewUserMessage("hi"), opts...)
			require.NoError(t, err)

			req, _ := spy.lastRequest(t)
			assert.Equal(t, tt.expectedKey, req.Header.Get(types.APIKeyHeader))
		})
	}
}

func TestClient_SendMessageRequestShape(t *testing.T) {
	spy := &spyTransport{status: http.StatusOK, body: `{"jsonrpc":"2.0","id":"x","result":{"status":"ok"}}`}
	c := newSpyClient(t, spy, "key")

	message := types.Message{
		Role:      "user",
		Parts:     []types.Part{types.NewTextPart("hi")},
		MessageID: "m1",
	}

	result, err := c.SendMessage(context.Background(), "menu", "store-1", message,
		client.WithCustomParams(map[string]any{"locale": "es", "message": "ignored"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(result))

	req, rpc := spy.lastRequest(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "http://gateway.test/menu/store-1", req.URL.String())
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	assert.Equal(t, "2.0", rpc.JSONRPC)
	assert.Equal(t, "menu/message/send", rpc.Method)
	assert.True(t, strings.HasPrefix(rpc.ID, "req-"))

	var params struct {
		Locale  string        `json:"locale"`
		Message types.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rpc.Params, &params))
	assert.Equal(t, "es", params.Locale)
	assert.Equal(t, "m1", params.Message.MessageID)
	assert.Equal(t, "hi", params.Message.Text())
}

func TestClient_MethodNamespacing(t *testing.T) {
	tests := []struct {
		name           string
		call           func(c client.A2AClient) error
		expectedMethod string
		expectedParams string
	}{
		{
			name: "send stream",
			call: func(c client.A2AClient) error {
				_, err := c.SendStream(context.Background(), "whatsapp", "store-1", types.StreamChunk{
					TaskID:   "t1",
					Sequence: 2,
					Message:  types.Message{Role: "user", Parts: []types.Part{types.NewTextPart("x")}, MessageID: "m1"},
				})
				return err
			},
			expectedMethod: "whatsapp/message/stream",
			expectedParams: `{"taskId":"t1","sequence":2,"message":{"role":"user","parts":[{"type":"text","text":"x"}],"messageId":"m1"}}`,
		},
		{
			name: "get task result",
			call: func(c client.A2AClient) error {
				_, err := c.GetTaskResult(context.Background(), "menu", "store-1", "t1")
				return err
			},
			expectedMethod: "menu/tasks/get",
			expectedParams: `{"taskId":"t1"}`,
		},
		{
			name: "subscribe",
			call: func(c client.A2AClient) error {
				_, err := c.Subscribe(context.Background(), "promotions", "store-1", "promotion.created", "http://hook.test")
				return err
			},
			expectedMethod: "promotions/tasks/subscribe",
			expectedParams: `{"event":"promotion.created","callbackUrl":"http://hook.test"}`,
		},
		{
			name: "already namespaced",
			call: func(c client.A2AClient) error {
				_, err := c.Call(context.Background(), "menu", "store-1", "menu/upsertItem", map[string]string{"id": "1"})
				return err
			},
			expectedMethod: "menu/upsertItem",
			expectedParams: `{"id":"1"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyTransport{status: http.StatusOK, body: `{"jsonrpc":"2.0","id":"x","result":{}}`}
			c := newSpyClient(t, spy, "key")

			require.NoError(t, tt.call(c))

			_, rpc := spy.lastRequest(t)
			assert.Equal(t, tt.expectedMethod, rpc.Method)
			assert.JSONEq(t, tt.expectedParams, string(rpc.Params))
		})
	}
}

func TestClient_TransportErrors(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		expectedMessage string
	}{
		{name: "json message", status: http.StatusInternalServerError, body: `{"message":"boom"}`, expectedMessage: "boom"},
		{name: "json error string", status: http.StatusBadGateway, body: `{"error":"upstream down"}`, expectedMessage: "upstream down"},
		{name: "json error object", status: http.StatusBadRequest, body: `{"error":{"message":"bad input"}}`, expectedMessage: "bad input"},
		{name: "raw text", status: http.StatusServiceUnavailable, body: "maintenance\n", expectedMessage: "maintenance"},
		{name: "empty body", status: http.StatusBadGateway, body: "", expectedMessage: "502 Bad Gateway"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"invalid api key"}`, expectedMessage: "invalid api key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyTransport{status: tt.status, body: tt.body}
			c := newSpyClient(t, spy, "key")

			result, err := c.SendMessage(context.Background(), "menu", "store-1", types.NewUserMessage("hi"))
			require.Error(t, err)
			assert.Nil(t, result)

			var apiErr *client.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.expectedMessage, apiErr.Message)
		})
	}
}

func TestClient_RPCError(t *testing.T) {
	spy := &spyTransport{status: http.StatusOK, body: `{"jsonrpc":"2.0","id":"x","error":{"code":3001,"message":"bad event"}}`}
	c := newSpyClient(t, spy, "key")

	_, err := c.Subscribe(context.Background(), "promotions", "store-1", "nope", "http://hook.test")
	require.Error(t, err)

	var rpcErr *client.RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, 3001, rpcErr.Code)
	assert.Equal(t, "bad event", rpcErr.Message)
	assert.Equal(t, "promotions/tasks/subscribe", rpcErr.Method)
}

func TestClient_ErrorWinsOverResult(t *testing.T) {
	spy := &spyTransport{status: http.StatusOK, body: `{"jsonrpc":"2.0","id":"x","result":{"a":1},"error":{"code":1001,"message":"item not found"}}`}
	c := newSpyClient(t, spy, "key")

	_, err := c.SendMessage(context.Background(), "menu", "store-1", types.NewUserMessage("get 9"))

	var rpcErr *client.RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, 1001, rpcErr.Code)
}

func TestClient_NullResult(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing result", body: `{"jsonrpc":"2.0","id":"x"}`},
		{name: "explicit null", body: `{"jsonrpc":"2.0","id":"x","result":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyTransport{status: http.StatusOK, body: tt.body}
			c := newSpyClient(t, spy, "key")

			result, err := c.SendMessage(context.Background(), "menu", "store-1", types.NewUserMessage("hi"))
			require.NoError(t, err)
			assert.Nil(t, result)
			assert.Equal(t, 1, spy.calls())
		})
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	spy := &spyTransport{status: http.StatusOK, body: `not json`}
	c := newSpyClient(t, spy, "key")

	_, err := c.SendMessage(context.Background(), "menu", "store-1", types.NewUserMessage("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestClient_GetAgentCard(t *testing.T) {
	spy := &spyTransport{status: http.StatusOK, body: `{"jsonrpc":"2.0","id":"x","result":{"agentId":"store-1","name":"Menu","description":"d","capabilities":[{"method":"message/send","description":"send"}]}}`}
	c := newSpyClient(t, spy, "key")

	card, err := c.GetAgentCard(context.Background(), "menu", "store-1")
	require.NoError(t, err)
	assert.Equal(t, "Menu", card.Name)
	assert.True(t, card.HasMethod(types.MethodMessageSend))

	_, rpc := spy.lastRequest(t)
	assert.Equal(t, "menu/agent/authenticatedExtendedCard", rpc.Method)
	assert.Empty(t, rpc.Params)
}

func TestClient_UploadFile(t *testing.T) {
	spy := &spyTransport{status: http.StatusOK, body: `{"jsonrpc":"2.0","id":"x","result":{"key":"store-1","url":"http://gateway.test/files/store-1/menu.png"}}`}
	c := newSpyClient(t, spy, "key")

	upload, err := c.UploadFile(context.Background(), "menu", "store-1", types.NewFilePart("menu.png", "image/png", []byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, "http://gateway.test/files/store-1/menu.png", upload.URL)

	_, rpc := spy.lastRequest(t)
	assert.Equal(t, "menu/file/upload", rpc.Method)

	var params types.FileUploadParams
	require.NoError(t, json.Unmarshal(rpc.Params, &params))
	assert.Equal(t, "menu.png", params.File.Name)
	data, err := params.File.Decode()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestClient_InvalidAddress(t *testing.T) {
	spy := &spyTransport{status: http.StatusOK, body: `{"jsonrpc":"2.0","id":"x","result":{}}`}
	c := newSpyClient(t, spy, "key")

	_, err := c.SendMessage(context.Background(), "menu", "", types.NewUserMessage("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve agent endpoint")
	assert.Equal(t, 0, spy.calls())
}
