package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	gin "github.com/gin-gonic/gin"
	menu "github.com/inference-gateway/menu-agents/agents/menu"
	promotions "github.com/inference-gateway/menu-agents/agents/promotions"
	client "github.com/inference-gateway/menu-agents/client"
	server "github.com/inference-gateway/menu-agents/server"
	config "github.com/inference-gateway/menu-agents/server/config"
	types "github.com/inference-gateway/menu-agents/types"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
	zap "go.uber.org/zap"
)

const gatewayKey = "e2e-key"

func startGateway(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	repo := server.NewInMemoryRepository(logger)

	echo, err := server.NewAgentBuilder(logger).
		WithAddress("echo", "e1").
		WithMethod(types.MethodMessageSend, "Replies ok to hi", func(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
			p, err := server.DecodeParams[types.MessageSendParams](params)
			if err != nil {
				return nil, err
			}
			if p.Message.Text() != "hi" {
				return nil, types.NewError(1, "say hi")
			}
			return map[string]string{"status": "ok"}, nil
		}).
		Build()
	require.NoError(t, err)

	menuAgent, err := menu.New(logger, repo, nil, 0).Build("store-1")
	require.NoError(t, err)
	promotionsAgent, err := promotions.New(logger, repo, nil).Build("store-1")
	require.NoError(t, err)

	cfg, err := config.NewWithDefaults(context.Background(), &config.Config{
		AuthConfig: config.AuthConfig{APIKeys: []string{gatewayKey}},
	})
	require.NoError(t, err)

	srv, err := server.NewA2AServerBuilder(*cfg, logger).
		WithAgent(echo).
		WithAgent(menuAgent).
		WithAgent(promotionsAgent).
		Build()
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newGatewayClient(ts *httptest.Server, apiKey string) client.A2AClient {
	cfg := client.DefaultConfig(ts.URL)
	cfg.APIKey = apiKey
	return client.NewClientWithConfig(cfg)
}

func TestEndToEnd_SendMessage(t *testing.T) {
	ts := startGateway(t)
	c := newGatewayClient(ts, gatewayKey)

	result, err := c.SendMessage(context.Background(), "echo", "e1", types.Message{
		Role:      "user",
		Parts:     []types.Part{types.NewTextPart("hi")},
		MessageID: "m1",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(result))
}

func TestEndToEnd_Unauthorized(t *testing.T) {
	ts := startGateway(t)
	c := newGatewayClient(ts, "wrong-key")

	_, err := c.SendMessage(context.Background(), "echo", "e1", types.NewUserMessage("hi"))
	require.Error(t, err)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid api key", apiErr.Message)
}

func TestEndToEnd_UnsupportedSubscription(t *testing.T) {
	ts := startGateway(t)
	c := newGatewayClient(ts, gatewayKey)

	_, err := c.Subscribe(context.Background(), promotions.AgentType, "store-1", "order.placed", "http://hooks.test")
	require.Error(t, err)

	var rpcErr *client.RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, promotions.CodeUnsupportedEvent, rpcErr.Code)
	assert.Equal(t, "promotions/tasks/subscribe", rpcErr.Method)
}

func TestEndToEnd_ReservedErrors(t *testing.T) {
	ts := startGateway(t)
	c := newGatewayClient(ts, gatewayKey)

	tests := []struct {
		name         string
		agentType    string
		agentID      string
		method       string
		expectedCode int
	}{
		{name: "unknown method", agentType: "echo", agentID: "e1", method: "tasks/cancel", expectedCode: int(types.ErrMethodNotFound)},
		{name: "unknown agent", agentType: "echo", agentID: "e9", method: types.MethodMessageSend, expectedCode: int(types.ErrAgentNotFound)},
		{name: "missing params", agentType: "echo", agentID: "e1", method: types.MethodMessageSend, expectedCode: int(types.ErrInvalidParams)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Call(context.Background(), tt.agentType, tt.agentID, tt.method, nil)

			var rpcErr *client.RPCError
			require.True(t, errors.As(err, &rpcErr), "unexpected error: %v", err)
			assert.Equal(t, tt.expectedCode, rpcErr.Code)
		})
	}
}

func TestEndToEnd_MenuFlow(t *testing.T) {
	ts := startGateway(t)
	c := newGatewayClient(ts, gatewayKey)
	ctx := context.Background()

	card, err := c.GetAgentCard(ctx, menu.AgentType, "store-1")
	require.NoError(t, err)
	assert.True(t, card.HasMethod(menu.MethodUpsertItem))

	_, err = c.Call(ctx, menu.AgentType, "store-1", menu.MethodUpsertItem, menu.Item{ID: "p1", Name: "Margherita", Price: 9})
	require.NoError(t, err)

	result, err := c.SendMessage(ctx, menu.AgentType, "store-1", types.NewUserMessage("get p1"))
	require.NoError(t, err)

	var reply menu.Reply
	require.NoError(t, json.Unmarshal(result, &reply))
	assert.Equal(t, "Margherita", reply.Reply)

	taskResult, err := c.GetTaskResult(ctx, menu.AgentType, "store-1", reply.TaskID)
	require.NoError(t, err)

	var task types.Task
	require.NoError(t, json.Unmarshal(taskResult, &task))
	assert.Equal(t, types.TaskStateCompleted, task.State)

	_, err = c.UploadFile(ctx, menu.AgentType, "store-1", types.NewFilePart("a.png", "image/png", []byte{1}))
	var rpcErr *client.RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, menu.CodeUploadFailed, rpcErr.Code)
}
