package whatsapp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	server "github.com/inference-gateway/menu-agents/server"
	types "github.com/inference-gateway/menu-agents/types"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
	zaptest "go.uber.org/zap/zaptest"
)

const recipient = "+5215512345678"

type harness struct {
	router server.Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := zaptest.NewLogger(t)
	agent := New(logger, server.NewInMemoryRepository(logger))

	tick := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	agent.now = func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	}

	runtime, err := agent.Build("store-1")
	require.NoError(t, err)
	runtime.Initialize()

	router := server.NewDefaultRouter(logger)
	router.Mount(runtime)
	return &harness{router: router}
}

func (h *harness) call(t *testing.T, method string, params any) *types.JSONRPCResponse {
	t.Helper()

	req, err := types.NewRequest(types.NamespacedMethod(AgentType, method), params)
	require.NoError(t, err)
	return h.router.Route(context.Background(), AgentType, "store-1", req)
}

func (h *harness) mustResult(t *testing.T, method string, params any, out any) {
	t.Helper()

	resp := h.call(t, method, params)
	require.Nil(t, resp.Error, "unexpected error: %+v", resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, out))
}

func TestWhatsAppAgent_Send(t *testing.T) {
	h := newHarness(t)

	var result SendResult
	h.mustResult(t, types.MethodMessageSend, map[string]any{
		"to":      recipient,
		"message": types.NewUserMessage("Your order is ready"),
	}, &result)

	assert.Equal(t, StatusQueued, result.Status)
	assert.NotEmpty(t, result.TaskID)
	assert.NotEmpty(t, result.MessageID)

	var outbox OutboxResult
	h.mustResult(t, MethodOutbox, nil, &outbox)
	require.Len(t, outbox.Messages, 1)
	assert.Equal(t, recipient, outbox.Messages[0].To)
	assert.Equal(t, result.MessageID, outbox.Messages[0].ID)
	assert.Equal(t, "Your order is ready", outbox.Messages[0].Message.Text())

	var task types.Task
	h.mustResult(t, types.MethodTasksGet, types.TaskQueryParams{TaskID: result.TaskID}, &task)
	assert.Equal(t, types.TaskStateCompleted, task.State)
}

func TestWhatsAppAgent_Errors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name         string
		method       string
		params       any
		expectedCode int
	}{
		{
			name:         "missing recipient",
			method:       types.MethodMessageSend,
			params:       map[string]any{"message": types.NewUserMessage("hi")},
			expectedCode: CodeMissingRecipient,
		},
		{
			name:         "malformed recipient",
			method:       types.MethodMessageSend,
			params:       map[string]any{"to": "5512345678", "message": types.NewUserMessage("hi")},
			expectedCode: CodeMissingRecipient,
		},
		{
			name:         "empty message",
			method:       types.MethodMessageSend,
			params:       map[string]any{"to": recipient, "message": types.NewUserMessage("  ")},
			expectedCode: CodeEmptyMessage,
		},
		{
			name:         "stream without recipient",
			method:       types.MethodMessageStream,
			params:       types.StreamChunk{Message: types.NewUserMessage("hi")},
			expectedCode: CodeMissingRecipient,
		},
		{
			name:         "stream to unknown task",
			method:       types.MethodMessageStream,
			params:       map[string]any{"to": recipient, "taskId": "nope", "message": types.NewUserMessage("hi")},
			expectedCode: CodeTaskNotFound,
		},
		{
			name:         "unknown task",
			method:       types.MethodTasksGet,
			params:       types.TaskQueryParams{TaskID: "nope"},
			expectedCode: CodeTaskNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.call(t, tt.method, tt.params)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)
		})
	}

	var outbox OutboxResult
	h.mustResult(t, MethodOutbox, nil, &outbox)
	assert.Empty(t, outbox.Messages)
}

func TestWhatsAppAgent_FileOnlyMessage(t *testing.T) {
	h := newHarness(t)

	message := types.Message{
		Role:      "agent",
		Parts:     []types.Part{types.NewFilePart("menu.pdf", "application/pdf", []byte("%PDF"))},
		MessageID: "m1",
	}

	var result SendResult
	h.mustResult(t, types.MethodMessageSend, map[string]any{"to": recipient, "message": message}, &result)
	assert.Equal(t, StatusQueued, result.Status)
}

func TestWhatsAppAgent_Stream(t *testing.T) {
	h := newHarness(t)

	var first StreamResult
	h.mustResult(t, types.MethodMessageStream, map[string]any{
		"to":       recipient,
		"sequence": 0,
		"message":  types.NewUserMessage("part one"),
	}, &first)
	assert.Equal(t, types.TaskStateWorking, first.State)

	var last StreamResult
	h.mustResult(t, types.MethodMessageStream, map[string]any{
		"to":       recipient,
		"taskId":   first.TaskID,
		"sequence": 1,
		"final":    true,
		"message":  types.NewUserMessage("part two"),
	}, &last)
	assert.Equal(t, first.TaskID, last.TaskID)
	assert.Equal(t, types.TaskStateCompleted, last.State)

	var outbox OutboxResult
	h.mustResult(t, MethodOutbox, nil, &outbox)
	require.Len(t, outbox.Messages, 2)
	assert.Equal(t, "part one", outbox.Messages[0].Message.Text())
	assert.Equal(t, "part two", outbox.Messages[1].Message.Text())
}

func TestWhatsAppAgent_StreamToCompletedTask(t *testing.T) {
	h := newHarness(t)

	var sent SendResult
	h.mustResult(t, types.MethodMessageSend, map[string]any{
		"to":      recipient,
		"message": types.NewUserMessage("order confirmed"),
	}, &sent)

	resp := h.call(t, types.MethodMessageStream, map[string]any{
		"to":      recipient,
		"taskId":  sent.TaskID,
		"final":   true,
		"message": types.NewUserMessage("one more thing"),
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTaskNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "closed")

	var outbox OutboxResult
	h.mustResult(t, MethodOutbox, nil, &outbox)
	assert.Len(t, outbox.Messages, 1)
}
