package menu_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	menu "github.com/inference-gateway/menu-agents/agents/menu"
	server "github.com/inference-gateway/menu-agents/server"
	types "github.com/inference-gateway/menu-agents/types"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
	zap "go.uber.org/zap"
	zaptest "go.uber.org/zap/zaptest"
)

type harness struct {
	router server.Router
	files  server.FileStore
}

func newHarness(t *testing.T, maxFileSize int64) *harness {
	t.Helper()

	logger := zaptest.NewLogger(t)
	files, err := server.NewFilesystemFileStore(t.TempDir(), "http://gateway.test")
	require.NoError(t, err)

	agent := menu.New(logger, server.NewInMemoryRepository(logger), files, maxFileSize)
	router := server.NewDefaultRouter(logger)
	for _, id := range []string{"store-1", "store-2"} {
		runtime, err := agent.Build(id)
		require.NoError(t, err)
		runtime.Initialize()
		router.Mount(runtime)
	}

	return &harness{router: router, files: files}
}

func (h *harness) call(t *testing.T, agentID, method string, params any) *types.JSONRPCResponse {
	t.Helper()

	req, err := types.NewRequest(types.NamespacedMethod(menu.AgentType, method), params)
	require.NoError(t, err)
	return h.router.Route(context.Background(), menu.AgentType, agentID, req)
}

func (h *harness) mustResult(t *testing.T, agentID, method string, params any, out any) {
	t.Helper()

	resp := h.call(t, agentID, method, params)
	require.Nil(t, resp.Error, "unexpected error: %+v", resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, out))
}

func sendText(text string) types.MessageSendParams {
	return types.MessageSendParams{Message: types.NewUserMessage(text)}
}

func seedItems(t *testing.T, h *harness) {
	t.Helper()

	items := []menu.Item{
		{ID: "p1", Name: "Margherita", Description: "Tomato and mozzarella", Category: "pizza", Price: 9.5, Available: true},
		{ID: "p2", Name: "Diavola", Description: "Spicy salami", Category: "pizza", Price: 11, Available: true},
		{ID: "d1", Name: "Tiramisu", Category: "dessert", Price: 6, Available: false},
	}
	for _, item := range items {
		var stored menu.Item
		h.mustResult(t, "store-1", menu.MethodUpsertItem, item, &stored)
		assert.Equal(t, item, stored)
	}
}

func TestMenuAgent_Card(t *testing.T) {
	h := newHarness(t, 0)

	var card types.AgentCapabilityCard
	h.mustResult(t, "store-1", types.MethodAgentCard, nil, &card)

	assert.Equal(t, "store-1", card.AgentID)
	for _, method := range []string{
		types.MethodMessageSend,
		types.MethodMessageStream,
		types.MethodTasksGet,
		types.MethodFileUpload,
		menu.MethodUpsertItem,
		types.MethodAgentCard,
	} {
		assert.True(t, card.HasMethod(method), method)
	}
}

func TestMenuAgent_SendMessage(t *testing.T) {
	h := newHarness(t, 0)
	seedItems(t, h)

	tests := []struct {
		name          string
		agentID       string
		text          string
		expectedIDs   []string
		expectedReply string
	}{
		{name: "list", agentID: "store-1", text: "list", expectedIDs: []string{"d1", "p1", "p2"}, expectedReply: "3 items on the menu"},
		{name: "get", agentID: "store-1", text: "get p2", expectedIDs: []string{"p2"}, expectedReply: "Diavola"},
		{name: "search by category", agentID: "store-1", text: "PIZZA", expectedIDs: []string{"p1", "p2"}, expectedReply: `2 items match "PIZZA"`},
		{name: "search by description", agentID: "store-1", text: "spicy", expectedIDs: []string{"p2"}, expectedReply: `1 items match "spicy"`},
		{name: "no match", agentID: "store-1", text: "sushi", expectedIDs: []string{}, expectedReply: `no items match "sushi"`},
		{name: "other store is empty", agentID: "store-2", text: "list", expectedIDs: []string{}, expectedReply: "0 items on the menu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reply menu.Reply
			h.mustResult(t, tt.agentID, types.MethodMessageSend, sendText(tt.text), &reply)

			ids := make([]string, 0, len(reply.Items))
			for _, item := range reply.Items {
				ids = append(ids, item.ID)
			}
			assert.Equal(t, tt.expectedIDs, ids)
			assert.Equal(t, tt.expectedReply, reply.Reply)
			assert.NotEmpty(t, reply.TaskID)

			var task types.Task
			h.mustResult(t, tt.agentID, types.MethodTasksGet, types.TaskQueryParams{TaskID: reply.TaskID}, &task)
			assert.Equal(t, types.TaskStateCompleted, task.State)
			require.Len(t, task.History, 2)
			assert.Equal(t, "agent", task.History[1].Role)
		})
	}
}

func TestMenuAgent_Errors(t *testing.T) {
	h := newHarness(t, 4)
	seedItems(t, h)

	tests := []struct {
		name         string
		method       string
		params       any
		expectedCode int
	}{
		{name: "empty message", method: types.MethodMessageSend, params: sendText("   "), expectedCode: menu.CodeEmptyMessage},
		{name: "unknown item", method: types.MethodMessageSend, params: sendText("get nope"), expectedCode: menu.CodeItemNotFound},
		{name: "get without id", method: types.MethodMessageSend, params: sendText("get"), expectedCode: menu.CodeItemNotFound},
		{name: "missing params", method: types.MethodMessageSend, params: nil, expectedCode: int(types.ErrInvalidParams)},
		{name: "item without name", method: menu.MethodUpsertItem, params: menu.Item{ID: "x"}, expectedCode: menu.CodeInvalidItem},
		{name: "negative price", method: menu.MethodUpsertItem, params: menu.Item{ID: "x", Name: "X", Price: -1}, expectedCode: menu.CodeInvalidItem},
		{name: "unknown task", method: types.MethodTasksGet, params: types.TaskQueryParams{TaskID: "nope"}, expectedCode: menu.CodeTaskNotFound},
		{name: "stream to unknown task", method: types.MethodMessageStream, params: types.StreamChunk{TaskID: "nope", Message: types.NewUserMessage("x")}, expectedCode: menu.CodeTaskNotFound},
		{
			name:         "upload too large",
			method:       types.MethodFileUpload,
			params:       map[string]any{"file": types.NewFilePart("a.txt", "text/plain", []byte("too large"))},
			expectedCode: menu.CodeUploadFailed,
		},
		{
			name:         "upload without name",
			method:       types.MethodFileUpload,
			params:       map[string]any{"file": types.NewFilePart("", "text/plain", []byte("ok"))},
			expectedCode: menu.CodeUploadFailed,
		},
		{
			name:         "upload for unknown item",
			method:       types.MethodFileUpload,
			params:       map[string]any{"file": types.NewFilePart("a.txt", "text/plain", []byte("ok")), "itemId": "nope"},
			expectedCode: menu.CodeItemNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.call(t, "store-1", tt.method, tt.params)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)
			assert.Empty(t, resp.Result)
		})
	}
}

func TestMenuAgent_Stream(t *testing.T) {
	h := newHarness(t, 0)

	var first menu.StreamAck
	h.mustResult(t, "store-1", types.MethodMessageStream, types.StreamChunk{
		Sequence: 0,
		Message:  types.NewUserMessage("first"),
	}, &first)
	assert.NotEmpty(t, first.TaskID)
	assert.Equal(t, types.TaskStateWorking, first.State)

	var last menu.StreamAck
	h.mustResult(t, "store-1", types.MethodMessageStream, types.StreamChunk{
		TaskID:   first.TaskID,
		Sequence: 1,
		Message:  types.NewUserMessage("second"),
		Final:    true,
	}, &last)
	assert.Equal(t, first.TaskID, last.TaskID)
	assert.Equal(t, 1, last.Sequence)
	assert.Equal(t, types.TaskStateCompleted, last.State)

	var task types.Task
	h.mustResult(t, "store-1", types.MethodTasksGet, types.TaskQueryParams{TaskID: first.TaskID}, &task)
	require.Len(t, task.History, 2)
	assert.Equal(t, "second", task.History[1].Text())
	assert.JSONEq(t, `{"chunks":2}`, string(task.Result))

	for _, final := range []bool{false, true} {
		resp := h.call(t, "store-1", types.MethodMessageStream, types.StreamChunk{
			TaskID:   first.TaskID,
			Sequence: 2,
			Message:  types.NewUserMessage("late"),
			Final:    final,
		})
		require.NotNil(t, resp.Error)
		assert.Equal(t, menu.CodeTaskNotFound, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "closed")
	}

	h.mustResult(t, "store-1", types.MethodTasksGet, types.TaskQueryParams{TaskID: first.TaskID}, &task)
	assert.Len(t, task.History, 2)
	assert.JSONEq(t, `{"chunks":2}`, string(task.Result))
}

func TestMenuAgent_UploadAttachesImage(t *testing.T) {
	h := newHarness(t, 1024)
	seedItems(t, h)

	var upload types.FileUploadResult
	h.mustResult(t, "store-1", types.MethodFileUpload, map[string]any{
		"file":   types.NewFilePart("margherita.png", "image/png", []byte("png-bytes")),
		"itemId": "p1",
	}, &upload)
	assert.Equal(t, "store-1", upload.Key)
	assert.Equal(t, "http://gateway.test/files/store-1/margherita.png", upload.URL)

	reader, err := h.files.Retrieve(context.Background(), "store-1", "margherita.png")
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	var reply menu.Reply
	h.mustResult(t, "store-1", types.MethodMessageSend, sendText("get p1"), &reply)
	require.Len(t, reply.Items, 1)
	assert.Equal(t, upload.URL, reply.Items[0].ImageURL)
}

func TestMenuAgent_UploadWithoutFileStore(t *testing.T) {
	agent := menu.New(zap.NewNop(), server.NewInMemoryRepository(nil), nil, 0)
	runtime, err := agent.Build("store-1")
	require.NoError(t, err)
	runtime.Initialize()

	router := server.NewDefaultRouter(zap.NewNop())
	router.Mount(runtime)

	req, err := types.NewRequest("menu/file/upload", map[string]any{"file": types.NewFilePart("a.txt", "text/plain", []byte("x"))})
	require.NoError(t, err)
	resp := router.Route(context.Background(), menu.AgentType, "store-1", req)

	require.NotNil(t, resp.Error)
	assert.Equal(t, menu.CodeUploadFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "not configured")
}
