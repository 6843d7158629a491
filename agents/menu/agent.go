package menu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	server "github.com/inference-gateway/menu-agents/server"
	types "github.com/inference-gateway/menu-agents/types"
	zap "go.uber.org/zap"
)

// AgentType is the routing namespace of the menu agent
const AgentType = "menu"

// MethodUpsertItem creates or replaces a menu item
const MethodUpsertItem = "menu/upsertItem"

// Reply is the result of message/send
type Reply struct {
	TaskID string `json:"taskId"`
	Reply  string `json:"reply"`
	Items  []Item `json:"items"`
}

// StreamAck is the result of message/stream
type StreamAck struct {
	TaskID   string          `json:"taskId"`
	Sequence int             `json:"sequence"`
	State    types.TaskState `json:"state"`
}

type uploadTarget struct {
	ItemID string `json:"itemId"`
}

// Agent answers menu questions for one or more stores. A single Agent can be
// mounted under several agent ids; each id has its own items and tasks.
type Agent struct {
	logger      *zap.Logger
	catalog     *catalog
	tasks       *server.TaskStore
	files       server.FileStore
	maxFileSize int64
}

// New creates the menu agent. files may be nil, in which case file/upload fails with CodeUploadFailed.
func New(logger *zap.Logger, repo server.Repository, files server.FileStore, maxFileSize int64) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		logger:      logger.With(zap.String("agent_type", AgentType)),
		catalog:     &catalog{repo: repo},
		tasks:       server.NewTaskStore(logger, repo, AgentType),
		files:       files,
		maxFileSize: maxFileSize,
	}
}

// Build returns the runtime agent mounted at menu/{agentID}
func (a *Agent) Build(agentID string) (*server.AgentImpl, error) {
	return server.NewAgentBuilder(a.logger).
		WithAddress(AgentType, agentID).
		WithName("Menu").
		WithDescription("Answers questions about a store's menu and manages its items").
		WithMethod(types.MethodMessageSend, "Text commands: 'list', 'get <id>' or free text search", a.handleSend).
		WithMethod(types.MethodMessageStream, "Appends one chunk to a task transcript", a.handleStream).
		WithMethod(types.MethodTasksGet, "Returns a recorded task", a.handleGetTask).
		WithMethod(types.MethodFileUpload, "Stores a file, optionally attaching it to an item as its image", a.handleUpload).
		WithMethod(MethodUpsertItem, "Creates or replaces a menu item", a.handleUpsertItem).
		Build()
}

func (a *Agent) handleSend(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	p, err := server.DecodeParams[types.MessageSendParams](params)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(p.Message.Text())
	if text == "" {
		return nil, errEmptyMessage()
	}

	task, err := a.tasks.CreateTask(ctx, agentID, types.TaskStateWorking, &p.Message)
	if err != nil {
		return nil, err
	}

	items, reply, err := a.answer(ctx, agentID, text)
	if err != nil {
		if _, failErr := a.tasks.UpdateTask(ctx, agentID, task.ID, func(t *types.Task) {
			t.State = types.TaskStateFailed
		}); failErr != nil {
			a.logger.Warn("failed to mark task failed", zap.String("task_id", task.ID), zap.Error(failErr))
		}
		return nil, err
	}

	if _, err := a.tasks.AppendMessage(ctx, agentID, task.ID, types.NewAgentMessage(task.ID, types.NewTextPart(reply))); err != nil {
		return nil, err
	}

	result := Reply{TaskID: task.ID, Reply: reply, Items: items}
	if _, err := a.tasks.Complete(ctx, agentID, task.ID, result); err != nil {
		return nil, err
	}

	return result, nil
}

// answer interprets the text commands of message/send
func (a *Agent) answer(ctx context.Context, agentID, text string) ([]Item, string, error) {
	command, argument, _ := strings.Cut(text, " ")
	argument = strings.TrimSpace(argument)

	switch strings.ToLower(command) {
	case "list":
		items, err := a.catalog.list(ctx, agentID)
		if err != nil {
			return nil, "", err
		}
		return items, fmt.Sprintf("%d items on the menu", len(items)), nil
	case "get":
		if argument == "" {
			return nil, "", errItemNotFound("")
		}
		item, err := a.catalog.get(ctx, agentID, argument)
		if err != nil {
			return nil, "", err
		}
		return []Item{*item}, item.Name, nil
	default:
		items, err := a.catalog.search(ctx, agentID, text)
		if err != nil {
			return nil, "", err
		}
		if len(items) == 0 {
			return items, fmt.Sprintf("no items match %q", text), nil
		}
		return items, fmt.Sprintf("%d items match %q", len(items), text), nil
	}
}

func (a *Agent) handleStream(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	chunk, err := server.DecodeParams[types.StreamChunk](params)
	if err != nil {
		return nil, err
	}

	var task *types.Task
	if chunk.TaskID == "" {
		task, err = a.tasks.CreateTask(ctx, agentID, types.TaskStateWorking, &chunk.Message)
	} else {
		task, err = a.tasks.AppendMessage(ctx, agentID, chunk.TaskID, chunk.Message)
	}
	if err != nil {
		if server.IsTaskNotFound(err) {
			return nil, errTaskNotFound(chunk.TaskID)
		}
		if server.IsTaskClosed(err) {
			return nil, errTaskClosed(chunk.TaskID)
		}
		return nil, err
	}

	if chunk.Final {
		task, err = a.tasks.Complete(ctx, agentID, task.ID, map[string]int{"chunks": len(task.History)})
		if err != nil {
			return nil, err
		}
	}

	return StreamAck{TaskID: task.ID, Sequence: chunk.Sequence, State: task.State}, nil
}

func (a *Agent) handleGetTask(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	p, err := server.DecodeParams[types.TaskQueryParams](params)
	if err != nil {
		return nil, err
	}

	task, err := a.tasks.GetTask(ctx, agentID, p.TaskID)
	if err != nil {
		if server.IsTaskNotFound(err) {
			return nil, errTaskNotFound(p.TaskID)
		}
		return nil, err
	}
	return task, nil
}

func (a *Agent) handleUpload(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	p, err := server.DecodeParams[types.FileUploadParams](params)
	if err != nil {
		return nil, err
	}
	target, err := server.DecodeParams[uploadTarget](params)
	if err != nil {
		return nil, err
	}

	if a.files == nil {
		return nil, errUploadFailed("file uploads are not configured")
	}
	if p.File.Name == "" {
		return nil, errUploadFailed("file name is required")
	}

	data, err := p.File.Decode()
	if err != nil {
		return nil, errUploadFailed(err.Error())
	}
	if a.maxFileSize > 0 && int64(len(data)) > a.maxFileSize {
		return nil, errUploadFailed(fmt.Sprintf("file exceeds %d bytes", a.maxFileSize))
	}

	var item *Item
	if target.ItemID != "" {
		item, err = a.catalog.get(ctx, agentID, target.ItemID)
		if err != nil {
			return nil, err
		}
	}

	url, err := a.files.Store(ctx, agentID, p.File.Name, bytes.NewReader(data))
	if err != nil {
		a.logger.Error("failed to store upload", zap.String("agent_id", agentID), zap.String("filename", p.File.Name), zap.Error(err))
		return nil, errUploadFailed(err.Error())
	}

	if item != nil {
		item.ImageURL = url
		if err := a.catalog.put(ctx, agentID, *item); err != nil {
			return nil, err
		}
	}

	a.logger.Info("file uploaded",
		zap.String("agent_id", agentID),
		zap.String("filename", p.File.Name),
		zap.Int("size", len(data)))

	return types.FileUploadResult{Key: agentID, URL: url}, nil
}

func (a *Agent) handleUpsertItem(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	item, err := server.DecodeParams[Item](params)
	if err != nil {
		return nil, err
	}
	if err := item.Validate(); err != nil {
		return nil, errInvalidItem(err.Error())
	}

	if err := a.catalog.put(ctx, agentID, item); err != nil {
		return nil, err
	}
	return item, nil
}
