package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	server "github.com/inference-gateway/menu-agents/server"
	types "github.com/inference-gateway/menu-agents/types"
	zap "go.uber.org/zap"
)

// AgentType is the routing namespace of the whatsapp agent
const AgentType = "whatsapp"

// MethodOutbox lists the messages queued for delivery
const MethodOutbox = "whatsapp/outbox"

// StatusQueued is reported for every accepted outbound message
const StatusQueued = "queued"

var recipientPattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// OutboundMessage is a message waiting for the WhatsApp provider
type OutboundMessage struct {
	ID       string        `json:"id"`
	TaskID   string        `json:"taskId"`
	To       string        `json:"to"`
	Message  types.Message `json:"message"`
	Status   string        `json:"status"`
	QueuedAt time.Time     `json:"queuedAt"`
}

// SendResult is the result of message/send
type SendResult struct {
	Status    string `json:"status"`
	TaskID    string `json:"taskId"`
	MessageID string `json:"messageId"`
}

// StreamResult is the result of message/stream
type StreamResult struct {
	Status   string          `json:"status"`
	TaskID   string          `json:"taskId"`
	Sequence int             `json:"sequence"`
	State    types.TaskState `json:"state"`
}

// OutboxResult is the result of whatsapp/outbox
type OutboxResult struct {
	Messages []OutboundMessage `json:"messages"`
}

type sendParams struct {
	Message types.Message `json:"message"`
	To      string        `json:"to"`
}

type streamParams struct {
	types.StreamChunk
	To string `json:"to"`
}

// Agent is a bridge stub: it validates and queues outbound messages in the
// repository and leaves delivery to a provider worker.
type Agent struct {
	logger *zap.Logger
	repo   server.Repository
	tasks  *server.TaskStore
	now    func() time.Time
}

// New creates the whatsapp agent
func New(logger *zap.Logger, repo server.Repository) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		logger: logger.With(zap.String("agent_type", AgentType)),
		repo:   repo,
		tasks:  server.NewTaskStore(logger, repo, AgentType),
		now:    time.Now,
	}
}

// Build returns the runtime agent mounted at whatsapp/{agentID}
func (a *Agent) Build(agentID string) (*server.AgentImpl, error) {
	return server.NewAgentBuilder(a.logger).
		WithAddress(AgentType, agentID).
		WithName("WhatsApp").
		WithDescription("Queues outbound WhatsApp messages for a store").
		WithMethod(types.MethodMessageSend, "Queues a message to the 'to' number", a.handleSend).
		WithMethod(types.MethodMessageStream, "Queues one chunk of a longer conversation", a.handleStream).
		WithMethod(types.MethodTasksGet, "Returns a recorded task", a.handleGetTask).
		WithMethod(MethodOutbox, "Lists queued messages", a.handleOutbox).
		Build()
}

func outboxPrefix(agentID string) string {
	return AgentType + "/" + agentID + "/outbox/"
}

func validateOutbound(to string, message types.Message) error {
	if !recipientPattern.MatchString(to) {
		return errMissingRecipient(to)
	}
	if strings.TrimSpace(message.Text()) == "" && len(message.Files()) == 0 {
		return errEmptyMessage()
	}
	return nil
}

func (a *Agent) handleSend(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	p, err := server.DecodeParams[sendParams](params)
	if err != nil {
		return nil, err
	}
	if err := validateOutbound(p.To, p.Message); err != nil {
		return nil, err
	}

	task, err := a.tasks.CreateTask(ctx, agentID, types.TaskStateWorking, &p.Message)
	if err != nil {
		return nil, err
	}

	outbound, err := a.enqueue(ctx, agentID, task.ID, p.To, p.Message)
	if err != nil {
		return nil, err
	}

	result := SendResult{Status: StatusQueued, TaskID: task.ID, MessageID: outbound.ID}
	if _, err := a.tasks.Complete(ctx, agentID, task.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Agent) handleStream(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	p, err := server.DecodeParams[streamParams](params)
	if err != nil {
		return nil, err
	}
	if err := validateOutbound(p.To, p.Message); err != nil {
		return nil, err
	}

	var task *types.Task
	if p.TaskID == "" {
		task, err = a.tasks.CreateTask(ctx, agentID, types.TaskStateWorking, &p.Message)
	} else {
		task, err = a.tasks.AppendMessage(ctx, agentID, p.TaskID, p.Message)
	}
	if err != nil {
		if server.IsTaskNotFound(err) {
			return nil, errTaskNotFound(p.TaskID)
		}
		if server.IsTaskClosed(err) {
			return nil, errTaskClosed(p.TaskID)
		}
		return nil, err
	}

	if _, err := a.enqueue(ctx, agentID, task.ID, p.To, p.Message); err != nil {
		return nil, err
	}

	if p.Final {
		task, err = a.tasks.Complete(ctx, agentID, task.ID, map[string]int{"chunks": len(task.History)})
		if err != nil {
			return nil, err
		}
	}

	return StreamResult{Status: StatusQueued, TaskID: task.ID, Sequence: p.Sequence, State: task.State}, nil
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

func (a *Agent) handleOutbox(ctx context.Context, params json.RawMessage, agentID string) (any, error) {
	entries, err := a.repo.List(ctx, outboxPrefix(agentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}

	messages := make([]OutboundMessage, 0, len(entries))
	for _, entry := range entries {
		var message OutboundMessage
		if err := json.Unmarshal(entry.Value, &message); err != nil {
			return nil, fmt.Errorf("failed to decode outbound message %s: %w", entry.Key, err)
		}
		messages = append(messages, message)
	}
	return OutboxResult{Messages: messages}, nil
}

// enqueue stores an outbound message. Keys start with the queue time so the
// outbox lists in arrival order.
func (a *Agent) enqueue(ctx context.Context, agentID, taskID, to string, message types.Message) (*OutboundMessage, error) {
	queuedAt := a.now().UTC()
	outbound := &OutboundMessage{
		ID:       server.GenerateTaskID(),
		TaskID:   taskID,
		To:       to,
		Message:  message,
		Status:   StatusQueued,
		QueuedAt: queuedAt,
	}

	data, err := json.Marshal(outbound)
	if err != nil {
		return nil, fmt.Errorf("failed to encode outbound message: %w", err)
	}

	key := fmt.Sprintf("%s%020d-%s", outboxPrefix(agentID), queuedAt.UnixNano(), outbound.ID)
	if err := a.repo.Set(ctx, key, data); err != nil {
		return nil, fmt.Errorf("failed to queue outbound message: %w", err)
	}

	a.logger.Info("message queued",
		zap.String("agent_id", agentID),
		zap.String("task_id", taskID),
		zap.String("message_id", outbound.ID))
	return outbound, nil
}
