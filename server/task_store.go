package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	types "github.com/inference-gateway/menu-agents/types"
	zap "go.uber.org/zap"
)

// TaskNotFoundError represents an error when a task is not found
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// NewTaskNotFoundError creates a new TaskNotFoundError
func NewTaskNotFoundError(taskID string) error {
	return &TaskNotFoundError{TaskID: taskID}
}

// IsTaskNotFound reports whether err is a TaskNotFoundError
func IsTaskNotFound(err error) bool {
	var notFound *TaskNotFoundError
	return errors.As(err, &notFound)
}

// TaskClosedError is returned when a message or result targets a task that
// already reached a terminal state
type TaskClosedError struct {
	TaskID string
	State  types.TaskState
}

func (e *TaskClosedError) Error() string {
	return fmt.Sprintf("task %s is already %s", e.TaskID, e.State)
}

// IsTaskClosed reports whether err is a TaskClosedError
func IsTaskClosed(err error) bool {
	var closed *TaskClosedError
	return errors.As(err, &closed)
}

// TaskStore records the tasks an agent type creates for its message
// exchanges. Tasks live in the Repository under
// "{agentType}/{agentId}/tasks/{taskId}".
type TaskStore struct {
	logger    *zap.Logger
	repo      Repository
	agentType string
	mu        sync.Mutex
	now       func() time.Time
}

// NewTaskStore creates a task store scoped to one agent type
func NewTaskStore(logger *zap.Logger, repo Repository, agentType string) *TaskStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskStore{
		logger:    logger,
		repo:      repo,
		agentType: agentType,
		now:       time.Now,
	}
}

func (s *TaskStore) taskPrefix(agentID string) string {
	return fmt.Sprintf("%s/%s/tasks/", s.agentType, agentID)
}

func (s *TaskStore) taskKey(agentID, taskID string) string {
	return s.taskPrefix(agentID) + taskID
}

// CreateTask stores a new task seeded with message
func (s *TaskStore) CreateTask(ctx context.Context, agentID string, state types.TaskState, message *types.Message) (*types.Task, error) {
	now := s.now().UTC()
	task := &types.Task{
		ID:        GenerateTaskID(),
		AgentID:   agentID,
		State:     state,
		History:   []types.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if message != nil {
		task.History = append(task.History, *message)
	}

	if err := s.save(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Debug("task created",
		zap.String("agent_type", s.agentType),
		zap.String("agent_id", agentID),
		zap.String("task_id", task.ID),
		zap.String("state", string(state)))
	return task, nil
}

// GetTask loads a task or returns a TaskNotFoundError
func (s *TaskStore) GetTask(ctx context.Context, agentID, taskID string) (*types.Task, error) {
	if taskID == "" {
		return nil, NewTaskNotFoundError(taskID)
	}

	data, err := s.repo.Get(ctx, s.taskKey(agentID, taskID))
	if errors.Is(err, ErrNotFound) {
		return nil, NewTaskNotFoundError(taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	var task types.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", taskID, err)
	}
	return &task, nil
}

// UpdateTask applies mutate to the stored task and saves it
func (s *TaskStore) UpdateTask(ctx context.Context, agentID, taskID string, mutate func(task *types.Task)) (*types.Task, error) {
	return s.update(ctx, agentID, taskID, func(task *types.Task) error {
		mutate(task)
		return nil
	})
}

// updateOpen is UpdateTask for tasks that must not be terminal yet
func (s *TaskStore) updateOpen(ctx context.Context, agentID, taskID string, mutate func(task *types.Task)) (*types.Task, error) {
	return s.update(ctx, agentID, taskID, func(task *types.Task) error {
		if task.State.IsTerminal() {
			return &TaskClosedError{TaskID: task.ID, State: task.State}
		}
		mutate(task)
		return nil
	})
}

func (s *TaskStore) update(ctx context.Context, agentID, taskID string, mutate func(task *types.Task) error) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.GetTask(ctx, agentID, taskID)
	if err != nil {
		return nil, err
	}

	if err := mutate(task); err != nil {
		return nil, err
	}
	task.UpdatedAt = s.now().UTC()

	if err := s.save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// AppendMessage adds message to the history of a task that is not yet
// completed or failed
func (s *TaskStore) AppendMessage(ctx context.Context, agentID, taskID string, message types.Message) (*types.Task, error) {
	return s.updateOpen(ctx, agentID, taskID, func(task *types.Task) {
		task.History = append(task.History, message)
	})
}

// Complete marks an open task completed with result
func (s *TaskStore) Complete(ctx context.Context, agentID, taskID string, result any) (*types.Task, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task result: %w", err)
	}

	return s.updateOpen(ctx, agentID, taskID, func(task *types.Task) {
		task.State = types.TaskStateCompleted
		task.Result = raw
	})
}

// ListTasks returns every task of agentID ordered by creation time
func (s *TaskStore) ListTasks(ctx context.Context, agentID string) ([]*types.Task, error) {
	entries, err := s.repo.List(ctx, s.taskPrefix(agentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*types.Task, 0, len(entries))
	for _, entry := range entries {
		var task types.Task
		if err := json.Unmarshal(entry.Value, &task); err != nil {
			s.logger.Warn("skipping undecodable task", zap.String("key", entry.Key), zap.Error(err))
			continue
		}
		tasks = append(tasks, &task)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *TaskStore) save(ctx context.Context, task *types.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}
	if err := s.repo.Set(ctx, s.taskKey(task.AgentID, task.ID), data); err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}
