package workqueue

import (
	"context"
	"sync"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is a unit of background work.
type Task interface {
	// ID is the key used to cancel the task. It is the id of the job record
	// the task drives (data source, sync job or query).
	ID() string

	// Name is a short label for logs.
	Name() string

	// RequiresLLM reports whether the task calls the LLM; LLM tasks and data
	// tasks are limited separately.
	RequiresLLM() bool

	// Execute runs the task. ctx is cancelled when the task is cancelled by
	// id or the queue shuts down.
	Execute(ctx context.Context) error
}

// TaskState holds the runtime state of a task.
type TaskState struct {
	Task        Task
	Status      TaskStatus
	EnqueuedAt  time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       error

	cancel context.CancelFunc
	mu     sync.RWMutex
}

// NewTaskState creates a new TaskState wrapping a task.
func NewTaskState(task Task) *TaskState {
	return &TaskState{
		Task:       task,
		Status:     TaskStatusPending,
		EnqueuedAt: time.Now(),
	}
}

// GetStatus returns the current status (thread-safe).
func (ts *TaskState) GetStatus() TaskStatus {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.Status
}

// SetStatus updates the status and timestamps (thread-safe).
func (ts *TaskState) SetStatus(status TaskStatus) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.Status = status
	now := time.Now()

	switch status {
	case TaskStatusRunning:
		ts.StartedAt = &now
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		ts.CompletedAt = &now
	}
}

// SetError sets the error (thread-safe).
func (ts *TaskState) SetError(err error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.Error = err
}

// GetError returns the error (thread-safe).
func (ts *TaskState) GetError() error {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.Error
}

func (ts *TaskState) isTerminal() bool {
	switch ts.GetStatus() {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Snapshot returns an immutable copy of the task state.
func (ts *TaskState) Snapshot() TaskSnapshot {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var errMsg string
	if ts.Error != nil {
		errMsg = ts.Error.Error()
	}

	return TaskSnapshot{
		ID:          ts.Task.ID(),
		Name:        ts.Task.Name(),
		RequiresLLM: ts.Task.RequiresLLM(),
		Status:      ts.Status,
		EnqueuedAt:  ts.EnqueuedAt,
		StartedAt:   ts.StartedAt,
		CompletedAt: ts.CompletedAt,
		Error:       errMsg,
	}
}

// TaskSnapshot is an immutable view of task state for serialization.
type TaskSnapshot struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	RequiresLLM bool       `json:"requiresLlm"`
	Status      TaskStatus `json:"status"`
	EnqueuedAt  time.Time  `json:"enqueuedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// BaseTask provides common task functionality.
// Embed this in concrete task implementations.
type BaseTask struct {
	id          string
	name        string
	requiresLLM bool
}

// NewBaseTask creates a base task keyed by id.
func NewBaseTask(id, name string, requiresLLM bool) BaseTask {
	return BaseTask{
		id:          id,
		name:        name,
		requiresLLM: requiresLLM,
	}
}

// ID returns the task ID.
func (t BaseTask) ID() string {
	return t.id
}

// Name returns the task name.
func (t BaseTask) Name() string {
	return t.name
}

// RequiresLLM returns whether this task counts against the LLM limit.
func (t BaseTask) RequiresLLM() bool {
	return t.requiresLLM
}

// FuncTask adapts a function to the Task interface.
type FuncTask struct {
	BaseTask
	fn func(ctx context.Context) error
}

// NewFuncTask wraps fn as a task keyed by id.
func NewFuncTask(id, name string, requiresLLM bool, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{BaseTask: NewBaseTask(id, name, requiresLLM), fn: fn}
}

func (t *FuncTask) Execute(ctx context.Context) error {
	return t.fn(ctx)
}
