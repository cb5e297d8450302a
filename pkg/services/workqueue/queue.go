// Package workqueue runs background jobs in-process with separate
// concurrency limits for LLM-bound and data-bound work.
package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("work queue is shut down")

// Queue is a long-lived FIFO of tasks. Pending tasks start in enqueue order
// within their lane as soon as the strategy admits them. Finished tasks are
// dropped; their outcome lives on the job records they drive.
type Queue struct {
	mu     sync.Mutex
	tasks  []*TaskState // pending and running, in enqueue order
	closed bool

	strategy ConcurrencyStrategy

	// idle is closed whenever no task is pending or running
	idle chan struct{}
	wg   sync.WaitGroup

	// Parent of every task context; cancelled on shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	onUpdate func([]TaskSnapshot)

	logger *zap.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithStrategy sets the concurrency strategy.
func WithStrategy(strategy ConcurrencyStrategy) QueueOption {
	return func(q *Queue) {
		if strategy != nil {
			q.strategy = strategy
		}
	}
}

// WithOnUpdate sets a callback invoked when task state changes.
//
// WARNING: The callback is invoked while holding the queue's internal lock.
// Do NOT call any Queue methods from within the callback or it will deadlock.
func WithOnUpdate(callback func([]TaskSnapshot)) QueueOption {
	return func(q *Queue) {
		q.onUpdate = callback
	}
}

// New creates a work queue. Without WithStrategy it runs one LLM task and
// one data task at a time.
func New(logger *zap.Logger, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	q := &Queue{
		strategy: NewSerializedStrategy(),
		idle:     idle,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.Named("workqueue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds a task and starts eligible tasks.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("Queue shut down, rejecting task",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()))
		return ErrQueueClosed
	}

	select {
	case <-q.idle:
		q.idle = make(chan struct{})
	default:
	}

	q.tasks = append(q.tasks, NewTaskState(task))

	q.logger.Debug("Task enqueued",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()),
		zap.Bool("requires_llm", task.RequiresLLM()))

	q.notifyUpdateLocked()
	q.tryStartTasksLocked()
	return nil
}

// tryStartTasksLocked starts pending tasks in order while the strategy
// admits them. Must be called with lock held.
func (q *Queue) tryStartTasksLocked() {
	if q.closed {
		return
	}

	for _, ts := range q.tasks {
		if ts.GetStatus() != TaskStatusPending {
			continue
		}

		isLLMTask := ts.Task.RequiresLLM()
		if isLLMTask && !q.strategy.CanStartLLM() {
			continue
		}
		if !isLLMTask && !q.strategy.CanStartData() {
			continue
		}

		if isLLMTask {
			q.strategy.OnStartLLM()
		} else {
			q.strategy.OnStartData()
		}

		ctx, cancel := context.WithCancel(q.ctx)
		ts.cancel = cancel
		ts.SetStatus(TaskStatusRunning)
		q.notifyUpdateLocked()

		q.logger.Debug("Starting task",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()))

		q.wg.Add(1)
		go q.runTask(ctx, ts)
	}
}

func (q *Queue) runTask(ctx context.Context, ts *TaskState) {
	defer q.wg.Done()

	err := q.execute(ctx, ts.Task)
	ts.cancel()

	q.mu.Lock()
	defer q.mu.Unlock()

	if ts.Task.RequiresLLM() {
		q.strategy.OnCompleteLLM()
	} else {
		q.strategy.OnCompleteData()
	}

	fields := []zap.Field{
		zap.String("task_id", ts.Task.ID()),
		zap.String("task_name", ts.Task.Name()),
	}
	switch {
	case err == nil:
		ts.SetStatus(TaskStatusCompleted)
		q.logger.Debug("Task completed", fields...)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		ts.SetStatus(TaskStatusCancelled)
		q.logger.Info("Task cancelled", fields...)
	default:
		ts.SetError(err)
		ts.SetStatus(TaskStatusFailed)
		q.logger.Error("Task failed", append(fields, zap.Error(err))...)
	}

	q.removeLocked(ts)
	q.notifyUpdateLocked()
	q.tryStartTasksLocked()
}

// execute turns a panicking task into a failed one.
func (q *Queue) execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Execute(ctx)
}

// removeLocked drops a finished task and signals idle when none remain.
func (q *Queue) removeLocked(ts *TaskState) {
	for i, other := range q.tasks {
		if other == ts {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			break
		}
	}
	if len(q.tasks) == 0 {
		select {
		case <-q.idle:
		default:
			close(q.idle)
		}
	}
}

// Cancel stops every pending or running task with the given id. Pending
// tasks never start; running tasks see their context cancelled. Reports
// whether any task matched.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	found := false
	for _, ts := range append([]*TaskState(nil), q.tasks...) {
		if ts.Task.ID() != id {
			continue
		}
		found = true
		switch ts.GetStatus() {
		case TaskStatusPending:
			ts.SetStatus(TaskStatusCancelled)
			q.removeLocked(ts)
		case TaskStatusRunning:
			ts.cancel()
		}
	}
	if found {
		q.logger.Info("Cancelling task", zap.String("task_id", id))
		q.notifyUpdateLocked()
	}
	return found
}

// IsActive reports whether a task with the given id is pending or running.
func (q *Queue) IsActive(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ts := range q.tasks {
		if ts.Task.ID() == id {
			return true
		}
	}
	return false
}

// Wait blocks until no task is pending or running, or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks, drops pending ones, cancels running ones
// and waits for them to return or ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		dropped := 0
		for _, ts := range append([]*TaskState(nil), q.tasks...) {
			if ts.GetStatus() == TaskStatusPending {
				ts.SetStatus(TaskStatusCancelled)
				q.removeLocked(ts)
				dropped++
			}
		}
		q.logger.Info("Shutting down work queue",
			zap.Int("running", len(q.tasks)),
			zap.Int("dropped", dropped))
		q.cancel()
		q.notifyUpdateLocked()
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running tasks: %w", ctx.Err())
	}
}

// notifyUpdateLocked calls the update callback with a snapshot of all tasks.
// Must be called with lock held.
func (q *Queue) notifyUpdateLocked() {
	if q.onUpdate == nil {
		return
	}
	q.onUpdate(q.snapshotLocked())
}

func (q *Queue) snapshotLocked() []TaskSnapshot {
	snapshots := make([]TaskSnapshot, len(q.tasks))
	for i, ts := range q.tasks {
		snapshots[i] = ts.Snapshot()
	}
	return snapshots
}

// GetTasks returns a snapshot of pending and running tasks.
func (q *Queue) GetTasks() []TaskSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Stats holds queue occupancy.
type Stats struct {
	Pending     int `json:"pending"`
	RunningLLM  int `json:"runningLlm"`
	RunningData int `json:"runningData"`
}

// Stats returns current queue occupancy.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var s Stats
	for _, ts := range q.tasks {
		switch {
		case ts.GetStatus() == TaskStatusPending:
			s.Pending++
		case ts.Task.RequiresLLM():
			s.RunningLLM++
		default:
			s.RunningData++
		}
	}
	return s
}
