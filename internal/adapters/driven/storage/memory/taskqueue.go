package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Ensure TaskQueue implements the interface.
var _ driven.TaskQueue = (*TaskQueue)(nil)

// TaskQueue is an in-memory implementation of driven.TaskQueue.
type TaskQueue struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]domain.Task
	byEvent map[uuid.UUID]uuid.UUID
	now     func() time.Time
}

// NewTaskQueue creates a new in-memory task queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks:   make(map[uuid.UUID]domain.Task),
		byEvent: make(map[uuid.UUID]uuid.UUID),
		now:     time.Now,
	}
}

// Enqueue persists a pending task. Re-enqueueing an existing id is a no-op.
func (q *TaskQueue) Enqueue(_ context.Context, task *domain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.tasks[task.ID]; ok {
		return nil
	}
	if _, ok := q.byEvent[task.EventID]; ok {
		return nil
	}
	q.tasks[task.ID] = *task
	q.byEvent[task.EventID] = task.ID
	return nil
}

// Claim atomically moves the oldest due pending task to running.
func (q *TaskQueue) Claim(_ context.Context) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var oldest *domain.Task
	for id := range q.tasks {
		task := q.tasks[id]
		if task.Status != domain.TaskPending || task.NotBefore.After(now) {
			continue
		}
		if oldest == nil || task.CreatedAt.Before(oldest.CreatedAt) {
			t := task
			oldest = &t
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}

	oldest.Status = domain.TaskRunning
	oldest.Attempts++
	started := now
	oldest.StartedAt = &started
	q.tasks[oldest.ID] = *oldest
	return oldest, nil
}

// Complete marks a running task succeeded and records its result.
func (q *TaskQueue) Complete(_ context.Context, id uuid.UUID, result json.RawMessage) error {
	return q.finish(id, domain.TaskSucceeded, result, "")
}

// Requeue returns a running task to pending with a backoff delay.
func (q *TaskQueue) Requeue(_ context.Context, id uuid.UUID, delay time.Duration, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	task.Status = domain.TaskPending
	task.NotBefore = q.now().Add(delay)
	task.Error = errMsg
	task.StartedAt = nil
	q.tasks[id] = task
	return nil
}

// Fail marks a running task failed with a final error message.
func (q *TaskQueue) Fail(_ context.Context, id uuid.UUID, errMsg string) error {
	return q.finish(id, domain.TaskFailed, nil, errMsg)
}

func (q *TaskQueue) finish(id uuid.UUID, status domain.TaskStatus, result json.RawMessage, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	task.Status = status
	task.Result = result
	task.Error = errMsg
	finished := q.now()
	task.FinishedAt = &finished
	q.tasks[id] = task
	return nil
}

// Get retrieves a task by ID.
func (q *TaskQueue) Get(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &task, nil
}

// GetByEvent retrieves the task associated with an event.
func (q *TaskQueue) GetByEvent(_ context.Context, eventID uuid.UUID) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id, ok := q.byEvent[eventID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	task := q.tasks[id]
	return &task, nil
}

// CountByStatus returns the number of tasks in each status.
func (q *TaskQueue) CountByStatus(_ context.Context) (map[domain.TaskStatus]int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[domain.TaskStatus]int)
	for _, task := range q.tasks {
		counts[task.Status]++
	}
	return counts, nil
}
