package service

import (
	"context"
	"errors"

	"github.com/ds124wfegd/crossedpaths/pkg/queue"
)

var errQueueDisabled = errors.New("task queue is not configured")

// QueueAdapter адаптирует queue.Publisher к TaskPublisher интерфейсу
type QueueAdapter struct {
	queue queue.Publisher
}

// NewQueueAdapter создает новый адаптер для очереди
func NewQueueAdapter(q queue.Publisher) *QueueAdapter {
	return &QueueAdapter{queue: q}
}

// Publish публикует задачу, преобразуя service.Task в queue.Task
func (a *QueueAdapter) Publish(ctx context.Context, task *Task) error {
	if a == nil || a.queue == nil {
		return errQueueDisabled
	}

	queueTask := &queue.Task{
		ID:         task.ID,
		Type:       queue.TaskType(task.Type),
		Data:       task.Data,
		ExecuteAt:  task.ExecuteAt,
		MaxRetries: task.MaxRetries,
		Attempts:   task.Attempts,
	}

	return a.queue.Publish(ctx, queueTask)
}
