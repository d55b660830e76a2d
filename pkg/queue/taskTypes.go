package queue

import (
	"context"
)

type TaskType string

const (
	// TaskTypeReconcileVisit retries matching for a visit whose cascade failed after admission.
	TaskTypeReconcileVisit TaskType = "reconcile_visit"
	// Outbound notification values for the delivery side.
	TaskTypeNotifyAdmission    TaskType = "notify_admission"
	TaskTypeNotifyCancellation TaskType = "notify_cancellation"
	TaskTypeNotifyMatch        TaskType = "notify_match"
)

// Handler processes one task. Returning an error schedules a retry unless the
// error is Permanent or the task ran out of attempts.
type Handler func(ctx context.Context, task *Task) error

// Publisher is the write side of a task queue.
type Publisher interface {
	Publish(ctx context.Context, task *Task) error
	Close() error
}

// Consumer runs a handler over queued tasks until the queue is closed.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
}
