package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ds124wfegd/crossedpaths/internal/entity"
	"github.com/ds124wfegd/crossedpaths/internal/service"
	"github.com/ds124wfegd/crossedpaths/pkg/queue"

	"github.com/sirupsen/logrus"
)

// TaskHandler обрабатывает задачи из очереди
type TaskHandler struct {
	crossedPaths service.CrossedPathService
}

func NewTaskHandler(crossedPaths service.CrossedPathService) *TaskHandler {
	return &TaskHandler{crossedPaths: crossedPaths}
}

// Handle is a queue.Handler. Errors are retried by the queue unless wrapped in
// queue.Permanent.
func (h *TaskHandler) Handle(ctx context.Context, task *queue.Task) error {
	switch task.Type {
	case queue.TaskTypeReconcileVisit:
		return h.handleReconcileVisit(ctx, task)
	case queue.TaskTypeNotifyAdmission, queue.TaskTypeNotifyCancellation, queue.TaskTypeNotifyMatch:
		// Delivery is owned by the notification side; these only land here when
		// notifications share the task queue.
		logrus.WithFields(logrus.Fields{
			"task_id": task.ID,
			"type":    task.Type,
		}).Debug("Notification task acknowledged")
		return nil
	default:
		return queue.Permanent(fmt.Errorf("unknown task type: %s", task.Type))
	}
}

func (h *TaskHandler) handleReconcileVisit(ctx context.Context, task *queue.Task) error {
	visitID, ok := task.GetInt64("visit_id")
	if !ok || visitID <= 0 {
		return queue.Permanent(fmt.Errorf("invalid visit_id in task %s", task.ID))
	}

	events, err := h.crossedPaths.ReconcileByID(ctx, visitID)
	if errors.Is(err, entity.ErrVisitNotFound) || errors.Is(err, entity.ErrVenueUnresolvable) {
		return queue.Permanent(err)
	}
	if err != nil {
		return fmt.Errorf("failed to reconcile visit %d: %w", visitID, err)
	}

	logrus.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"visit_id": visitID,
		"pairs":    len(events),
	}).Info("Deferred reconciliation completed")
	return nil
}
