package worker

import (
	"context"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/service"

	"github.com/sirupsen/logrus"
)

// ReconcileWorker periodically reconciles visits whose admission cascade never
// finished. It is the backstop behind the reconcile_visit task.
type ReconcileWorker struct {
	crossedPaths service.CrossedPathService
	interval     time.Duration
	batchSize    int
}

func NewReconcileWorker(crossedPaths service.CrossedPathService, interval time.Duration, batchSize int) *ReconcileWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReconcileWorker{
		crossedPaths: crossedPaths,
		interval:     interval,
		batchSize:    batchSize,
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Info("Reconcile worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Reconcile worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce drains the backlog in batches until a batch comes back short or fails.
func (w *ReconcileWorker) RunOnce(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		processed, err := w.crossedPaths.ReconcileBacklog(ctx, w.batchSize)
		total += processed
		if err != nil {
			logrus.WithError(err).Warn("Backlog reconciliation finished with errors")
			break
		}
		if processed < w.batchSize {
			break
		}
	}

	if total > 0 {
		logrus.WithField("visits", total).Info("Backlog visits reconciled")
	}
	return total
}

// GetStats возвращает статистику работы воркера
func (w *ReconcileWorker) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"worker_type": "reconcile_backlog",
		"interval":    w.interval.String(),
		"batch_size":  w.batchSize,
	}
}
