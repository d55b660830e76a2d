package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ErrTaskNotFound is returned when a task id is not in the DLQ.
var ErrTaskNotFound = errors.New("task not found in DLQ")

// DLQHandler handles failed tasks by moving them to Dead Letter Queue
type DLQHandler interface {
	HandleFailedTask(ctx context.Context, task *Task, err error)
	GetFailedTasks(ctx context.Context, limit int) ([]*FailedTask, error)
	RequeueFailedTask(ctx context.Context, taskID string) error
	DeleteFailedTask(ctx context.Context, taskID string) error
	GetDLQStats(ctx context.Context) (*DLQStats, error)
}

// DefaultDLQHandler keeps failed tasks in a sorted set scored by failure time.
type DefaultDLQHandler struct {
	client    *redis.Client
	dlq       string
	mainQueue string
}

// FailedTask represents a task that failed execution
type FailedTask struct {
	Task     *Task     `json:"task"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
	Attempts int       `json:"attempts"`
}

// DLQStats contains statistics about the Dead Letter Queue
type DLQStats struct {
	OldestFailure time.Time `json:"oldest_failure"`
	NewestFailure time.Time `json:"newest_failure"`
	QueueSize     int64     `json:"queue_size"`
}

// NewDefaultDLQHandler creates a handler that requeues into mainQueue.
func NewDefaultDLQHandler(client *redis.Client, dlq, mainQueue string) *DefaultDLQHandler {
	return &DefaultDLQHandler{
		client:    client,
		dlq:       dlq,
		mainQueue: mainQueue,
	}
}

// HandleFailedTask stores a failed task in the DLQ
func (d *DefaultDLQHandler) HandleFailedTask(ctx context.Context, task *Task, err error) {
	failedTask := &FailedTask{
		Task:     task,
		Error:    err.Error(),
		FailedAt: time.Now(),
		Attempts: task.Attempts,
	}

	taskData, marshalErr := json.Marshal(failedTask)
	if marshalErr != nil {
		logrus.WithError(marshalErr).Error("Failed to marshal failed task")
		return
	}

	// детачимся от отменённого контекста, чтобы не потерять задачу при shutdown
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	redisErr := d.client.ZAdd(storeCtx, d.dlq, &redis.Z{
		Score:  float64(failedTask.FailedAt.UnixNano()) / 1e9,
		Member: taskData,
	}).Err()
	if redisErr != nil {
		logrus.WithError(redisErr).WithField("task_id", task.ID).Error("Failed to send task to DLQ")
		return
	}

	logrus.WithFields(logrus.Fields{
		"task_id": task.ID,
		"type":    task.Type,
		"error":   err.Error(),
	}).Warn("Task moved to DLQ")
}

// GetFailedTasks retrieves failed tasks from DLQ, newest first
func (d *DefaultDLQHandler) GetFailedTasks(ctx context.Context, limit int) ([]*FailedTask, error) {
	if limit <= 0 {
		limit = 50
	}

	tasks, err := d.client.ZRevRange(ctx, d.dlq, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get failed tasks: %w", err)
	}

	failedTasks := make([]*FailedTask, 0, len(tasks))
	for _, taskData := range tasks {
		var failedTask FailedTask
		if err := json.Unmarshal([]byte(taskData), &failedTask); err != nil {
			logrus.WithError(err).Warn("Failed to unmarshal failed task")
			continue
		}
		failedTasks = append(failedTasks, &failedTask)
	}

	return failedTasks, nil
}

// find returns the raw member and decoded entry for taskID.
func (d *DefaultDLQHandler) find(ctx context.Context, taskID string) (string, *FailedTask, error) {
	tasks, err := d.client.ZRange(ctx, d.dlq, 0, -1).Result()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get DLQ tasks: %w", err)
	}

	for _, taskData := range tasks {
		var failedTask FailedTask
		if err := json.Unmarshal([]byte(taskData), &failedTask); err != nil || failedTask.Task == nil {
			continue
		}
		if failedTask.Task.ID == taskID {
			return taskData, &failedTask, nil
		}
	}

	return "", nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// RequeueFailedTask moves a failed task back to the main queue for retry
func (d *DefaultDLQHandler) RequeueFailedTask(ctx context.Context, taskID string) error {
	member, failedTask, err := d.find(ctx, taskID)
	if err != nil {
		return err
	}

	// Reset attempt count for retry
	failedTask.Task.Attempts = 0
	failedTask.Task.ExecuteAt = time.Now()

	taskData, err := json.Marshal(failedTask.Task)
	if err != nil {
		return fmt.Errorf("failed to marshal task for requeue: %w", err)
	}

	pipe := d.client.TxPipeline()
	pipe.LPush(ctx, d.mainQueue, taskData)
	pipe.ZRem(ctx, d.dlq, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to requeue task: %w", err)
	}

	logrus.WithField("task_id", taskID).Info("Task requeued from DLQ")
	return nil
}

// DeleteFailedTask permanently removes a failed task from DLQ
func (d *DefaultDLQHandler) DeleteFailedTask(ctx context.Context, taskID string) error {
	member, _, err := d.find(ctx, taskID)
	if err != nil {
		return err
	}

	if err := d.client.ZRem(ctx, d.dlq, member).Err(); err != nil {
		return fmt.Errorf("failed to delete task from DLQ: %w", err)
	}

	logrus.WithField("task_id", taskID).Info("Task deleted from DLQ")
	return nil
}

// GetDLQStats returns statistics about the DLQ
func (d *DefaultDLQHandler) GetDLQStats(ctx context.Context) (*DLQStats, error) {
	count, err := d.client.ZCard(ctx, d.dlq).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get DLQ count: %w", err)
	}

	stats := &DLQStats{QueueSize: count}
	if count == 0 {
		return stats, nil
	}

	oldest, err := d.client.ZRangeWithScores(ctx, d.dlq, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get oldest task: %w", err)
	}
	newest, err := d.client.ZRevRangeWithScores(ctx, d.dlq, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get newest task: %w", err)
	}

	if len(oldest) > 0 {
		stats.OldestFailure = scoreTime(oldest[0].Score)
	}
	if len(newest) > 0 {
		stats.NewestFailure = scoreTime(newest[0].Score)
	}

	return stats, nil
}

func scoreTime(score float64) time.Time {
	return time.Unix(0, int64(score*1e9))
}
