package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries   = 5
	defaultBaseDelay    = 5 * time.Second
	defaultQueueTimeout = 5 * time.Second
	defaultPollInterval = time.Second
	defaultDLQThreshold = 1000
)

var (
	_ Publisher = (*RedisQueue)(nil)
	_ Consumer  = (*RedisQueue)(nil)
)

// RedisQueue implements Publisher and Consumer on top of three redis keys: a list for ready
// tasks, a sorted set for delayed ones and a processing list for in-flight work.
type RedisQueue struct {
	client          *redis.Client
	mainQueue       string
	delayedQueue    string
	processingQueue string
	retryManager    *RetryManager
	dlqHandler      DLQHandler
	config          *RedisQueueConfig
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// RedisQueueConfig contains configuration for RedisQueue
type RedisQueueConfig struct {
	// Queue names
	MainQueue       string
	DelayedQueue    string
	ProcessingQueue string
	DLQ             string
	MetricsPrefix   string

	// Behavior
	MaxRetries    int
	BaseDelay     time.Duration
	QueueTimeout  time.Duration
	PollInterval  time.Duration
	DLQThreshold  int
	EnableDLQ     bool
	EnableMetrics bool
}

// DefaultRedisQueueConfig returns default configuration
func DefaultRedisQueueConfig() *RedisQueueConfig {
	return &RedisQueueConfig{
		MainQueue:       "crossedpaths:tasks",
		DelayedQueue:    "crossedpaths:tasks:delayed",
		ProcessingQueue: "crossedpaths:tasks:processing",
		DLQ:             "crossedpaths:dlq",
		MetricsPrefix:   "crossedpaths:metrics",
		MaxRetries:      defaultMaxRetries,
		BaseDelay:       defaultBaseDelay,
		QueueTimeout:    defaultQueueTimeout,
		PollInterval:    defaultPollInterval,
		DLQThreshold:    defaultDLQThreshold,
		EnableDLQ:       true,
		EnableMetrics:   true,
	}
}

// NewRedisQueue wraps an already connected client. The queue owns the client
// from here on and closes it in Close.
func NewRedisQueue(client *redis.Client, cfg *RedisQueueConfig, retryManager *RetryManager, dlqHandler DLQHandler) *RedisQueue {
	if cfg == nil {
		cfg = DefaultRedisQueueConfig()
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = defaultQueueTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	if retryManager == nil {
		retryManager = NewRetryManager(cfg.MaxRetries, cfg.BaseDelay)
	}

	if dlqHandler == nil && cfg.EnableDLQ {
		dlqHandler = NewDefaultDLQHandler(client, cfg.DLQ, cfg.MainQueue)
	}

	logrus.WithFields(logrus.Fields{
		"main":    cfg.MainQueue,
		"delayed": cfg.DelayedQueue,
		"dlq":     cfg.DLQ,
	}).Info("RedisQueue initialized")

	return &RedisQueue{
		client:          client,
		mainQueue:       cfg.MainQueue,
		delayedQueue:    cfg.DelayedQueue,
		processingQueue: cfg.ProcessingQueue,
		retryManager:    retryManager,
		dlqHandler:      dlqHandler,
		config:          cfg,
		stopChan:        make(chan struct{}),
	}
}

// DLQ exposes the dead-letter handler for inspection and requeue.
func (r *RedisQueue) DLQ() DLQHandler {
	return r.dlqHandler
}

// Publish sends a task to the queue
func (r *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	r.applyDefaults(task)
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	// Use Redis Sorted Set for delayed tasks
	if task.ExecuteAt.After(time.Now()) {
		err = r.client.ZAdd(ctx, r.delayedQueue, &redis.Z{
			Score:  float64(task.ExecuteAt.UnixNano()) / 1e9,
			Member: taskData,
		}).Err()
		if err != nil {
			return fmt.Errorf("failed to publish delayed task: %w", err)
		}

		r.incrementMetric(ctx, "tasks_delayed")
		logrus.WithFields(logrus.Fields{
			"task_id":    task.ID,
			"type":       task.Type,
			"execute_at": task.ExecuteAt.Format(time.RFC3339),
		}).Debug("Task scheduled")
		return nil
	}

	// Use Redis List for immediate tasks
	if err := r.client.LPush(ctx, r.mainQueue, taskData).Err(); err != nil {
		return fmt.Errorf("failed to publish immediate task: %w", err)
	}

	r.incrementMetric(ctx, "tasks_queued")
	logrus.WithFields(logrus.Fields{"task_id": task.ID, "type": task.Type}).Debug("Task published to main queue")
	return nil
}

// Consume starts the delayed-task mover, the worker loop and the metrics
// collector. It returns immediately; Close stops them.
func (r *RedisQueue) Consume(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.wg.Add(3)
	go r.processDelayedTasks(ctx)
	go r.processMainQueue(ctx, handler)
	go r.monitorQueueMetrics(ctx)

	logrus.Info("RedisQueue consumer started")
	return nil
}

// processMainQueue processes tasks from the main queue
func (r *RedisQueue) processMainQueue(ctx context.Context, handler Handler) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Main queue processor stopped by context")
			return
		case <-r.stopChan:
			logrus.Info("Main queue processor stopped")
			return
		default:
			if err := r.processOne(ctx, handler); err != nil {
				logrus.WithError(err).Error("Error processing task")
				time.Sleep(time.Second) // Backoff on error
			}
		}
	}
}

// processOne moves one task into the processing list, runs it and settles it:
// done, rescheduled with backoff, or dead-lettered.
func (r *RedisQueue) processOne(ctx context.Context, handler Handler) error {
	taskData, err := r.client.BRPopLPush(ctx, r.mainQueue, r.processingQueue, r.config.QueueTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil // Timeout, no tasks
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to move task to processing queue: %w", err)
	}

	defer func() {
		if err := r.client.LRem(ctx, r.processingQueue, 1, taskData).Err(); err != nil {
			logrus.WithError(err).Warn("Failed to remove task from processing queue")
		}
	}()

	var task Task
	if err := json.Unmarshal([]byte(taskData), &task); err != nil {
		r.moveToDLQ(ctx, r.corruptedTask(taskData), fmt.Errorf("invalid task format: %w", err))
		return nil
	}

	task.Attempts++
	startTime := time.Now()
	log := logrus.WithFields(logrus.Fields{
		"task_id": task.ID,
		"type":    task.Type,
		"attempt": task.Attempts,
	})

	handlerErr := handler(ctx, &task)
	if handlerErr == nil {
		r.recordTaskResult(ctx, &task, "success", time.Since(startTime))
		log.Debug("Task completed")
		return nil
	}
	r.recordTaskResult(ctx, &task, "failure", time.Since(startTime))

	retry, delay := r.retryManager.ShouldRetry(&task, handlerErr)
	if !retry {
		log.WithError(handlerErr).Error("Task failed permanently")
		r.moveToDLQ(ctx, &task, handlerErr)
		return nil
	}

	log.WithError(handlerErr).Warnf("Task failed, retrying in %v", delay)
	task.ExecuteAt = time.Now().Add(delay)
	if err := r.Publish(ctx, &task); err != nil {
		log.WithError(err).Error("Failed to reschedule task")
		r.moveToDLQ(ctx, &task, fmt.Errorf("reschedule failed: %w (handler: %v)", err, handlerErr))
	}
	return nil
}

// processDelayedTasks moves ready delayed tasks to main queue
func (r *RedisQueue) processDelayedTasks(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Delayed tasks processor stopped by context")
			return
		case <-r.stopChan:
			logrus.Info("Delayed tasks processor stopped")
			return
		case <-ticker.C:
			if err := r.moveReadyDelayedTasks(ctx); err != nil {
				logrus.WithError(err).Error("Failed to process delayed tasks")
			}
		}
	}
}

// moveReadyDelayedTasks moves ready delayed tasks to main queue. Each member is
// claimed with ZREM first so concurrent movers never push a task twice.
func (r *RedisQueue) moveReadyDelayedTasks(ctx context.Context) error {
	now := strconv.FormatFloat(float64(time.Now().UnixNano())/1e9, 'f', -1, 64)

	tasks, err := r.client.ZRangeByScore(ctx, r.delayedQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get delayed tasks: %w", err)
	}

	moved := 0
	for _, taskData := range tasks {
		claimed, err := r.client.ZRem(ctx, r.delayedQueue, taskData).Result()
		if err != nil {
			return fmt.Errorf("failed to claim delayed task: %w", err)
		}
		if claimed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.mainQueue, taskData).Err(); err != nil {
			return fmt.Errorf("failed to move delayed task: %w", err)
		}
		moved++
	}

	if moved > 0 {
		r.incrementMetricBy(ctx, "tasks_delayed_processed", int64(moved))
		logrus.WithField("count", moved).Debug("Moved delayed tasks to main queue")
	}
	return nil
}

func (r *RedisQueue) corruptedTask(raw string) *Task {
	return &Task{
		ID:        fmt.Sprintf("corrupted_%d", time.Now().UnixNano()),
		Type:      "corrupted",
		Data:      map[string]interface{}{"raw_data": raw},
		CreatedAt: time.Now(),
	}
}

// moveToDLQ moves a failed task to Dead Letter Queue
func (r *RedisQueue) moveToDLQ(ctx context.Context, task *Task, err error) {
	if !r.config.EnableDLQ || r.dlqHandler == nil {
		return
	}
	r.dlqHandler.HandleFailedTask(ctx, task, err)
	r.incrementMetric(ctx, "tasks_dlq")
}

// applyDefaults fills in id, retry budget and timestamps
func (r *RedisQueue) applyDefaults(task *Task) {
	if task.ID == "" {
		task.ID = generateTaskID()
	}
	if task.Data == nil {
		task.Data = make(map[string]interface{})
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = r.config.MaxRetries
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.ExecuteAt.IsZero() {
		task.ExecuteAt = time.Now()
	}
}

// monitorQueueMetrics monitors queue metrics and health
func (r *RedisQueue) monitorQueueMetrics(ctx context.Context) {
	defer r.wg.Done()

	if !r.config.EnableMetrics {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			stats, err := r.GetQueueStats(ctx)
			if err != nil {
				logrus.WithError(err).Warn("Failed to collect queue metrics")
				continue
			}
			if stats.MainQueue > int64(r.config.DLQThreshold) {
				logrus.Warnf("Main queue size (%d) exceeds threshold (%d)", stats.MainQueue, r.config.DLQThreshold)
			}
			if stats.DLQ > 0 {
				logrus.WithField("dlq_len", stats.DLQ).Warn("Dead letter queue is not empty")
			}
		}
	}
}

// incrementMetric increments a counter metric
func (r *RedisQueue) incrementMetric(ctx context.Context, metric string) {
	r.incrementMetricBy(ctx, metric, 1)
}

// incrementMetricBy increments a counter metric by specific value
func (r *RedisQueue) incrementMetricBy(ctx context.Context, metric string, value int64) {
	if !r.config.EnableMetrics {
		return
	}

	key := fmt.Sprintf("%s:%s", r.config.MetricsPrefix, metric)
	pipe := r.client.Pipeline()
	pipe.IncrBy(ctx, key, value)
	pipe.Expire(ctx, key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.WithError(err).Debug("Failed to record queue metric")
	}
}

// recordTaskResult records per-type outcome counters and execution time
func (r *RedisQueue) recordTaskResult(ctx context.Context, task *Task, outcome string, duration time.Duration) {
	if !r.config.EnableMetrics {
		return
	}
	r.incrementMetric(ctx, "tasks_"+outcome)
	r.incrementMetric(ctx, fmt.Sprintf("tasks_%s_%s", outcome, task.Type))
	r.client.HIncrBy(ctx, r.config.MetricsPrefix+":task_timing", string(task.Type), duration.Milliseconds())
}

// GetQueueStats returns current queue statistics
func (r *RedisQueue) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	pipe := r.client.Pipeline()

	mainLen := pipe.LLen(ctx, r.mainQueue)
	delayedLen := pipe.ZCard(ctx, r.delayedQueue)
	processingLen := pipe.LLen(ctx, r.processingQueue)
	dlqLen := pipe.ZCard(ctx, r.config.DLQ)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}

	return &QueueStats{
		MainQueue:       mainLen.Val(),
		DelayedQueue:    delayedLen.Val(),
		ProcessingQueue: processingLen.Val(),
		DLQ:             dlqLen.Val(),
		Timestamp:       time.Now(),
	}, nil
}

// Close gracefully shuts down the queue
func (r *RedisQueue) Close() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	logrus.Info("RedisQueue closed")
	return nil
}

// HealthCheck performs a health check on the queue
func (r *RedisQueue) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// QueueStats contains statistics about queue state
type QueueStats struct {
	MainQueue       int64     `json:"main_queue"`
	DelayedQueue    int64     `json:"delayed_queue"`
	ProcessingQueue int64     `json:"processing_queue"`
	DLQ             int64     `json:"dlq"`
	Timestamp       time.Time `json:"timestamp"`
}

// generateTaskID generates a unique task ID
func generateTaskID() string {
	return "task_" + uuid.NewString()
}
