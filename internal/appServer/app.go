package appServer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ds124wfegd/crossedpaths/config"
	repository "github.com/ds124wfegd/crossedpaths/internal/database/postgres"
	"github.com/ds124wfegd/crossedpaths/internal/service"
	"github.com/ds124wfegd/crossedpaths/pkg/database"
	"github.com/ds124wfegd/crossedpaths/pkg/kafka"
	"github.com/ds124wfegd/crossedpaths/pkg/queue"
	"github.com/ds124wfegd/crossedpaths/pkg/rabbitmq"
	"github.com/ds124wfegd/crossedpaths/pkg/redis"

	"github.com/sirupsen/logrus"
)

// App holds every wired component. Build opens the stores; Close releases them.
type App struct {
	cfg *config.Config

	DB          *sql.DB
	Repo        *repository.Repository
	TaskQueue   *queue.RedisQueue
	NotifyQueue *queue.RedisQueue
	Publisher   service.MessagePublisher

	Events       service.EventService
	Users        service.UserService
	Queries      service.QueryService
	Visits       service.VisitService
	CrossedPaths service.CrossedPathService
	Admission    service.AdmissionService
}

// SetupLogging configures logrus the same way for every command.
func SetupLogging(cfg *config.LogConfig) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// OpenStore connects to the configured database and applies migrations.
func OpenStore(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := database.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := database.RunMigrations(db, cfg.Driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func Build(cfg *config.Config) (*App, error) {
	db, err := OpenStore(&cfg.Database)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:  cfg,
		DB:   db,
		Repo: repository.NewRepository(db),
	}

	if cfg.Queue.Enabled {
		app.TaskQueue = newQueue(&cfg.Redis, &queue.RedisQueueConfig{
			MainQueue:       cfg.Queue.MainQueue,
			DelayedQueue:    cfg.Queue.DelayedQueue,
			ProcessingQueue: cfg.Queue.ProcessingQueue,
			DLQ:             cfg.Queue.DLQ,
			MetricsPrefix:   cfg.Queue.MainQueue + ":metrics",
			MaxRetries:      cfg.Queue.MaxRetries,
			BaseDelay:       cfg.Queue.BaseDelay,
			EnableDLQ:       true,
			EnableMetrics:   true,
		})
	}

	clock := service.SystemClock{}

	var tasks service.TaskPublisher
	if app.TaskQueue != nil {
		tasks = service.NewQueueAdapter(app.TaskQueue)
	}

	notifier := app.buildNotifier(clock)

	app.Events = service.NewEventService(app.Repo.Events, app.Repo.Venues, app.Repo.Users, clock)
	app.Users = service.NewUserService(app.Repo, clock)
	app.Queries = service.NewQueryService(app.Repo)
	app.Visits = service.NewVisitService(app.Repo.Visits)
	app.CrossedPaths = service.NewCrossedPathService(app.Repo.Visits, app.Repo.CrossedPaths, notifier, clock, cfg.Worker.ReconcileGrace)
	app.Admission = service.NewAdmissionService(service.AdmissionDeps{
		Repo:          app.Repo,
		Payments:      service.NewStorePayments(app.Repo.Payments, clock),
		Subscriptions: service.NewStoreSubscriptions(app.Repo.Subscriptions),
		Venues:        service.NewStoreVenueResolver(app.Repo.Venues),
		Visits:        app.Visits,
		CrossedPaths:  app.CrossedPaths,
		Notifier:      notifier,
		Tasks:         tasks,
		Clock:         clock,
	}, service.AdmissionPolicy{
		FreeMonthlyCap:                 cfg.Admission.FreeMonthlyCap,
		QuotaLocation:                  cfg.Admission.QuotaLocation(),
		PaidRequiresActiveSubscription: cfg.Admission.PaidRequiresActiveSubscription,
		CascadeTimeout:                 cfg.Admission.CascadeTimeout,
	})

	return app, nil
}

// buildNotifier picks the delivery channel for outbound values. Any broker
// that cannot be reached degrades to logging.
func (a *App) buildNotifier(clock service.Clock) service.Notifier {
	cfg := a.cfg.Notify

	switch cfg.Driver {
	case "kafka":
		a.Publisher = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		return service.NewBrokerNotifier(a.Publisher, clock)

	case "rabbitmq":
		pub, err := rabbitmq.NewPublisher(rabbitmq.Config{URL: cfg.RabbitMQURL, QueueName: cfg.RabbitMQQueue})
		if err != nil {
			logrus.WithError(err).Warn("RabbitMQ unavailable, notifications will only be logged")
			return service.LogNotifier{}
		}
		a.Publisher = pub
		return service.NewBrokerNotifier(pub, clock)

	case "queue":
		a.NotifyQueue = newQueue(&a.cfg.Redis, &queue.RedisQueueConfig{
			MainQueue:       cfg.Queue,
			DelayedQueue:    cfg.Queue + ":delayed",
			ProcessingQueue: cfg.Queue + ":processing",
			DLQ:             cfg.Queue + ":dlq",
			MaxRetries:      a.cfg.Queue.MaxRetries,
			BaseDelay:       a.cfg.Queue.BaseDelay,
			EnableDLQ:       true,
		})
		if a.NotifyQueue == nil {
			return service.LogNotifier{}
		}
		return service.NewQueueNotifier(service.NewQueueAdapter(a.NotifyQueue))
	}

	return service.LogNotifier{}
}

// newQueue returns nil when redis cannot be reached; the engine then runs
// without deferred work and relies on the reconcile sweeper.
func newQueue(redisCfg *config.RedisConfig, cfg *queue.RedisQueueConfig) *queue.RedisQueue {
	client, err := redis.NewRedisClient(redisCfg)
	if err != nil {
		logrus.WithError(err).Error("Failed to initialize Redis queue, continuing without it")
		return nil
	}

	retryManager := queue.NewRetryManager(cfg.MaxRetries, cfg.BaseDelay)
	dlqHandler := queue.NewDefaultDLQHandler(client, cfg.DLQ, cfg.MainQueue)
	return queue.NewRedisQueue(client, cfg, retryManager, dlqHandler)
}

// HealthChecks lists the dependencies /health reports on.
func (a *App) HealthChecks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{
		"database": a.DB.PingContext,
	}
	if a.TaskQueue != nil {
		checks["task_queue"] = a.TaskQueue.HealthCheck
	}
	if p, ok := a.Publisher.(interface{ HealthCheck() error }); ok {
		checks["broker"] = func(context.Context) error { return p.HealthCheck() }
	}
	return checks
}

func (a *App) Close() {
	if a.TaskQueue != nil {
		if err := a.TaskQueue.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close task queue")
		}
	}
	if a.NotifyQueue != nil {
		if err := a.NotifyQueue.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close notification queue")
		}
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close broker publisher")
		}
	}
	if err := a.DB.Close(); err != nil {
		logrus.WithError(err).Error("Failed to close database")
	}
}

// ReconcileBacklog runs one sweep over unreconciled visits.
func (a *App) ReconcileBacklog(ctx context.Context, limit int) (int, error) {
	start := time.Now()
	n, err := a.CrossedPaths.ReconcileBacklog(ctx, limit)
	logrus.WithFields(logrus.Fields{
		"visits":   n,
		"duration": time.Since(start).String(),
	}).Info("Backlog sweep finished")
	return n, err
}
