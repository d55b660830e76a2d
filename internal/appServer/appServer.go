package appServer

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/crossedpaths/config"
	"github.com/ds124wfegd/crossedpaths/internal/transport"
	"github.com/ds124wfegd/crossedpaths/internal/worker"
	"github.com/ds124wfegd/crossedpaths/pkg/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},           // ban on outdate TLS certificate
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags), // os.Stderr can be replaced with ElsasticSearch in the feature
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// NewServer wires the engine, starts the background workers and serves HTTP
// until SIGINT or SIGTERM.
func NewServer(cfg *config.Config) error {
	app, err := Build(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Queue consumer for deferred reconciliations
	if app.TaskQueue != nil {
		taskHandler := worker.NewTaskHandler(app.CrossedPaths)
		if err := app.TaskQueue.Consume(ctx, taskHandler.Handle); err != nil {
			return err
		}
		logrus.Info("Queue consumer started")
	}

	reconcileWorker := worker.NewReconcileWorker(app.CrossedPaths, cfg.Worker.ReconcileInterval, cfg.Worker.ReconcileBatchSize)
	go reconcileWorker.Start(ctx)

	completionScheduler := scheduler.NewScheduler(app.Events, cfg.Worker.CompletionInterval)
	go completionScheduler.Start(ctx)
	logrus.Info("Event completion scheduler started")

	if cfg.Server.Mode == "release" || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var queueAdmin transport.QueueAdmin
	if app.TaskQueue != nil {
		queueAdmin = app.TaskQueue
	}

	health := make(map[string]transport.HealthFunc)
	for name, check := range app.HealthChecks() {
		health[name] = check
	}

	router := transport.InitRoutes(&transport.Handlers{
		Events: transport.NewEventHandler(app.Events, app.Queries),
		RSVPs:  transport.NewRSVPHandler(app.Admission),
		Users:  transport.NewUserHandler(app.Users, app.Queries, app.Admission),
		Admin:  transport.NewAdminHandler(queueAdmin),
		Health: health,
	}, cfg.Server.Timeout)

	srv := new(Server)
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Run(cfg, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logrus.WithField("addr", cfg.GetServerAddress()).Info("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-quit:
	case err := <-serveErr:
		logrus.WithError(err).Error("error occured while running http server")
		cancel()
		return err
	}

	logrus.Info("App Shutting Down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
	cancel()

	return nil
}
