package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/udonggeum-fulfillment/config"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/controller"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/repository"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/service"
	"github.com/ikkim/udonggeum-fulfillment/internal/changefeed"
	"github.com/ikkim/udonggeum-fulfillment/internal/db"
	"github.com/ikkim/udonggeum-fulfillment/internal/middleware"
	"github.com/ikkim/udonggeum-fulfillment/internal/notify"
	"github.com/ikkim/udonggeum-fulfillment/internal/reconcile"
	"github.com/ikkim/udonggeum-fulfillment/internal/router"
	"github.com/ikkim/udonggeum-fulfillment/internal/scheduler"
	"github.com/ikkim/udonggeum-fulfillment/internal/storage"
	"github.com/ikkim/udonggeum-fulfillment/internal/websocket"
	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
	"github.com/ikkim/udonggeum-fulfillment/pkg/redis"
	"github.com/ikkim/udonggeum-fulfillment/pkg/splitrpc"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // Use "json" for production
		EnableColor: true,
	})

	logger.Info("Starting UDONGGEUM Fulfillment Server", map[string]interface{}{
		"environment":       cfg.Server.Environment,
		"port":              cfg.Server.Port,
		"log_level":         logLevel,
		"changefeed_driver": cfg.ChangeFeed.Driver,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Change feed
	feed, pingers, err := openChangeFeed(cfg)
	if err != nil {
		logger.Fatal("Failed to open change feed", err)
	}
	defer func() {
		if err := feed.Close(); err != nil {
			logger.Error("Failed to close change feed", err)
		}
		if err := redis.Close(); err != nil {
			logger.Error("Failed to close Redis connection", err)
		}
	}()

	// Realtime hub
	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(db.GetDB(), feed)
	storeRepo := repository.NewStoreRepository(db.GetDB())
	notificationRepo := repository.NewNotificationRepository(db.GetDB())

	// Initialize services
	var forwarders []service.Forwarder
	if cfg.SQS.QueueURL != "" {
		forwarder, err := notify.NewSQSForwarderFromConfig(ctx, cfg.SQS.Region, cfg.SQS.QueueURL)
		if err != nil {
			logger.Fatal("Failed to initialize SQS forwarder", err)
		}
		forwarders = append(forwarders, forwarder)
	}
	notificationService := service.NewNotificationService(notificationRepo, hub, forwarders...)
	completionService := service.NewCompletionService(orderRepo, notificationService, hub)

	var remote service.RemoteSplitter
	if cfg.SplitRPC.BaseURL != "" {
		client, err := splitrpc.NewClient(splitrpc.Config{
			BaseURL: cfg.SplitRPC.BaseURL,
			APIKey:  cfg.SplitRPC.APIKey,
			Timeout: cfg.SplitRPC.Timeout,
		})
		if err != nil {
			logger.Fatal("Failed to initialize split procedure client", err)
		}
		remote = client
	}

	var archiver service.ReportArchiver
	if cfg.S3.Bucket != "" {
		archiver = storage.NewS3Storage(cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.BaseURL)
	}

	divisionService := service.NewDivisionService(orderRepo, storeRepo, completionService, notificationService, remote, archiver)
	divisionStatusService := service.NewDivisionStatusService(orderRepo, storeRepo, completionService, notificationService)

	// Reconciliation
	reconciler := reconcile.New(orderRepo, completionService, feed, reconcile.Config{
		ReconnectBackoff: cfg.Reconcile.ReconnectBackoff,
		MaxBackoff:       cfg.Reconcile.MaxBackoff,
	})
	reconcileDone := make(chan struct{})
	go func() {
		reconciler.Run(ctx)
		close(reconcileDone)
	}()

	jobs := scheduler.NewScheduler()
	if err := jobs.Register(scheduler.RefetchJobName, fmt.Sprintf("@every %s", cfg.Reconcile.RefetchInterval), scheduler.RefetchJob(reconciler)); err != nil {
		logger.Fatal("Failed to register refetch job", err)
	}
	if err := jobs.Register(scheduler.ReminderJobName, cfg.Reminder.Schedule, scheduler.ReminderJob(divisionStatusService, cfg.Reminder.ResponseTimeout)); err != nil {
		logger.Fatal("Failed to register reminder job", err)
	}
	jobs.Start()

	// Initialize controllers
	divisionController := controller.NewDivisionController(divisionService, divisionStatusService, completionService, reconciler)
	splitProcedureController := controller.NewSplitProcedureController(divisionService)
	notificationController := controller.NewNotificationController(notificationService, divisionStatusService)
	realtimeController := controller.NewRealtimeController(hub, completionService, divisionStatusService, cfg.CORS.AllowedOrigins)
	healthController := controller.NewHealthController(db.GetDB(), reconciler, pingers)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Setup router
	r := router.NewRouter(
		divisionController,
		splitProcedureController,
		notificationController,
		realtimeController,
		healthController,
		authMiddleware,
		cfg,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r.Setup(),
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	jobs.Stop()
	stop()
	<-reconcileDone

	logger.Info("Server stopped successfully")
}

// openChangeFeed CHANGEFEED_DRIVER에 맞는 구독 백엔드와 health 체크 대상
func openChangeFeed(cfg *config.Config) (changefeed.Feed, map[string]func(context.Context) error, error) {
	pingers := map[string]func(context.Context) error{}

	switch cfg.ChangeFeed.Driver {
	case "redis":
		if err := redis.Init(&cfg.Redis); err != nil {
			return nil, nil, err
		}
		pingers["redis"] = redis.Ping
		return changefeed.NewRedisFeed(redis.GetClient()), pingers, nil
	case "postgres":
		return changefeed.NewPostgresFeed(db.GetDB(), cfg.Database.DSN()), pingers, nil
	case "memory":
		logger.Warn("Using in-process change feed; other instances will not see events", nil)
		return changefeed.NewMemoryFeed(), pingers, nil
	}
	return nil, nil, fmt.Errorf("unsupported change feed driver %q", cfg.ChangeFeed.Driver)
}
