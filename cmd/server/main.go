package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-gateway/config"
	"order-gateway/internal/api"
	"order-gateway/internal/auth"
	"order-gateway/internal/broker"
	"order-gateway/internal/geo"
	"order-gateway/internal/redisclient"
	"order-gateway/internal/service"
	"order-gateway/internal/sms"
	"order-gateway/internal/store"
	"order-gateway/internal/util"
	"order-gateway/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.Debug); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order gateway")

	tp, err := util.InitTracer("order-gateway", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := store.NewStore(cfg.Database.URL, cfg.Database.Timeout)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	migrateCancel()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Timeout)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	taskProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrderTasks)
	defer taskProducer.Close()
	delayedProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicDelayedTasks)
	defer delayedProducer.Close()
	logger.Info("Kafka producers initialized",
		zap.String("tasks_topic", cfg.Kafka.TopicOrderTasks),
		zap.String("delayed_topic", cfg.Kafka.TopicDelayedTasks))

	taskPublisher := broker.NewTaskPublisher(taskProducer, delayedProducer, cfg.Business.OrderProcessDelay)

	throttle := redisclient.NewThrottleStore(redisClient, redisclient.ThrottleLimits{
		MaxAttempts: cfg.SMS.MaxAttempts,
		Window:      cfg.SMS.Window,
		Cooldown:    cfg.SMS.Cooldown,
	})
	tokens := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	revoker := redisclient.NewRevocationStore(redisClient, tokens.RefreshTTL())
	sender := sms.NewTwilioSender(cfg.SMS.TwilioAccountSID, cfg.SMS.TwilioAuthToken, cfg.SMS.TwilioFromNumber, logger)
	locator := geo.NewHTTPLocator(cfg.Geo.URL, cfg.Geo.Timeout)

	paymentService := service.NewPaymentService()
	orderService := service.NewOrderService(db, taskPublisher)
	authService := service.NewAuthService(throttle, revoker, db, tokens, sender, locator, cfg.Server.Debug)
	catalogService := service.NewCatalogService(db)
	pipeline := service.NewOrderPipeline(db, taskPublisher, paymentService)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	opts := worker.Options{
		MaxRetries:  cfg.Kafka.TaskMaxRetries,
		Backoff:     time.Second,
		TaskTimeout: cfg.Kafka.TaskTimeout,
	}

	taskConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrderTasks, cfg.Kafka.ConsumerGroup)
	taskWorker := worker.NewTaskWorker("tasks", taskConsumer, pipeline, opts)
	go func() {
		if err := taskWorker.Start(workerCtx); err != nil {
			logger.Error("Task worker error", zap.Error(err))
		}
	}()

	delayedConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicDelayedTasks, cfg.Kafka.ConsumerGroup+"-delayed")
	delayedWorker := worker.NewTaskWorker("delayed", delayedConsumer, pipeline, opts)
	go func() {
		if err := delayedWorker.Start(workerCtx); err != nil {
			logger.Error("Delayed task worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, authService, catalogService,
		api.Options{
			Debug:          cfg.Server.Debug,
			CookieSecure:   cfg.Auth.CookieSecure,
			RequestTimeout: cfg.Server.RequestTimeout,
		},
		api.ReadinessCheck{Name: "database", Ping: db.Ping},
		api.ReadinessCheck{Name: "redis", Ping: redisClient.Ping},
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := taskWorker.Stop(); err != nil {
		logger.Error("Failed to stop task worker", zap.Error(err))
	}
	if err := delayedWorker.Stop(); err != nil {
		logger.Error("Failed to stop delayed task worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
