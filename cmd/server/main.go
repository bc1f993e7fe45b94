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

	"marketplace-service/config"
	"marketplace-service/internal/api"
	"marketplace-service/internal/broker"
	"marketplace-service/internal/notify"
	"marketplace-service/internal/redisclient"
	"marketplace-service/internal/service"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"
	"marketplace-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting marketplace service")

	tp, err := util.InitTracer("marketplace-service", cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	hub := notify.NewHub(cfg.Notify.SessionBuffer)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var (
		notifier    notify.Notifier = hub
		redisClient *redisclient.Client
	)
	switch cfg.Notify.Backend {
	case config.NotifyBackendLocal, "":
	case config.NotifyBackendRedis:
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("channel", cfg.Redis.Channel))

		notifier = notify.NewRedisNotifier(redisClient, cfg.Redis.Channel)
		relay := worker.NewRedisRelay(redisClient, cfg.Redis.Channel, hub)
		go func() {
			if err := relay.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Redis relay error", zap.Error(err))
			}
		}()
	case config.NotifyBackendKafka:
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))

		notifier = notify.NewKafkaNotifier(broker.NewEventPublisher(producer))

		group := cfg.Kafka.ConsumerGroup
		if group == "" {
			group = "marketplace-notify-" + uuid.NewString()
		}
		relay := worker.NewKafkaRelay(broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, group), hub)
		defer relay.Stop()
		go func() {
			if err := relay.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Kafka relay error", zap.Error(err))
			}
		}()
	default:
		log.Fatalf("Unknown NOTIFY_BACKEND %q", cfg.Notify.Backend)
	}

	ledger := service.NewRequestLedger(db, db, db, notifier)
	convos := service.NewConversationStore(db, db, notifier)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(api.CORSMiddleware(cfg.Server.Env, cfg.Server.CORSOrigins))
	handler := api.NewHandler(ledger, convos, db, hub, time.Duration(cfg.Notify.KeepAliveSeconds)*time.Second)
	if redisClient != nil {
		handler.AddReadinessCheck("redis", redisClient)
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// event streams never finish on their own; ending their sessions lets Shutdown drain
	srv.RegisterOnShutdown(hub.CloseAll)

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()

	logger.Info("Server exited")
}
