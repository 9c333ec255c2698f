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

	"order-core/config"
	"order-core/internal/api"
	"order-core/internal/broker"
	"order-core/internal/models"
	"order-core/internal/redisclient"
	"order-core/internal/service"
	"order-core/internal/store"
	"order-core/internal/util"
	"order-core/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order core service")

	tp, err := util.InitTracer("order-core", cfg.Observ.JaegerEndpoint)
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

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	orderTimeout := time.Duration(cfg.Business.OrderTimeoutMinutes) * time.Minute
	sweepInterval := time.Duration(cfg.Business.SweepIntervalMinutes) * time.Minute

	couponService := service.NewCouponService(db)
	orderService := service.NewOrderService(db, redisClient, eventPublisher, couponService, orderTimeout)
	reconciler := service.NewReconciler(db, eventPublisher, orderTimeout, sweepInterval)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go reconciler.Run(workerCtx)

	handlers := worker.NewHandlers(db, redisClient, eventPublisher)
	queues := []struct {
		topic   string
		handler broker.MessageHandler
	}{
		{models.QueueOrderCreated, handlers.HandleOrderCreated},
		{models.QueueOrderPaid, handlers.HandleOrderPaid},
		{models.QueueOrderCancelled, handlers.HandleOrderCancelled},
		{models.QueueStockDeduction, handlers.HandleStockAdjustment},
		{models.QueueStockRecovery, handlers.HandleStockAdjustment},
		{models.QueueEmailNotification, handlers.HandleNotification},
	}

	workers := make([]*worker.Worker, 0, len(queues))
	for _, q := range queues {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, q.topic, cfg.Kafka.ConsumerGroup)
		w := worker.New(q.topic, consumer, q.handler)
		workers = append(workers, w)
		go func(w *worker.Worker) {
			if err := w.Start(workerCtx); err != nil {
				log.Printf("Worker error: %v", err)
			}
		}(w)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, couponService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	for _, w := range workers {
		if err := w.Stop(); err != nil {
			log.Printf("Worker stop error: %v", err)
		}
	}

	log.Println("Server exited")
}
