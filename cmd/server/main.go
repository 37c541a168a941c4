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

	"fulfillment-service/config"
	"fulfillment-service/internal/api"
	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/memstore"
	"fulfillment-service/internal/redisclient"
	"fulfillment-service/internal/repository"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"
	"fulfillment-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting fulfillment service",
		zap.String("store_backend", cfg.Database.StoreBackend),
		zap.String("ledger_backend", cfg.Database.LedgerBackend),
		zap.Bool("kafka_enabled", cfg.Kafka.Enabled))

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	dependencies := make(map[string]api.Pinger)

	var (
		repo     repository.Repository
		stock    repository.StockStore
		catalog  service.ArticleLister
		memStore *memstore.Store
	)
	switch cfg.Database.StoreBackend {
	case config.BackendMemory:
		memStore = memstore.New()
		memstore.SeedDemo(memStore)
		repo, catalog = memStore, memStore
		logger.Info("Using in-memory store with demo catalog")
	case config.BackendPostgres:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		repo, catalog = db, db
		dependencies["database"] = db
		logger.Info("Database connected")
	default:
		logger.Fatal("Unknown store backend", zap.String("backend", cfg.Database.StoreBackend))
	}

	var (
		locker      service.CartLocker = service.NewLocalLocker()
		redisClient *redisclient.Client
	)
	if cfg.UsesRedis() {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		dependencies["redis"] = redisClient
		logger.Info("Redis connected")
	}

	switch cfg.Database.LedgerBackend {
	case config.BackendPostgres:
		stock = repo.(repository.StockStore)
	case config.BackendMemory:
		if memStore == nil {
			logger.Fatal("Memory ledger requires the memory store backend")
		}
		stock = memStore
	case config.BackendRedis:
		syncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = service.SyncInventory(syncCtx, catalog, redisClient)
		cancel()
		if err != nil {
			logger.Fatal("Failed to sync inventory to Redis", zap.Error(err))
		}

		stock = redisClient
		locker = redisclient.NewCartLocker(redisClient, cfg.Business.CartLockTTL)
	default:
		logger.Fatal("Unknown ledger backend", zap.String("backend", cfg.Database.LedgerBackend))
	}

	var eventPublisher service.EventPublisher = service.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicFulfillment)
		defer producer.Close()
		eventPublisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicFulfillment))
	}

	policy := cfg.Business.PricingPolicy()
	maxRetries := cfg.Business.ConflictMaxRetries

	ledger := service.NewInventoryLedger(stock)
	cartService := service.NewCartService(repo, ledger, locker, policy, maxRetries)
	orderService := service.NewOrderService(repo, locker, eventPublisher, policy, maxRetries)
	supplierOrderService := service.NewSupplierOrderService(repo, eventPublisher, maxRetries)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var dispatchWorker *worker.SupplierDispatchWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicFulfillment, cfg.Kafka.ConsumerGroup)
		dispatchWorker = worker.NewSupplierDispatchWorker(consumer, supplierOrderService)
		go func() {
			if err := dispatchWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Supplier dispatch worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(cartService, orderService, supplierOrderService, dependencies)
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
	if dispatchWorker != nil {
		if err := dispatchWorker.Stop(); err != nil {
			logger.Error("Error stopping supplier dispatch worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
