package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seatwise/seatwise/pkg/apiserver"
	"github.com/seatwise/seatwise/pkg/config"
	"github.com/seatwise/seatwise/pkg/directory"
	"github.com/seatwise/seatwise/pkg/eventbus"
	"github.com/seatwise/seatwise/pkg/queue"
	"github.com/seatwise/seatwise/pkg/report"
	"github.com/seatwise/seatwise/pkg/store/postgres"
	"github.com/seatwise/seatwise/pkg/store/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	syncQueue := queue.NewSyncQueueProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID, cfg.Kafka.SyncTopic)
	defer syncQueue.Close()

	storage, err := report.NewObjectStorage(&cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to connect to object storage", zap.Error(err))
	}

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	deps := apiserver.Deps{
		Syncs:     syncQueue,
		Directory: directory.NewHTTPClient(&cfg.Directory),
		Generator: report.NewGenerator(db, storage, logger),
		Artifacts: storage,
		Bus:       eventbus.NewBus(redisClient.Client()),
	}

	server := apiserver.NewServer(db, deps, cfg, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.ReadTimeout * 2,
	}

	go func() {
		logger.Info("starting API server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics server", zap.Int("port", cfg.Server.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("metrics server forced to shutdown", zap.Error(err))
	}
}
