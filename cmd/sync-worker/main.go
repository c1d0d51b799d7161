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

	"github.com/seatwise/seatwise/pkg/config"
	"github.com/seatwise/seatwise/pkg/directory"
	"github.com/seatwise/seatwise/pkg/eventbus"
	"github.com/seatwise/seatwise/pkg/queue"
	"github.com/seatwise/seatwise/pkg/store"
	"github.com/seatwise/seatwise/pkg/store/clickhouse"
	"github.com/seatwise/seatwise/pkg/store/postgres"
	redisclient "github.com/seatwise/seatwise/pkg/store/redis"
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

	redis, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()

	usageStore := newUsageStore(cfg, db, logger)
	defer usageStore.Close()

	syncer := directory.NewSyncer(
		directory.NewHTTPClient(&cfg.Directory),
		postgres.NewTenantRepository(db.DB()),
		postgres.NewUserRepository(db.DB()),
		usageStore,
		eventbus.NewBus(redis.Client()),
		logger,
	)

	consumer := queue.NewSyncQueueConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.ClientID,
		cfg.Kafka.SyncGroup,
		cfg.Kafka.SyncTopic,
		cfg.Kafka.SyncRetryTopic,
		cfg.Kafka.SyncDLQTopic,
	)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("sync worker consuming", zap.String("topic", cfg.Kafka.SyncTopic))
		if err := consumer.Consume(ctx, syncer.Handle); err != nil && err != context.Canceled {
			logger.Fatal("sync consumer stopped with error", zap.Error(err))
		}
	}()

	// ClickHouse expires usage rows through its native TTL.
	if cfg.Usage.StorageDriver != "clickhouse" {
		go runUsageRetention(ctx, usageStore, cfg.Usage.RetentionDays, logger)
	}

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("sync worker shutting down")
	cancel()
	metricsServer.Close()
}

func runUsageRetention(ctx context.Context, usageStore store.UsageStore, retentionDays int, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("pruning old usage metrics", zap.Int("retention_days", retentionDays))
			if err := usageStore.DeleteOldMetrics(ctx, retentionDays); err != nil {
				logger.Error("failed to prune usage metrics", zap.Error(err))
			}
		}
	}
}

func newUsageStore(cfg *config.Config, db *postgres.Store, logger *zap.Logger) store.UsageStore {
	if cfg.Usage.StorageDriver == "clickhouse" {
		if len(cfg.ClickHouse.Hosts) == 0 {
			logger.Fatal("clickhouse usage storage selected but no hosts configured")
		}
		logger.Info("using clickhouse for usage storage")
		usageStore, err := clickhouse.NewClickHouseUsageStore(
			cfg.ClickHouse.Hosts[0],
			cfg.ClickHouse.Database,
			cfg.ClickHouse.User,
			cfg.ClickHouse.Password,
			logger,
		)
		if err != nil {
			logger.Fatal("failed to initialize clickhouse usage store", zap.Error(err))
		}
		return usageStore
	}
	logger.Info("using postgres for usage storage")
	return postgres.NewUsageRepository(db.DB())
}
