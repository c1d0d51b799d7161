package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seatwise/seatwise/pkg/analysis"
	"github.com/seatwise/seatwise/pkg/config"
	"github.com/seatwise/seatwise/pkg/eventbus"
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

	runner := analysis.NewRunner(
		db,
		usageStore,
		eventbus.NewBus(redis.Client()),
		logger,
		cfg.Analyzer.PollInterval,
		cfg.Analyzer.DowngradeThreshold,
		cfg.Analyzer.LookbackDays,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("analyzer polling for pending analyses",
			zap.Duration("interval", cfg.Analyzer.PollInterval))
		runner.Run(ctx)
	}()

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

	logger.Info("analyzer shutting down")
	cancel()
	metricsServer.Close()
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
