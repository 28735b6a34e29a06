// cmd/order-export/main.go
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"ordercore/internal/pkg/bootstrap"
	"ordercore/internal/pkg/logger"
	"ordercore/internal/service/export"
	"ordercore/internal/service/order/infrastructure"
	"ordercore/internal/zookeeper"
)

// order-export 是一次性任务，由 cron 触发。多个实例同时启动时只有一个会真正导出。
func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	timeout := flag.Duration("timeout", 10*time.Minute, "give up after this long")
	flag.Parse()

	cfg, err := bootstrap.Load(*configPath)
	if err != nil {
		logger.Init("order-export", "info")
		logger.Ctx(context.Background()).Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init("order-export", cfg.App.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := run(ctx, cfg); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("order export failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *bootstrap.Config) error {
	db, err := infrastructure.OpenMySQL(cfg.Infra.MySQL.DSN())
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	lock, err := zookeeper.NewDistributedLock(conn, "order-export")
	if err != nil {
		return err
	}

	exporter := export.NewExporter(infrastructure.NewGormOrderRepository(db), lock, cfg.App.Export.OutputDir, cfg.App.Export.Lookback)
	_, err = exporter.Run(ctx)
	return err
}
