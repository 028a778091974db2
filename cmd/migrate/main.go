package main

import (
	"context"
	"flag"

	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/db"

	"go.uber.org/zap"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	dir := flag.String("dir", cfg.MigrationsDir, "directory holding *.sql migrations")
	flag.Parse()

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.PoolConfig(), logger)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn.Pool, *dir, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	logger.Info("all migrations processed")
}
