package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "fulfillment-engine/internal/adapters/web"
	"fulfillment-engine/internal/ai"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.PoolConfig(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer conn.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, conn.Pool, cfg.MigrationsDir, logger); err != nil {
			logger.Fatal("migrations", zap.Error(err))
		}
	}

	store := db.NewStore(conn.Pool, logger)

	var explainer ai.Explainer
	if cfg.OpenAIAPIKey != "" {
		explainer = ai.NewAgent(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		logger.Warn("OPENAI_API_KEY is not set; stock explanations disabled")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	svc := app.NewAppService(store, db.NewItemLookup(store), explainer, cfg, logger)
	handler := webAdapter.NewHandler(svc, cfg.AllowedOrigins, cfg.JWTSecret, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting",
		zap.String("port", cfg.ServerPort),
		zap.String("fallback_location", cfg.FallbackLocationCode))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
	logger.Info("server stopped")
}
