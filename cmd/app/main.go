package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"fulfillment-engine/internal/adapters/cli"
	"fulfillment-engine/internal/adapters/repl"
	"fulfillment-engine/internal/ai"
	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/db"

	"go.uber.org/zap"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// CLI output goes to stdout; only warnings and above are logged.
	logger, err := app.NewLogger("warn")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
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
	}
	svc := app.NewAppService(store, db.NewItemLookup(store), explainer, cfg, logger)
	stdin := bufio.NewReader(os.Stdin)
	runner := cli.NewRunner(svc, cfg.CompanyID, stdin, os.Stdout)

	if len(os.Args) > 1 {
		if err := runner.Run(ctx, os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			conn.Close()
			os.Exit(1)
		}
		return
	}
	repl.Run(ctx, svc, runner, cfg.CompanyID, stdin)
}
