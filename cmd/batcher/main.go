package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"craftid/backend/internal/batcher"
	"craftid/backend/internal/config"
	"craftid/backend/internal/db"
	"craftid/backend/internal/ledger"
	"craftid/backend/internal/log"
	"craftid/backend/internal/metrics"
	"craftid/backend/internal/queue"
	"craftid/backend/internal/secrets"
	"craftid/backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := log.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer database.Close()

	src, err := secrets.ForConfig(cfg.VaultAddr, cfg.VaultToken)
	if err != nil {
		logger.Fatal("secret source init failed", zap.Error(err))
	}
	ledgerClient, err := ledger.New(logger, cfg, src)
	if err != nil {
		logger.Fatal("ledger client init failed", zap.Error(err))
	}

	worker := batcher.New(
		logger,
		queue.New(database, cfg.VisibilityTimeout(), cfg.MaxRetries),
		store.NewCraftIDs(database),
		ledgerClient,
		metrics.New(prometheus.DefaultRegisterer),
		batcher.Options{
			BatchLimit:         cfg.BatchLimit,
			ActivePollInterval: cfg.ActivePollInterval(),
			IdlePollInterval:   cfg.IdlePollInterval(),
			IdleThreshold:      cfg.IdleThreshold(),
			ReceiptTimeout:     cfg.Web3ReceiptTimeout(),
			MaxRetries:         cfg.MaxRetries,
		},
	)

	worker.Run(ctx)
	logger.Info("batcher shut down gracefully")
}
