package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"craftid/backend/internal/api"
	"craftid/backend/internal/attest"
	"craftid/backend/internal/config"
	"craftid/backend/internal/db"
	"craftid/backend/internal/index"
	"craftid/backend/internal/ledger"
	"craftid/backend/internal/log"
	"craftid/backend/internal/metrics"
	"craftid/backend/internal/queue"
	"craftid/backend/internal/secrets"
	"craftid/backend/internal/store"

	"github.com/prometheus/client_golang/prometheus"
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

	if err := database.Migrate(ctx, cfg.MigrationsDir); err != nil {
		logger.Fatal("db migrate failed", zap.Error(err))
	}

	src, err := secrets.ForConfig(cfg.VaultAddr, cfg.VaultToken)
	if err != nil {
		logger.Fatal("secret source init failed", zap.Error(err))
	}
	signer, err := attest.NewSigner(src, cfg.SignerKeyPath)
	if err != nil {
		logger.Fatal("attestation signer init failed", zap.Error(err))
	}
	if _, err := attest.NewVerifier(src, cfg.PlatformPubkeyPath); err != nil {
		// The API only signs, but a broken platform key should stop the
		// deployment before verifiers downstream hit it.
		logger.Fatal("platform public key unusable", zap.Error(err))
	}
	ledgerClient, err := ledger.New(logger, cfg, src)
	if err != nil {
		logger.Fatal("ledger client init failed", zap.Error(err))
	}

	srv := api.New(cfg, logger)
	srv.Craft = store.NewCraftIDs(database)
	srv.Queue = queue.New(database, cfg.VisibilityTimeout(), cfg.MaxRetries)
	srv.Signer = signer
	srv.Ledger = ledgerClient
	srv.Index = index.New(logger, cfg.RedisAddr)
	srv.Metrics = metrics.New(prometheus.DefaultRegisterer)
	srv.InitDB = func(ctx context.Context) error { return database.Migrate(ctx, cfg.MigrationsDir) }
	srv.Ping = func(ctx context.Context) error { return database.Pool.Ping(ctx) }

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
		<-time.After(250 * time.Millisecond)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}
}
