package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vibescrow/backend/internal/config"
	"github.com/vibescrow/backend/internal/contract"
	"github.com/vibescrow/backend/internal/db"
	"github.com/vibescrow/backend/internal/events"
	"github.com/vibescrow/backend/internal/indexer"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.EscrowAddress == "" {
		log.Fatal("ESCROW_ADDRESS is required")
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	eth, err := contract.Dial(ctx, cfg.RPCURL, log)
	if err != nil {
		log.Fatal("failed to connect to rpc", zap.Error(err))
	}
	defer eth.Close()

	escrow, err := contract.NewEscrow(cfg.EscrowAddress, eth, log)
	if err != nil {
		log.Fatal("invalid ESCROW_ADDRESS", zap.String("addr", cfg.EscrowAddress), zap.Error(err))
	}

	ix := indexer.New(eth, escrow, indexer.NewRedisState(rdb), events.NewRedisBus(rdb, log), cfg.IndexerMaxBlockSpan, log)
	if err := ix.Init(ctx); err != nil {
		log.Fatal("failed to initialize cursor", zap.Error(err))
	}

	log.Info("offer indexer started",
		zap.String("escrow", cfg.EscrowAddress),
		zap.Duration("interval", cfg.IndexerPollInterval),
	)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down offer indexer")
		cancel()
	}()

	ix.Run(ctx, cfg.IndexerPollInterval)
}
