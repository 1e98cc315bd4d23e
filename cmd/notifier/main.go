package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vibescrow/backend/internal/config"
	"github.com/vibescrow/backend/internal/db"
	"github.com/vibescrow/backend/internal/events"
	"github.com/vibescrow/backend/internal/repositories"
	"github.com/vibescrow/backend/internal/services"
	"go.uber.org/zap"
)

// Notifier subscribes to offer events and forwards them as Farcaster
// mini-app notifications.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !cfg.HasPostgres() {
		log.Fatal("POSTGRES_DSN is required: subscribers are stored there")
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, db.Migrations(), log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	notifier := services.NewOfferNotifier(
		repositories.NewSubscriberRepo(pool),
		services.NewNotifyClient(log),
		cfg.AppURL,
		log,
	)

	bus := events.NewRedisBus(rdb, log)
	if err := bus.Subscribe(ctx, events.ChannelOffers, func(event events.Event) {
		log.Info("offer event received", zap.String("type", event.Type))
		notifier.HandleEvent(ctx, event)
	}); err != nil {
		log.Fatal("failed to subscribe to offer events", zap.Error(err))
	}

	log.Info("notifier started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notifier")
	cancel()
}
