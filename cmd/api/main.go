package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/vibescrow/backend/internal/config"
	"github.com/vibescrow/backend/internal/contract"
	"github.com/vibescrow/backend/internal/db"
	"github.com/vibescrow/backend/internal/events"
	apphttp "github.com/vibescrow/backend/internal/http"
	"github.com/vibescrow/backend/internal/http/dto"
	"github.com/vibescrow/backend/internal/http/handlers"
	"github.com/vibescrow/backend/internal/middleware"
	"github.com/vibescrow/backend/internal/nft"
	"github.com/vibescrow/backend/internal/repositories"
	"github.com/vibescrow/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Database (optional, webhook persistence only)
	var (
		subscribers services.SubscriberStore
		webhookLog  services.WebhookLog
	)
	if cfg.HasPostgres() {
		pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool, db.Migrations(), log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		subscribers = repositories.NewSubscriberRepo(pool)
		webhookLog = repositories.NewWebhookRepo(pool)
	} else {
		log.Info("POSTGRES_DSN not set, webhook events are logged only")
	}

	// Chain
	eth, err := contract.Dial(ctx, cfg.RPCURL, log)
	if err != nil {
		log.Fatal("failed to connect to rpc", zap.Error(err))
	}
	defer eth.Close()

	booster, err := contract.NewBooster(cfg.BoosterDropAddress, eth, log)
	if err != nil {
		log.Fatal("invalid BOOSTER_DROP_ADDRESS", zap.Error(err))
	}
	var offers contract.OfferReader
	if cfg.EscrowAddress != "" {
		escrow, err := contract.NewEscrow(cfg.EscrowAddress, eth, log)
		if err != nil {
			log.Fatal("invalid ESCROW_ADDRESS", zap.Error(err))
		}
		offers = escrow
	}

	// Upstreams
	cache := nft.NewRedisCache(rdb, cfg.ProxyCacheTTL, log)
	alchemy := nft.NewAlchemyClient(cfg.AlchemyBaseURL, cfg.AlchemyAPIKey, cfg.UpstreamTimeout, log).WithCache(cache)
	vibe := nft.NewVibeClient(cfg.WieldBaseURL, cfg.WieldAPIKey, cfg.UpstreamTimeout, log).WithCache(cache)
	aggregator := nft.NewAggregator(vibe, alchemy, log)

	// Events
	bus := events.NewRedisBus(rdb, log)

	// Services
	webhookService := services.NewWebhookService(subscribers, webhookLog, log)

	// Handlers
	proxyHandler := handlers.NewProxyHandler(alchemy, vibe, log)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	offerHandler := handlers.NewOfferHandler(offers, cfg.ListConcurrency, log)
	assetHandler := handlers.NewAssetHandler(aggregator, booster, cfg.ListConcurrency, cfg.GameTicketSecret, cfg.GameTicketTTL, log)
	gameHub := handlers.NewGameHub(bus, log)

	// Start game hub
	if err := gameHub.Start(ctx); err != nil {
		log.Error("failed to subscribe to offer events", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			reqID, _ := c.Locals(middleware.CtxRequestID).(string)
			return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, proxyHandler, webhookHandler, offerHandler, assetHandler, gameHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
