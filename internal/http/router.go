package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/vibescrow/backend/internal/config"
	"github.com/vibescrow/backend/internal/http/handlers"
	"github.com/vibescrow/backend/internal/middleware"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	proxyHandler *handlers.ProxyHandler,
	webhookHandler *handlers.WebhookHandler,
	offerHandler *handlers.OfferHandler,
	assetHandler *handlers.AssetHandler,
	gameHub *handlers.GameHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Farcaster webhook (never rate limited)
	api.Post("/webhook", webhookHandler.Receive)
	api.Get("/webhook", webhookHandler.Status)

	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	// Upstream proxies
	api.Get("/nft", proxyHandler.NFT)
	api.Get("/vibe", proxyHandler.Vibe)

	// Offers
	api.Get("/offers", offerHandler.ListOffers)
	api.Get("/offers/:id", offerHandler.GetOffer)

	// Assets
	api.Get("/nfts/:owner", assetHandler.ListNFTs)
	api.Get("/cards/token/:tokenId", assetHandler.GetCard)
	api.Get("/cards/:owner", assetHandler.ListCards)
	api.Post("/game/ticket", assetHandler.IssueTicket)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws/game", middleware.TicketMiddleware(cfg.GameTicketSecret, log), websocket.New(gameHub.HandleGame))
}
