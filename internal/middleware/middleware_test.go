package middleware

import (
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vibescrow/backend/internal/auth"
	"github.com/vibescrow/backend/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestIDMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(RequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(CtxRequestID).(string))
	})

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"kept", "6f1c1c7e-7d39-4c39-9a4e-2b8f0f8d2c11", true},
		{"replaced when malformed", "not-a-uuid", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			got := resp.Header.Get(RequestIDHeader)
			if got == "" {
				t.Fatal("missing request id header")
			}
			if (got == tt.incoming) != tt.keep {
				t.Errorf("request id = %q, incoming %q", got, tt.incoming)
			}
		})
	}
}

func TestTicketMiddleware(t *testing.T) {
	const secret = "s"
	card := models.NewOpenedCard("0xbooster", big.NewInt(5), models.RarityMythic, big.NewInt(1), "0x")
	ticket, err := auth.IssueTicket(secret, card, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	app := fiber.New()
	app.Get("/game", TicketMiddleware(secret, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendString(GetTicket(c).TokenID)
	})

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"query", "/game?ticket=" + ticket, "", fiber.StatusOK},
		{"bearer", "/game", "Bearer " + ticket, fiber.StatusOK},
		{"missing", "/game", "", fiber.StatusUnauthorized},
		{"no bearer prefix", "/game", ticket, fiber.StatusUnauthorized},
		{"invalid", "/game?ticket=abc", "", fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestRateLimitWithoutRedisPassesThrough(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimitMiddleware(nil, 1, time.Minute))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for range 3 {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusNoContent {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	app := fiber.New()
	app.Use(RateLimitMiddleware(rdb, 1, time.Minute))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for range 2 {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusNoContent {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	}
}

func TestRateLimitKey(t *testing.T) {
	app := fiber.New()
	app.Get("/*", func(c *fiber.Ctx) error { return c.SendString(rateLimitKey(c)) })

	tests := []struct {
		target string
		want   string
	}{
		{"/api/offers", "rl:0.0.0.0:/api/offers"},
		{"/api/vibe?action=getPacks&limit=5", "rl:0.0.0.0:/api/vibe:getPacks"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.target, nil))
			if err != nil {
				t.Fatal(err)
			}
			body := make([]byte, 128)
			n, _ := resp.Body.Read(body)
			if got := string(body[:n]); got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	app := fiber.New()
	app.Use(LoggerMiddleware(zap.New(core)))
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/api/vibe", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadGateway, "upstream") })

	for _, target := range []string{"/health", "/api/vibe?action=getPacks"} {
		if _, err := app.Test(httptest.NewRequest("GET", target, nil)); err != nil {
			t.Fatal(err)
		}
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("logged %d lines, want 1 (health is skipped)", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(fiber.StatusBadGateway) {
		t.Errorf("status = %v", fields["status"])
	}
	if fields["action"] != "getPacks" {
		t.Errorf("action = %v", fields["action"])
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("level = %s, want warn", entries[0].Level)
	}
}
