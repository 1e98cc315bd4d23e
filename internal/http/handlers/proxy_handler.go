package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/vibescrow/backend/internal/http/dto"
	"github.com/vibescrow/backend/internal/nft"
	"go.uber.org/zap"
)

// Proxy forwards a named action upstream and returns the raw JSON.
type Proxy interface {
	Do(ctx context.Context, action string, params url.Values) (json.RawMessage, error)
}

type ProxyHandler struct {
	nft  Proxy
	vibe Proxy
	log  *zap.Logger
}

func NewProxyHandler(nftProxy, vibeProxy Proxy, log *zap.Logger) *ProxyHandler {
	return &ProxyHandler{nft: nftProxy, vibe: vibeProxy, log: log}
}

// NFT serves /api/nft. Upstream details never reach the caller.
func (h *ProxyHandler) NFT(c *fiber.Ctx) error {
	params := queryValues(c)
	body, err := h.nft.Do(c.UserContext(), params.Get("action"), params)
	if err != nil {
		var reqErr *nft.RequestError
		if errors.As(err, &reqErr) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: reqErr.Message})
		}
		h.log.Error("NFT API error", zap.String("action", params.Get("action")), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "Internal server error"})
	}
	return sendRaw(c, body)
}

// Vibe serves /api/vibe. Upstream failures are reported with their message.
func (h *ProxyHandler) Vibe(c *fiber.Ctx) error {
	params := queryValues(c)
	action := params.Get("action")
	body, err := h.vibe.Do(c.UserContext(), action, params)
	if err != nil {
		var reqErr *nft.RequestError
		var statusErr *nft.StatusError
		switch {
		case errors.As(err, &reqErr):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: reqErr.Message})
		case errors.Is(err, nft.ErrInvalidAction):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "Invalid action"})
		case errors.As(err, &statusErr):
			h.log.Error("Vibe API error", zap.String("action", action), zap.Int("status", statusErr.Status), zap.String("body", statusErr.Body))
			msg := fmt.Sprintf("Failed to fetch %s: %d", statusErr.Op, statusErr.Status)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: msg})
		default:
			h.log.Error("Vibe API error", zap.String("action", action), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
		}
	}
	return sendRaw(c, body)
}

func queryValues(c *fiber.Ctx) url.Values {
	v := url.Values{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		v.Add(string(key), string(value))
	})
	return v
}

func sendRaw(c *fiber.Ctx, body []byte) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(body)
}
