package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/vibescrow/backend/internal/http/dto"
)

type WebhookProcessor interface {
	Handle(ctx context.Context, body []byte)
}

type WebhookHandler struct {
	processor WebhookProcessor
}

func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Receive acknowledges every event, including ones that fail to process.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	h.processor.Handle(c.UserContext(), c.Body())
	return c.JSON(dto.WebhookAck{Success: true})
}

func (h *WebhookHandler) Status(c *fiber.Ctx) error {
	return c.JSON(dto.WebhookStatus{Status: "ok", Message: "VibEscrow webhook endpoint"})
}
