package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/vibescrow/backend/internal/contract"
	"github.com/vibescrow/backend/internal/http/dto"
	"github.com/vibescrow/backend/internal/models"
	"go.uber.org/zap"
)

type OfferHandler struct {
	reader      contract.OfferReader
	concurrency int
	log         *zap.Logger
}

// NewOfferHandler accepts a nil reader when no escrow is configured; every
// request then answers 503.
func NewOfferHandler(reader contract.OfferReader, concurrency int, log *zap.Logger) *OfferHandler {
	return &OfferHandler{reader: reader, concurrency: concurrency, log: log}
}

func (h *OfferHandler) ListOffers(c *fiber.Ctx) error {
	if h.reader == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "escrow not configured"})
	}

	offers, err := contract.ListOffers(c.UserContext(), h.reader, h.concurrency, h.log)
	if err != nil {
		h.log.Error("failed to list offers", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "failed to read offers"})
	}

	if c.Query("status") == "open" {
		open := offers[:0]
		for _, o := range offers {
			if o.Status == models.OfferStatusOpen {
				open = append(open, o)
			}
		}
		offers = open
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: offers})
}

func (h *OfferHandler) GetOffer(c *fiber.Ctx) error {
	if h.reader == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "escrow not configured"})
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}

	next, err := h.reader.NextOfferID(c.UserContext())
	if err != nil {
		h.log.Error("failed to read offer count", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "failed to read offers"})
	}
	if id >= next {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "offer not found"})
	}

	offer, err := contract.FetchOffer(c.UserContext(), h.reader, id)
	if err != nil {
		h.log.Error("failed to read offer", zap.Uint64("offer_id", id), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "failed to read offer"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: offer})
}
