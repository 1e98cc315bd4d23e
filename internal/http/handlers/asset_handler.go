package handlers

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/vibescrow/backend/internal/auth"
	"github.com/vibescrow/backend/internal/http/dto"
	"github.com/vibescrow/backend/internal/models"
	"github.com/vibescrow/backend/internal/nft"
	"github.com/vibescrow/backend/internal/wallet"
	"go.uber.org/zap"
)

type NFTLister interface {
	FetchAll(ctx context.Context, owner string) ([]models.NFTMetadata, error)
}

type CardReader interface {
	OwnedCards(ctx context.Context, owner string, concurrency int) ([]models.BoosterCard, error)
	Card(ctx context.Context, tokenID *big.Int) (models.BoosterCard, error)
}

// AssetHandler serves the owner-facing reads: aggregated NFTs, booster
// cards and game tickets.
type AssetHandler struct {
	nfts         NFTLister
	cards        CardReader
	concurrency  int
	ticketSecret string
	ticketTTL    time.Duration
	log          *zap.Logger
}

func NewAssetHandler(nfts NFTLister, cards CardReader, concurrency int, ticketSecret string, ticketTTL time.Duration, log *zap.Logger) *AssetHandler {
	return &AssetHandler{
		nfts:         nfts,
		cards:        cards,
		concurrency:  concurrency,
		ticketSecret: ticketSecret,
		ticketTTL:    ticketTTL,
		log:          log,
	}
}

// ListNFTs degrades to an empty list when every source is down.
func (h *AssetHandler) ListNFTs(c *fiber.Ctx) error {
	owner, err := wallet.NormalizeAddress(c.Params("owner"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid owner address"})
	}

	items, err := h.nfts.FetchAll(c.UserContext(), owner)
	if err != nil {
		if !errors.Is(err, nft.ErrAllSourcesFailed) {
			h.log.Error("failed to list NFTs", zap.String("owner", owner), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "failed to list NFTs"})
		}
		items = nil
	}

	if q := c.Query("q"); q != "" {
		items = nft.Search(items, q)
	}
	if items == nil {
		items = []models.NFTMetadata{}
	}
	return c.JSON(dto.NFTListResponse{Owner: owner, Items: items, Total: len(items)})
}

func (h *AssetHandler) ListCards(c *fiber.Ctx) error {
	owner, err := wallet.NormalizeAddress(c.Params("owner"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid owner address"})
	}

	cards, err := h.cards.OwnedCards(c.UserContext(), owner, h.concurrency)
	if err != nil {
		h.log.Error("failed to list cards", zap.String("owner", owner), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "failed to read cards"})
	}
	if cards == nil {
		cards = []models.BoosterCard{}
	}
	return c.JSON(dto.CardsResponse{Cards: cards, Summary: models.Summarize(cards)})
}

func (h *AssetHandler) GetCard(c *fiber.Ctx) error {
	tokenID, ok := new(big.Int).SetString(c.Params("tokenId"), 10)
	if !ok || tokenID.Sign() < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid token id"})
	}

	card, err := h.cards.Card(c.UserContext(), tokenID)
	if err != nil {
		h.log.Warn("failed to read card", zap.String("token_id", tokenID.String()), zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "card not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: card})
}

// IssueTicket reads the card's rarity on chain and signs a game ticket for it.
func (h *AssetHandler) IssueTicket(c *fiber.Ctx) error {
	var req dto.GameTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	tokenID, ok := new(big.Int).SetString(req.TokenID, 10)
	if !ok || tokenID.Sign() < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid token id"})
	}

	card, err := h.cards.Card(c.UserContext(), tokenID)
	if err != nil {
		h.log.Warn("failed to read card for ticket", zap.String("token_id", tokenID.String()), zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "card not found"})
	}
	if !card.Opened {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "pack not opened yet"})
	}

	ticket, err := auth.IssueTicket(h.ticketSecret, card, h.ticketTTL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "failed to issue ticket"})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.GameTicketResponse{Ticket: ticket, Card: card})
}
