package dto

import "github.com/vibescrow/backend/internal/models"

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type WebhookAck struct {
	Success bool `json:"success"`
}

type WebhookStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type CardsResponse struct {
	Cards   []models.BoosterCard `json:"cards"`
	Summary models.CardSummary   `json:"summary"`
}

type NFTListResponse struct {
	Owner string               `json:"owner"`
	Items []models.NFTMetadata `json:"items"`
	Total int                  `json:"total"`
}

type GameTicketResponse struct {
	Ticket string             `json:"ticket"`
	Card   models.BoosterCard `json:"card"`
}
