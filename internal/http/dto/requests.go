package dto

type GameTicketRequest struct {
	TokenID string `json:"tokenId"`
}
