package auth

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vibescrow/backend/internal/models"
)

const ticketIssuer = "vibescrow"

var ErrInvalidTicket = errors.New("invalid game ticket")

// TicketClaims bind a game session to one revealed card.
type TicketClaims struct {
	TokenID    string        `json:"token_id"`
	Rarity     models.Rarity `json:"rarity"`
	Multiplier float64       `json:"multiplier"`
	jwt.RegisteredClaims
}

func (c *TicketClaims) Token() (*big.Int, bool) {
	return new(big.Int).SetString(c.TokenID, 10)
}

// IssueTicket signs a ticket for card. ttl <= 0 means 30 minutes.
func IssueTicket(secret string, card models.BoosterCard, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if card.TokenID == nil {
		return "", fmt.Errorf("%w: missing token id", ErrInvalidTicket)
	}

	now := time.Now()
	claims := TicketClaims{
		TokenID:    card.TokenID.String(),
		Rarity:     card.Rarity,
		Multiplier: card.Rarity.Multiplier(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   card.TokenID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    ticketIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseTicket(secret string, tokenStr string) (*TicketClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &TicketClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(ticketIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTicket, err)
	}

	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidTicket
	}
	// Multiplier is always derived from rarity.
	claims.Multiplier = claims.Rarity.Multiplier()
	return claims, nil
}
