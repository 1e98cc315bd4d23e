package models

import (
	"math/big"
	"time"
)

// OfferStatus mirrors the escrow contract's uint8 status enum.
type OfferStatus uint8

const (
	OfferStatusOpen OfferStatus = iota
	OfferStatusAccepted
	OfferStatusCancelled
	OfferStatusExpired
)

func (s OfferStatus) String() string {
	switch s {
	case OfferStatusOpen:
		return "Open"
	case OfferStatusAccepted:
		return "Accepted"
	case OfferStatusCancelled:
		return "Cancelled"
	case OfferStatusExpired:
		return "Expired"
	}
	return "Unknown"
}

func (s OfferStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NFTRef is one (collection, tokenId, amount) item of an offer bundle.
type NFTRef struct {
	Collection string   `json:"collection"`
	TokenID    *big.Int `json:"token_id"`
	Amount     *big.Int `json:"amount"`
}

// Offer is a read-only projection of an escrow offer.
type Offer struct {
	ID                uint64      `json:"id"`
	Maker             string      `json:"maker"`
	Taker             *string     `json:"taker"` // nil for open offers
	OfferedCount      int         `json:"offered_count"`
	Offered           []NFTRef    `json:"offered,omitempty"`
	DesiredCollection string      `json:"desired_collection"`
	DesiredTokenID    *big.Int    `json:"desired_token_id"`
	Deadline          time.Time   `json:"deadline"`
	Status            OfferStatus `json:"status"`
}

// IsOpenFor reports whether addr can accept the offer at now.
// addr must already be lowercase.
func (o Offer) IsOpenFor(addr string, now time.Time) bool {
	if o.Status != OfferStatusOpen || !now.Before(o.Deadline) {
		return false
	}
	if o.Maker == addr {
		return false
	}
	return o.Taker == nil || *o.Taker == addr
}
