package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vibescrow/backend/internal/contract"
	"github.com/vibescrow/backend/internal/wallet"
)

var bigOne = big.NewInt(1)

// formatEther renders wei as ETH without trailing zeros.
func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -18).String()
}

// parseItem reads "collection:tokenId".
func parseItem(s string) (contract.NFTItem, error) {
	collection, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return contract.NFTItem{}, fmt.Errorf("%q: want collection:tokenId", s)
	}
	addr, err := wallet.NormalizeAddress(collection)
	if err != nil {
		return contract.NFTItem{}, fmt.Errorf("%q: %w", s, err)
	}
	tokenID, err := parseTokenID(id)
	if err != nil {
		return contract.NFTItem{}, fmt.Errorf("%q: %w", s, err)
	}
	return contract.NFTItem{Collection: addr, TokenID: tokenID}, nil
}

func parseTokenID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid token id %q", s)
	}
	return id, nil
}

// parseNFTTransfer reads "contract:tokenId:recipient".
func parseNFTTransfer(s string) (contract.Transfer, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return contract.Transfer{}, fmt.Errorf("%q: want contract:tokenId:recipient", s)
	}
	tokenID, err := parseTokenID(parts[1])
	if err != nil {
		return contract.Transfer{}, fmt.Errorf("%q: %w", s, err)
	}
	return contract.Transfer{
		Kind:      contract.AssetNFT,
		Contract:  parts[0],
		TokenID:   tokenID,
		Recipient: parts[2],
	}, nil
}

// parseTokenTransfer reads "amount:recipient" or "contract:amount:recipient".
// The short form sends defaultToken.
func parseTokenTransfer(s, defaultToken string) (contract.Transfer, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch len(parts) {
	case 2:
		parts = append([]string{defaultToken}, parts...)
	case 3:
	default:
		return contract.Transfer{}, fmt.Errorf("%q: want [contract:]amount:recipient", s)
	}
	amount, err := decimal.NewFromString(parts[1])
	if err != nil {
		return contract.Transfer{}, fmt.Errorf("%q: invalid amount: %w", s, err)
	}
	return contract.Transfer{
		Kind:      contract.AssetToken,
		Contract:  parts[0],
		Amount:    amount,
		Recipient: parts[2],
	}, nil
}

func shortHex(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}
