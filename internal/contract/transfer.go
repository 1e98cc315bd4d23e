package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/vibescrow/backend/internal/wallet"
	"go.uber.org/zap"
)

type AssetKind string

const (
	AssetNFT   AssetKind = "nft"
	AssetToken AssetKind = "token"
)

var (
	ErrEmptyBatch       = errors.New("add at least one transfer")
	ErrInvalidRecipient = errors.New("invalid recipient address")
)

// Transfer is one item of a batch send. NFTs use TokenID, tokens use the
// human-readable Amount which is scaled by the token's decimals.
type Transfer struct {
	Kind      AssetKind       `json:"kind"`
	Contract  string          `json:"contract"`
	TokenID   *big.Int        `json:"token_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Recipient string          `json:"recipient"`
}

// ValidateBatch checks every item before anything is sent.
func ValidateBatch(items []Transfer) error {
	if len(items) == 0 {
		return ErrEmptyBatch
	}
	for i, t := range items {
		if _, err := wallet.NormalizeAddress(t.Recipient); err != nil {
			return fmt.Errorf("transfer #%d: %w", i+1, ErrInvalidRecipient)
		}
		if _, err := wallet.NormalizeAddress(t.Contract); err != nil {
			return fmt.Errorf("transfer #%d: contract: %w", i+1, err)
		}
		switch t.Kind {
		case AssetNFT:
			if t.TokenID == nil || t.TokenID.Sign() < 0 {
				return fmt.Errorf("transfer #%d: missing token id", i+1)
			}
		case AssetToken:
			if !t.Amount.IsPositive() {
				return fmt.Errorf("transfer #%d: amount must be positive", i+1)
			}
		default:
			return fmt.Errorf("transfer #%d: unknown asset kind %q", i+1, t.Kind)
		}
	}
	return nil
}

// ScaleAmount converts a human amount to base units.
func ScaleAmount(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	scaled := amount.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	return scaled.BigInt(), nil
}

// BatchSender submits transfers one at a time.
type BatchSender struct {
	backend Backend
	log     *zap.Logger
}

func NewBatchSender(backend Backend, log *zap.Logger) *BatchSender {
	return &BatchSender{backend: backend, log: log}
}

// Send validates the whole batch, then sends each item and waits for its
// receipt before the next. On failure it returns the hashes confirmed so far.
func (s *BatchSender) Send(ctx context.Context, signer Signer, from string, items []Transfer) ([]common.Hash, error) {
	if err := ValidateBatch(items); err != nil {
		return nil, err
	}
	from, err := wallet.NormalizeAddress(from)
	if err != nil {
		return nil, err
	}

	var hashes []common.Hash
	for i, t := range items {
		hash, err := s.sendOne(ctx, signer, from, t)
		if err != nil {
			return hashes, fmt.Errorf("transfer #%d: %w", i+1, err)
		}
		hashes = append(hashes, hash)
	}
	s.log.Info("batch send complete", zap.Int("transfers", len(hashes)), zap.String("from", from))
	return hashes, nil
}

func (s *BatchSender) sendOne(ctx context.Context, signer Signer, from string, t Transfer) (common.Hash, error) {
	recipient, _ := wallet.NormalizeAddress(t.Recipient)

	switch t.Kind {
	case AssetNFT:
		nft, err := NewERC721(t.Contract, s.backend, s.log)
		if err != nil {
			return common.Hash{}, err
		}
		receipt, err := nft.SafeTransferFrom(ctx, signer, from, recipient, t.TokenID)
		if err != nil {
			return common.Hash{}, err
		}
		return receipt.TxHash, nil
	default:
		token, err := NewERC20(t.Contract, s.backend, s.log)
		if err != nil {
			return common.Hash{}, err
		}
		decimals, err := token.Decimals(ctx)
		if err != nil {
			return common.Hash{}, err
		}
		amount, err := ScaleAmount(t.Amount, decimals)
		if err != nil {
			return common.Hash{}, err
		}
		receipt, err := token.Transfer(ctx, signer, recipient, amount)
		if err != nil {
			return common.Hash{}, err
		}
		return receipt.TxHash, nil
	}
}
