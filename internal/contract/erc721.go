package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vibescrow/backend/internal/wallet"
	"go.uber.org/zap"
)

type ERC721 struct {
	bound
}

func NewERC721(address string, backend Backend, log *zap.Logger) (*ERC721, error) {
	b, err := newBound(address, ERC721ABI, backend, log)
	if err != nil {
		return nil, err
	}
	return &ERC721{bound: b}, nil
}

func (c *ERC721) IsApprovedForAll(ctx context.Context, owner string, operator common.Address) (bool, error) {
	out, err := c.call(ctx, "isApprovedForAll", wallet.MustAddress(owner), operator)
	if err != nil {
		return false, err
	}
	approved, _ := out[0].(bool)
	return approved, nil
}

func (c *ERC721) SetApprovalForAll(ctx context.Context, signer Signer, operator common.Address, approved bool) (*types.Receipt, error) {
	return c.transact(ctx, signer, nil, "setApprovalForAll", operator, approved)
}

func (c *ERC721) SafeTransferFrom(ctx context.Context, signer Signer, from, to string, tokenID *big.Int) (*types.Receipt, error) {
	return c.transact(ctx, signer, nil, "safeTransferFrom", wallet.MustAddress(from), wallet.MustAddress(to), tokenID)
}

type ERC20 struct {
	bound
}

func NewERC20(address string, backend Backend, log *zap.Logger) (*ERC20, error) {
	b, err := newBound(address, ERC20ABI, backend, log)
	if err != nil {
		return nil, err
	}
	return &ERC20{bound: b}, nil
}

func (c *ERC20) Decimals(ctx context.Context) (uint8, error) {
	out, err := c.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, _ := out[0].(uint8)
	return d, nil
}

func (c *ERC20) Transfer(ctx context.Context, signer Signer, to string, amount *big.Int) (*types.Receipt, error) {
	return c.transact(ctx, signer, nil, "transfer", wallet.MustAddress(to), amount)
}
