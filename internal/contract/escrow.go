package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vibescrow/backend/internal/models"
	"github.com/vibescrow/backend/internal/wallet"
	"go.uber.org/zap"
)

// nftTuple matches the escrow's (collection, tokenId, amount) struct.
// Field names follow the ABI component names.
type nftTuple struct {
	Collection common.Address
	TokenId    *big.Int
	Amount     *big.Int
}

type offerTuple struct {
	Maker    common.Address
	Taker    common.Address
	Offered  []nftTuple
	Desired  nftTuple
	Deadline *big.Int
	Status   uint8
}

type Escrow struct {
	bound
}

func NewEscrow(address string, backend Backend, log *zap.Logger) (*Escrow, error) {
	b, err := newBound(address, EscrowABI, backend, log)
	if err != nil {
		return nil, fmt.Errorf("escrow address: %w", err)
	}
	return &Escrow{bound: b}, nil
}

func (e *Escrow) NextOfferID(ctx context.Context) (uint64, error) {
	n, err := e.callBig(ctx, "nextOfferId")
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("nextOfferId out of range: %s", n)
	}
	return n.Uint64(), nil
}

func (e *Escrow) GetOffer(ctx context.Context, id uint64) (*models.Offer, error) {
	out, err := e.call(ctx, "getOffer", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	t := *abi.ConvertType(out[0], new(offerTuple)).(*offerTuple)
	return offerFromTuple(id, t), nil
}

func (e *Escrow) GetOfferNFTs(ctx context.Context, id uint64) ([]models.NFTRef, error) {
	out, err := e.call(ctx, "getOfferNFTs", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	tuples := *abi.ConvertType(out[0], new([]nftTuple)).(*[]nftTuple)
	refs := make([]models.NFTRef, 0, len(tuples))
	for _, t := range tuples {
		refs = append(refs, refFromTuple(t))
	}
	return refs, nil
}

func offerFromTuple(id uint64, t offerTuple) *models.Offer {
	o := &models.Offer{
		ID:                id,
		Maker:             lower(t.Maker),
		OfferedCount:      len(t.Offered),
		DesiredCollection: lower(t.Desired.Collection),
		DesiredTokenID:    t.Desired.TokenId,
		Status:            models.OfferStatus(t.Status),
	}
	if t.Taker != (common.Address{}) {
		taker := lower(t.Taker)
		o.Taker = &taker
	}
	if t.Deadline != nil && t.Deadline.IsInt64() {
		o.Deadline = time.Unix(t.Deadline.Int64(), 0).UTC()
	}
	for _, n := range t.Offered {
		o.Offered = append(o.Offered, refFromTuple(n))
	}
	return o
}

func refFromTuple(t nftTuple) models.NFTRef {
	return models.NFTRef{Collection: lower(t.Collection), TokenID: t.TokenId, Amount: t.Amount}
}

// NFTItem is one token picked for an offer.
type NFTItem struct {
	Collection string
	TokenID    *big.Int
}

type CreateOfferRequest struct {
	Taker    string // empty for an open offer
	Offered  []NFTItem
	Desired  NFTItem
	Deadline time.Time
}

func (r CreateOfferRequest) validate(now time.Time) error {
	if len(r.Offered) == 0 {
		return errors.New("add at least one NFT to offer")
	}
	if r.Desired.Collection == "" || r.Desired.TokenID == nil {
		return errors.New("select the NFT you want to receive")
	}
	if r.Deadline.IsZero() {
		return errors.New("select a deadline")
	}
	if !r.Deadline.After(now) {
		return errors.New("deadline must be in the future")
	}
	return nil
}

func toTuple(item NFTItem) (nftTuple, error) {
	addr, err := wallet.NormalizeAddress(item.Collection)
	if err != nil {
		return nftTuple{}, err
	}
	if item.TokenID == nil || item.TokenID.Sign() < 0 {
		return nftTuple{}, fmt.Errorf("invalid token id for %s", addr)
	}
	return nftTuple{Collection: common.HexToAddress(addr), TokenId: item.TokenID, Amount: big.NewInt(1)}, nil
}

// CreateOffer submits createOffer and returns the new offer id from the
// OfferCreated log. Approvals must already be in place, see EnsureApproval.
func (e *Escrow) CreateOffer(ctx context.Context, signer Signer, req CreateOfferRequest) (uint64, *types.Receipt, error) {
	if err := req.validate(time.Now()); err != nil {
		return 0, nil, err
	}

	taker := common.Address{}
	if req.Taker != "" {
		addr, err := wallet.NormalizeAddress(req.Taker)
		if err != nil {
			return 0, nil, fmt.Errorf("taker: %w", err)
		}
		taker = common.HexToAddress(addr)
	}

	offered := make([]nftTuple, 0, len(req.Offered))
	for _, item := range req.Offered {
		t, err := toTuple(item)
		if err != nil {
			return 0, nil, fmt.Errorf("offered: %w", err)
		}
		offered = append(offered, t)
	}
	desired, err := toTuple(req.Desired)
	if err != nil {
		return 0, nil, fmt.Errorf("desired: %w", err)
	}

	receipt, err := e.transact(ctx, signer, nil, "createOffer", taker, offered, desired, big.NewInt(req.Deadline.Unix()))
	if err != nil {
		return 0, receipt, err
	}
	id, err := e.ParseOfferCreated(receipt)
	if err != nil {
		e.log.Warn("offer created but id not found in logs", zap.String("tx", receipt.TxHash.Hex()), zap.Error(err))
		return 0, receipt, err
	}
	return id, receipt, nil
}

func (e *Escrow) AcceptOffer(ctx context.Context, signer Signer, id uint64) (*types.Receipt, error) {
	return e.transact(ctx, signer, nil, "acceptOffer", new(big.Int).SetUint64(id))
}

func (e *Escrow) CancelOffer(ctx context.Context, signer Signer, id uint64) (*types.Receipt, error) {
	return e.transact(ctx, signer, nil, "cancelOffer", new(big.Int).SetUint64(id))
}

func (e *Escrow) ExpireOffer(ctx context.Context, signer Signer, id uint64) (*types.Receipt, error) {
	return e.transact(ctx, signer, nil, "expireOffer", new(big.Int).SetUint64(id))
}

// EnsureApproval grants the escrow operator rights on every distinct
// collection in items that owner has not approved yet. It returns the
// approval receipts it had to submit.
func (e *Escrow) EnsureApproval(ctx context.Context, signer Signer, owner string, items []NFTItem) ([]*types.Receipt, error) {
	owner, err := wallet.NormalizeAddress(owner)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var receipts []*types.Receipt
	for _, item := range items {
		collection, err := wallet.NormalizeAddress(item.Collection)
		if err != nil {
			return receipts, err
		}
		if seen[collection] {
			continue
		}
		seen[collection] = true

		nft, err := NewERC721(collection, e.backend, e.log)
		if err != nil {
			return receipts, err
		}
		approved, err := nft.IsApprovedForAll(ctx, owner, e.address)
		if err != nil {
			return receipts, err
		}
		if approved {
			continue
		}
		e.log.Info("approving escrow for collection", zap.String("collection", collection), zap.String("owner", owner))
		receipt, err := nft.SetApprovalForAll(ctx, signer, e.address, true)
		if err != nil {
			return receipts, fmt.Errorf("approve %s: %w", collection, err)
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// OfferEvent is a decoded escrow log.
type OfferEvent struct {
	Name     string // OfferCreated, OfferAccepted, OfferCancelled, OfferExpired
	OfferID  uint64
	Maker    string
	Taker    string
	Deadline time.Time
	TxHash   common.Hash
	LogIndex uint
	Block    uint64
}

// DecodeLog decodes one escrow log. Logs from other contracts or with
// unknown topics return ErrEventNotFound.
func (e *Escrow) DecodeLog(l types.Log) (*OfferEvent, error) {
	if l.Address != e.address || len(l.Topics) == 0 {
		return nil, ErrEventNotFound
	}
	ev, err := e.abi.EventByID(l.Topics[0])
	if err != nil {
		return nil, ErrEventNotFound
	}
	if len(l.Topics) < 2 {
		return nil, fmt.Errorf("%s: missing offerId topic", ev.Name)
	}

	id := new(big.Int).SetBytes(l.Topics[1].Bytes())
	if !id.IsUint64() {
		return nil, fmt.Errorf("%s: offer id out of range", ev.Name)
	}
	out := &OfferEvent{
		Name:     ev.Name,
		OfferID:  id.Uint64(),
		TxHash:   l.TxHash,
		LogIndex: l.Index,
		Block:    l.BlockNumber,
	}

	switch ev.Name {
	case "OfferCreated":
		if len(l.Topics) < 4 {
			return nil, fmt.Errorf("%s: missing topics", ev.Name)
		}
		out.Maker = lower(common.BytesToAddress(l.Topics[2].Bytes()))
		out.Taker = lower(common.BytesToAddress(l.Topics[3].Bytes()))
		values, err := ev.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ev.Name, err)
		}
		if deadline, ok := values[0].(*big.Int); ok && deadline.IsInt64() {
			out.Deadline = time.Unix(deadline.Int64(), 0).UTC()
		}
	case "OfferAccepted":
		if len(l.Topics) >= 3 {
			out.Taker = lower(common.BytesToAddress(l.Topics[2].Bytes()))
		}
	}
	return out, nil
}

// ParseOfferCreated returns the offer id from the receipt's OfferCreated log.
func (e *Escrow) ParseOfferCreated(receipt *types.Receipt) (uint64, error) {
	if receipt == nil {
		return 0, ErrEventNotFound
	}
	for _, l := range receipt.Logs {
		ev, err := e.DecodeLog(*l)
		if err != nil {
			continue
		}
		if ev.Name == "OfferCreated" {
			return ev.OfferID, nil
		}
	}
	return 0, ErrEventNotFound
}

// EventTopics lists the topic0 of every escrow event, for log filters.
func EventTopics() []common.Hash {
	names := []string{"OfferCreated", "OfferAccepted", "OfferCancelled", "OfferExpired"}
	topics := make([]common.Hash, 0, len(names))
	for _, n := range names {
		topics = append(topics, EscrowABI.Events[n].ID)
	}
	return topics
}
