package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"
	"github.com/vibescrow/backend/internal/contract"
	"github.com/vibescrow/backend/internal/models"
	"github.com/vibescrow/backend/internal/nft"
	"github.com/vibescrow/backend/internal/wallet"
	"go.uber.org/zap"
)

const (
	flagOpen    = "open"
	flagOffer   = "offer"
	flagWant    = "want"
	flagTaker   = "taker"
	flagDays    = "days"
	flagForce   = "force"
	defaultDays = 1
)

var errNoEscrow = errors.New("ESCROW_ADDRESS is not configured")

func (a *app) escrow(ctx context.Context) (*contract.Escrow, error) {
	if a.cfg.EscrowAddress == "" {
		return nil, errNoEscrow
	}
	eth, err := a.chain(ctx)
	if err != nil {
		return nil, err
	}
	return contract.NewEscrow(a.cfg.EscrowAddress, eth, a.log)
}

// signer returns the escrow, the session manager and the session address.
func (a *app) signer(ctx context.Context) (*contract.Escrow, *wallet.Manager, string, error) {
	escrow, err := a.escrow(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	m, err := a.session(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	addr, err := m.Address()
	if err != nil {
		return nil, nil, "", err
	}
	return escrow, m, addr, nil
}

func newOffersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offers",
		Short: "Browse and settle escrow swap offers",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every offer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			escrow, err := a.escrow(ctx)
			if err != nil {
				return err
			}
			offers, err := contract.ListOffers(ctx, escrow, a.cfg.ListConcurrency, a.log)
			if err != nil {
				return err
			}
			if open, _ := cmd.Flags().GetBool(flagOpen); open {
				offers = openOffers(offers, time.Now())
			}
			lines := make([]string, 0, len(offers)+1)
			for _, o := range offers {
				lines = append(lines, offerLine(o))
			}
			lines = append(lines, fmt.Sprintf("%d offers", len(offers)))
			return a.print(offers, lines...)
		},
	}
	list.Flags().Bool(flagOpen, false, "only offers that are open and not past their deadline")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one offer with its bundled NFTs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOfferID(args[0])
			if err != nil {
				return err
			}
			escrow, err := a.escrow(cmd.Context())
			if err != nil {
				return err
			}
			o, err := contract.FetchOffer(cmd.Context(), escrow, id)
			if err != nil {
				return err
			}
			lines := []string{offerLine(*o)}
			for _, ref := range o.Offered {
				lines = append(lines, fmt.Sprintf("  offers %s #%s", ref.Collection, ref.TokenID))
			}
			return a.print(o, lines...)
		},
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Escrow NFTs in exchange for one desired NFT",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := createRequest(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			escrow, m, addr, err := a.signer(ctx)
			if err != nil {
				return err
			}
			if force, _ := cmd.Flags().GetBool(flagForce); !force {
				if err := a.checkHeld(ctx, addr, req.Offered); err != nil {
					return err
				}
			}
			approvals, err := escrow.EnsureApproval(ctx, m, addr, req.Offered)
			if err != nil {
				return a.fail(err, "Failed to approve escrow")
			}
			id, receipt, err := escrow.CreateOffer(ctx, m, req)
			if err != nil {
				return a.fail(err, "Failed to create offer")
			}
			out := struct {
				ID        uint64 `json:"id"`
				TxHash    string `json:"tx_hash"`
				Approvals int    `json:"approvals"`
			}{id, receipt.TxHash.Hex(), len(approvals)}
			return a.print(out, fmt.Sprintf("offer #%d created (%s)", id, out.TxHash))
		},
	}
	create.Flags().StringArray(flagOffer, nil, "NFT to escrow as collection:tokenId, repeatable")
	create.Flags().String(flagWant, "", "NFT wanted in return as collection:tokenId")
	create.Flags().String(flagTaker, "", "restrict the offer to one taker address")
	create.Flags().Int(flagDays, defaultDays, "days until the offer expires")
	create.Flags().Bool(flagForce, false, "skip the check that the session holds every offered NFT")

	accept := &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept an offer, approving the desired collection if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOfferID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			escrow, m, addr, err := a.signer(ctx)
			if err != nil {
				return err
			}
			o, err := escrow.GetOffer(ctx, id)
			if err != nil {
				return err
			}
			if !o.IsOpenFor(addr, time.Now()) {
				return fmt.Errorf("offer #%d is not open for %s", id, addr)
			}
			desired := contract.NFTItem{Collection: o.DesiredCollection, TokenID: o.DesiredTokenID}
			if _, err := escrow.EnsureApproval(ctx, m, addr, []contract.NFTItem{desired}); err != nil {
				return a.fail(err, "Failed to approve escrow")
			}
			receipt, err := escrow.AcceptOffer(ctx, m, id)
			if err != nil {
				return a.fail(err, "Failed to accept offer")
			}
			return a.printTx("accepted", id, receipt)
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel your offer and return its NFTs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.settle(cmd, args[0], "cancelled", "Failed to cancel offer", (*contract.Escrow).CancelOffer)
		},
	}

	expire := &cobra.Command{
		Use:   "expire <id>",
		Short: "Return the NFTs of an offer past its deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.settle(cmd, args[0], "expired", "Failed to expire offer", (*contract.Escrow).ExpireOffer)
		},
	}

	cmd.AddCommand(list, show, create, accept, cancel, expire)
	return cmd
}

type settleFunc func(*contract.Escrow, context.Context, contract.Signer, uint64) (*types.Receipt, error)

func (a *app) settle(cmd *cobra.Command, rawID, verb, failMsg string, fn settleFunc) error {
	id, err := parseOfferID(rawID)
	if err != nil {
		return err
	}
	escrow, m, _, err := a.signer(cmd.Context())
	if err != nil {
		return err
	}
	receipt, err := fn(escrow, cmd.Context(), m, id)
	if err != nil {
		return a.fail(err, failMsg)
	}
	return a.printTx(verb, id, receipt)
}

func (a *app) printTx(verb string, id uint64, receipt *types.Receipt) error {
	out := struct {
		ID     uint64 `json:"id"`
		TxHash string `json:"tx_hash"`
	}{id, receipt.TxHash.Hex()}
	return a.print(out, fmt.Sprintf("offer #%d %s (%s)", id, verb, out.TxHash))
}

// checkHeld refuses items the aggregated NFT listing does not show for
// owner. A listing failure is logged and the check is skipped.
func (a *app) checkHeld(ctx context.Context, owner string, items []contract.NFTItem) error {
	owned, err := a.aggregator(ctx).FetchAll(ctx, owner)
	if err != nil {
		a.log.Warn("could not verify offered NFTs", zap.Error(err))
		return nil
	}
	missing := nft.Unowned(owned, selections(items))
	if len(missing) == 0 {
		return nil
	}
	m := missing[0]
	return fmt.Errorf("%s #%s is not held by %s (use --%s to offer it anyway)", m.Collection, m.TokenID, owner, flagForce)
}

func selections(items []contract.NFTItem) []nft.Selection {
	out := make([]nft.Selection, 0, len(items))
	for _, item := range items {
		out = append(out, nft.Selection{Collection: item.Collection, TokenID: item.TokenID.String()})
	}
	return out
}

func createRequest(cmd *cobra.Command) (contract.CreateOfferRequest, error) {
	var req contract.CreateOfferRequest
	raw, _ := cmd.Flags().GetStringArray(flagOffer)
	for _, s := range raw {
		item, err := parseItem(s)
		if err != nil {
			return req, err
		}
		req.Offered = append(req.Offered, item)
	}
	want, _ := cmd.Flags().GetString(flagWant)
	if want != "" {
		item, err := parseItem(want)
		if err != nil {
			return req, err
		}
		req.Desired = item
	}
	req.Taker, _ = cmd.Flags().GetString(flagTaker)
	days, _ := cmd.Flags().GetInt(flagDays)
	if days <= 0 {
		return req, fmt.Errorf("--%s must be positive", flagDays)
	}
	req.Deadline = time.Now().Add(time.Duration(days) * 24 * time.Hour)
	return req, nil
}

func parseOfferID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offer id %q", s)
	}
	return id, nil
}

func openOffers(offers []models.Offer, now time.Time) []models.Offer {
	var out []models.Offer
	for _, o := range offers {
		if o.Status == models.OfferStatusOpen && now.Before(o.Deadline) {
			out = append(out, o)
		}
	}
	return out
}

func offerLine(o models.Offer) string {
	taker := "anyone"
	if o.Taker != nil {
		taker = shortHex(*o.Taker)
	}
	return fmt.Sprintf("#%d %-9s %s -> %s  %d NFT(s) for %s #%s  until %s",
		o.ID, o.Status, shortHex(o.Maker), taker, o.OfferedCount,
		shortHex(o.DesiredCollection), o.DesiredTokenID, o.Deadline.Format(time.RFC3339))
}
