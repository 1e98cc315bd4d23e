package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vibescrow/backend/internal/nft"
	"github.com/vibescrow/backend/internal/wallet"
)

const flagQuery = "q"

func newNFTsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nfts [owner]",
		Short: "List NFTs held by owner, defaulting to the session address",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			owner, err := a.owner(cmd, args)
			if err != nil {
				return err
			}

			items, err := a.aggregator(ctx).FetchAll(ctx, owner)
			if err != nil {
				return err
			}
			q, _ := cmd.Flags().GetString(flagQuery)
			items = nft.Search(items, q)

			lines := make([]string, 0, len(items)+1)
			for _, n := range items {
				lines = append(lines, fmt.Sprintf("%s #%s  %s  (%s)", n.Collection, n.TokenID, n.Name, n.Origin))
			}
			lines = append(lines, fmt.Sprintf("%d NFTs", len(items)))
			return a.print(items, lines...)
		},
	}
	cmd.Flags().String(flagQuery, "", "filter by name or collection")
	return cmd
}

func (a *app) aggregator(ctx context.Context) *nft.Aggregator {
	alchemy := nft.NewAlchemyClient(a.cfg.AlchemyBaseURL, a.cfg.AlchemyAPIKey, a.cfg.UpstreamTimeout, a.log)
	vibe := nft.NewVibeClient(a.cfg.WieldBaseURL, a.cfg.WieldAPIKey, a.cfg.UpstreamTimeout, a.log)
	if rdb := a.redis(ctx); rdb != nil {
		cache := nft.NewRedisCache(rdb, a.cfg.ProxyCacheTTL, a.log)
		alchemy = alchemy.WithCache(cache)
		vibe = vibe.WithCache(cache)
	}
	return nft.NewAggregator(vibe, alchemy, a.log)
}

// owner resolves the optional owner argument against the session.
func (a *app) owner(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return wallet.NormalizeAddress(args[0])
	}
	m, err := a.session(cmd.Context())
	if err != nil {
		return "", err
	}
	return m.Address()
}
