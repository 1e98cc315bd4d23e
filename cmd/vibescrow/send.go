package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vibescrow/backend/internal/contract"
)

const (
	flagNFT      = "nft"
	flagTokenAmt = "tokens"
)

func newSendCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send NFTs and tokens from the session wallet in one batch",
		Long: "Each --nft is contract:tokenId:recipient. Each --tokens is [contract:]amount:recipient;\n" +
			"without a contract the BOOSTER_TOKEN_ADDRESS token is sent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []contract.Transfer
			nfts, _ := cmd.Flags().GetStringArray(flagNFT)
			for _, s := range nfts {
				t, err := parseNFTTransfer(s)
				if err != nil {
					return err
				}
				items = append(items, t)
			}
			tokens, _ := cmd.Flags().GetStringArray(flagTokenAmt)
			for _, s := range tokens {
				t, err := parseTokenTransfer(s, a.cfg.BoosterTokenAddress)
				if err != nil {
					return err
				}
				items = append(items, t)
			}
			if err := contract.ValidateBatch(items); err != nil {
				return err
			}

			ctx := cmd.Context()
			m, err := a.session(ctx)
			if err != nil {
				return err
			}
			from, err := m.Address()
			if err != nil {
				return err
			}
			eth, err := a.chain(ctx)
			if err != nil {
				return err
			}

			hashes, err := contract.NewBatchSender(eth, a.log).Send(ctx, m, from, items)
			lines := make([]string, 0, len(hashes))
			txs := make([]string, 0, len(hashes))
			for i, h := range hashes {
				txs = append(txs, h.Hex())
				lines = append(lines, fmt.Sprintf("#%d %s", i+1, h.Hex()))
			}
			if perr := a.print(txs, lines...); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().StringArray(flagNFT, nil, "NFT transfer as contract:tokenId:recipient, repeatable")
	cmd.Flags().StringArray(flagTokenAmt, nil, "token transfer as [contract:]amount:recipient, repeatable")
	return cmd
}
