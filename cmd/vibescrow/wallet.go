package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func newWalletCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the wallet session",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "connect",
			Short: "Connect a wallet and persist its address",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := a.session(cmd.Context())
				if err != nil {
					return err
				}
				if err := m.Connect(cmd.Context()); err != nil {
					return err
				}
				s := m.Session()
				if !s.Connected() {
					return a.print(s, "connection cancelled")
				}
				return a.print(s, "connected "+s.Address)
			},
		},
		&cobra.Command{
			Use:   "disconnect",
			Short: "Forget the session address",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := a.session(cmd.Context())
				if err != nil {
					return err
				}
				if err := m.Disconnect(cmd.Context()); err != nil {
					return err
				}
				return a.print(m.Session(), "disconnected")
			},
		},
		&cobra.Command{
			Use:   "whoami",
			Short: "Show the session address and its ETH balance",
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				m, err := a.session(ctx)
				if err != nil {
					return err
				}
				addr, err := m.Address()
				if err != nil {
					return err
				}
				eth, err := a.chain(ctx)
				if err != nil {
					return err
				}
				wei, err := eth.BalanceAt(ctx, common.HexToAddress(addr), nil)
				if err != nil {
					return fmt.Errorf("read balance: %w", err)
				}
				out := struct {
					Address string `json:"address"`
					Balance string `json:"balance_eth"`
				}{addr, formatEther(wei)}
				return a.print(out, addr, "balance: "+out.Balance+" ETH")
			},
		},
	)
	return cmd
}
