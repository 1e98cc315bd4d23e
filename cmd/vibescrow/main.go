package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/vibescrow/backend/internal/config"
	"github.com/vibescrow/backend/internal/contract"
	"github.com/vibescrow/backend/internal/db"
	"github.com/vibescrow/backend/internal/packs"
	"github.com/vibescrow/backend/internal/wallet"
	"go.uber.org/zap"
)

const (
	flagProfile = "profile"
	flagJSON    = "json"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		var shown alertedError
		if !errors.As(err, &shown) {
			fmt.Fprintf(os.Stderr, "vibescrow: %v\n", err)
		}
		os.Exit(1)
	}
}

// app holds what every subcommand shares. Chain and wallet are opened on
// first use so that offline commands stay offline.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	profile string
	asJSON  bool

	rdb       *redis.Client
	rdbTried  bool
	eth       *ethclient.Client
	wallet    *wallet.Manager
	providers []wallet.Provider
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "vibescrow",
		Short:         "VibEscrow client: wallet session, NFT swaps and booster packs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	cmd.PersistentFlags().String(flagProfile, "default", "session profile, scopes the persisted wallet address")
	cmd.PersistentFlags().Bool(flagJSON, false, "print JSON instead of text")

	cmd.AddCommand(
		newWalletCommand(a),
		newNFTsCommand(a),
		newOffersCommand(a),
		newPacksCommand(a),
		newSendCommand(a),
		newBoostCommand(a),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	a.log = logger
	a.cfg = config.Load()
	a.profile, _ = cmd.Flags().GetString(flagProfile)
	a.asJSON, _ = cmd.Flags().GetBool(flagJSON)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	cobra.OnFinalize(stop)
	cmd.SetContext(ctx)
	return nil
}

func (a *app) close() {
	for _, p := range a.providers {
		_ = p.Close()
	}
	if a.eth != nil {
		a.eth.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) chain(ctx context.Context) (*ethclient.Client, error) {
	if a.eth != nil {
		return a.eth, nil
	}
	eth, err := contract.Dial(ctx, a.cfg.RPCURL, a.log)
	if err != nil {
		return nil, err
	}
	a.eth = eth
	return eth, nil
}

// session restores the wallet session. Without Redis the address lives in
// memory for this run only.
func (a *app) session(ctx context.Context) (*wallet.Manager, error) {
	if a.wallet != nil {
		return a.wallet, nil
	}

	var store wallet.Store = wallet.NewMemoryStore()
	if rdb := a.redis(ctx); rdb != nil {
		store = wallet.NewRedisStore(rdb, a.profile)
	} else {
		a.log.Warn("redis unavailable, wallet session will not persist")
	}

	chainID := big.NewInt(a.cfg.ChainID)
	var providers []wallet.Provider
	switch {
	case a.cfg.WalletPrivateKey != "":
		p, err := wallet.NewEmbeddedProviderFromHex(a.cfg.WalletPrivateKey, chainID)
		if err != nil {
			return nil, fmt.Errorf("WALLET_PRIVATE_KEY: %w", err)
		}
		providers = append(providers, p)
	case a.cfg.WalletKeystore != "":
		p, err := wallet.NewEmbeddedProviderFromKeystore(a.cfg.WalletKeystore, a.cfg.WalletPassphrase, chainID)
		if err != nil {
			return nil, fmt.Errorf("WALLET_KEYSTORE: %w", err)
		}
		providers = append(providers, p)
	}
	if a.cfg.InjectedWalletURL != "" {
		p, err := wallet.DialInjectedProvider(ctx, a.cfg.InjectedWalletURL, a.cfg.WalletPollInterval, a.log)
		if err != nil {
			a.log.Warn("injected wallet unavailable", zap.Error(err))
		} else {
			providers = append(providers, p)
		}
	}
	a.providers = providers

	m := wallet.NewManager(wallet.Options{
		Providers: providers,
		Store:     store,
		Alerter:   wallet.AlertFunc(alert),
		Reload: func(context.Context) {
			alert("Wallet switched networks. Rerun the command on chain " + chainID.String() + ".")
		},
		ChainID: chainID,
	}, a.log)
	if err := m.Init(ctx); err != nil {
		return nil, err
	}
	a.wallet = m
	return m, nil
}

// redis dials once and returns nil when Redis is unreachable.
func (a *app) redis(ctx context.Context) *redis.Client {
	if a.rdbTried {
		return a.rdb
	}
	a.rdbTried = true
	rdb, err := db.NewRedisClient(ctx, a.cfg.RedisURL, a.log)
	if err != nil {
		a.log.Debug("redis dial failed", zap.Error(err))
		return nil
	}
	a.rdb = rdb
	return rdb
}

func alert(msg string) {
	fmt.Fprintln(os.Stderr, "! "+msg)
}

// alertedError has already been shown through alert.
type alertedError struct{ error }

func (e alertedError) Unwrap() error { return e.error }

// fail reports a failed wallet action. A rejected wallet prompt is silent
// and not an error; anything else is alerted once.
func (a *app) fail(err error, msg string) error {
	if err == nil {
		return nil
	}
	if wallet.IsUserRejection(err) {
		a.log.Info("user rejected the request", zap.String("action", msg))
		return nil
	}
	alert(msg + ": " + err.Error())
	return alertedError{err}
}

// flowErr maps pack flow errors. The flow alerts on its own failures, so
// only rejections and state errors need handling here.
func flowErr(err error) error {
	switch {
	case err == nil, wallet.IsUserRejection(err):
		return nil
	case errors.Is(err, packs.ErrInvalidTransition), errors.Is(err, packs.ErrNothingRevealed):
		return err
	}
	return alertedError{err}
}

// print writes v as JSON with --json, otherwise the text lines.
func (a *app) print(v any, lines ...string) error {
	if a.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	for _, l := range lines {
		fmt.Println(l)
	}
	return nil
}
