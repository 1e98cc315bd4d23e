package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vibescrow/backend/internal/auth"
	"github.com/vibescrow/backend/internal/contract"
	"github.com/vibescrow/backend/internal/events"
	"github.com/vibescrow/backend/internal/models"
	"github.com/vibescrow/backend/internal/packs"
	"github.com/vibescrow/backend/internal/wallet"
)

const (
	flagPlay       = "play"
	flagMultiplier = "multiplier"
	flagToken      = "token"
)

func (a *app) booster(ctx context.Context) (*contract.Booster, error) {
	eth, err := a.chain(ctx)
	if err != nil {
		return nil, err
	}
	return contract.NewBooster(a.cfg.BoosterDropAddress, eth, a.log)
}

// flow wires a pack flow whose game events are printed to stdout.
func (a *app) flow(ctx context.Context) (*packs.Flow, error) {
	booster, err := a.booster(ctx)
	if err != nil {
		return nil, err
	}
	m, err := a.session(ctx)
	if err != nil {
		return nil, err
	}

	bus := events.NewLocalBus()
	if err := bus.Subscribe(ctx, events.ChannelGame, a.printGameEvent); err != nil {
		return nil, err
	}

	return packs.NewFlow(booster, m, bus, wallet.AlertFunc(alert), packs.Options{
		Poller: packs.Poller{
			Interval:    a.cfg.PackPollInterval,
			MaxAttempts: a.cfg.PackPollMaxAttempts,
			OnAttempt: func(attempt int, err error) {
				if !a.asJSON {
					fmt.Fprintf(os.Stderr, "waiting for randomness (%d/%d)\n", attempt, a.cfg.PackPollMaxAttempts)
				}
			},
		},
		Concurrency: a.cfg.ListConcurrency,
		Contract:    a.cfg.BoosterDropAddress,
	}, a.log), nil
}

func (a *app) printGameEvent(ev events.Event) {
	b, _ := json.Marshal(ev)
	fmt.Fprintln(os.Stderr, string(b))
}

func newPacksCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packs",
		Short: "Buy, open and list booster packs",
	}

	list := &cobra.Command{
		Use:   "list [owner]",
		Short: "List owned cards and unopened packs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			owner, err := a.owner(cmd, args)
			if err != nil {
				return err
			}
			booster, err := a.booster(ctx)
			if err != nil {
				return err
			}
			cards, err := booster.OwnedCards(ctx, owner, a.cfg.ListConcurrency)
			if err != nil {
				return err
			}
			lines := make([]string, 0, len(cards)+1)
			for _, c := range cards {
				lines = append(lines, cardLine(c))
			}
			summary := models.Summarize(cards)
			lines = append(lines, fmt.Sprintf("%d cards, %d unopened", summary.TotalCards, summary.UnopenedPacks))
			return a.print(struct {
				Cards   []models.BoosterCard `json:"cards"`
				Summary models.CardSummary   `json:"summary"`
			}{cards, summary}, lines...)
		},
	}

	buy := &cobra.Command{
		Use:   "buy",
		Short: "Mint one pack and open it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := a.flow(ctx)
			if err != nil {
				return err
			}
			if booster, err := a.booster(ctx); err == nil && !a.asJSON {
				if price, err := booster.GetMintPrice(ctx, bigOne); err == nil {
					fmt.Fprintf(os.Stderr, "mint price: %s ETH\n", formatEther(price))
				}
			}
			card, err := f.Buy(ctx)
			if err != nil {
				return flowErr(err)
			}
			return a.revealed(cmd, f, card)
		},
	}
	buy.Flags().Bool(flagPlay, false, "start the game with the revealed card")

	open := &cobra.Command{
		Use:   "open <tokenId>",
		Short: "Open an owned pack and wait for its card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			f, err := a.flow(cmd.Context())
			if err != nil {
				return err
			}
			card, err := f.Open(cmd.Context(), tokenID)
			if err != nil {
				return flowErr(err)
			}
			return a.revealed(cmd, f, card)
		},
	}
	open.Flags().Bool(flagPlay, false, "start the game with the revealed card")

	unopened := &cobra.Command{
		Use:   "unopened",
		Short: "List the session's packs that have not been opened",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.flow(cmd.Context())
			if err != nil {
				return err
			}
			cards, err := f.ListUnopened(cmd.Context())
			if err != nil {
				return err
			}
			lines := make([]string, 0, len(cards)+1)
			for _, c := range cards {
				lines = append(lines, "pack #"+c.TokenID.String())
			}
			lines = append(lines, fmt.Sprintf("%d unopened", len(cards)))
			return a.print(cards, lines...)
		},
	}

	show := &cobra.Command{
		Use:   "show <tokenId>",
		Short: "Show one card with its owner and metadata URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tokenID, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			booster, err := a.booster(ctx)
			if err != nil {
				return err
			}
			card, err := booster.Card(ctx, tokenID)
			if err != nil {
				return err
			}
			owner, err := booster.OwnerOf(ctx, tokenID)
			if err != nil {
				return err
			}
			uri, err := booster.TokenURI(ctx, tokenID)
			if err != nil {
				return err
			}
			out := struct {
				Card     models.BoosterCard `json:"card"`
				Owner    string             `json:"owner"`
				TokenURI string             `json:"token_uri"`
			}{card, owner, uri}
			return a.print(out, cardLine(card), "owner: "+owner, "uri: "+uri)
		},
	}

	cmd.AddCommand(list, buy, open, unopened, show)
	return cmd
}

// revealed prints the card and, with --play, starts the game and prints a
// game link carrying a signed ticket.
func (a *app) revealed(cmd *cobra.Command, f *packs.Flow, card models.BoosterCard) error {
	play, _ := cmd.Flags().GetBool(flagPlay)
	out := struct {
		Card    models.BoosterCard `json:"card"`
		GameURL string             `json:"game_url,omitempty"`
	}{Card: card}

	if play {
		if err := f.Play(cmd.Context()); err != nil {
			return flowErr(err)
		}
		if a.cfg.GameTicketSecret != "" {
			ticket, err := auth.IssueTicket(a.cfg.GameTicketSecret, card, a.cfg.GameTicketTTL)
			if err != nil {
				return err
			}
			out.GameURL = gameURL(a.cfg.AppURL, ticket)
		}
	}

	lines := []string{"revealed " + cardLine(card)}
	if out.GameURL != "" {
		lines = append(lines, "play: "+out.GameURL)
	}
	return a.print(out, lines...)
}

func gameURL(appURL, ticket string) string {
	base := strings.TrimRight(appURL, "/")
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/ws/game?ticket=" + url.QueryEscape(ticket)
}

func cardLine(c models.BoosterCard) string {
	if !c.Opened {
		return fmt.Sprintf("#%s  unopened", c.TokenID)
	}
	return fmt.Sprintf("#%s  %s  x%s", c.TokenID, c.RarityLabel, strconv.FormatFloat(c.Multiplier, 'f', -1, 64))
}

func newBoostCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boost <score>",
		Short: "Apply a card's rarity multiplier to a game score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid score %q", args[0])
			}
			multiplier, _ := cmd.Flags().GetFloat64(flagMultiplier)
			if raw, _ := cmd.Flags().GetString(flagToken); raw != "" {
				tokenID, err := parseTokenID(raw)
				if err != nil {
					return err
				}
				booster, err := a.booster(cmd.Context())
				if err != nil {
					return err
				}
				card, err := booster.Card(cmd.Context(), tokenID)
				if err != nil {
					return err
				}
				if !card.Opened {
					return fmt.Errorf("pack #%s has not been opened", tokenID)
				}
				multiplier = card.Multiplier
			}
			out := struct {
				BaseScore  int64   `json:"base_score"`
				Multiplier float64 `json:"multiplier"`
				Score      int64   `json:"score"`
			}{base, multiplier, packs.BoostScore(base, multiplier)}
			return a.print(out, strconv.FormatInt(out.Score, 10))
		},
	}
	cmd.Flags().Float64(flagMultiplier, 1, "score multiplier")
	cmd.Flags().String(flagToken, "", "read the multiplier from this opened card")
	return cmd
}
