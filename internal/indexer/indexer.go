// Package indexer follows escrow contract logs and republishes them as
// offer events.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/redis/go-redis/v9"
	"github.com/vibescrow/backend/internal/contract"
	"github.com/vibescrow/backend/internal/events"
	"go.uber.org/zap"
)

const (
	redisCursorBlock = "offer-indexer:cursor:block"
	redisProcessed   = "offer-indexer:log:"
	processedTTL     = 7 * 24 * time.Hour
	DefaultMaxSpan   = 2000
)

// LogSource is the chain read side. *ethclient.Client satisfies it.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

type Decoder interface {
	Address() common.Address
	DecodeLog(l types.Log) (*contract.OfferEvent, error)
}

// State holds the block cursor and the processed-log markers.
type State interface {
	Cursor(ctx context.Context) (uint64, bool, error)
	SaveCursor(ctx context.Context, block uint64) error
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key, value string) error
}

type RedisState struct {
	rdb *redis.Client
}

func NewRedisState(rdb *redis.Client) *RedisState {
	return &RedisState{rdb: rdb}
}

func (s *RedisState) Cursor(ctx context.Context) (uint64, bool, error) {
	val, err := s.rdb.Get(ctx, redisCursorBlock).Result()
	if errors.Is(err, redis.Nil) || (err == nil && val == "") {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	block, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed cursor %q: %w", val, err)
	}
	return block, true, nil
}

func (s *RedisState) SaveCursor(ctx context.Context, block uint64) error {
	return s.rdb.Set(ctx, redisCursorBlock, strconv.FormatUint(block, 10), 0).Err()
}

func (s *RedisState) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, redisProcessed+key).Result()
	return n > 0, err
}

func (s *RedisState) Mark(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, redisProcessed+key, value, processedTTL).Err()
}

var eventTypes = map[string]string{
	"OfferCreated":   events.EventOfferCreated,
	"OfferAccepted":  events.EventOfferAccepted,
	"OfferCancelled": events.EventOfferCancelled,
	"OfferExpired":   events.EventOfferExpired,
}

type Indexer struct {
	source    LogSource
	escrow    Decoder
	state     State
	publisher events.Publisher
	maxSpan   uint64
	log       *zap.Logger
}

func New(source LogSource, escrow Decoder, state State, publisher events.Publisher, maxSpan uint64, log *zap.Logger) *Indexer {
	if maxSpan == 0 {
		maxSpan = DefaultMaxSpan
	}
	return &Indexer{
		source:    source,
		escrow:    escrow,
		state:     state,
		publisher: publisher,
		maxSpan:   maxSpan,
		log:       log,
	}
}

// Init places the cursor at the current head on first run so that only
// new logs are processed.
func (ix *Indexer) Init(ctx context.Context) error {
	block, ok, err := ix.state.Cursor(ctx)
	if err != nil {
		return err
	}
	if ok {
		ix.log.Info("resuming from saved cursor", zap.Uint64("block", block))
		return nil
	}

	head, err := ix.source.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("read head block: %w", err)
	}
	if err := ix.state.SaveCursor(ctx, head); err != nil {
		return err
	}
	ix.log.Info("cursor initialized at current head (skipping historical logs)", zap.Uint64("block", head))
	return nil
}

// Run polls every interval until ctx is done.
func (ix *Indexer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := ix.Poll(ctx); err != nil {
				ix.log.Error("poll cycle failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Poll processes at most maxSpan blocks past the cursor and returns the
// number of events published.
func (ix *Indexer) Poll(ctx context.Context) (int, error) {
	cursor, _, err := ix.state.Cursor(ctx)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	head, err := ix.source.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("read head block: %w", err)
	}
	if head <= cursor {
		return 0, nil
	}

	from := cursor + 1
	to := min(head, cursor+ix.maxSpan)

	logs, err := ix.source.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{ix.escrow.Address()},
		Topics:    [][]common.Hash{contract.EventTopics()},
	})
	if err != nil {
		return 0, fmt.Errorf("filter logs %d-%d: %w", from, to, err)
	}

	published := 0
	for _, l := range logs {
		ok, err := ix.process(ctx, l)
		if err != nil {
			// Stop before the failed block. Logs already published in it
			// are marked and skipped on the next poll.
			if serr := ix.state.SaveCursor(ctx, l.BlockNumber-1); serr != nil {
				ix.log.Error("failed to save cursor", zap.Uint64("block", l.BlockNumber-1), zap.Error(serr))
			}
			return published, fmt.Errorf("publish log %s:%d: %w", l.TxHash.Hex(), l.Index, err)
		}
		if ok {
			published++
		}
	}

	if err := ix.state.SaveCursor(ctx, to); err != nil {
		return published, fmt.Errorf("save cursor: %w", err)
	}
	if len(logs) > 0 {
		ix.log.Info("processed escrow logs",
			zap.Uint64("from", from),
			zap.Uint64("to", to),
			zap.Int("logs", len(logs)),
			zap.Int("published", published),
		)
	}
	return published, nil
}

// process publishes one log. It returns an error only when publishing
// failed, in which case the log is left unmarked.
func (ix *Indexer) process(ctx context.Context, l types.Log) (bool, error) {
	if l.Removed {
		return false, nil
	}

	// Idempotency: skip if already processed
	key := fmt.Sprintf("%s:%d", l.TxHash.Hex(), l.Index)
	if seen, err := ix.state.Seen(ctx, key); err == nil && seen {
		return false, nil
	}

	ev, err := ix.escrow.DecodeLog(l)
	if err != nil {
		ix.log.Warn("undecodable escrow log", zap.String("tx", l.TxHash.Hex()), zap.Uint("index", l.Index), zap.Error(err))
		_ = ix.state.Mark(ctx, key, "undecodable")
		return false, nil
	}
	eventType, ok := eventTypes[ev.Name]
	if !ok {
		return false, nil
	}

	if err := ix.publisher.Publish(ctx, events.ChannelOffers, OfferEvent(eventType, ev)); err != nil {
		ix.log.Error("failed to publish offer event", zap.Uint64("offer_id", ev.OfferID), zap.Error(err))
		return false, err
	}
	_ = ix.state.Mark(ctx, key, eventType)

	ix.log.Info("offer event",
		zap.String("type", eventType),
		zap.Uint64("offer_id", ev.OfferID),
		zap.Uint64("block", ev.Block),
	)
	return true, nil
}

func OfferEvent(eventType string, ev *contract.OfferEvent) events.Event {
	payload := map[string]any{
		"offer_id": ev.OfferID,
		"tx_hash":  ev.TxHash.Hex(),
		"block":    ev.Block,
	}
	if ev.Maker != "" {
		payload["maker"] = ev.Maker
	}
	if ev.Taker != "" {
		payload["taker"] = ev.Taker
	}
	if !ev.Deadline.IsZero() {
		payload["deadline"] = ev.Deadline.Unix()
	}
	return events.Event{Type: eventType, Payload: payload}
}
