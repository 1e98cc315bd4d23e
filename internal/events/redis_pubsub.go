package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus fans events out across processes over Redis pub/sub.
type RedisBus struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisBus(client *redis.Client, log *zap.Logger) *RedisBus {
	return &RedisBus{client: client, log: log}
}

// Publish reports how many subscribers received the event at debug level.
// Zero receivers is not an error.
func (b *RedisBus) Publish(ctx context.Context, stream string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	n, err := b.client.Publish(ctx, stream, string(data)).Result()
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, stream, err)
	}
	b.log.Debug("event published", zap.String("channel", stream), zap.String("type", event.Type), zap.Int64("receivers", n))
	return nil
}

// decodeEvent keeps numbers as json.Number so offer ids and block numbers
// survive the round trip without float rounding.
func decodeEvent(payload string) (Event, error) {
	var event Event
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&event); err != nil {
		return Event{}, err
	}
	if event.Type == "" {
		return Event{}, fmt.Errorf("event without type")
	}
	return event, nil
}

// Subscribe waits for the subscription to be confirmed, then dispatches
// messages on a background goroutine until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	pubsub := b.client.Subscribe(ctx, stream)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", stream, err)
	}
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				event, err := decodeEvent(msg.Payload)
				if err != nil {
					b.log.Error("failed to unmarshal event", zap.String("channel", stream), zap.Error(err))
					continue
				}
				handler(event)
			}
		}
	}()

	return nil
}
