package services

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/vibescrow/backend/internal/events"
	"github.com/vibescrow/backend/internal/models"
	"go.uber.org/zap"
)

type SubscriberLister interface {
	ListEnabled(ctx context.Context) ([]models.Subscriber, error)
	DisableTokens(ctx context.Context, tokens []string) error
}

// OfferNotifier turns offer events into mini-app notifications for every
// enabled subscriber.
type OfferNotifier struct {
	subscribers SubscriberLister
	client      *NotifyClient
	appURL      string
	log         *zap.Logger
}

func NewOfferNotifier(subscribers SubscriberLister, client *NotifyClient, appURL string, log *zap.Logger) *OfferNotifier {
	return &OfferNotifier{subscribers: subscribers, client: client, appURL: appURL, log: log}
}

func (n *OfferNotifier) HandleEvent(ctx context.Context, event events.Event) {
	offerID, ok := payloadUint(event.Payload, "offer_id")
	if !ok {
		n.log.Warn("offer event without offer_id", zap.String("type", event.Type))
		return
	}
	note, ok := OfferNotification(event.Type, offerID, n.appURL)
	if !ok {
		return
	}

	subs, err := n.subscribers.ListEnabled(ctx)
	if err != nil {
		n.log.Error("failed to load subscribers", zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	res := n.client.Broadcast(ctx, subs, note)
	n.log.Info("offer notification sent",
		zap.String("type", event.Type),
		zap.Uint64("offer_id", offerID),
		zap.Int("sent", res.Sent),
		zap.Int("invalid", len(res.Invalid)),
		zap.Int("rate_limited", res.RateLimited),
	)

	if len(res.Invalid) > 0 {
		if err := n.subscribers.DisableTokens(ctx, res.Invalid); err != nil {
			n.log.Error("failed to disable invalid tokens", zap.Error(err))
		}
	}
}

// payloadUint reads a numeric payload field that may have crossed a JSON
// boundary.
func payloadUint(payload map[string]any, key string) (uint64, bool) {
	switch v := payload[key].(type) {
	case uint64:
		return v, true
	case int:
		return uint64(v), v >= 0
	case int64:
		return uint64(v), v >= 0
	case float64:
		return uint64(v), v >= 0
	case json.Number:
		u, err := strconv.ParseUint(v.String(), 10, 64)
		return u, err == nil
	}
	return 0, false
}
