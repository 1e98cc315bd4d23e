package events

import "context"

// Channels
const (
	ChannelOffers = "events:offers"
	ChannelGame   = "events:game"
)

// Event types
const (
	EventOfferCreated   = "offer_created"
	EventOfferAccepted  = "offer_accepted"
	EventOfferCancelled = "offer_cancelled"
	EventOfferExpired   = "offer_expired"

	// Messages exchanged with the embedded game surface.
	EventStartGame     = "START_GAME"
	EventSetMultiplier = "SET_MULTIPLIER"
	EventGameOver      = "GAME_OVER"
	EventFinalScore    = "FINAL_SCORE"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// Bus both publishes and subscribes.
type Bus interface {
	Publisher
	Subscriber
}
