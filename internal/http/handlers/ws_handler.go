package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"
	"github.com/vibescrow/backend/internal/auth"
	"github.com/vibescrow/backend/internal/events"
	"github.com/vibescrow/backend/internal/middleware"
	"github.com/vibescrow/backend/internal/models"
	"github.com/vibescrow/backend/internal/packs"
	"go.uber.org/zap"
)

// gameClient serializes writes to one connection.
type gameClient struct {
	conn   *websocket.Conn
	ticket *auth.TicketClaims
	mu     sync.Mutex
}

func (g *gameClient) send(data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn.WriteMessage(websocket.TextMessage, data)
}

// GameHub is the WebSocket side of the game surface. Each connection is
// bound to one card by its ticket.
type GameHub struct {
	subscriber events.Subscriber
	log        *zap.Logger
	mu         sync.RWMutex
	clients    map[*gameClient]struct{}
}

func NewGameHub(subscriber events.Subscriber, log *zap.Logger) *GameHub {
	return &GameHub{
		subscriber: subscriber,
		log:        log,
		clients:    make(map[*gameClient]struct{}),
	}
}

// Start forwards offer events to every connected client until ctx is done.
func (h *GameHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.ChannelOffers, func(event events.Event) {
		h.broadcast(event)
	})
}

func (h *GameHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		_ = c.send(data)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// HandleGame expects TicketMiddleware to have run on the upgrade request.
func (h *GameHub) HandleGame(conn *websocket.Conn) {
	ticket, _ := conn.Locals(middleware.CtxTicket).(*auth.TicketClaims)
	if ticket == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing ticket"}`))
		conn.Close()
		return
	}

	client := &gameClient{conn: conn, ticket: ticket}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		conn.Close()
	}()

	card := ticketCard(ticket)
	for _, ev := range []events.Event{packs.StartGameEvent(card), packs.SetMultiplierEvent(card)} {
		if err := h.write(client, ev); err != nil {
			return
		}
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		reply, ok := GameReply(msg, ticket.Multiplier)
		if !ok {
			continue
		}
		h.log.Info("game over",
			zap.String("token_id", ticket.TokenID),
			zap.Any("score", reply.Payload["score"]),
		)
		if err := h.write(client, reply); err != nil {
			break
		}
	}
}

func (h *GameHub) write(c *gameClient, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.send(data)
}

// GameReply answers a game message. Only GAME_OVER gets a reply, carrying
// the boosted score. The base score is read from "score" or "payload.score".
func GameReply(msg []byte, multiplier float64) (events.Event, bool) {
	if !gjson.ValidBytes(msg) {
		return events.Event{}, false
	}
	m := gjson.ParseBytes(msg)
	if m.Get("type").String() != events.EventGameOver {
		return events.Event{}, false
	}
	score := m.Get("score")
	if !score.Exists() {
		score = m.Get("payload.score")
	}
	base := score.Int()
	return events.Event{
		Type: events.EventFinalScore,
		Payload: map[string]any{
			"base_score": base,
			"multiplier": multiplier,
			"score":      packs.BoostScore(base, multiplier),
		},
	}, true
}

func ticketCard(t *auth.TicketClaims) models.BoosterCard {
	tokenID, _ := t.Token()
	return models.BoosterCard{
		TokenID:     tokenID,
		Rarity:      t.Rarity,
		RarityLabel: t.Rarity.String(),
		Opened:      true,
		Multiplier:  t.Multiplier,
	}
}
