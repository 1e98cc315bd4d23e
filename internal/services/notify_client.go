package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vibescrow/backend/internal/events"
	"github.com/vibescrow/backend/internal/models"
	"go.uber.org/zap"
)

// MaxTokensPerRequest is the Farcaster limit on tokens in one notification call.
const MaxTokensPerRequest = 100

type Notification struct {
	ID        string // stable id, repeated sends with the same id are deduplicated by clients
	Title     string
	Body      string
	TargetURL string
}

type notificationRequest struct {
	NotificationID string   `json:"notificationId"`
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	TargetURL      string   `json:"targetUrl"`
	Tokens         []string `json:"tokens"`
}

type notificationResponse struct {
	Result struct {
		SuccessfulTokens  []string `json:"successfulTokens"`
		InvalidTokens     []string `json:"invalidTokens"`
		RateLimitedTokens []string `json:"rateLimitedTokens"`
	} `json:"result"`
}

type SendResult struct {
	Sent        int
	Invalid     []string
	RateLimited int
}

// NotifyClient delivers mini-app notifications to the URLs clients
// registered through the webhook.
type NotifyClient struct {
	httpClient *http.Client
	log        *zap.Logger
}

func NewNotifyClient(log *zap.Logger) *NotifyClient {
	return &NotifyClient{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

// Broadcast sends n to every subscriber, grouped by notification URL. A
// failing URL is logged and the rest are still attempted.
func (c *NotifyClient) Broadcast(ctx context.Context, subscribers []models.Subscriber, n Notification) SendResult {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	byURL := make(map[string][]string)
	var urls []string
	for _, s := range subscribers {
		if !s.Enabled || s.NotificationURL == "" || s.NotificationToken == "" {
			continue
		}
		if _, ok := byURL[s.NotificationURL]; !ok {
			urls = append(urls, s.NotificationURL)
		}
		byURL[s.NotificationURL] = append(byURL[s.NotificationURL], s.NotificationToken)
	}

	var total SendResult
	for _, u := range urls {
		tokens := byURL[u]
		for start := 0; start < len(tokens); start += MaxTokensPerRequest {
			end := min(start+MaxTokensPerRequest, len(tokens))
			res, err := c.Send(ctx, u, n, tokens[start:end])
			if err != nil {
				c.log.Warn("notification delivery failed", zap.String("url", u), zap.Int("tokens", end-start), zap.Error(err))
				continue
			}
			total.Sent += res.Sent
			total.RateLimited += res.RateLimited
			total.Invalid = append(total.Invalid, res.Invalid...)
		}
	}
	return total
}

// Send posts one notification request carrying at most MaxTokensPerRequest tokens.
func (c *NotifyClient) Send(ctx context.Context, url string, n Notification, tokens []string) (*SendResult, error) {
	if len(tokens) > MaxTokensPerRequest {
		return nil, fmt.Errorf("too many tokens: %d", len(tokens))
	}
	body, err := json.Marshal(notificationRequest{
		NotificationID: n.ID,
		Title:          n.Title,
		Body:           n.Body,
		TargetURL:      n.TargetURL,
		Tokens:         tokens,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notification service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("notification service returned %d: %s", resp.StatusCode, string(b))
	}

	var parsed notificationResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return &SendResult{
		Sent:        len(parsed.Result.SuccessfulTokens),
		Invalid:     parsed.Result.InvalidTokens,
		RateLimited: len(parsed.Result.RateLimitedTokens),
	}, nil
}

// OfferNotification renders the user-facing message for an offer event.
// ok is false for event types that are not announced.
func OfferNotification(eventType string, offerID uint64, appURL string) (Notification, bool) {
	var title, body string
	switch eventType {
	case events.EventOfferCreated:
		title, body = "New swap offer", fmt.Sprintf("Offer #%d is open on VibEscrow.", offerID)
	case events.EventOfferAccepted:
		title, body = "Offer accepted", fmt.Sprintf("Offer #%d was accepted and the swap settled.", offerID)
	default:
		return Notification{}, false
	}
	return Notification{
		ID:        fmt.Sprintf("%s-%d", eventType, offerID),
		Title:     title,
		Body:      body,
		TargetURL: appURL,
	}, true
}
