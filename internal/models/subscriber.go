package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Farcaster mini-app webhook event types.
const (
	WebhookFrameAdded            = "frame_added"
	WebhookFrameRemoved          = "frame_removed"
	WebhookNotificationsEnabled  = "notifications_enabled"
	WebhookNotificationsDisabled = "notifications_disabled"
)

// NotificationDetails is sent by the client when the user enables notifications.
type NotificationDetails struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

type WebhookEvent struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	FID        *int64          `json:"fid,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

type Subscriber struct {
	FID               int64     `json:"fid"`
	Enabled           bool      `json:"enabled"`
	NotificationURL   string    `json:"-"`
	NotificationToken string    `json:"-"`
	AddedAt           time.Time `json:"added_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
