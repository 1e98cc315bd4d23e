package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/vibescrow/backend/internal/models"
	"go.uber.org/zap"
)

// SubscriberStore keeps notification state per Farcaster user.
type SubscriberStore interface {
	Enable(ctx context.Context, fid int64, details models.NotificationDetails) error
	Touch(ctx context.Context, fid int64) error
	Disable(ctx context.Context, fid int64) error
}

// WebhookLog records raw webhook events.
type WebhookLog interface {
	Insert(ctx context.Context, e *models.WebhookEvent) error
}

// WebhookService handles Farcaster mini-app lifecycle events. Both stores
// are optional; without them events are only logged.
type WebhookService struct {
	subscribers SubscriberStore
	events      WebhookLog
	log         *zap.Logger
}

func NewWebhookService(subscribers SubscriberStore, events WebhookLog, log *zap.Logger) *WebhookService {
	return &WebhookService{subscribers: subscribers, events: events, log: log}
}

// Handle processes one webhook body. It never fails: malformed bodies and
// persistence errors are logged and the caller still acknowledges.
func (s *WebhookService) Handle(ctx context.Context, body []byte) {
	if !gjson.ValidBytes(body) {
		s.log.Warn("webhook body is not valid JSON", zap.Int("size", len(body)))
		return
	}

	parsed := gjson.ParseBytes(body)
	eventType := parsed.Get("type").String()
	data := parsed.Get("data")

	var fid *int64
	if f := data.Get("fid"); f.Exists() {
		v := f.Int()
		fid = &v
	}

	fields := []zap.Field{zap.String("type", eventType)}
	if fid != nil {
		fields = append(fields, zap.Int64("fid", *fid))
	}

	switch eventType {
	case models.WebhookFrameAdded:
		s.log.Info("frame added by user", fields...)
	case models.WebhookFrameRemoved:
		s.log.Info("frame removed by user", fields...)
	case models.WebhookNotificationsEnabled:
		s.log.Info("notifications enabled by user", fields...)
	case models.WebhookNotificationsDisabled:
		s.log.Info("notifications disabled by user", fields...)
	default:
		s.log.Info("unknown webhook type", fields...)
	}

	s.record(ctx, eventType, fid, body)
	if fid != nil {
		s.apply(ctx, eventType, *fid, data)
	}
}

func (s *WebhookService) record(ctx context.Context, eventType string, fid *int64, body []byte) {
	if s.events == nil {
		return
	}
	e := &models.WebhookEvent{
		ID:      uuid.New(),
		Type:    eventType,
		FID:     fid,
		Payload: json.RawMessage(append([]byte(nil), body...)),
	}
	if err := s.events.Insert(ctx, e); err != nil {
		s.log.Error("failed to store webhook event", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *WebhookService) apply(ctx context.Context, eventType string, fid int64, data gjson.Result) {
	if s.subscribers == nil {
		return
	}

	var err error
	switch eventType {
	case models.WebhookFrameAdded, models.WebhookNotificationsEnabled:
		details := models.NotificationDetails{
			URL:   data.Get("notificationDetails.url").String(),
			Token: data.Get("notificationDetails.token").String(),
		}
		if details.URL == "" || details.Token == "" {
			err = s.subscribers.Touch(ctx, fid)
		} else {
			err = s.subscribers.Enable(ctx, fid, details)
		}
	case models.WebhookFrameRemoved, models.WebhookNotificationsDisabled:
		err = s.subscribers.Disable(ctx, fid)
	default:
		return
	}
	if err != nil {
		s.log.Error("failed to update subscriber", zap.Int64("fid", fid), zap.String("type", eventType), zap.Error(err))
	}
}
