package services

import (
	"context"
	"errors"
	"testing"

	"github.com/vibescrow/backend/internal/models"
	"go.uber.org/zap"
)

type fakeSubscribers struct {
	enabled  map[int64]models.NotificationDetails
	touched  []int64
	disabled []int64
	err      error
}

func (f *fakeSubscribers) Enable(_ context.Context, fid int64, d models.NotificationDetails) error {
	if f.enabled == nil {
		f.enabled = make(map[int64]models.NotificationDetails)
	}
	f.enabled[fid] = d
	return f.err
}

func (f *fakeSubscribers) Touch(_ context.Context, fid int64) error {
	f.touched = append(f.touched, fid)
	return f.err
}

func (f *fakeSubscribers) Disable(_ context.Context, fid int64) error {
	f.disabled = append(f.disabled, fid)
	return f.err
}

type fakeWebhookLog struct {
	events []*models.WebhookEvent
}

func (f *fakeWebhookLog) Insert(_ context.Context, e *models.WebhookEvent) error {
	f.events = append(f.events, e)
	return nil
}

func TestWebhookServiceHandle(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		enabled  int
		touched  int
		disabled int
		recorded int
	}{
		{"frame added with details", `{"type":"frame_added","data":{"fid":7,"notificationDetails":{"url":"https://n.example/x","token":"tok"}}}`, 1, 0, 0, 1},
		{"frame added without details", `{"type":"frame_added","data":{"fid":7}}`, 0, 1, 0, 1},
		{"notifications enabled", `{"type":"notifications_enabled","data":{"fid":8,"notificationDetails":{"url":"https://n.example/x","token":"t2"}}}`, 1, 0, 0, 1},
		{"notifications disabled", `{"type":"notifications_disabled","data":{"fid":8}}`, 0, 0, 1, 1},
		{"frame removed", `{"type":"frame_removed","data":{"fid":9}}`, 0, 0, 1, 1},
		{"unknown type", `{"type":"something_else","data":{"fid":9}}`, 0, 0, 0, 1},
		{"missing fid", `{"type":"frame_removed","data":{}}`, 0, 0, 0, 1},
		{"malformed", `{not json`, 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &fakeSubscribers{}
			log := &fakeWebhookLog{}
			NewWebhookService(subs, log, zap.NewNop()).Handle(context.Background(), []byte(tt.body))

			if len(subs.enabled) != tt.enabled || len(subs.touched) != tt.touched || len(subs.disabled) != tt.disabled {
				t.Errorf("enabled=%d touched=%d disabled=%d", len(subs.enabled), len(subs.touched), len(subs.disabled))
			}
			if len(log.events) != tt.recorded {
				t.Errorf("recorded = %d, want %d", len(log.events), tt.recorded)
			}
		})
	}
}

func TestWebhookServiceStoresDetails(t *testing.T) {
	subs := &fakeSubscribers{}
	log := &fakeWebhookLog{}
	body := `{"type":"notifications_enabled","data":{"fid":42,"notificationDetails":{"url":"https://api.warpcast.com/v1/frame-notifications","token":"abc"}}}`
	NewWebhookService(subs, log, zap.NewNop()).Handle(context.Background(), []byte(body))

	d := subs.enabled[42]
	if d.URL != "https://api.warpcast.com/v1/frame-notifications" || d.Token != "abc" {
		t.Fatalf("details = %+v", d)
	}
	e := log.events[0]
	if e.Type != models.WebhookNotificationsEnabled || e.FID == nil || *e.FID != 42 || string(e.Payload) != body {
		t.Fatalf("event = %+v", e)
	}
}

func TestWebhookServiceWithoutStores(t *testing.T) {
	NewWebhookService(nil, nil, zap.NewNop()).Handle(context.Background(), []byte(`{"type":"frame_added","data":{"fid":1}}`))
}

func TestWebhookServiceSwallowsStoreErrors(t *testing.T) {
	subs := &fakeSubscribers{err: errors.New("db down")}
	NewWebhookService(subs, nil, zap.NewNop()).Handle(context.Background(), []byte(`{"type":"frame_removed","data":{"fid":1}}`))
	if len(subs.disabled) != 1 {
		t.Fatal("disable was not attempted")
	}
}
