package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vibescrow/backend/internal/models"
)

type WebhookRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookRepo(pool *pgxpool.Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

func (r *WebhookRepo) Insert(ctx context.Context, e *models.WebhookEvent) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO webhook_events (id, event_type, fid, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING received_at
	`, e.ID, e.Type, e.FID, e.Payload).Scan(&e.ReceivedAt)
}
