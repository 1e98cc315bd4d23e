package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vibescrow/backend/internal/models"
)

type SubscriberRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriberRepo(pool *pgxpool.Pool) *SubscriberRepo {
	return &SubscriberRepo{pool: pool}
}

// Enable stores fresh notification details and turns notifications on.
func (r *SubscriberRepo) Enable(ctx context.Context, fid int64, details models.NotificationDetails) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO miniapp_subscribers (fid, enabled, notification_url, notification_token)
		VALUES ($1, true, $2, $3)
		ON CONFLICT (fid) DO UPDATE SET
			enabled = true,
			notification_url = EXCLUDED.notification_url,
			notification_token = EXCLUDED.notification_token,
			updated_at = now()
	`, fid, details.URL, details.Token)
	return err
}

// Touch records that the user added the app without notification details.
func (r *SubscriberRepo) Touch(ctx context.Context, fid int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO miniapp_subscribers (fid) VALUES ($1)
		ON CONFLICT (fid) DO UPDATE SET updated_at = now()
	`, fid)
	return err
}

func (r *SubscriberRepo) Disable(ctx context.Context, fid int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE miniapp_subscribers
		SET enabled = false, notification_token = '', updated_at = now()
		WHERE fid = $1
	`, fid)
	return err
}

func (r *SubscriberRepo) ListEnabled(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT fid, enabled, notification_url, notification_token, added_at, updated_at
		FROM miniapp_subscribers
		WHERE enabled AND notification_url <> '' AND notification_token <> ''
		ORDER BY fid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Subscriber
	for rows.Next() {
		var s models.Subscriber
		if err := rows.Scan(&s.FID, &s.Enabled, &s.NotificationURL, &s.NotificationToken, &s.AddedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// DisableTokens turns off subscribers whose tokens the notification
// service reported as invalid.
func (r *SubscriberRepo) DisableTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE miniapp_subscribers
		SET enabled = false, updated_at = now()
		WHERE notification_token = ANY($1)
	`, tokens)
	return err
}
