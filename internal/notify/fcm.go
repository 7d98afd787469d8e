// README: FCM-backed notifier with a PostgreSQL device token registry.
package notify

import (
	"context"
	"errors"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leafline/internal/types"
)

// FCM sends push notifications through Firebase Cloud Messaging. Device
// tokens are keyed by actor, one token per actor, last write wins.
type FCM struct {
	client *messaging.Client
	db     *pgxpool.Pool
}

func NewFCM(client *messaging.Client, db *pgxpool.Pool) *FCM {
	return &FCM{client: client, db: db}
}

// RegisterToken stores the actor's current device token.
func (f *FCM) RegisterToken(ctx context.Context, actorID types.ID, token string) error {
	_, err := f.db.Exec(ctx, `
        INSERT INTO device_tokens (actor_id, token, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (actor_id) DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at`,
		string(actorID), token, time.Now(),
	)
	return err
}

// UnregisterToken drops the actor's device token, e.g. on logout.
func (f *FCM) UnregisterToken(ctx context.Context, actorID types.ID) error {
	_, err := f.db.Exec(ctx, `DELETE FROM device_tokens WHERE actor_id = $1`, string(actorID))
	return err
}

// Send pushes a notification to the actor's registered device. An actor
// without a token is not an error; there is simply nowhere to deliver.
func (f *FCM) Send(ctx context.Context, actorID types.ID, title, body string, data map[string]string) error {
	var token string
	err := f.db.QueryRow(ctx, `SELECT token FROM device_tokens WHERE actor_id = $1`, string(actorID)).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	// Callers own the failure handling; a push that cannot be delivered
	// is their call to log or retry.
	_, err = f.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	return err
}
