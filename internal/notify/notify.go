// README: Push notification abstraction for actors without a live realtime session.
package notify

import (
	"context"

	"leafline/internal/types"
)

// Notifier delivers an out-of-band push message to a single actor.
type Notifier interface {
	Send(ctx context.Context, actorID types.ID, title, body string, data map[string]string) error
}

