// Package realtime pushes fire-and-forget events to connected clients
// through Redis pub/sub. The API layer owns the SSE fan-out; this side
// only publishes.
package realtime

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"mailgate_server/core/domain"
	"mailgate_server/pkg/logger"
)

// PubSubAdapter implements out.RealtimePort over Redis pub/sub.
type PubSubAdapter struct {
	client *redis.Client
	log    *logger.Logger
}

// NewPubSubAdapter creates a new PubSubAdapter.
func NewPubSubAdapter(client *redis.Client) *PubSubAdapter {
	return &PubSubAdapter{
		client: client,
		log:    logger.Default().WithField("component", "realtime"),
	}
}

func channelFor(userID string) string {
	return fmt.Sprintf("user:%s:events", userID)
}

// Notify publishes one event on the user's channel. Delivery is
// best-effort; failures are logged and never surfaced to the caller.
func (a *PubSubAdapter) Notify(ctx context.Context, userID string, eventType string, data map[string]any) {
	event := &domain.RealtimeEvent{
		Type: eventType,
		Data: data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		a.log.WithError(err).Error("marshal %s event for user %s", eventType, userID)
		return
	}

	if err := a.client.Publish(ctx, channelFor(userID), payload).Err(); err != nil {
		a.log.WithError(err).Warn("publish %s event for user %s", eventType, userID)
	}
}
