package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/telemetry"
)

// PublishRoom publishes a session event to every connection subscribed to the session room.
func (a *API) PublishRoom(ctx context.Context, e event.Event) error {
	k, ok := e.(event.Keyed)
	if !ok {
		return fmt.Errorf("pubsub: %s has no room", e.Name())
	}

	n, ok := toNotification(e)
	if !ok {
		return fmt.Errorf("pubsub: no broadcast for %s", e.Name())
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", e.Name(), err)
	}

	if err := a.redis.Publish(ctx, a.RoomChannel(k.Key()), b).Err(); err != nil {
		return fmt.Errorf("pubsub: publish %s: %w", e.Name(), err)
	}

	telemetry.Broadcasts.WithLabelValues(e.Name()).Inc()
	return nil
}

// SubscribeRoom subscribes to a session room and waits until the subscription is active.
func (a *API) SubscribeRoom(ctx context.Context, sessionID string) (*redis.PubSub, error) {
	ps := a.redis.Subscribe(ctx, a.RoomChannel(sessionID))
	if _, err := ps.Receive(ctx); err != nil {
		return nil, fmt.Errorf("pubsub: subscribe %s: %w", sessionID, err)
	}

	return ps, nil
}

func (a *API) RoomChannel(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", a.prefix, sessionID)
}
