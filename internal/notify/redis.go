package notify

import (
	"context"
	"encoding/json"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// Publisher is the subset of the Redis client RedisNotifier needs
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
}

// RedisNotifier publishes events on a Redis channel. Every instance relays the
// channel into its own Hub, so a user's sessions receive the event wherever they are connected.
type RedisNotifier struct {
	client  Publisher
	channel string
	logger  *zap.Logger
}

// NewRedisNotifier creates a notifier publishing on channel
func NewRedisNotifier(client Publisher, channel string) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		logger:  util.GetLogger(),
	}
}

func (n *RedisNotifier) Notify(ctx context.Context, userID int64, event *models.Event) {
	addressed := event.AddressedTo(userID)

	payload, err := json.Marshal(addressed)
	if err != nil {
		util.NotificationsDropped.WithLabelValues("encode_error").Inc()
		n.logger.Error("Failed to encode event", zap.String("event_id", event.EventID), zap.Error(err))
		return
	}

	if _, err := n.client.Publish(ctx, n.channel, payload); err != nil {
		util.NotificationsDropped.WithLabelValues("publish_error").Inc()
		n.logger.Error("Failed to publish event to Redis",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType),
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
}
