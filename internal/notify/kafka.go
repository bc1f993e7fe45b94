package notify

import (
	"context"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// EventWriter is the subset of the broker publisher KafkaNotifier needs
type EventWriter interface {
	Publish(ctx context.Context, event *models.Event) error
}

// KafkaNotifier writes events to the marketplace events topic. Relays on every
// instance consume the topic and deliver into their Hub.
type KafkaNotifier struct {
	writer EventWriter
	logger *zap.Logger
}

// NewKafkaNotifier creates a notifier writing through writer
func NewKafkaNotifier(writer EventWriter) *KafkaNotifier {
	return &KafkaNotifier{
		writer: writer,
		logger: util.GetLogger(),
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, userID int64, event *models.Event) {
	if err := n.writer.Publish(ctx, event.AddressedTo(userID)); err != nil {
		util.NotificationsDropped.WithLabelValues("publish_error").Inc()
		n.logger.Error("Failed to publish event to Kafka",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType),
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
}
