package broker

import (
	"context"

	"marketplace-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// Publish publishes an addressed event keyed by the entity it carries
func (ep *EventPublisher) Publish(ctx context.Context, event *models.Event) error {
	return ep.producer.PublishEvent(ctx, event.EntityKey(), event)
}

// DecodeEvent parses a message written by EventPublisher
func DecodeEvent(msg kafka.Message) (*models.Event, error) {
	return models.DecodeEvent(msg.Value)
}

// EventHandler routes decoded events to a delivery function
type EventHandler struct {
	deliver func(context.Context, *models.Event) error
}

// NewEventHandler creates a new event handler
func NewEventHandler(deliver func(context.Context, *models.Event) error) *EventHandler {
	return &EventHandler{deliver: deliver}
}

// HandleMessage decodes msg and hands the event to the delivery function
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	event, err := DecodeEvent(msg)
	if err != nil {
		return err
	}
	return eh.deliver(ctx, event)
}
