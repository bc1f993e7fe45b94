package worker

import (
	"context"
	"fmt"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"
	"marketplace-service/internal/redisclient"
	"marketplace-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Deliverer hands an addressed event to the local sessions
type Deliverer interface {
	Deliver(event *models.Event) int
}

// RedisRelay forwards events published on a Redis channel into the local hub
type RedisRelay struct {
	client  *redisclient.Client
	channel string
	hub     Deliverer
	logger  *zap.Logger
}

// NewRedisRelay creates a new Redis relay
func NewRedisRelay(client *redisclient.Client, channel string, hub Deliverer) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  util.GetLogger(),
	}
}

// Start relays until ctx is cancelled
func (r *RedisRelay) Start(ctx context.Context) error {
	pubsub, err := r.client.Subscribe(ctx, r.channel)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	r.logger.Info("Starting Redis relay", zap.String("channel", r.channel))
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping Redis relay")
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription to %s closed", r.channel)
			}
			r.relay([]byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) relay(payload []byte) {
	event, err := models.DecodeEvent(payload)
	if err != nil {
		util.NotificationsDropped.WithLabelValues("decode_error").Inc()
		r.logger.Warn("Dropping undecodable event", zap.Error(err))
		return
	}
	r.hub.Deliver(event)
}

// KafkaRelay forwards events from the marketplace events topic into the local hub
type KafkaRelay struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewKafkaRelay creates a new Kafka relay
func NewKafkaRelay(consumer *broker.Consumer, hub Deliverer) *KafkaRelay {
	eventHandler := broker.NewEventHandler(func(_ context.Context, event *models.Event) error {
		hub.Deliver(event)
		return nil
	})

	return &KafkaRelay{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start relays until ctx is cancelled
func (k *KafkaRelay) Start(ctx context.Context) error {
	util.GetLogger().Info("Starting Kafka relay")
	return k.consumer.StartConsuming(ctx, k.handle)
}

func (k *KafkaRelay) handle(ctx context.Context, msg kafka.Message) error {
	if err := k.eventHandler.HandleMessage(ctx, msg); err != nil {
		util.NotificationsDropped.WithLabelValues("decode_error").Inc()
		return err
	}
	return nil
}

// Stop stops the relay
func (k *KafkaRelay) Stop() error {
	util.GetLogger().Info("Stopping Kafka relay")
	return k.consumer.Close()
}
