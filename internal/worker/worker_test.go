package worker

import (
	"context"
	"encoding/json"
	"testing"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	events []*models.Event
}

func (h *recordingHub) Deliver(event *models.Event) int {
	h.events = append(h.events, event)
	return 1
}

func envelope(t *testing.T) []byte {
	ev := models.NewMessageEvent(&models.Message{ID: 8, SenderID: 1, RecipientID: 2, Body: "hello"}).AddressedTo(2)
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

func TestRedisRelayDeliversDecodedEvents(t *testing.T) {
	hub := &recordingHub{}
	relay := NewRedisRelay(nil, "notify", hub)

	relay.relay(envelope(t))
	relay.relay([]byte("not json"))
	relay.relay([]byte(`{"eventType":"message:new","userId":2}`))

	require.Len(t, hub.events, 1)
	assert.Equal(t, int64(2), hub.events[0].UserID)
	assert.Equal(t, int64(8), hub.events[0].Message.ID)
}

func TestKafkaRelayHandlesMessages(t *testing.T) {
	hub := &recordingHub{}
	relay := &KafkaRelay{eventHandler: broker.NewEventHandler(func(_ context.Context, ev *models.Event) error {
		hub.Deliver(ev)
		return nil
	})}

	require.NoError(t, relay.handle(context.Background(), kafka.Message{Value: envelope(t)}))
	assert.Error(t, relay.handle(context.Background(), kafka.Message{Value: []byte(`{"eventType":"unknown"}`)}))

	require.Len(t, hub.events, 1)
	assert.Equal(t, models.EventTypeMessageNew, hub.events[0].EventType)
}
