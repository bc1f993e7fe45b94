package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Event types pushed to connected sessions
const (
	EventTypeRequestCreated = "request:created"
	EventTypeRequestUpdated = "request:updated"
	EventTypeMessageNew     = "message:new"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is addressed to a single user and carries the entity as persisted
type Event struct {
	BaseEvent
	UserID  int64            `json:"userId"`
	Request *PurchaseRequest `json:"request,omitempty"`
	Message *Message         `json:"message,omitempty"`
}

// NewRequestEvent builds a request:created or request:updated event.
// The addressee is set when the event is handed to a notifier.
func NewRequestEvent(eventType string, req *PurchaseRequest) *Event {
	return &Event{
		BaseEvent: newBase(eventType),
		Request:   req,
	}
}

// NewMessageEvent builds a message:new event
func NewMessageEvent(msg *Message) *Event {
	return &Event{
		BaseEvent: newBase(EventTypeMessageNew),
		Message:   msg,
	}
}

// AddressedTo returns a copy of the event addressed to userID
func (e *Event) AddressedTo(userID int64) *Event {
	c := *e
	c.UserID = userID
	return &c
}

// Payload returns the entity the event carries
func (e *Event) Payload() interface{} {
	if e.Request != nil {
		return e.Request
	}
	if e.Message != nil {
		return e.Message
	}
	return nil
}

// EntityKey identifies the entity the event is about, used for partitioning
func (e *Event) EntityKey() string {
	switch {
	case e.Request != nil:
		return "request-" + strconv.FormatInt(e.Request.ID, 10)
	case e.Message != nil:
		return "message-" + strconv.FormatInt(e.Message.ID, 10)
	default:
		return e.EventID
	}
}

func newBase(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// DecodeEvent parses an event envelope and checks it carries the entity its type requires
func DecodeEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	switch event.EventType {
	case EventTypeRequestCreated, EventTypeRequestUpdated:
		if event.Request == nil {
			return nil, fmt.Errorf("event %s of type %s has no request", event.EventID, event.EventType)
		}
	case EventTypeMessageNew:
		if event.Message == nil {
			return nil, fmt.Errorf("event %s of type %s has no message", event.EventID, event.EventType)
		}
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.EventType)
	}

	return &event, nil
}
