package notify

import (
	"context"
	"sync"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionBuffer is the per-session queue length used when none is configured
const DefaultSessionBuffer = 16

// Session is one live connection of a user
type Session struct {
	ID     string
	UserID int64

	events chan *models.Event
	once   sync.Once
}

// Events yields events addressed to the session's user. It is closed on Unsubscribe.
func (s *Session) Events() <-chan *models.Event {
	return s.events
}

func (s *Session) close() {
	s.once.Do(func() { close(s.events) })
}

// Hub tracks the sessions connected to this instance, many per user
type Hub struct {
	mu       sync.RWMutex
	sessions map[int64]map[string]*Session
	buffer   int
	logger   *zap.Logger
}

// NewHub creates an empty hub. buffer is the per-session queue length.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSessionBuffer
	}
	return &Hub{
		sessions: make(map[int64]map[string]*Session),
		buffer:   buffer,
		logger:   util.GetLogger(),
	}
}

// Subscribe registers a new session for userID
func (h *Hub) Subscribe(userID int64) *Session {
	s := &Session{
		ID:     uuid.New().String(),
		UserID: userID,
		events: make(chan *models.Event, h.buffer),
	}

	h.mu.Lock()
	byID, ok := h.sessions[userID]
	if !ok {
		byID = make(map[string]*Session)
		h.sessions[userID] = byID
	}
	byID[s.ID] = s
	h.mu.Unlock()

	util.ActiveSessions.Inc()
	h.logger.Debug("Session subscribed", zap.Int64("user_id", userID), zap.String("session_id", s.ID))
	return s
}

// Unsubscribe removes the session and closes its event channel. Safe to call twice.
func (h *Hub) Unsubscribe(s *Session) {
	h.mu.Lock()
	byID, ok := h.sessions[s.UserID]
	_, present := byID[s.ID]
	if ok && present {
		delete(byID, s.ID)
		if len(byID) == 0 {
			delete(h.sessions, s.UserID)
		}
	}
	h.mu.Unlock()

	if present {
		util.ActiveSessions.Dec()
		h.logger.Debug("Session unsubscribed", zap.Int64("user_id", s.UserID), zap.String("session_id", s.ID))
	}
	s.close()
}

// CloseAll ends every session, closing their event channels. Used on shutdown
// so open streams return instead of holding the server open.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var closed []*Session
	for userID, byID := range h.sessions {
		for _, s := range byID {
			closed = append(closed, s)
		}
		delete(h.sessions, userID)
	}
	h.mu.Unlock()

	for _, s := range closed {
		util.ActiveSessions.Dec()
		s.close()
	}
	h.logger.Info("Closed all sessions", zap.Int("count", len(closed)))
}

// SessionCount returns the number of live sessions for userID
func (h *Hub) SessionCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Deliver fans the event out to every session of event.UserID and returns how
// many sessions accepted it. Sessions with a full queue miss the event.
func (h *Hub) Deliver(event *models.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	byID := h.sessions[event.UserID]
	if len(byID) == 0 {
		util.NotificationsDropped.WithLabelValues("no_session").Inc()
		return 0
	}

	delivered := 0
	for _, s := range byID {
		select {
		case s.events <- event:
			delivered++
		default:
			util.NotificationsDropped.WithLabelValues("buffer_full").Inc()
			h.logger.Warn("Session queue full, dropping event",
				zap.Int64("user_id", event.UserID),
				zap.String("session_id", s.ID),
				zap.String("event_type", event.EventType))
		}
	}

	util.NotificationsDelivered.Add(float64(delivered))
	return delivered
}

// Notify delivers directly to the local sessions
func (h *Hub) Notify(_ context.Context, userID int64, event *models.Event) {
	h.Deliver(event.AddressedTo(userID))
}
