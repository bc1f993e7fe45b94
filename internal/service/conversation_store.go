package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/notify"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ConversationStore owns direct messages and derives conversation summaries from them
type ConversationStore struct {
	messages MessageRepository
	users    IdentityLookup
	notifier notify.Notifier
	now      func() time.Time
	logger   *zap.Logger
}

// NewConversationStore creates a new conversation store. A nil notifier discards events.
func NewConversationStore(messages MessageRepository, users IdentityLookup, notifier notify.Notifier) *ConversationStore {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &ConversationStore{
		messages: messages,
		users:    users,
		notifier: notifier,
		now:      utcNow,
		logger:   util.GetLogger(),
	}
}

// SendMessageInput represents a request to send a message
type SendMessageInput struct {
	SenderID    int64  `json:"senderId" binding:"required"`
	RecipientID int64  `json:"recipientId" binding:"required"`
	Body        string `json:"body"`
}

// Send persists a message and notifies the recipient. The sender is not
// notified; it gets the message back from this call.
func (c *ConversationStore) Send(ctx context.Context, in SendMessageInput) (msg *models.Message, err error) {
	ctx, span := util.StartSpan(ctx, "ConversationStore.Send",
		attribute.Int64("sender_id", in.SenderID),
		attribute.Int64("recipient_id", in.RecipientID))
	defer func() { util.EndSpan(span, err) }()

	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, ValidationError("message body must not be empty")
	}
	if in.SenderID == in.RecipientID {
		return nil, ValidationError("user %d cannot message themselves", in.SenderID)
	}

	for _, id := range []int64{in.SenderID, in.RecipientID} {
		if _, err := c.users.GetUserByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, NotFoundError("user %d not found", id)
			}
			return nil, fmt.Errorf("failed to load user %d: %w", id, err)
		}
	}

	msg = &models.Message{
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Body:        body,
		CreatedAt:   c.now(),
	}
	if err := c.messages.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	util.MessagesSentTotal.Inc()
	c.logger.Info("Message sent",
		zap.Int64("message_id", msg.ID),
		zap.Int64("sender_id", msg.SenderID),
		zap.Int64("recipient_id", msg.RecipientID))

	c.notifier.Notify(ctx, msg.RecipientID, models.NewMessageEvent(msg))
	return msg, nil
}

// History returns the messages between userID and counterpartID in
// chronological order. Fetched messages addressed to userID are marked read.
func (c *ConversationStore) History(ctx context.Context, userID, counterpartID int64) ([]models.Message, error) {
	ctx, span := util.StartSpan(ctx, "ConversationStore.History",
		attribute.Int64("user_id", userID),
		attribute.Int64("counterpart_id", counterpartID))
	defer span.End()

	messages, err := c.messages.ListMessagesBetween(ctx, userID, counterpartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var maxUnread int64
	for _, m := range messages {
		if m.RecipientID == userID && m.ReadAt == nil && m.ID > maxUnread {
			maxUnread = m.ID
		}
	}
	if maxUnread == 0 {
		return messages, nil
	}

	readAt := c.now()
	marked, err := c.messages.MarkMessagesRead(ctx, userID, counterpartID, maxUnread, readAt)
	if err != nil {
		// the history itself is still valid
		c.logger.Error("Failed to mark messages read",
			zap.Int64("user_id", userID),
			zap.Int64("counterpart_id", counterpartID),
			zap.Error(err))
		return messages, nil
	}
	util.MessagesMarkedReadTotal.Add(float64(marked))

	for i := range messages {
		if messages[i].RecipientID == userID && messages[i].ReadAt == nil {
			messages[i].ReadAt = &readAt
		}
	}
	return messages, nil
}

// ConversationsFor returns one summary per counterpart of userID, most recently active first
func (c *ConversationStore) ConversationsFor(ctx context.Context, userID int64) ([]models.Conversation, error) {
	ctx, span := util.StartSpan(ctx, "ConversationStore.ConversationsFor", attribute.Int64("user_id", userID))
	defer span.End()

	messages, err := c.messages.ListMessagesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return BuildConversations(userID, messages), nil
}

// BuildConversations groups the messages touching userID by counterpart. Each
// summary carries the latest message and the number of messages to userID
// without a read marker. Summaries are ordered by last activity, newest first.
func BuildConversations(userID int64, messages []models.Message) []models.Conversation {
	type group struct {
		last   models.Message
		unread int
	}

	groups := make(map[int64]*group)
	for _, m := range messages {
		var counterpart int64
		switch userID {
		case m.SenderID:
			counterpart = m.RecipientID
		case m.RecipientID:
			counterpart = m.SenderID
		default:
			continue
		}

		g, ok := groups[counterpart]
		if !ok {
			g = &group{last: m}
			groups[counterpart] = g
		} else if later(m, g.last) {
			g.last = m
		}
		if m.RecipientID == userID && m.ReadAt == nil {
			g.unread++
		}
	}

	type row struct {
		conv   models.Conversation
		lastID int64
	}
	rows := make([]row, 0, len(groups))
	for counterpart, g := range groups {
		rows = append(rows, row{
			conv: models.Conversation{
				CounterpartID: counterpart,
				LastMessage:   g.last.Body,
				LastMessageAt: g.last.CreatedAt,
				UnreadCount:   g.unread,
			},
			lastID: g.last.ID,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].conv.LastMessageAt.Equal(rows[j].conv.LastMessageAt) {
			return rows[i].conv.LastMessageAt.After(rows[j].conv.LastMessageAt)
		}
		return rows[i].lastID > rows[j].lastID
	})

	conversations := make([]models.Conversation, len(rows))
	for i, r := range rows {
		conversations[i] = r.conv
	}
	return conversations
}

func later(a, b models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
