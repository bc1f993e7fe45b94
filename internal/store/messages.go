package store

import (
	"context"
	"fmt"
	"time"

	"marketplace-service/internal/models"
)

const messageColumns = "id, sender_id, recipient_id, body, created_at, read_at"

// CreateMessage inserts a message. CreatedAt must be set by the caller.
func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := s.db.Rebind(`
		INSERT INTO messages (sender_id, recipient_id, body, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	return s.db.GetContext(ctx, &msg.ID, query, msg.SenderID, msg.RecipientID, msg.Body, msg.CreatedAt)
}

// ListMessagesBetween retrieves the messages exchanged by two users in either
// direction, in chronological order
func (s *Store) ListMessagesBetween(ctx context.Context, userID1, userID2 int64) ([]models.Message, error) {
	messages := []models.Message{}
	err := s.db.SelectContext(ctx, &messages, s.db.Rebind(`
		SELECT `+messageColumns+` FROM messages
		WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
		ORDER BY created_at ASC, id ASC`),
		userID1, userID2, userID2, userID1)
	return messages, err
}

// ListMessagesForUser retrieves every message the user sent or received, in chronological order
func (s *Store) ListMessagesForUser(ctx context.Context, userID int64) ([]models.Message, error) {
	messages := []models.Message{}
	err := s.db.SelectContext(ctx, &messages, s.db.Rebind(`
		SELECT `+messageColumns+` FROM messages
		WHERE sender_id = ? OR recipient_id = ?
		ORDER BY created_at ASC, id ASC`),
		userID, userID)
	return messages, err
}

// MarkMessagesRead sets the read marker on unread messages from sender to
// recipient with id up to and including maxID. It returns the number of rows marked.
func (s *Store) MarkMessagesRead(ctx context.Context, recipientID, senderID, maxID int64, readAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE messages SET read_at = ?
		WHERE recipient_id = ? AND sender_id = ? AND id <= ? AND read_at IS NULL`),
		readAt, recipientID, senderID, maxID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return res.RowsAffected()
}
