package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

// InboxRepository persists write-once user notifications.
type InboxRepository struct {
	db *sqlx.DB
}

// NewInboxRepository constructs the repository.
func NewInboxRepository(db *sqlx.DB) *InboxRepository {
	return &InboxRepository{db: db}
}

// Create inserts one message.
func (r *InboxRepository) Create(ctx context.Context, message *models.InboxMessage) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO inbox_messages (id, recipient_id, subject, content, action_kind, action_ref, created_at)
	VALUES (:id, :recipient_id, :subject, :content, :action_kind, :action_ref, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create inbox message: %w", err)
	}
	return nil
}

// ListForRecipient returns a user's messages, newest first.
func (r *InboxRepository) ListForRecipient(ctx context.Context, recipientID string) ([]models.InboxMessage, error) {
	const query = `SELECT id, recipient_id, subject, content, action_kind, action_ref, created_at
	FROM inbox_messages WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT 200`
	var messages []models.InboxMessage
	if err := r.db.SelectContext(ctx, &messages, query, recipientID); err != nil {
		return nil, fmt.Errorf("list inbox messages: %w", err)
	}
	return messages, nil
}

// GetForRecipient fetches one message scoped to its recipient.
func (r *InboxRepository) GetForRecipient(ctx context.Context, id, recipientID string) (*models.InboxMessage, error) {
	const query = `SELECT id, recipient_id, subject, content, action_kind, action_ref, created_at
	FROM inbox_messages WHERE id = $1 AND recipient_id = $2`
	var message models.InboxMessage
	if err := r.db.GetContext(ctx, &message, query, id, recipientID); err != nil {
		return nil, err
	}
	return &message, nil
}
