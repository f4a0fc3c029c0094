package models

import "time"

// Inbox action kinds linking a message back to a workflow entity.
const (
	InboxActionOperation = "OPERATION"
	InboxActionAlert     = "ALERT"
)

// InboxMessage is a write-once notification delivered to one recipient.
type InboxMessage struct {
	ID          string    `db:"id" json:"id"`
	RecipientID string    `db:"recipient_id" json:"recipientId"`
	Subject     string    `db:"subject" json:"subject"`
	Content     string    `db:"content" json:"content"`
	ActionKind  *string   `db:"action_kind" json:"actionKind,omitempty"`
	ActionRef   *string   `db:"action_ref" json:"actionRef,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
