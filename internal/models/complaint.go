package models

import "time"

// ComplaintStatus is the independent complaint lifecycle.
type ComplaintStatus string

const (
	ComplaintStatusOpen   ComplaintStatus = "OPEN"
	ComplaintStatusClosed ComplaintStatus = "CLOSED"
)

// Complaint is raised from an alert by explicit user action and lives
// outside the alert state machine, referencing the alert by id.
type Complaint struct {
	ID                 string          `db:"id" json:"id"`
	SequenceNumber     int64           `db:"sequence_number" json:"sequenceNumber"`
	AlertID            string          `db:"alert_id" json:"alertId"`
	SenderID           string          `db:"sender_id" json:"senderId"`
	SenderName         string          `db:"sender_name" json:"senderName"`
	SenderDepartment   string          `db:"sender_department" json:"senderDepartment"`
	ReceiverID         string          `db:"receiver_id" json:"receiverId"`
	ReceiverName       string          `db:"receiver_name" json:"receiverName"`
	ReceiverDepartment string          `db:"receiver_department" json:"receiverDepartment"`
	Status             ComplaintStatus `db:"status" json:"status"`
	Description        string          `db:"description" json:"description"`
	ClosedBy           *string         `db:"closed_by" json:"closedBy,omitempty"`
	ClosedAt           *time.Time      `db:"closed_at" json:"closedAt,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
}

// ComplaintFilter constrains complaint listing queries.
type ComplaintFilter struct {
	SequenceNumber int64
	Department     string
	Status         ComplaintStatus
	PartyID        string
	Limit          int
	Offset         int
}
