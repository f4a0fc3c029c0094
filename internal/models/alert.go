package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// IssueSeverity classifies a threshold violation.
type IssueSeverity string

const (
	SeverityNormal   IssueSeverity = "NORMAL"
	SeverityCritical IssueSeverity = "CRITICAL"
)

// Issue is one threshold violation found in a single sensor reading.
type Issue struct {
	Port        string        `json:"port"`
	Value       float64       `json:"value"`
	Severity    IssueSeverity `json:"severity"`
	Description string        `json:"description"`
}

// IssueList stores issues as a JSONB column.
type IssueList []Issue

// Value implements driver.Valuer.
func (l IssueList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *IssueList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported issue list source %T", src)
	}
}

// AlertStatus captures the well-alert workflow state.
type AlertStatus string

const (
	AlertStatusPending           AlertStatus = "PENDING"
	AlertStatusEmployeeApproved  AlertStatus = "EMPLOYEE_APPROVED"
	AlertStatusManagerApproved   AlertStatus = "MANAGER_APPROVED"
	AlertStatusClosed            AlertStatus = "CLOSED"
	AlertStatusClosedWithComment AlertStatus = "CLOSED_WITH_COMMENT"
)

// AlertRecord is a persisted well alert gated by the employee → manager →
// owner approval chain. The three approved flags are ordered: manager may
// only be true when employee is, owner only when manager is. ComplaintID is
// an annotation and never changes the primary status.
type AlertRecord struct {
	ID               string      `db:"id" json:"id"`
	SequenceNumber   int64       `db:"sequence_number" json:"sequenceNumber"`
	OrganizationName string      `db:"organization_name" json:"organizationName"`
	NodeID           string      `db:"node_id" json:"nodeId"`
	WellNumber       string      `db:"well_number" json:"wellNumber"`
	Location         string      `db:"location" json:"location"`
	Installation     string      `db:"installation" json:"installation"`
	WellType         string      `db:"well_type" json:"wellType"`
	Issues           IssueList   `db:"issues" json:"issues"`
	Status           AlertStatus `db:"status" json:"status"`

	EmployeeApproved bool    `db:"employee_approved" json:"employeeApproved"`
	EmployeeNote     *string `db:"employee_note" json:"employeeNote,omitempty"`
	ManagerApproved  bool    `db:"manager_approved" json:"managerApproved"`
	ManagerNote      *string `db:"manager_note" json:"managerNote,omitempty"`
	OwnerApproved    bool    `db:"owner_approved" json:"ownerApproved"`
	OwnerNote        *string `db:"owner_note" json:"ownerNote,omitempty"`

	CommentBy      *string `db:"comment_by" json:"commentBy,omitempty"`
	CommentMessage *string `db:"comment_message" json:"commentMessage,omitempty"`
	ComplaintID    *string `db:"complaint_id" json:"complaintId,omitempty"`

	Viewed    bool      `db:"viewed" json:"viewed"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// AlertFilter constrains alert listing queries.
type AlertFilter struct {
	OrganizationName string
	Status           AlertStatus
	WellNumber       string
	SequenceNumber   int64
	NodeID           string
	Limit            int
	Offset           int
}
