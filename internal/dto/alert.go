package dto

import "github.com/noah-isme/rtms-ops-api/internal/models"

// AlertDecisionRequest carries one approval stage decision on an alert.
type AlertDecisionRequest struct {
	Description string `json:"description" validate:"required"`
}

// CloseAlertRequest closes a pending alert with an operator comment,
// bypassing the approval chain.
type CloseAlertRequest struct {
	Message string `json:"message" validate:"required"`
}

// ConvertComplaintRequest raises a complaint from an alert.
type ConvertComplaintRequest struct {
	ReceiverID  string `json:"receiverId" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// AlertQuery filters alert listings.
type AlertQuery struct {
	Status         models.AlertStatus
	WellNumber     string
	SequenceNumber int64
	Page           int
	PageSize       int
}

// ComplaintQuery filters complaint listings.
type ComplaintQuery struct {
	SequenceNumber int64
	Department     string
	Status         models.ComplaintStatus
	Page           int
	PageSize       int
}

// CloseComplaintRequest closes a complaint.
type CloseComplaintRequest struct {
	ComplaintID string `json:"complaintId" validate:"required"`
}
