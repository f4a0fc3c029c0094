package dto

import (
	"encoding/json"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

// CreateOperationRequest submits an administrative mutation for approval.
type CreateOperationRequest struct {
	Kind        string          `json:"kind" validate:"required"`
	Entity      string          `json:"entity" validate:"required"`
	Filter      json.RawMessage `json:"filter" validate:"required"`
	ApprovalKey string          `json:"approvalKey" validate:"required"`
	Payload     json.RawMessage `json:"payload"`
}

// DecideStageRequest records one approver decision.
type DecideStageRequest struct {
	Decision models.ApprovalDecision `json:"decision" validate:"required"`
}

// OperationQuery filters operation listings.
type OperationQuery struct {
	Status      []models.OperationStatus
	ApprovalKey string
	Page        int
	PageSize    int
}
