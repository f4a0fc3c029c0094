package models

import (
	"encoding/json"
	"time"
)

// OperationStatus captures workflow states for approval-gated mutations.
type OperationStatus string

const (
	OperationStatusAwaitingStage1 OperationStatus = "AWAITING_STAGE1"
	OperationStatusAwaitingStage2 OperationStatus = "AWAITING_STAGE2"
	OperationStatusExecuted       OperationStatus = "EXECUTED"
	OperationStatusRejected       OperationStatus = "REJECTED"
)

// ApprovalDecision is a single stage outcome.
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "APPROVED"
	DecisionRejected ApprovalDecision = "REJECTED"
)

// OperationKind enumerates supported mutation verbs.
type OperationKind string

const (
	OperationKindUpdate OperationKind = "UPDATE"
	OperationKindDelete OperationKind = "DELETE"
)

// OperationEntity enumerates mutation targets.
type OperationEntity string

const (
	OperationEntityDepartment OperationEntity = "DEPARTMENT"
	OperationEntityPosition   OperationEntity = "POSITION"
)

// Operation is one pending administrative mutation gated by a two-stage
// approval chain. Filter identifies the target; Payload is opaque to the
// workflow and interpreted only by the matching executor.
type Operation struct {
	ID               string          `db:"id" json:"id"`
	RequesterID      string          `db:"requester_id" json:"requesterId"`
	OrganizationName string          `db:"organization_name" json:"organizationName"`
	Kind             OperationKind   `db:"kind" json:"kind"`
	Entity           OperationEntity `db:"entity" json:"entity"`
	Filter           json.RawMessage `db:"filter" json:"filter"`
	ApprovalKey      string          `db:"approval_key" json:"approvalKey"`
	Payload          json.RawMessage `db:"payload" json:"payload,omitempty"`
	Status           OperationStatus `db:"status" json:"status"`

	Stage1Approver  *string           `db:"stage1_approver" json:"stage1Approver,omitempty"`
	Stage1Decision  *ApprovalDecision `db:"stage1_decision" json:"stage1Decision,omitempty"`
	Stage1DecidedAt *time.Time        `db:"stage1_decided_at" json:"stage1DecidedAt,omitempty"`

	Stage2Approver  *string           `db:"stage2_approver" json:"stage2Approver,omitempty"`
	Stage2Decision  *ApprovalDecision `db:"stage2_decision" json:"stage2Decision,omitempty"`
	Stage2DecidedAt *time.Time        `db:"stage2_decided_at" json:"stage2DecidedAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Stage1Approved reports whether stage 1 is recorded as approved.
func (o *Operation) Stage1Approved() bool {
	return o.Stage1Decision != nil && *o.Stage1Decision == DecisionApproved
}

// StageDecision groups the columns written by one stage decision.
type StageDecision struct {
	ID         string
	ApproverID string
	Decision   ApprovalDecision
	DecidedAt  time.Time
	NewStatus  OperationStatus
}

// OperationFilter constrains operation listing queries.
type OperationFilter struct {
	OrganizationName string
	Status           []OperationStatus
	RequesterID      string
	ApprovalKey      string
	Limit            int
	Offset           int
}
