package models

import (
	"time"

	"github.com/lib/pq"
)

// Approval chain keys supported by the operation workflow.
const (
	ApprovalKeyUpdateDepartment = "UPDATE_DEPARTMENT"
	ApprovalKeyDeleteDepartment = "DELETE_DEPARTMENT"
	ApprovalKeyUpdatePosition   = "UPDATE_POSITION"
	ApprovalKeyDeletePosition   = "DELETE_POSITION"
)

// ApprovalCatalogEntry maps an approval key to its display name.
type ApprovalCatalogEntry struct {
	ApprovalKey  string `json:"approvalKey"`
	ApprovalName string `json:"approvalName"`
}

// ApprovalCatalog lists the operations that require chained approval.
var ApprovalCatalog = []ApprovalCatalogEntry{
	{ApprovalKey: ApprovalKeyUpdateDepartment, ApprovalName: "Update Department"},
	{ApprovalKey: ApprovalKeyDeleteDepartment, ApprovalName: "Delete Department"},
	{ApprovalKey: ApprovalKeyUpdatePosition, ApprovalName: "Update Position"},
	{ApprovalKey: ApprovalKeyDeletePosition, ApprovalName: "Delete Position"},
}

// StageRole is the department/level pair an approver must hold exactly.
type StageRole struct {
	Department string `json:"department"`
	Level      string `json:"level"`
}

// ApprovalChainConfig is the per-organization configuration for one approval
// key. Stage2 may be nil for single-stage chains.
type ApprovalChainConfig struct {
	OrganizationName string     `db:"organization_name" json:"organizationName"`
	ApprovalKey      string     `db:"approval_key" json:"approvalKey"`
	ApprovalName     string     `db:"approval_name" json:"approvalName"`
	Stage1           StageRole  `json:"stage1"`
	Stage2           *StageRole `json:"stage2,omitempty"`
}

// Department groups positions inside an organization.
type Department struct {
	ID               string         `db:"id" json:"id"`
	OrganizationName string         `db:"organization_name" json:"organizationName"`
	Name             string         `db:"name" json:"name"`
	Positions        pq.StringArray `db:"positions" json:"positions"`
}

// Organization is the aggregate owning departments and approval chains.
type Organization struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Address   string    `db:"address" json:"address"`
	City      string    `db:"city" json:"city"`
	Country   string    `db:"country" json:"country"`
	Phone     string    `db:"phone" json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
