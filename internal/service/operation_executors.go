package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

type organizationMutator interface {
	RenameDepartment(ctx context.Context, organization, oldName, newName string) error
	DeleteDepartment(ctx context.Context, organization, name string) error
	RenamePosition(ctx context.Context, organization, department, oldPosition, newPosition string) error
	DeletePosition(ctx context.Context, organization, department, position string) error
}

// OperationExecutor applies one fully-approved operation to the
// organization aggregate. Executors run exactly once, invoked by the
// approver whose state-keyed update won the final stage.
type OperationExecutor interface {
	Execute(ctx context.Context, operation *models.Operation) error
}

// ExecutorFunc adapts plain functions to OperationExecutor.
type ExecutorFunc func(ctx context.Context, operation *models.Operation) error

// Execute implements OperationExecutor.
func (f ExecutorFunc) Execute(ctx context.Context, operation *models.Operation) error {
	return f(ctx, operation)
}

type departmentFilter struct {
	Department string `json:"department"`
}

type positionFilter struct {
	Department string `json:"department"`
	Position   string `json:"position"`
}

type renamePayload struct {
	NewName string `json:"newName"`
}

// NewOperationExecutors binds each approval key to its mutation against
// the organization store.
func NewOperationExecutors(organizations organizationMutator) map[string]OperationExecutor {
	return map[string]OperationExecutor{
		models.ApprovalKeyUpdateDepartment: ExecutorFunc(func(ctx context.Context, operation *models.Operation) error {
			var filter departmentFilter
			if err := json.Unmarshal(operation.Filter, &filter); err != nil {
				return fmt.Errorf("decode department filter: %w", err)
			}
			var payload renamePayload
			if err := json.Unmarshal(operation.Payload, &payload); err != nil {
				return fmt.Errorf("decode rename payload: %w", err)
			}
			if filter.Department == "" || payload.NewName == "" {
				return fmt.Errorf("rename department requires a target and a new name")
			}
			return organizations.RenameDepartment(ctx, operation.OrganizationName, filter.Department, payload.NewName)
		}),
		models.ApprovalKeyDeleteDepartment: ExecutorFunc(func(ctx context.Context, operation *models.Operation) error {
			var filter departmentFilter
			if err := json.Unmarshal(operation.Filter, &filter); err != nil {
				return fmt.Errorf("decode department filter: %w", err)
			}
			if filter.Department == "" {
				return fmt.Errorf("delete department requires a target")
			}
			return organizations.DeleteDepartment(ctx, operation.OrganizationName, filter.Department)
		}),
		models.ApprovalKeyUpdatePosition: ExecutorFunc(func(ctx context.Context, operation *models.Operation) error {
			var filter positionFilter
			if err := json.Unmarshal(operation.Filter, &filter); err != nil {
				return fmt.Errorf("decode position filter: %w", err)
			}
			var payload renamePayload
			if err := json.Unmarshal(operation.Payload, &payload); err != nil {
				return fmt.Errorf("decode rename payload: %w", err)
			}
			if filter.Department == "" || filter.Position == "" || payload.NewName == "" {
				return fmt.Errorf("rename position requires a target and a new name")
			}
			return organizations.RenamePosition(ctx, operation.OrganizationName, filter.Department, filter.Position, payload.NewName)
		}),
		models.ApprovalKeyDeletePosition: ExecutorFunc(func(ctx context.Context, operation *models.Operation) error {
			var filter positionFilter
			if err := json.Unmarshal(operation.Filter, &filter); err != nil {
				return fmt.Errorf("decode position filter: %w", err)
			}
			if filter.Department == "" || filter.Position == "" {
				return fmt.Errorf("delete position requires a target")
			}
			return organizations.DeletePosition(ctx, operation.OrganizationName, filter.Department, filter.Position)
		}),
	}
}
