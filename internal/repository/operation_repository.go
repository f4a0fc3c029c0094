package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

const operationColumns = `id, requester_id, organization_name, kind, entity, filter, approval_key, payload, status,
       stage1_approver, stage1_decision, stage1_decided_at,
       stage2_approver, stage2_decision, stage2_decided_at, created_at`

// OperationRepository persists approval-gated operations.
type OperationRepository struct {
	db *sqlx.DB
}

// NewOperationRepository constructs the repository.
func NewOperationRepository(db *sqlx.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

// Create inserts a new operation row in its initial state.
func (r *OperationRepository) Create(ctx context.Context, operation *models.Operation) error {
	if operation.ID == "" {
		operation.ID = uuid.NewString()
	}
	if operation.Status == "" {
		operation.Status = models.OperationStatusAwaitingStage1
	}
	if operation.CreatedAt.IsZero() {
		operation.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO operations
	(id, requester_id, organization_name, kind, entity, filter, approval_key, payload, status, created_at)
	VALUES (:id, :requester_id, :organization_name, :kind, :entity, :filter, :approval_key, :payload, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, operation); err != nil {
		return fmt.Errorf("create operation: %w", err)
	}
	return nil
}

// GetByID fetches an operation by identifier.
func (r *OperationRepository) GetByID(ctx context.Context, id string) (*models.Operation, error) {
	query := fmt.Sprintf(`SELECT %s FROM operations WHERE id = $1`, operationColumns)
	var operation models.Operation
	if err := r.db.GetContext(ctx, &operation, query, id); err != nil {
		return nil, err
	}
	return &operation, nil
}

// List returns operations matching the filter, newest first.
func (r *OperationRepository) List(ctx context.Context, filter models.OperationFilter) ([]models.Operation, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM operations`, operationColumns))

	conditions := make([]string, 0, 4)
	if filter.OrganizationName != "" {
		args = append(args, filter.OrganizationName)
		conditions = append(conditions, fmt.Sprintf("organization_name = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	if filter.ApprovalKey != "" {
		args = append(args, filter.ApprovalKey)
		conditions = append(conditions, fmt.Sprintf("approval_key = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var operations []models.Operation
	if err := r.db.SelectContext(ctx, &operations, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return operations, nil
}

// RecordStage1 writes the stage-1 decision keyed on the current state so
// that concurrent decisions cannot both win. Zero rows affected maps to
// sql.ErrNoRows; the caller re-reads to classify the conflict.
func (r *OperationRepository) RecordStage1(ctx context.Context, params models.StageDecision) error {
	const query = `UPDATE operations
	SET stage1_approver = $1, stage1_decision = $2, stage1_decided_at = $3, status = $4
	WHERE id = $5 AND status = $6 AND stage1_decision IS NULL`
	return r.execStageUpdate(ctx, query,
		params.ApproverID, params.Decision, params.DecidedAt, params.NewStatus,
		params.ID, models.OperationStatusAwaitingStage1)
}

// RecordStage2 writes the stage-2 decision under the same state-keyed guard.
func (r *OperationRepository) RecordStage2(ctx context.Context, params models.StageDecision) error {
	const query = `UPDATE operations
	SET stage2_approver = $1, stage2_decision = $2, stage2_decided_at = $3, status = $4
	WHERE id = $5 AND status = $6 AND stage2_decision IS NULL`
	return r.execStageUpdate(ctx, query,
		params.ApproverID, params.Decision, params.DecidedAt, params.NewStatus,
		params.ID, models.OperationStatusAwaitingStage2)
}

func (r *OperationRepository) execStageUpdate(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("record stage decision: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check stage decision rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
