package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

// OrganizationRepository reads the organization aggregate and applies the
// field-level edits performed by approved operations. Mutations lock the
// target department row so two approved operations on the same organization
// cannot lose updates.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository constructs the repository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// GetByName fetches an organization by its unique name.
func (r *OrganizationRepository) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	const query = `SELECT id, name, email, address, city, country, phone, created_at
	FROM organizations WHERE name = $1`
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, name); err != nil {
		return nil, err
	}
	return &org, nil
}

type approvalChainRow struct {
	OrganizationName string         `db:"organization_name"`
	ApprovalKey      string         `db:"approval_key"`
	ApprovalName     string         `db:"approval_name"`
	Stage1Department string         `db:"stage1_department"`
	Stage1Level      string         `db:"stage1_level"`
	Stage2Department sql.NullString `db:"stage2_department"`
	Stage2Level      sql.NullString `db:"stage2_level"`
}

// GetApprovalChain resolves the chain configuration for one approval key
// within an organization.
func (r *OrganizationRepository) GetApprovalChain(ctx context.Context, organization, approvalKey string) (*models.ApprovalChainConfig, error) {
	const query = `SELECT organization_name, approval_key, approval_name,
	       stage1_department, stage1_level, stage2_department, stage2_level
	FROM approval_chains WHERE organization_name = $1 AND approval_key = $2`
	var row approvalChainRow
	if err := r.db.GetContext(ctx, &row, query, organization, approvalKey); err != nil {
		return nil, err
	}
	config := &models.ApprovalChainConfig{
		OrganizationName: row.OrganizationName,
		ApprovalKey:      row.ApprovalKey,
		ApprovalName:     row.ApprovalName,
		Stage1: models.StageRole{
			Department: row.Stage1Department,
			Level:      row.Stage1Level,
		},
	}
	if row.Stage2Department.Valid {
		config.Stage2 = &models.StageRole{
			Department: row.Stage2Department.String,
			Level:      row.Stage2Level.String,
		}
	}
	return config, nil
}

// ListDepartments returns the departments of an organization.
func (r *OrganizationRepository) ListDepartments(ctx context.Context, organization string) ([]models.Department, error) {
	const query = `SELECT id, organization_name, name, positions
	FROM departments WHERE organization_name = $1 ORDER BY name`
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query, organization); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// RenameDepartment changes a department name inside one organization.
func (r *OrganizationRepository) RenameDepartment(ctx context.Context, organization, oldName, newName string) error {
	return r.withDepartment(ctx, organization, oldName, func(tx *sqlx.Tx, dept *models.Department) error {
		_, err := tx.ExecContext(ctx, `UPDATE departments SET name = $1 WHERE id = $2`, newName, dept.ID)
		return err
	})
}

// DeleteDepartment removes a department from an organization.
func (r *OrganizationRepository) DeleteDepartment(ctx context.Context, organization, name string) error {
	return r.withDepartment(ctx, organization, name, func(tx *sqlx.Tx, dept *models.Department) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, dept.ID)
		return err
	})
}

// RenamePosition replaces one position name within a department.
func (r *OrganizationRepository) RenamePosition(ctx context.Context, organization, department, oldPosition, newPosition string) error {
	return r.withDepartment(ctx, organization, department, func(tx *sqlx.Tx, dept *models.Department) error {
		index := indexOfPosition(dept.Positions, oldPosition)
		if index < 0 {
			return sql.ErrNoRows
		}
		positions := append(pq.StringArray(nil), dept.Positions...)
		positions[index] = newPosition
		_, err := tx.ExecContext(ctx, `UPDATE departments SET positions = $1 WHERE id = $2`, positions, dept.ID)
		return err
	})
}

// DeletePosition removes one position from a department.
func (r *OrganizationRepository) DeletePosition(ctx context.Context, organization, department, position string) error {
	return r.withDepartment(ctx, organization, department, func(tx *sqlx.Tx, dept *models.Department) error {
		index := indexOfPosition(dept.Positions, position)
		if index < 0 {
			return sql.ErrNoRows
		}
		positions := append(pq.StringArray(nil), dept.Positions[:index]...)
		positions = append(positions, dept.Positions[index+1:]...)
		_, err := tx.ExecContext(ctx, `UPDATE departments SET positions = $1 WHERE id = $2`, positions, dept.ID)
		return err
	})
}

// withDepartment runs fn inside a transaction holding a row lock on the
// department, serializing executor mutations per target.
func (r *OrganizationRepository) withDepartment(ctx context.Context, organization, name string, fn func(*sqlx.Tx, *models.Department) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin department tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `SELECT id, organization_name, name, positions
	FROM departments WHERE organization_name = $1 AND name = $2 FOR UPDATE`
	var dept models.Department
	if err := tx.GetContext(ctx, &dept, query, organization, name); err != nil {
		return err
	}
	if err := fn(tx, &dept); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit department tx: %w", err)
	}
	return nil
}

func indexOfPosition(positions pq.StringArray, name string) int {
	for i, position := range positions {
		if position == name {
			return i
		}
	}
	return -1
}
