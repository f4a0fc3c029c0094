package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

const userColumns = `id, email, username, password_hash, role, department, position, organization_name, active, created_at`

// UserRepository is the read-only user directory consumed by the workflow
// engine; onboarding lives elsewhere.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindApprovers returns active users holding exactly the given
// department/position pair inside an organization.
func (r *UserRepository) FindApprovers(ctx context.Context, organization, department, position string) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users
	WHERE organization_name = $1 AND department = $2 AND position = $3 AND active = true`, userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, organization, department, position); err != nil {
		return nil, fmt.Errorf("find approvers: %w", err)
	}
	return users, nil
}

// FindByRole returns active users holding a monitoring role in an
// organization.
func (r *UserRepository) FindByRole(ctx context.Context, organization string, role models.UserRole) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users
	WHERE organization_name = $1 AND role = $2 AND active = true`, userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, organization, role); err != nil {
		return nil, fmt.Errorf("find users by role: %w", err)
	}
	return users, nil
}
