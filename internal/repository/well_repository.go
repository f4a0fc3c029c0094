package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

const wellColumns = `id, organization_name, well_number, node_id, location, installation, well_type, flowing, parameters, created_at`

// WellRepository reads monitored well configuration.
type WellRepository struct {
	db *sqlx.DB
}

// NewWellRepository constructs the repository.
func NewWellRepository(db *sqlx.DB) *WellRepository {
	return &WellRepository{db: db}
}

// FindByNodeID resolves the well bound to a telemetry node.
func (r *WellRepository) FindByNodeID(ctx context.Context, nodeID string) (*models.Well, error) {
	query := fmt.Sprintf(`SELECT %s FROM wells WHERE node_id = $1`, wellColumns)
	var well models.Well
	if err := r.db.GetContext(ctx, &well, query, nodeID); err != nil {
		return nil, err
	}
	return &well, nil
}

// ListByOrganization returns the wells of one organization.
func (r *WellRepository) ListByOrganization(ctx context.Context, organization string) ([]models.Well, error) {
	query := fmt.Sprintf(`SELECT %s FROM wells WHERE organization_name = $1 ORDER BY well_number`, wellColumns)
	var wells []models.Well
	if err := r.db.SelectContext(ctx, &wells, query, organization); err != nil {
		return nil, fmt.Errorf("list wells: %w", err)
	}
	return wells, nil
}
