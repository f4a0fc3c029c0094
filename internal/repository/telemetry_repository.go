package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

// TelemetryRepository stores raw device readings.
type TelemetryRepository struct {
	db *sqlx.DB
}

// NewTelemetryRepository constructs the repository.
func NewTelemetryRepository(db *sqlx.DB) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

// Insert stores one raw payload.
func (r *TelemetryRepository) Insert(ctx context.Context, reading *models.TelemetryReading) error {
	if reading.ID == "" {
		reading.ID = uuid.NewString()
	}
	if reading.CreatedAt.IsZero() {
		reading.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO telemetry_readings (id, node_id, organization_name, data, created_at)
	VALUES (:id, :node_id, :organization_name, :data, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reading); err != nil {
		return fmt.Errorf("insert telemetry reading: %w", err)
	}
	return nil
}

// LatestForNode returns the newest reading for one node, or nil when the
// node has never reported.
func (r *TelemetryRepository) LatestForNode(ctx context.Context, nodeID string) (*models.TelemetryReading, error) {
	const query = `SELECT id, node_id, organization_name, data, created_at
	FROM telemetry_readings WHERE node_id = $1 ORDER BY created_at DESC LIMIT 1`
	var reading models.TelemetryReading
	if err := r.db.GetContext(ctx, &reading, query, nodeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest reading for node: %w", err)
	}
	return &reading, nil
}

// LatestPerNode returns the newest reading per node for an organization.
func (r *TelemetryRepository) LatestPerNode(ctx context.Context, organization string) ([]models.TelemetryReading, error) {
	const query = `SELECT DISTINCT ON (node_id) id, node_id, organization_name, data, created_at
	FROM telemetry_readings WHERE organization_name = $1
	ORDER BY node_id, created_at DESC`
	var readings []models.TelemetryReading
	if err := r.db.SelectContext(ctx, &readings, query, organization); err != nil {
		return nil, fmt.Errorf("latest readings per node: %w", err)
	}
	return readings, nil
}
