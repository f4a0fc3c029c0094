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

const alertColumns = `id, sequence_number, organization_name, node_id, well_number, location, installation, well_type,
       issues, status, employee_approved, employee_note, manager_approved, manager_note,
       owner_approved, owner_note, comment_by, comment_message, complaint_id, viewed, created_at`

// AlertRepository persists well alert records.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository constructs the repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert. The sequence number comes from a database
// sequence so concurrent creations never collide.
func (r *AlertRepository) Create(ctx context.Context, alert *models.AlertRecord) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Status == "" {
		alert.Status = models.AlertStatusPending
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO alerts
	(id, sequence_number, organization_name, node_id, well_number, location, installation, well_type, issues, status, viewed, created_at)
	VALUES ($1, nextval('alert_sequence'), $2, $3, $4, $5, $6, $7, $8, $9, false, $10)
	RETURNING sequence_number`
	row := r.db.QueryRowContext(ctx, query,
		alert.ID, alert.OrganizationName, alert.NodeID, alert.WellNumber,
		alert.Location, alert.Installation, alert.WellType, alert.Issues, alert.Status, alert.CreatedAt)
	if err := row.Scan(&alert.SequenceNumber); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// GetByID fetches an alert by identifier.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*models.AlertRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM alerts WHERE id = $1`, alertColumns)
	var alert models.AlertRecord
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		return nil, err
	}
	return &alert, nil
}

// LastCreatedForNode returns the creation time of the newest alert for a
// node, or nil when the node has no alerts yet.
func (r *AlertRepository) LastCreatedForNode(ctx context.Context, nodeID string) (*time.Time, error) {
	const query = `SELECT created_at FROM alerts WHERE node_id = $1 ORDER BY created_at DESC LIMIT 1`
	var createdAt time.Time
	if err := r.db.GetContext(ctx, &createdAt, query, nodeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("last alert for node: %w", err)
	}
	return &createdAt, nil
}

// List returns alerts matching the filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter) ([]models.AlertRecord, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 5)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM alerts`, alertColumns))

	conditions := make([]string, 0, 4)
	if filter.OrganizationName != "" {
		args = append(args, filter.OrganizationName)
		conditions = append(conditions, fmt.Sprintf("organization_name = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.WellNumber != "" {
		args = append(args, filter.WellNumber)
		conditions = append(conditions, fmt.Sprintf("well_number = $%d", len(args)))
	}
	if filter.SequenceNumber > 0 {
		args = append(args, filter.SequenceNumber)
		conditions = append(conditions, fmt.Sprintf("sequence_number = $%d", len(args)))
	}
	if filter.NodeID != "" {
		args = append(args, filter.NodeID)
		conditions = append(conditions, fmt.Sprintf("node_id = $%d", len(args)))
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

	var alerts []models.AlertRecord
	if err := r.db.SelectContext(ctx, &alerts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// MarkViewed flags every unseen alert as viewed.
func (r *AlertRepository) MarkViewed(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE alerts SET viewed = true WHERE viewed = false`); err != nil {
		return fmt.Errorf("mark alerts viewed: %w", err)
	}
	return nil
}

// ApproveEmployee records the employee stage. The guard on the current flag
// makes the decision race-free; zero rows affected maps to sql.ErrNoRows.
func (r *AlertRepository) ApproveEmployee(ctx context.Context, id, note string) error {
	const query = `UPDATE alerts
	SET employee_approved = true, employee_note = $1, status = $2
	WHERE id = $3 AND status = $4 AND employee_approved = false`
	return r.execGuarded(ctx, query, note, models.AlertStatusEmployeeApproved, id, models.AlertStatusPending)
}

// ApproveManager records the manager stage; it only wins when the employee
// stage is already approved, so the ordering invariant holds at every
// observable point.
func (r *AlertRepository) ApproveManager(ctx context.Context, id, note string) error {
	const query = `UPDATE alerts
	SET employee_approved = true, manager_approved = true, manager_note = $1, status = $2
	WHERE id = $3 AND employee_approved = true AND manager_approved = false`
	return r.execGuarded(ctx, query, note, models.AlertStatusManagerApproved, id)
}

// ApproveOwner records the final stage and closes the alert.
func (r *AlertRepository) ApproveOwner(ctx context.Context, id, note string) error {
	const query = `UPDATE alerts
	SET employee_approved = true, manager_approved = true, owner_approved = true, owner_note = $1, status = $2
	WHERE id = $3 AND manager_approved = true AND owner_approved = false`
	return r.execGuarded(ctx, query, note, models.AlertStatusClosed, id)
}

// CloseWithComment closes a still-pending alert, bypassing the chain.
func (r *AlertRepository) CloseWithComment(ctx context.Context, id, actorID, message string) error {
	const query = `UPDATE alerts
	SET status = $1, comment_by = $2, comment_message = $3
	WHERE id = $4 AND status = $5`
	return r.execGuarded(ctx, query, models.AlertStatusClosedWithComment, actorID, message, id, models.AlertStatusPending)
}

// AnnotateComplaint attaches the complaint reference without touching the
// primary status.
func (r *AlertRepository) AnnotateComplaint(ctx context.Context, id, complaintID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE alerts SET complaint_id = $1 WHERE id = $2`, complaintID, id); err != nil {
		return fmt.Errorf("annotate alert complaint: %w", err)
	}
	return nil
}

func (r *AlertRepository) execGuarded(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check alert update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
