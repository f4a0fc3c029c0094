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

const complaintColumns = `id, sequence_number, alert_id, sender_id, sender_name, sender_department,
       receiver_id, receiver_name, receiver_department, status, description, closed_by, closed_at, created_at`

// ComplaintRepository persists complaints raised from alerts.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository constructs the repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// Create inserts a complaint, numbering it from a database sequence.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	if complaint.Status == "" {
		complaint.Status = models.ComplaintStatusOpen
	}
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO complaints
	(id, sequence_number, alert_id, sender_id, sender_name, sender_department,
	 receiver_id, receiver_name, receiver_department, status, description, created_at)
	VALUES ($1, nextval('complaint_sequence'), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING sequence_number`
	row := r.db.QueryRowContext(ctx, query,
		complaint.ID, complaint.AlertID, complaint.SenderID, complaint.SenderName, complaint.SenderDepartment,
		complaint.ReceiverID, complaint.ReceiverName, complaint.ReceiverDepartment,
		complaint.Status, complaint.Description, complaint.CreatedAt)
	if err := row.Scan(&complaint.SequenceNumber); err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

// GetByID fetches a complaint by identifier.
func (r *ComplaintRepository) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	query := fmt.Sprintf(`SELECT %s FROM complaints WHERE id = $1`, complaintColumns)
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, query, id); err != nil {
		return nil, err
	}
	return &complaint, nil
}

// List returns complaints visible to a party (sender or receiver), newest
// first.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 5)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM complaints`, complaintColumns))

	conditions := make([]string, 0, 4)
	if filter.PartyID != "" {
		args = append(args, filter.PartyID)
		conditions = append(conditions, fmt.Sprintf("(sender_id = $%d OR receiver_id = $%d)", len(args), len(args)))
	}
	if filter.SequenceNumber > 0 {
		args = append(args, filter.SequenceNumber)
		conditions = append(conditions, fmt.Sprintf("sequence_number = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("(sender_department = $%d OR receiver_department = $%d)", len(args), len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
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

	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return complaints, nil
}

// Close marks an open complaint as closed; closing twice returns
// sql.ErrNoRows.
func (r *ComplaintRepository) Close(ctx context.Context, id, closedBy string, closedAt time.Time) error {
	const query = `UPDATE complaints SET status = $1, closed_by = $2, closed_at = $3
	WHERE id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query,
		models.ComplaintStatusClosed, closedBy, closedAt, id, models.ComplaintStatusOpen)
	if err != nil {
		return fmt.Errorf("close complaint: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check complaint close rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
