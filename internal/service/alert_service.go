package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/rtms-ops-api/internal/dto"
	"github.com/noah-isme/rtms-ops-api/internal/models"
	appErrors "github.com/noah-isme/rtms-ops-api/pkg/errors"
)

type alertStore interface {
	GetByID(ctx context.Context, id string) (*models.AlertRecord, error)
	List(ctx context.Context, filter models.AlertFilter) ([]models.AlertRecord, error)
	MarkViewed(ctx context.Context) error
	ApproveEmployee(ctx context.Context, id, note string) error
	ApproveManager(ctx context.Context, id, note string) error
	ApproveOwner(ctx context.Context, id, note string) error
	CloseWithComment(ctx context.Context, id, actorID, message string) error
	AnnotateComplaint(ctx context.Context, id, complaintID string) error
}

type complaintStore interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error)
	Close(ctx context.Context, id, closedBy string, closedAt time.Time) error
}

type alertUserDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type alertNotifier interface {
	NotifyAlertStage(ctx context.Context, alert *models.AlertRecord, role models.UserRole)
	NotifyComplaint(ctx context.Context, complaint *models.Complaint)
}

// AlertService runs the employee → manager → owner approval chain on well
// alerts and the complaint lifecycle hanging off them. Stage ordering is
// enforced by guarded updates on the approval flags, so the invariant
// holds at every observable point even under concurrent decisions.
type AlertService struct {
	alerts     alertStore
	complaints complaintStore
	users      alertUserDirectory
	notifier   alertNotifier
	metrics    approvalMetrics
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAlertService constructs the service. Notifier and metrics may be nil.
func NewAlertService(alerts alertStore, complaints complaintStore, users alertUserDirectory, notifier alertNotifier, metrics approvalMetrics, validate *validator.Validate, logger *zap.Logger) *AlertService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{
		alerts:     alerts,
		complaints: complaints,
		users:      users,
		notifier:   notifier,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// List returns the caller's organization alerts and flags them as viewed.
// The viewed flip is best-effort; a failed flip never hides alerts.
func (s *AlertService) List(ctx context.Context, claims *models.JWTClaims, query dto.AlertQuery) ([]models.AlertRecord, error) {
	limit := query.PageSize
	offset := 0
	if query.Page > 1 {
		if limit <= 0 {
			limit = 50
		}
		offset = (query.Page - 1) * limit
	}
	alerts, err := s.alerts.List(ctx, models.AlertFilter{
		OrganizationName: claims.OrganizationName,
		Status:           query.Status,
		WellNumber:       query.WellNumber,
		SequenceNumber:   query.SequenceNumber,
		Limit:            limit,
		Offset:           offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alerts")
	}
	if err := s.alerts.MarkViewed(ctx); err != nil {
		s.logger.Warn("failed to mark alerts viewed", zap.Error(err))
	}
	return alerts, nil
}

// Get returns one alert scoped to the caller's organization.
func (s *AlertService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.AlertRecord, error) {
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "alert not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load alert")
	}
	if alert.OrganizationName != claims.OrganizationName {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "alert not found")
	}
	return alert, nil
}

// ApproveByEmployee records the first stage of the alert chain.
func (s *AlertService) ApproveByEmployee(ctx context.Context, claims *models.JWTClaims, id string, req dto.AlertDecisionRequest) (*models.AlertRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	alert, err := s.loadForDecision(ctx, claims, id, models.RoleEmployee)
	if err != nil {
		return nil, err
	}
	if err := s.alerts.ApproveEmployee(ctx, alert.ID, req.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyApprovalFailure(ctx, alert.ID, models.RoleEmployee)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record approval")
	}

	alert.EmployeeApproved = true
	alert.EmployeeNote = &req.Description
	alert.Status = models.AlertStatusEmployeeApproved
	s.recordMetric("alert", "employee")
	s.notifyStage(ctx, alert, models.RoleManager)
	return alert, nil
}

// ApproveByManager records the second stage. The guarded update re-asserts
// the employee flag, so the ordering invariant survives the write.
func (s *AlertService) ApproveByManager(ctx context.Context, claims *models.JWTClaims, id string, req dto.AlertDecisionRequest) (*models.AlertRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	alert, err := s.loadForDecision(ctx, claims, id, models.RoleManager)
	if err != nil {
		return nil, err
	}
	if err := s.alerts.ApproveManager(ctx, alert.ID, req.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyApprovalFailure(ctx, alert.ID, models.RoleManager)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record approval")
	}

	alert.EmployeeApproved = true
	alert.ManagerApproved = true
	alert.ManagerNote = &req.Description
	alert.Status = models.AlertStatusManagerApproved
	s.recordMetric("alert", "manager")
	s.notifyStage(ctx, alert, models.RoleOwner)
	return alert, nil
}

// ApproveByOwner records the final stage and closes the alert.
func (s *AlertService) ApproveByOwner(ctx context.Context, claims *models.JWTClaims, id string, req dto.AlertDecisionRequest) (*models.AlertRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	alert, err := s.loadForDecision(ctx, claims, id, models.RoleOwner)
	if err != nil {
		return nil, err
	}
	if err := s.alerts.ApproveOwner(ctx, alert.ID, req.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyApprovalFailure(ctx, alert.ID, models.RoleOwner)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record approval")
	}

	alert.EmployeeApproved = true
	alert.ManagerApproved = true
	alert.OwnerApproved = true
	alert.OwnerNote = &req.Description
	alert.Status = models.AlertStatusClosed
	s.recordMetric("alert", "owner")
	return alert, nil
}

// CloseWithComment closes a still-pending alert outside the approval
// chain. Only PENDING alerts qualify.
func (s *AlertService) CloseWithComment(ctx context.Context, claims *models.JWTClaims, id string, req dto.CloseAlertRequest) (*models.AlertRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid close payload")
	}
	alert, err := s.Get(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if err := s.alerts.CloseWithComment(ctx, alert.ID, claims.UserID, req.Message); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "only pending alerts can be closed with a comment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close alert")
	}
	alert.Status = models.AlertStatusClosedWithComment
	alert.CommentBy = &claims.UserID
	alert.CommentMessage = &req.Message
	return alert, nil
}

// ConvertToComplaint raises a complaint from an alert. The alert keeps its
// workflow status; the complaint reference is an annotation alongside it.
func (s *AlertService) ConvertToComplaint(ctx context.Context, claims *models.JWTClaims, alertID string, req dto.ConvertComplaintRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid complaint payload")
	}
	alert, err := s.Get(ctx, claims, alertID)
	if err != nil {
		return nil, err
	}
	if alert.ComplaintID != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "alert already has a complaint")
	}
	receiver, err := s.users.FindByID(ctx, req.ReceiverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "complaint receiver does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve receiver")
	}
	if receiver.OrganizationName != claims.OrganizationName {
		return nil, appErrors.Clone(appErrors.ErrValidation, "complaint receiver does not exist")
	}

	complaint := &models.Complaint{
		AlertID:            alert.ID,
		SenderID:           claims.UserID,
		SenderName:         claims.Username,
		SenderDepartment:   claims.Department,
		ReceiverID:         receiver.ID,
		ReceiverName:       receiver.Username,
		ReceiverDepartment: receiver.Department,
		Description:        req.Description,
	}
	if err := s.complaints.Create(ctx, complaint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create complaint")
	}
	if err := s.alerts.AnnotateComplaint(ctx, alert.ID, complaint.ID); err != nil {
		s.logger.Warn("failed to annotate alert with complaint",
			zap.String("alert_id", alert.ID), zap.String("complaint_id", complaint.ID), zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.NotifyComplaint(ctx, complaint)
	}
	return complaint, nil
}

// ListComplaints returns complaints the caller is a party to.
func (s *AlertService) ListComplaints(ctx context.Context, claims *models.JWTClaims, query dto.ComplaintQuery) ([]models.Complaint, error) {
	limit := query.PageSize
	offset := 0
	if query.Page > 1 {
		if limit <= 0 {
			limit = 50
		}
		offset = (query.Page - 1) * limit
	}
	complaints, err := s.complaints.List(ctx, models.ComplaintFilter{
		PartyID:        claims.UserID,
		SequenceNumber: query.SequenceNumber,
		Department:     query.Department,
		Status:         query.Status,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}
	return complaints, nil
}

// CloseComplaint lets either party close an open complaint.
func (s *AlertService) CloseComplaint(ctx context.Context, claims *models.JWTClaims, complaintID string) (*models.Complaint, error) {
	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if complaint.SenderID != claims.UserID && complaint.ReceiverID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only complaint parties can close it")
	}

	closedAt := time.Now().UTC()
	if err := s.complaints.Close(ctx, complaint.ID, claims.UserID, closedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "complaint is already closed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close complaint")
	}
	complaint.Status = models.ComplaintStatusClosed
	complaint.ClosedBy = &claims.UserID
	complaint.ClosedAt = &closedAt
	return complaint, nil
}

func (s *AlertService) loadForDecision(ctx context.Context, claims *models.JWTClaims, id string, role models.UserRole) (*models.AlertRecord, error) {
	if claims.Role != role {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "your role cannot decide this stage")
	}
	alert, err := s.Get(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	prior, decided := stageFlags(alert, role)
	if err := ensureSequential(prior, decided); err != nil {
		return nil, err
	}
	return alert, nil
}

// classifyApprovalFailure re-reads the alert after a lost guarded update
// to report why the write did not apply.
func (s *AlertService) classifyApprovalFailure(ctx context.Context, id string, role models.UserRole) error {
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to classify approval conflict")
	}
	prior, decided := stageFlags(alert, role)
	if err := ensureSequential(prior, decided); err != nil {
		return err
	}
	return appErrors.ErrInvalidState
}

// stageFlags maps a role to its ordering inputs: the flags that must
// already be set and whether the role's own stage is decided.
func stageFlags(alert *models.AlertRecord, role models.UserRole) (prior []bool, decided bool) {
	switch role {
	case models.RoleEmployee:
		return nil, alert.EmployeeApproved
	case models.RoleManager:
		return []bool{alert.EmployeeApproved}, alert.ManagerApproved
	case models.RoleOwner:
		return []bool{alert.EmployeeApproved, alert.ManagerApproved}, alert.OwnerApproved
	default:
		return nil, true
	}
}

func (s *AlertService) notifyStage(ctx context.Context, alert *models.AlertRecord, role models.UserRole) {
	if s.notifier != nil {
		s.notifier.NotifyAlertStage(ctx, alert, role)
	}
}

func (s *AlertService) recordMetric(workflow, stage string) {
	if s.metrics != nil {
		s.metrics.RecordApprovalDecision(workflow, stage, models.DecisionApproved)
	}
}
