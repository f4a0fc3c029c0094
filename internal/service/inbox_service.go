package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/rtms-ops-api/internal/dto"
	"github.com/noah-isme/rtms-ops-api/internal/models"
	appErrors "github.com/noah-isme/rtms-ops-api/pkg/errors"
	"github.com/noah-isme/rtms-ops-api/pkg/jobs"
	"github.com/noah-isme/rtms-ops-api/pkg/notify"
)

// EmailJobType tags outbound mail jobs on the notification queue.
const EmailJobType = "email"

type inboxStore interface {
	Create(ctx context.Context, message *models.InboxMessage) error
	ListForRecipient(ctx context.Context, recipientID string) ([]models.InboxMessage, error)
	GetForRecipient(ctx context.Context, id, recipientID string) (*models.InboxMessage, error)
}

type inboxUserDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindApprovers(ctx context.Context, organization, department, position string) ([]models.User, error)
	FindByRole(ctx context.Context, organization string, role models.UserRole) ([]models.User, error)
}

type inboxOperationReader interface {
	GetByID(ctx context.Context, id string) (*models.Operation, error)
}

type inboxAlertReader interface {
	GetByID(ctx context.Context, id string) (*models.AlertRecord, error)
}

type emailEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// InboxService fans workflow events out to user inboxes and the email
// queue. Every delivery here is best-effort: a failed inbox insert or a
// full queue is logged and never propagated back into a workflow decision.
type InboxService struct {
	inbox      inboxStore
	users      inboxUserDirectory
	operations inboxOperationReader
	alerts     inboxAlertReader
	registry   *ApprovalRegistry
	emailQueue emailEnqueuer
	logger     *zap.Logger
}

// NewInboxService constructs the dispatcher. The email queue may be nil
// when outbound mail is disabled.
func NewInboxService(inbox inboxStore, users inboxUserDirectory, operations inboxOperationReader, alerts inboxAlertReader, registry *ApprovalRegistry, emailQueue emailEnqueuer, logger *zap.Logger) *InboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboxService{
		inbox:      inbox,
		users:      users,
		operations: operations,
		alerts:     alerts,
		registry:   registry,
		emailQueue: emailQueue,
		logger:     logger,
	}
}

// NotifyOperationStage tells every user holding the stage role that an
// operation awaits their decision.
func (s *InboxService) NotifyOperationStage(ctx context.Context, operation *models.Operation, stage models.StageRole) {
	approvers, err := s.users.FindApprovers(ctx, operation.OrganizationName, stage.Department, stage.Level)
	if err != nil {
		s.logger.Warn("failed to resolve stage approvers",
			zap.String("operation_id", operation.ID), zap.Error(err))
		return
	}
	if len(approvers) == 0 {
		s.logger.Warn("no approvers configured for stage",
			zap.String("operation_id", operation.ID),
			zap.String("department", stage.Department),
			zap.String("level", stage.Level))
		return
	}

	subject := fmt.Sprintf("Approval required: %s", operation.ApprovalKey)
	content := fmt.Sprintf("An operation (%s %s) in %s is waiting for your approval.",
		operation.Kind, operation.Entity, operation.OrganizationName)
	action := models.InboxActionOperation
	for i := range approvers {
		s.deliver(ctx, &approvers[i], subject, content, &action, &operation.ID)
	}
}

// NotifyOperationOutcome tells the requester how the workflow ended.
func (s *InboxService) NotifyOperationOutcome(ctx context.Context, operation *models.Operation) {
	requester, err := s.users.FindByID(ctx, operation.RequesterID)
	if err != nil {
		s.logger.Warn("failed to resolve operation requester",
			zap.String("operation_id", operation.ID), zap.Error(err))
		return
	}
	subject := fmt.Sprintf("Operation %s: %s", strings.ToLower(string(operation.Status)), operation.ApprovalKey)
	content := fmt.Sprintf("Your %s %s request is now %s.", operation.Kind, operation.Entity, operation.Status)
	action := models.InboxActionOperation
	s.deliver(ctx, requester, subject, content, &action, &operation.ID)
}

// NotifyWellAlert pushes a well alert to every owner and manager of the
// organization. It is called for every reading with issues, including
// readings whose alert record was deduplicated, so alert may be nil.
func (s *InboxService) NotifyWellAlert(ctx context.Context, well *models.Well, issues []models.Issue, alert *models.AlertRecord) {
	subject := fmt.Sprintf("Well alert: %s", well.WellNumber)
	content := s.describeIssues(well, issues)

	var action, ref *string
	if alert != nil {
		kind := models.InboxActionAlert
		action, ref = &kind, &alert.ID
	}

	for _, role := range []models.UserRole{models.RoleOwner, models.RoleManager} {
		recipients, err := s.users.FindByRole(ctx, well.OrganizationName, role)
		if err != nil {
			s.logger.Warn("failed to resolve alert recipients",
				zap.String("node_id", well.NodeID), zap.String("role", string(role)), zap.Error(err))
			continue
		}
		for i := range recipients {
			s.deliver(ctx, &recipients[i], subject, content, action, ref)
		}
	}
}

// NotifyAlertStage tells every user holding a role that an alert awaits
// their approval stage.
func (s *InboxService) NotifyAlertStage(ctx context.Context, alert *models.AlertRecord, role models.UserRole) {
	recipients, err := s.users.FindByRole(ctx, alert.OrganizationName, role)
	if err != nil {
		s.logger.Warn("failed to resolve alert stage recipients",
			zap.String("alert_id", alert.ID), zap.String("role", string(role)), zap.Error(err))
		return
	}
	subject := fmt.Sprintf("Alert #%d awaits your approval", alert.SequenceNumber)
	content := fmt.Sprintf("Well %s alert #%d has moved to status %s.",
		alert.WellNumber, alert.SequenceNumber, alert.Status)
	action := models.InboxActionAlert
	for i := range recipients {
		s.deliver(ctx, &recipients[i], subject, content, &action, &alert.ID)
	}
}

// NotifyComplaint tells the receiver a complaint was raised against them.
func (s *InboxService) NotifyComplaint(ctx context.Context, complaint *models.Complaint) {
	receiver, err := s.users.FindByID(ctx, complaint.ReceiverID)
	if err != nil {
		s.logger.Warn("failed to resolve complaint receiver",
			zap.String("complaint_id", complaint.ID), zap.Error(err))
		return
	}
	subject := fmt.Sprintf("Complaint #%d from %s", complaint.SequenceNumber, complaint.SenderName)
	s.deliver(ctx, receiver, subject, complaint.Description, nil, nil)
}

// ListMessages returns the caller's inbox, newest first.
func (s *InboxService) ListMessages(ctx context.Context, claims *models.JWTClaims) ([]models.InboxMessage, error) {
	messages, err := s.inbox.ListForRecipient(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inbox")
	}
	return messages, nil
}

// MessageDetail returns one message enriched with the workflow entity it
// references. Actionable reports whether the caller may still decide the
// referenced operation stage.
func (s *InboxService) MessageDetail(ctx context.Context, claims *models.JWTClaims, id string) (*dto.InboxMessageDetail, error) {
	message, err := s.inbox.GetForRecipient(ctx, id, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load message")
	}

	detail := &dto.InboxMessageDetail{Message: *message}
	if message.ActionKind == nil || message.ActionRef == nil {
		return detail, nil
	}

	switch *message.ActionKind {
	case models.InboxActionOperation:
		operation, err := s.operations.GetByID(ctx, *message.ActionRef)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("failed to enrich inbox message", zap.String("message_id", id), zap.Error(err))
			}
			return detail, nil
		}
		detail.Operation = operation
		detail.Actionable = s.operationActionable(ctx, operation, claims)
	case models.InboxActionAlert:
		alert, err := s.alerts.GetByID(ctx, *message.ActionRef)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("failed to enrich inbox message", zap.String("message_id", id), zap.Error(err))
			}
			return detail, nil
		}
		detail.Alert = alert
		detail.Actionable = alertActionable(alert, claims.Role)
	}
	return detail, nil
}

func (s *InboxService) operationActionable(ctx context.Context, operation *models.Operation, claims *models.JWTClaims) bool {
	if s.registry == nil {
		return false
	}
	config, err := s.registry.Resolve(ctx, operation.ApprovalKey, operation.OrganizationName)
	if err != nil {
		return false
	}
	switch operation.Status {
	case models.OperationStatusAwaitingStage1:
		return s.registry.AuthorizeStage(config, 1, claims)
	case models.OperationStatusAwaitingStage2:
		return s.registry.AuthorizeStage(config, 2, claims)
	default:
		return false
	}
}

func alertActionable(alert *models.AlertRecord, role models.UserRole) bool {
	switch alert.Status {
	case models.AlertStatusPending:
		return role == models.RoleEmployee
	case models.AlertStatusEmployeeApproved:
		return role == models.RoleManager
	case models.AlertStatusManagerApproved:
		return role == models.RoleOwner
	default:
		return false
	}
}

// deliver writes the inbox row and queues the email copy. Failures are
// logged and swallowed.
func (s *InboxService) deliver(ctx context.Context, user *models.User, subject, content string, actionKind, actionRef *string) {
	message := &models.InboxMessage{
		RecipientID: user.ID,
		Subject:     subject,
		Content:     content,
		ActionKind:  actionKind,
		ActionRef:   actionRef,
	}
	if err := s.inbox.Create(ctx, message); err != nil {
		s.logger.Warn("failed to deliver inbox message",
			zap.String("recipient_id", user.ID), zap.Error(err))
	}

	if s.emailQueue == nil || user.Email == "" {
		return
	}
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: EmailJobType,
		Payload: notify.Email{
			To:      []string{user.Email},
			Subject: subject,
			Body:    content,
		},
	}
	if err := s.emailQueue.Enqueue(job); err != nil {
		s.logger.Warn("failed to queue notification email",
			zap.String("recipient_id", user.ID), zap.Error(err))
	}
}

func (s *InboxService) describeIssues(well *models.Well, issues []models.Issue) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("Well %s (%s, %s) reported %d issue(s):\n",
		well.WellNumber, well.Location, well.Installation, len(issues)))
	for _, issue := range issues {
		builder.WriteString(fmt.Sprintf("- [%s] port %s = %.2f: %s\n",
			issue.Severity, issue.Port, issue.Value, issue.Description))
	}
	return builder.String()
}
