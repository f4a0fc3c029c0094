package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rtms-ops-api/internal/dto"
	"github.com/noah-isme/rtms-ops-api/internal/models"
	appErrors "github.com/noah-isme/rtms-ops-api/pkg/errors"
)

type alertStoreStub struct {
	alert       *models.AlertRecord
	getQueue    []*models.AlertRecord
	employeeErr error
	managerErr  error
	ownerErr    error
	closeErr    error
	annotated   []string
	annotateErr error
	markViewed  int
}

func (s *alertStoreStub) GetByID(ctx context.Context, id string) (*models.AlertRecord, error) {
	if len(s.getQueue) > 0 {
		next := s.getQueue[0]
		s.getQueue = s.getQueue[1:]
		return next, nil
	}
	if s.alert == nil {
		return nil, sql.ErrNoRows
	}
	clone := *s.alert
	return &clone, nil
}

func (s *alertStoreStub) List(ctx context.Context, filter models.AlertFilter) ([]models.AlertRecord, error) {
	if s.alert == nil {
		return nil, nil
	}
	return []models.AlertRecord{*s.alert}, nil
}

func (s *alertStoreStub) MarkViewed(ctx context.Context) error {
	s.markViewed++
	return nil
}

func (s *alertStoreStub) ApproveEmployee(ctx context.Context, id, note string) error {
	return s.employeeErr
}

func (s *alertStoreStub) ApproveManager(ctx context.Context, id, note string) error {
	return s.managerErr
}

func (s *alertStoreStub) ApproveOwner(ctx context.Context, id, note string) error {
	return s.ownerErr
}

func (s *alertStoreStub) CloseWithComment(ctx context.Context, id, actorID, message string) error {
	return s.closeErr
}

func (s *alertStoreStub) AnnotateComplaint(ctx context.Context, id, complaintID string) error {
	if s.annotateErr != nil {
		return s.annotateErr
	}
	s.annotated = append(s.annotated, complaintID)
	return nil
}

type complaintStoreStub struct {
	complaint *models.Complaint
	created   []*models.Complaint
	closeErr  error
}

func (s *complaintStoreStub) Create(ctx context.Context, complaint *models.Complaint) error {
	complaint.ID = "cmp-1"
	complaint.Status = models.ComplaintStatusOpen
	s.created = append(s.created, complaint)
	return nil
}

func (s *complaintStoreStub) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	if s.complaint == nil {
		return nil, sql.ErrNoRows
	}
	clone := *s.complaint
	return &clone, nil
}

func (s *complaintStoreStub) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	return nil, nil
}

func (s *complaintStoreStub) Close(ctx context.Context, id, closedBy string, closedAt time.Time) error {
	return s.closeErr
}

type alertUserDirectoryStub struct {
	user *models.User
}

func (s *alertUserDirectoryStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.user == nil {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

type alertNotifierStub struct {
	stageRoles []models.UserRole
	complaints []*models.Complaint
}

func (n *alertNotifierStub) NotifyAlertStage(ctx context.Context, alert *models.AlertRecord, role models.UserRole) {
	n.stageRoles = append(n.stageRoles, role)
}

func (n *alertNotifierStub) NotifyComplaint(ctx context.Context, complaint *models.Complaint) {
	n.complaints = append(n.complaints, complaint)
}

func pendingAlert() *models.AlertRecord {
	return &models.AlertRecord{
		ID:               "alert-1",
		SequenceNumber:   7,
		OrganizationName: "petra",
		NodeID:           "node-7",
		WellNumber:       "W-12",
		Status:           models.AlertStatusPending,
		Issues:           models.IssueList{{Port: "1", Value: 91, Severity: models.SeverityCritical}},
	}
}

func alertClaims(role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{
		UserID: "u-" + string(role), Role: role,
		Username: "tester", Department: "Field", OrganizationName: "petra",
	}
}

func newAlertFixture(t *testing.T) (*AlertService, *alertStoreStub, *complaintStoreStub, *alertUserDirectoryStub, *alertNotifierStub) {
	t.Helper()
	alerts := &alertStoreStub{alert: pendingAlert()}
	complaints := &complaintStoreStub{}
	users := &alertUserDirectoryStub{}
	notifier := &alertNotifierStub{}
	svc := NewAlertService(alerts, complaints, users, notifier, nil, validator.New(), nil)
	return svc, alerts, complaints, users, notifier
}

func TestAlertServiceApproveRequiresMatchingRole(t *testing.T) {
	svc, _, _, _, _ := newAlertFixture(t)

	_, err := svc.ApproveByEmployee(context.Background(), alertClaims(models.RoleManager), "alert-1", dto.AlertDecisionRequest{Description: "ok"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAlertServiceEmployeeApproveNotifiesManager(t *testing.T) {
	svc, _, _, _, notifier := newAlertFixture(t)

	alert, err := svc.ApproveByEmployee(context.Background(), alertClaims(models.RoleEmployee), "alert-1", dto.AlertDecisionRequest{Description: "confirmed on site"})
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusEmployeeApproved, alert.Status)
	assert.True(t, alert.EmployeeApproved)
	require.NotNil(t, alert.EmployeeNote)
	assert.Equal(t, "confirmed on site", *alert.EmployeeNote)
	require.Len(t, notifier.stageRoles, 1)
	assert.Equal(t, models.RoleManager, notifier.stageRoles[0])
}

func TestAlertServiceManagerBeforeEmployeePrecondition(t *testing.T) {
	svc, _, _, _, _ := newAlertFixture(t)

	_, err := svc.ApproveByManager(context.Background(), alertClaims(models.RoleManager), "alert-1", dto.AlertDecisionRequest{Description: "ok"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestAlertServiceDuplicateEmployeeApproveConflict(t *testing.T) {
	svc, alerts, _, _, _ := newAlertFixture(t)
	alerts.alert.EmployeeApproved = true
	alerts.alert.Status = models.AlertStatusEmployeeApproved

	_, err := svc.ApproveByEmployee(context.Background(), alertClaims(models.RoleEmployee), "alert-1", dto.AlertDecisionRequest{Description: "again"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAlertServiceLostRaceClassifiedFromReRead(t *testing.T) {
	svc, alerts, _, _, _ := newAlertFixture(t)
	alerts.employeeErr = sql.ErrNoRows

	raced := pendingAlert()
	raced.EmployeeApproved = true
	raced.Status = models.AlertStatusEmployeeApproved
	// the write loses the race, the re-read reveals the recorded stage
	alerts.getQueue = []*models.AlertRecord{pendingAlert(), raced}

	_, err := svc.ApproveByEmployee(context.Background(), alertClaims(models.RoleEmployee), "alert-1", dto.AlertDecisionRequest{Description: "ok"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAlertServiceClosedAlertApproveInvalidState(t *testing.T) {
	svc, alerts, _, _, _ := newAlertFixture(t)
	alerts.employeeErr = sql.ErrNoRows

	closed := pendingAlert()
	closed.Status = models.AlertStatusClosedWithComment
	// the alert still looks open on the first read but the guarded
	// update refuses it, and the re-read shows it was closed meanwhile
	alerts.getQueue = []*models.AlertRecord{pendingAlert(), closed}

	_, err := svc.ApproveByEmployee(context.Background(), alertClaims(models.RoleEmployee), "alert-1", dto.AlertDecisionRequest{Description: "ok"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestAlertServiceOwnerApproveClosesAlert(t *testing.T) {
	svc, alerts, _, _, notifier := newAlertFixture(t)
	alerts.alert.EmployeeApproved = true
	alerts.alert.ManagerApproved = true
	alerts.alert.Status = models.AlertStatusManagerApproved

	alert, err := svc.ApproveByOwner(context.Background(), alertClaims(models.RoleOwner), "alert-1", dto.AlertDecisionRequest{Description: "resolved"})
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusClosed, alert.Status)
	assert.True(t, alert.OwnerApproved)
	// the chain ends here, nobody is left to notify
	assert.Empty(t, notifier.stageRoles)
}

func TestAlertServiceGetHidesOtherOrganizations(t *testing.T) {
	svc, _, _, _, _ := newAlertFixture(t)

	outsider := alertClaims(models.RoleEmployee)
	outsider.OrganizationName = "other-co"
	_, err := svc.Get(context.Background(), outsider, "alert-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAlertServiceCloseWithCommentOnlyPending(t *testing.T) {
	svc, alerts, _, _, _ := newAlertFixture(t)
	alerts.closeErr = sql.ErrNoRows
	alerts.alert.EmployeeApproved = true
	alerts.alert.Status = models.AlertStatusEmployeeApproved

	_, err := svc.CloseWithComment(context.Background(), alertClaims(models.RoleEmployee), "alert-1", dto.CloseAlertRequest{Message: "false alarm"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestAlertServiceCloseWithComment(t *testing.T) {
	svc, _, _, _, _ := newAlertFixture(t)

	claims := alertClaims(models.RoleEmployee)
	alert, err := svc.CloseWithComment(context.Background(), claims, "alert-1", dto.CloseAlertRequest{Message: "sensor swapped"})
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusClosedWithComment, alert.Status)
	require.NotNil(t, alert.CommentBy)
	assert.Equal(t, claims.UserID, *alert.CommentBy)
}

func TestAlertServiceConvertToComplaint(t *testing.T) {
	svc, alerts, complaints, users, notifier := newAlertFixture(t)
	users.user = &models.User{
		ID: "u-recv", Username: "receiver", Department: "Maintenance", OrganizationName: "petra",
	}

	claims := alertClaims(models.RoleManager)
	complaint, err := svc.ConvertToComplaint(context.Background(), claims, "alert-1", dto.ConvertComplaintRequest{
		ReceiverID:  "u-recv",
		Description: "pump keeps tripping",
	})
	require.NoError(t, err)
	assert.Equal(t, "alert-1", complaint.AlertID)
	assert.Equal(t, claims.UserID, complaint.SenderID)
	assert.Equal(t, "Maintenance", complaint.ReceiverDepartment)
	require.Len(t, complaints.created, 1)
	assert.Equal(t, []string{"cmp-1"}, alerts.annotated)
	require.Len(t, notifier.complaints, 1)
}

func TestAlertServiceConvertToComplaintAlreadyConverted(t *testing.T) {
	svc, alerts, _, _, _ := newAlertFixture(t)
	existing := "cmp-0"
	alerts.alert.ComplaintID = &existing

	_, err := svc.ConvertToComplaint(context.Background(), alertClaims(models.RoleManager), "alert-1", dto.ConvertComplaintRequest{
		ReceiverID:  "u-recv",
		Description: "again",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestAlertServiceConvertToComplaintForeignReceiver(t *testing.T) {
	svc, _, _, users, _ := newAlertFixture(t)
	users.user = &models.User{ID: "u-recv", OrganizationName: "other-co"}

	_, err := svc.ConvertToComplaint(context.Background(), alertClaims(models.RoleManager), "alert-1", dto.ConvertComplaintRequest{
		ReceiverID:  "u-recv",
		Description: "misdirected",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAlertServiceCloseComplaintOnlyParties(t *testing.T) {
	svc, _, complaints, _, _ := newAlertFixture(t)
	complaints.complaint = &models.Complaint{
		ID: "cmp-1", SenderID: "u-a", ReceiverID: "u-b", Status: models.ComplaintStatusOpen,
	}

	stranger := alertClaims(models.RoleManager)
	stranger.UserID = "u-z"
	_, err := svc.CloseComplaint(context.Background(), stranger, "cmp-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAlertServiceCloseComplaintAlreadyClosed(t *testing.T) {
	svc, _, complaints, _, _ := newAlertFixture(t)
	complaints.complaint = &models.Complaint{
		ID: "cmp-1", SenderID: "u-a", ReceiverID: "u-b", Status: models.ComplaintStatusClosed,
	}
	complaints.closeErr = sql.ErrNoRows

	sender := alertClaims(models.RoleManager)
	sender.UserID = "u-a"
	_, err := svc.CloseComplaint(context.Background(), sender, "cmp-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestAlertServiceCloseComplaint(t *testing.T) {
	svc, _, complaints, _, _ := newAlertFixture(t)
	complaints.complaint = &models.Complaint{
		ID: "cmp-1", SenderID: "u-a", ReceiverID: "u-b", Status: models.ComplaintStatusOpen,
	}

	receiver := alertClaims(models.RoleManager)
	receiver.UserID = "u-b"
	complaint, err := svc.CloseComplaint(context.Background(), receiver, "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusClosed, complaint.Status)
	require.NotNil(t, complaint.ClosedBy)
	assert.Equal(t, "u-b", *complaint.ClosedBy)
}

func TestAlertServiceListMarksViewed(t *testing.T) {
	svc, alerts, _, _, _ := newAlertFixture(t)

	records, err := svc.List(context.Background(), alertClaims(models.RoleEmployee), dto.AlertQuery{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, alerts.markViewed)
}
