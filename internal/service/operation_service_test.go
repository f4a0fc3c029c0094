package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rtms-ops-api/internal/dto"
	"github.com/noah-isme/rtms-ops-api/internal/models"
	appErrors "github.com/noah-isme/rtms-ops-api/pkg/errors"
)

type operationStoreStub struct {
	op         *models.Operation
	getQueue   []*models.Operation
	createErr  error
	stage1Err  error
	stage2Err  error
	stage1Rec  []models.StageDecision
	stage2Rec  []models.StageDecision
	listFilter models.OperationFilter
}

func (s *operationStoreStub) Create(ctx context.Context, operation *models.Operation) error {
	if s.createErr != nil {
		return s.createErr
	}
	operation.ID = "op-1"
	s.op = operation
	return nil
}

func (s *operationStoreStub) GetByID(ctx context.Context, id string) (*models.Operation, error) {
	if len(s.getQueue) > 0 {
		next := s.getQueue[0]
		s.getQueue = s.getQueue[1:]
		return next, nil
	}
	if s.op == nil {
		return nil, sql.ErrNoRows
	}
	clone := *s.op
	return &clone, nil
}

func (s *operationStoreStub) List(ctx context.Context, filter models.OperationFilter) ([]models.Operation, error) {
	s.listFilter = filter
	if s.op == nil {
		return nil, nil
	}
	return []models.Operation{*s.op}, nil
}

func (s *operationStoreStub) RecordStage1(ctx context.Context, params models.StageDecision) error {
	s.stage1Rec = append(s.stage1Rec, params)
	return s.stage1Err
}

func (s *operationStoreStub) RecordStage2(ctx context.Context, params models.StageDecision) error {
	s.stage2Rec = append(s.stage2Rec, params)
	return s.stage2Err
}

type operationNotifierStub struct {
	stages   []models.StageRole
	outcomes []models.OperationStatus
}

func (n *operationNotifierStub) NotifyOperationStage(ctx context.Context, operation *models.Operation, stage models.StageRole) {
	n.stages = append(n.stages, stage)
}

func (n *operationNotifierStub) NotifyOperationOutcome(ctx context.Context, operation *models.Operation) {
	n.outcomes = append(n.outcomes, operation.Status)
}

type executorStub struct {
	calls int
	err   error
}

func (e *executorStub) Execute(ctx context.Context, operation *models.Operation) error {
	e.calls++
	return e.err
}

func pendingOperation() *models.Operation {
	return &models.Operation{
		ID:               "op-1",
		RequesterID:      "u-req",
		OrganizationName: "petra",
		Kind:             models.OperationKindUpdate,
		Entity:           models.OperationEntityDepartment,
		Filter:           json.RawMessage(`{"department":"Drilling"}`),
		ApprovalKey:      models.ApprovalKeyUpdateDepartment,
		Payload:          json.RawMessage(`{"newName":"Drilling Ops"}`),
		Status:           models.OperationStatusAwaitingStage1,
	}
}

func stage1Claims() *models.JWTClaims {
	return &models.JWTClaims{
		UserID: "u-lead", Role: models.RoleManager,
		Department: "Engineering", Position: "Lead", OrganizationName: "petra",
	}
}

func stage2Claims() *models.JWTClaims {
	return &models.JWTClaims{
		UserID: "u-head", Role: models.RoleOwner,
		Department: "Operations", Position: "Head", OrganizationName: "petra",
	}
}

func newOperationFixture(t *testing.T, chain *models.ApprovalChainConfig) (*OperationService, *operationStoreStub, *operationNotifierStub, *executorStub) {
	t.Helper()
	store := &operationStoreStub{}
	notifier := &operationNotifierStub{}
	executor := &executorStub{}
	registry := NewApprovalRegistry(&chainSourceStub{config: chain}, nil, time.Minute, nil)
	executors := map[string]OperationExecutor{models.ApprovalKeyUpdateDepartment: executor}
	svc := NewOperationService(store, registry, executors, notifier, nil, validator.New(), nil)
	return svc, store, notifier, executor
}

func TestOperationServiceCreateNotifiesStage1(t *testing.T) {
	svc, store, notifier, _ := newOperationFixture(t, sampleChain())

	operation, err := svc.Create(context.Background(), stage1Claims(), dto.CreateOperationRequest{
		Kind:        "UPDATE",
		Entity:      "DEPARTMENT",
		Filter:      json.RawMessage(`{"department":"Drilling"}`),
		ApprovalKey: models.ApprovalKeyUpdateDepartment,
		Payload:     json.RawMessage(`{"newName":"Drilling Ops"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusAwaitingStage1, operation.Status)
	assert.Equal(t, "petra", operation.OrganizationName)
	require.NotNil(t, store.op)
	require.Len(t, notifier.stages, 1)
	assert.Equal(t, "Engineering", notifier.stages[0].Department)
}

func TestOperationServiceCreateUnknownChain(t *testing.T) {
	store := &operationStoreStub{}
	registry := NewApprovalRegistry(&chainSourceStub{err: sql.ErrNoRows}, nil, time.Minute, nil)
	svc := NewOperationService(store, registry, nil, nil, nil, validator.New(), nil)

	_, err := svc.Create(context.Background(), stage1Claims(), dto.CreateOperationRequest{
		Kind:        "UPDATE",
		Entity:      "DEPARTMENT",
		Filter:      json.RawMessage(`{}`),
		ApprovalKey: "UNKNOWN_KEY",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOperationServiceCreateRejectsUnknownKind(t *testing.T) {
	svc, _, _, _ := newOperationFixture(t, sampleChain())

	_, err := svc.Create(context.Background(), stage1Claims(), dto.CreateOperationRequest{
		Kind:        "MERGE",
		Entity:      "DEPARTMENT",
		Filter:      json.RawMessage(`{}`),
		ApprovalKey: models.ApprovalKeyUpdateDepartment,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOperationServiceStage1ApproveMovesToStage2(t *testing.T) {
	svc, store, notifier, executor := newOperationFixture(t, sampleChain())
	store.op = pendingOperation()

	operation, err := svc.DecideStage1(context.Background(), stage1Claims(), "op-1", dto.DecideStageRequest{Decision: models.DecisionApproved})
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusAwaitingStage2, operation.Status)
	require.Len(t, store.stage1Rec, 1)
	assert.Equal(t, models.OperationStatusAwaitingStage2, store.stage1Rec[0].NewStatus)
	require.Len(t, notifier.stages, 1)
	assert.Equal(t, "Operations", notifier.stages[0].Department)
	assert.Zero(t, executor.calls)
}

func TestOperationServiceStage1Forbidden(t *testing.T) {
	svc, store, _, _ := newOperationFixture(t, sampleChain())
	store.op = pendingOperation()

	wrongActor := &models.JWTClaims{UserID: "u-x", Department: "Finance", Position: "Clerk", OrganizationName: "petra"}
	_, err := svc.DecideStage1(context.Background(), wrongActor, "op-1", dto.DecideStageRequest{Decision: models.DecisionApproved})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.stage1Rec)
}

func TestOperationServiceStage1AlreadyDecided(t *testing.T) {
	svc, store, _, _ := newOperationFixture(t, sampleChain())
	op := pendingOperation()
	decision := models.DecisionApproved
	op.Stage1Decision = &decision
	op.Status = models.OperationStatusAwaitingStage2
	store.op = op

	_, err := svc.DecideStage1(context.Background(), stage1Claims(), "op-1", dto.DecideStageRequest{Decision: models.DecisionRejected})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.stage1Rec)
}

func TestOperationServiceStage1LostRaceClassifiedAsConflict(t *testing.T) {
	svc, store, _, _ := newOperationFixture(t, sampleChain())
	store.op = pendingOperation()
	store.stage1Err = sql.ErrNoRows

	decided := pendingOperation()
	decision := models.DecisionApproved
	decided.Stage1Decision = &decision
	decided.Status = models.OperationStatusAwaitingStage2
	// first read sees the open stage, the re-read after the lost write
	// sees the racing decision
	store.getQueue = []*models.Operation{pendingOperation(), decided}

	_, err := svc.DecideStage1(context.Background(), stage1Claims(), "op-1", dto.DecideStageRequest{Decision: models.DecisionApproved})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestOperationServiceStage2BeforeStage1Precondition(t *testing.T) {
	svc, store, _, executor := newOperationFixture(t, sampleChain())
	store.op = pendingOperation()

	_, err := svc.DecideStage2(context.Background(), stage2Claims(), "op-1", dto.DecideStageRequest{Decision: models.DecisionApproved})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.stage2Rec)
	assert.Zero(t, executor.calls)
}

func stage1ApprovedOperation() *models.Operation {
	op := pendingOperation()
	decision := models.DecisionApproved
	op.Stage1Decision = &decision
	op.Status = models.OperationStatusAwaitingStage2
	return op
}

func TestOperationServiceStage2ApproveExecutesOnce(t *testing.T) {
	svc, store, notifier, executor := newOperationFixture(t, sampleChain())
	store.op = stage1ApprovedOperation()

	operation, err := svc.DecideStage2(context.Background(), stage2Claims(), "op-1", dto.DecideStageRequest{Decision: models.DecisionApproved})
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusExecuted, operation.Status)
	assert.Equal(t, 1, executor.calls)
	require.Len(t, notifier.outcomes, 1)
	assert.Equal(t, models.OperationStatusExecuted, notifier.outcomes[0])
}

func TestOperationServiceStage2RejectSkipsExecutor(t *testing.T) {
	svc, store, notifier, executor := newOperationFixture(t, sampleChain())
	store.op = stage1ApprovedOperation()

	operation, err := svc.DecideStage2(context.Background(), stage2Claims(), "op-1", dto.DecideStageRequest{Decision: models.DecisionRejected})
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusRejected, operation.Status)
	assert.Zero(t, executor.calls)
	require.Len(t, notifier.outcomes, 1)
	assert.Equal(t, models.OperationStatusRejected, notifier.outcomes[0])
}

func TestOperationServiceExecutorFailureKeepsExecuted(t *testing.T) {
	svc, store, notifier, executor := newOperationFixture(t, sampleChain())
	store.op = stage1ApprovedOperation()
	executor.err = assert.AnError

	operation, err := svc.DecideStage2(context.Background(), stage2Claims(), "op-1", dto.DecideStageRequest{Decision: models.DecisionApproved})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	// the workflow state is final even though the mutation failed
	assert.Equal(t, models.OperationStatusExecuted, operation.Status)
	assert.Equal(t, 1, executor.calls)
	require.Len(t, notifier.outcomes, 1)
}

func TestOperationServiceSingleStageChainExecutesOnStage1(t *testing.T) {
	chain := sampleChain()
	chain.Stage2 = nil
	svc, store, _, executor := newOperationFixture(t, chain)
	store.op = pendingOperation()

	operation, err := svc.DecideStage1(context.Background(), stage1Claims(), "op-1", dto.DecideStageRequest{Decision: models.DecisionApproved})
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusExecuted, operation.Status)
	assert.Equal(t, 1, executor.calls)
	require.Len(t, store.stage1Rec, 1)
	assert.Equal(t, models.OperationStatusExecuted, store.stage1Rec[0].NewStatus)
}

func TestOperationServiceGetScopedToOrganization(t *testing.T) {
	svc, store, _, _ := newOperationFixture(t, sampleChain())
	store.op = pendingOperation()

	outsider := &models.JWTClaims{UserID: "u-z", OrganizationName: "other-co"}
	_, err := svc.Get(context.Background(), outsider, "op-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestOperationServiceListUsesCallerOrganization(t *testing.T) {
	svc, store, _, _ := newOperationFixture(t, sampleChain())
	store.op = pendingOperation()

	_, err := svc.List(context.Background(), stage1Claims(), dto.OperationQuery{
		Status:   []models.OperationStatus{models.OperationStatusAwaitingStage1},
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "petra", store.listFilter.OrganizationName)
	assert.Equal(t, 10, store.listFilter.Limit)
	assert.Equal(t, 10, store.listFilter.Offset)
}
