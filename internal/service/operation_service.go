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

type operationStore interface {
	Create(ctx context.Context, operation *models.Operation) error
	GetByID(ctx context.Context, id string) (*models.Operation, error)
	List(ctx context.Context, filter models.OperationFilter) ([]models.Operation, error)
	RecordStage1(ctx context.Context, params models.StageDecision) error
	RecordStage2(ctx context.Context, params models.StageDecision) error
}

type operationNotifier interface {
	NotifyOperationStage(ctx context.Context, operation *models.Operation, stage models.StageRole)
	NotifyOperationOutcome(ctx context.Context, operation *models.Operation)
}

type approvalMetrics interface {
	RecordApprovalDecision(workflow, stage string, decision models.ApprovalDecision)
}

// OperationService runs the two-stage approval workflow for administrative
// mutations. Stage decisions are written through state-keyed updates, so
// only one of two racing approvers can win a stage; the loser is told the
// decision already exists. The winning final-stage approver executes the
// operation exactly once.
type OperationService struct {
	operations operationStore
	registry   *ApprovalRegistry
	executors  map[string]OperationExecutor
	notifier   operationNotifier
	metrics    approvalMetrics
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewOperationService constructs the service. Notifier and metrics may be
// nil.
func NewOperationService(operations operationStore, registry *ApprovalRegistry, executors map[string]OperationExecutor, notifier operationNotifier, metrics approvalMetrics, validate *validator.Validate, logger *zap.Logger) *OperationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationService{
		operations: operations,
		registry:   registry,
		executors:  executors,
		notifier:   notifier,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// Create submits an operation into the workflow and notifies the first
// stage approvers.
func (s *OperationService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateOperationRequest) (*models.Operation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid operation payload")
	}
	kind := models.OperationKind(req.Kind)
	if kind != models.OperationKindUpdate && kind != models.OperationKindDelete {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported operation kind")
	}
	entity := models.OperationEntity(req.Entity)
	if entity != models.OperationEntityDepartment && entity != models.OperationEntityPosition {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported operation entity")
	}

	config, err := s.registry.Resolve(ctx, req.ApprovalKey, claims.OrganizationName)
	if err != nil {
		var typed *appErrors.Error
		if errors.As(err, &typed) && typed.Code == appErrors.ErrNotFound.Code {
			return nil, appErrors.Clone(appErrors.ErrValidation, "no approval chain configured for this operation")
		}
		return nil, err
	}

	operation := &models.Operation{
		RequesterID:      claims.UserID,
		OrganizationName: claims.OrganizationName,
		Kind:             kind,
		Entity:           entity,
		Filter:           req.Filter,
		ApprovalKey:      req.ApprovalKey,
		Payload:          req.Payload,
		Status:           models.OperationStatusAwaitingStage1,
	}
	if err := s.operations.Create(ctx, operation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create operation")
	}

	if s.notifier != nil {
		s.notifier.NotifyOperationStage(ctx, operation, config.Stage1)
	}
	return operation, nil
}

// DecideStage1 records the first-stage decision. Approval moves the
// operation to stage 2, or executes it immediately when the chain has a
// single stage. Rejection is terminal.
func (s *OperationService) DecideStage1(ctx context.Context, claims *models.JWTClaims, id string, req dto.DecideStageRequest) (*models.Operation, error) {
	if err := validateDecision(req.Decision); err != nil {
		return nil, err
	}
	operation, config, err := s.loadForDecision(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if !s.registry.AuthorizeStage(config, 1, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not a stage 1 approver for this operation")
	}
	if err := ensureSequential(nil, operation.Stage1Decision != nil); err != nil {
		return nil, err
	}

	newStatus := models.OperationStatusRejected
	if req.Decision == models.DecisionApproved {
		if config.Stage2 != nil {
			newStatus = models.OperationStatusAwaitingStage2
		} else {
			newStatus = models.OperationStatusExecuted
		}
	}

	decidedAt := time.Now().UTC()
	err = s.operations.RecordStage1(ctx, models.StageDecision{
		ID:         operation.ID,
		ApproverID: claims.UserID,
		Decision:   req.Decision,
		DecidedAt:  decidedAt,
		NewStatus:  newStatus,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyStageFailure(ctx, id, 1)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	operation.Status = newStatus
	operation.Stage1Approver = &claims.UserID
	decision := req.Decision
	operation.Stage1Decision = &decision
	operation.Stage1DecidedAt = &decidedAt
	s.recordMetric("operation", "stage1", req.Decision)

	switch {
	case req.Decision == models.DecisionRejected:
		s.notifyOutcome(ctx, operation)
		return operation, nil
	case config.Stage2 != nil:
		if s.notifier != nil {
			s.notifier.NotifyOperationStage(ctx, operation, *config.Stage2)
		}
		return operation, nil
	default:
		return operation, s.execute(ctx, operation)
	}
}

// DecideStage2 records the final decision. Approval executes the
// operation; the state-keyed update guarantees the executor runs once.
func (s *OperationService) DecideStage2(ctx context.Context, claims *models.JWTClaims, id string, req dto.DecideStageRequest) (*models.Operation, error) {
	if err := validateDecision(req.Decision); err != nil {
		return nil, err
	}
	operation, config, err := s.loadForDecision(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if !s.registry.AuthorizeStage(config, 2, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not a stage 2 approver for this operation")
	}
	if err := ensureSequential([]bool{operation.Stage1Approved()}, operation.Stage2Decision != nil); err != nil {
		return nil, err
	}

	newStatus := models.OperationStatusRejected
	if req.Decision == models.DecisionApproved {
		newStatus = models.OperationStatusExecuted
	}

	decidedAt := time.Now().UTC()
	err = s.operations.RecordStage2(ctx, models.StageDecision{
		ID:         operation.ID,
		ApproverID: claims.UserID,
		Decision:   req.Decision,
		DecidedAt:  decidedAt,
		NewStatus:  newStatus,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyStageFailure(ctx, id, 2)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	operation.Status = newStatus
	operation.Stage2Approver = &claims.UserID
	decision := req.Decision
	operation.Stage2Decision = &decision
	operation.Stage2DecidedAt = &decidedAt
	s.recordMetric("operation", "stage2", req.Decision)

	if req.Decision == models.DecisionRejected {
		s.notifyOutcome(ctx, operation)
		return operation, nil
	}
	return operation, s.execute(ctx, operation)
}

// Get returns one operation scoped to the caller's organization.
func (s *OperationService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Operation, error) {
	operation, err := s.operations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "operation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load operation")
	}
	if operation.OrganizationName != claims.OrganizationName {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "operation not found")
	}
	return operation, nil
}

// List returns the caller's organization operations.
func (s *OperationService) List(ctx context.Context, claims *models.JWTClaims, query dto.OperationQuery) ([]models.Operation, error) {
	limit := query.PageSize
	offset := 0
	if query.Page > 1 {
		if limit <= 0 {
			limit = 50
		}
		offset = (query.Page - 1) * limit
	}
	operations, err := s.operations.List(ctx, models.OperationFilter{
		OrganizationName: claims.OrganizationName,
		Status:           query.Status,
		ApprovalKey:      query.ApprovalKey,
		Limit:            limit,
		Offset:           offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list operations")
	}
	return operations, nil
}

// Catalog lists the operations that require chained approval.
func (s *OperationService) Catalog() []models.ApprovalCatalogEntry {
	return models.ApprovalCatalog
}

func (s *OperationService) loadForDecision(ctx context.Context, claims *models.JWTClaims, id string) (*models.Operation, *models.ApprovalChainConfig, error) {
	operation, err := s.Get(ctx, claims, id)
	if err != nil {
		return nil, nil, err
	}
	config, err := s.registry.Resolve(ctx, operation.ApprovalKey, operation.OrganizationName)
	if err != nil {
		return nil, nil, err
	}
	return operation, config, nil
}

// execute runs the matching executor after the operation is already
// recorded as EXECUTED. An executor failure does not roll the status back;
// the error is surfaced so the approver knows the mutation itself failed.
func (s *OperationService) execute(ctx context.Context, operation *models.Operation) error {
	defer s.notifyOutcome(ctx, operation)

	executor, ok := s.executors[operation.ApprovalKey]
	if !ok {
		s.logger.Error("no executor bound to approval key",
			zap.String("operation_id", operation.ID),
			zap.String("approval_key", operation.ApprovalKey))
		return appErrors.Clone(appErrors.ErrInternal, "operation approved but no executor is bound to it")
	}
	if err := executor.Execute(ctx, operation); err != nil {
		s.logger.Error("operation execution failed",
			zap.String("operation_id", operation.ID),
			zap.String("approval_key", operation.ApprovalKey),
			zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "operation approved but execution failed")
	}
	return nil
}

// classifyStageFailure re-reads the operation after a lost state-keyed
// update to report why the write did not apply.
func (s *OperationService) classifyStageFailure(ctx context.Context, id string, stage int) error {
	operation, err := s.operations.GetByID(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to classify stage conflict")
	}
	switch stage {
	case 1:
		if operation.Stage1Decision != nil {
			return appErrors.ErrConflict
		}
	case 2:
		if operation.Stage2Decision != nil {
			return appErrors.ErrConflict
		}
		if !operation.Stage1Approved() {
			return appErrors.ErrPreconditionFailed
		}
	}
	return appErrors.ErrInvalidState
}

func (s *OperationService) notifyOutcome(ctx context.Context, operation *models.Operation) {
	if s.notifier != nil {
		s.notifier.NotifyOperationOutcome(ctx, operation)
	}
}

func (s *OperationService) recordMetric(workflow, stage string, decision models.ApprovalDecision) {
	if s.metrics != nil {
		s.metrics.RecordApprovalDecision(workflow, stage, decision)
	}
}

func validateDecision(decision models.ApprovalDecision) error {
	if decision != models.DecisionApproved && decision != models.DecisionRejected {
		return appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}
	return nil
}
