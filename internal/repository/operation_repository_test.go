package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

func newOperationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOperationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newOperationRepoMock(t)
	defer cleanup()

	repo := NewOperationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO operations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	operation := &models.Operation{
		RequesterID:      "u-req",
		OrganizationName: "petra",
		Kind:             models.OperationKindUpdate,
		Entity:           models.OperationEntityDepartment,
		Filter:           json.RawMessage(`{"department":"Drilling"}`),
		ApprovalKey:      models.ApprovalKeyUpdateDepartment,
		Payload:          json.RawMessage(`{"newName":"Drilling Ops"}`),
	}
	require.NoError(t, repo.Create(context.Background(), operation))
	require.NotEmpty(t, operation.ID)
	require.Equal(t, models.OperationStatusAwaitingStage1, operation.Status)
	require.False(t, operation.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepositoryRecordStage1(t *testing.T) {
	db, mock, cleanup := newOperationRepoMock(t)
	defer cleanup()

	repo := NewOperationRepository(db)
	decidedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE operations")).
		WithArgs("u-lead", models.DecisionApproved, decidedAt, models.OperationStatusAwaitingStage2,
			"op-1", models.OperationStatusAwaitingStage1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordStage1(context.Background(), models.StageDecision{
		ID:         "op-1",
		ApproverID: "u-lead",
		Decision:   models.DecisionApproved,
		DecidedAt:  decidedAt,
		NewStatus:  models.OperationStatusAwaitingStage2,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepositoryRecordStage1LostRace(t *testing.T) {
	db, mock, cleanup := newOperationRepoMock(t)
	defer cleanup()

	repo := NewOperationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE operations")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RecordStage1(context.Background(), models.StageDecision{
		ID:         "op-1",
		ApproverID: "u-lead",
		Decision:   models.DecisionApproved,
		DecidedAt:  time.Now().UTC(),
		NewStatus:  models.OperationStatusAwaitingStage2,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepositoryRecordStage2GuardsOnStage2State(t *testing.T) {
	db, mock, cleanup := newOperationRepoMock(t)
	defer cleanup()

	repo := NewOperationRepository(db)
	decidedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE operations")).
		WithArgs("u-head", models.DecisionRejected, decidedAt, models.OperationStatusRejected,
			"op-1", models.OperationStatusAwaitingStage2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordStage2(context.Background(), models.StageDecision{
		ID:         "op-1",
		ApproverID: "u-head",
		Decision:   models.DecisionRejected,
		DecidedAt:  decidedAt,
		NewStatus:  models.OperationStatusRejected,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newOperationRepoMock(t)
	defer cleanup()

	repo := NewOperationRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "requester_id", "organization_name", "kind", "entity", "filter", "approval_key", "payload", "status",
		"stage1_approver", "stage1_decision", "stage1_decided_at",
		"stage2_approver", "stage2_decision", "stage2_decided_at", "created_at",
	}).AddRow(
		"op-1", "u-req", "petra", "UPDATE", "DEPARTMENT", []byte(`{}`), models.ApprovalKeyUpdateDepartment, []byte(`{}`), "AWAITING_STAGE1",
		nil, nil, nil, nil, nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, requester_id, organization_name")).
		WithArgs("petra", models.OperationStatusAwaitingStage1, "u-req").
		WillReturnRows(rows)

	operations, err := repo.List(context.Background(), models.OperationFilter{
		OrganizationName: "petra",
		Status:           []models.OperationStatus{models.OperationStatusAwaitingStage1},
		RequesterID:      "u-req",
	})
	require.NoError(t, err)
	require.Len(t, operations, 1)
	require.Equal(t, "op-1", operations[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
