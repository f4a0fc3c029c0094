package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

func newAlertRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAlertRepositoryCreateAssignsSequence(t *testing.T) {
	db, mock, cleanup := newAlertRepoMock(t)
	defer cleanup()

	repo := NewAlertRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO alerts")).
		WillReturnRows(sqlmock.NewRows([]string{"sequence_number"}).AddRow(int64(42)))

	alert := &models.AlertRecord{
		OrganizationName: "petra",
		NodeID:           "node-7",
		WellNumber:       "W-12",
		Issues:           models.IssueList{{Port: "1", Value: 91, Severity: models.SeverityCritical}},
	}
	require.NoError(t, repo.Create(context.Background(), alert))
	require.NotEmpty(t, alert.ID)
	require.Equal(t, int64(42), alert.SequenceNumber)
	require.Equal(t, models.AlertStatusPending, alert.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryApproveEmployeeGuardedOnPending(t *testing.T) {
	db, mock, cleanup := newAlertRepoMock(t)
	defer cleanup()

	repo := NewAlertRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE alerts")).
		WithArgs("checked on site", models.AlertStatusEmployeeApproved, "alert-1", models.AlertStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ApproveEmployee(context.Background(), "alert-1", "checked on site"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryApproveManagerLostRace(t *testing.T) {
	db, mock, cleanup := newAlertRepoMock(t)
	defer cleanup()

	repo := NewAlertRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE alerts")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApproveManager(context.Background(), "alert-1", "ok")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryCloseWithCommentOnlyPending(t *testing.T) {
	db, mock, cleanup := newAlertRepoMock(t)
	defer cleanup()

	repo := NewAlertRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE alerts")).
		WithArgs(models.AlertStatusClosedWithComment, "u-1", "false alarm", "alert-1", models.AlertStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CloseWithComment(context.Background(), "alert-1", "u-1", "false alarm")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryLastCreatedForNodeEmpty(t *testing.T) {
	db, mock, cleanup := newAlertRepoMock(t)
	defer cleanup()

	repo := NewAlertRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at FROM alerts")).
		WithArgs("node-7").
		WillReturnError(sql.ErrNoRows)

	createdAt, err := repo.LastCreatedForNode(context.Background(), "node-7")
	require.NoError(t, err)
	require.Nil(t, createdAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newAlertRepoMock(t)
	defer cleanup()

	repo := NewAlertRepository(db)
	rows := sqlmock.NewRows([]string{"id", "sequence_number", "organization_name", "node_id", "well_number", "status"}).
		AddRow("alert-1", int64(7), "petra", "node-7", "W-12", "PENDING")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, sequence_number, organization_name")).
		WithArgs("petra", models.AlertStatusPending).
		WillReturnRows(rows)

	alerts, err := repo.List(context.Background(), models.AlertFilter{
		OrganizationName: "petra",
		Status:           models.AlertStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, int64(7), alerts[0].SequenceNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}
