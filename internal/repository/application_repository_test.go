package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/umoja-platform/umoja-api/internal/models"
)

func newApplicationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestApplicationRepositoryAcceptIncrementsConditionally(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE mentorship_programs SET current_participants = current_participants + 1")).
		WithArgs("prog-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE mentorship_applications SET status = $2")).
		WithArgs("app-1", models.ApplicationStatusAccepted, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ApplicationID: "app-1",
		ProgramID:     "prog-1",
		NewStatus:     models.ApplicationStatusAccepted,
		ReviewedAt:    time.Now().UTC(),
		CapacityDelta: 1,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryAcceptRollsBackWhenFull(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	// The guard matches no row: another accept already took the last slot.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE mentorship_programs SET current_participants = current_participants + 1")).
		WithArgs("prog-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ApplicationID: "app-1",
		ProgramID:     "prog-1",
		NewStatus:     models.ApplicationStatusAccepted,
		ReviewedAt:    time.Now().UTC(),
		CapacityDelta: 1,
	})
	require.ErrorIs(t, err, ErrCapacityExhausted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryRejectAfterAcceptDecrements(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE mentorship_programs SET current_participants = current_participants - 1")).
		WithArgs("prog-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE mentorship_applications SET status = $2")).
		WithArgs("app-1", models.ApplicationStatusRejected, "no longer a fit", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	response := "no longer a fit"
	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ApplicationID:  "app-1",
		ProgramID:      "prog-1",
		NewStatus:      models.ApplicationStatusRejected,
		MentorResponse: &response,
		ReviewedAt:     time.Now().UTC(),
		CapacityDelta:  -1,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryStatusWriteFailureRollsBackIncrement(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE mentorship_programs SET current_participants = current_participants + 1")).
		WithArgs("prog-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE mentorship_applications SET status = $2")).
		WithArgs("gone", models.ApplicationStatusAccepted, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ApplicationID: "gone",
		ProgramID:     "prog-1",
		NewStatus:     models.ApplicationStatusAccepted,
		ReviewedAt:    time.Now().UTC(),
		CapacityDelta: 1,
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryDeleteReleasesCapacityInSameTx(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE mentorship_programs SET current_participants = current_participants - 1")).
		WithArgs("prog-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM mentorship_applications WHERE id = $1")).
		WithArgs("app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "app-1", "prog-1", true)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryDeleteFailureRollsBackDecrement(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE mentorship_programs SET current_participants = current_participants - 1")).
		WithArgs("prog-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM mentorship_applications WHERE id = $1")).
		WithArgs("app-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "app-1", "prog-1", true)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryExists(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	rows := sqlmock.NewRows([]string{"?column?"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM mentorship_applications WHERE program_id = $1 AND student_id = $2 LIMIT 1")).
		WithArgs("prog-1", "stu-1").
		WillReturnRows(rows)

	exists, err := repo.Exists(context.Background(), "prog-1", "stu-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
