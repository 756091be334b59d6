package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesdesk/pipeline-api/internal/models"
)

func TestTransferRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	mock.ExpectExec("INSERT INTO transfers").
		WillReturnResult(sqlmock.NewResult(1, 1))

	transfer := &models.Transfer{
		CallbackID:   "cb-1",
		ClientName:   "Ana Silva",
		BusinessName: "Silva Trading",
		FromEmployee: "emp-1",
		ToEmployee:   "sup-1",
	}
	err := repo.Create(context.Background(), transfer)

	require.NoError(t, err)
	assert.NotEmpty(t, transfer.ID)
	assert.Equal(t, models.TransferStatusTransferred, transfer.Status)
	assert.False(t, transfer.TransferredAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryCreateSecondOpenTransfer(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	mock.ExpectExec("INSERT INTO transfers").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "transfers_open_callback_idx"})

	err := repo.Create(context.Background(), &models.Transfer{CallbackID: "cb-1"})
	assert.ErrorIs(t, err, ErrOpenTransferExists)
}

func TestTransferRepositoryAcceptReassignsCallback(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE transfers SET status = 'Accepted'").
		WithArgs("tr-1", nil).
		WillReturnRows(sqlmock.NewRows([]string{"callback_id", "to_employee"}).AddRow("cb-1", "sup-1"))
	mock.ExpectExec("UPDATE callbacks SET assigned_to").
		WithArgs("cb-1", "sup-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Accept(context.Background(), "tr-1", nil)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryAcceptAlreadyResolved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE transfers SET status = 'Accepted'").
		WithArgs("tr-1", nil).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Accept(context.Background(), "tr-1", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTransferRepositoryCancelOnlyPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	mock.ExpectExec("UPDATE transfers SET status = 'Cancelled'").
		WithArgs("tr-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Cancel(context.Background(), "tr-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTransferRepositoryCompleteStampsTimestamp(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	at := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE transfers SET status = 'Completed'").
		WithArgs("tr-1", nil, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Complete(context.Background(), "tr-1", nil, at)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	rows := sqlmock.NewRows([]string{"id", "callback_id", "client_name", "business_name", "from_employee",
		"to_employee", "status", "remarks", "transferred_at", "completed_at"}).
		AddRow("tr-1", "cb-1", "Ana Silva", "Silva Trading", "emp-1", "sup-1", "Transferred", nil, time.Now(), nil)

	mock.ExpectQuery("SELECT .* FROM transfers WHERE status IN").
		WithArgs(models.TransferStatusTransferred).
		WillReturnRows(rows)

	transfers, err := repo.List(context.Background(), models.TransferFilter{
		Status: []models.TransferStatus{models.TransferStatusTransferred},
	})

	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, models.TransferStatusTransferred, transfers[0].Status)
}
