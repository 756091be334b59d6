package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesdesk/pipeline-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
	}
	return sqlxDB, mock, cleanup
}

func TestLeadRepositoryCreateAssignsCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeadRepository(db)

	mock.ExpectQuery("INSERT INTO leads").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("LEAD00042"))

	lead := &models.Lead{
		ClientName:   "Ana Silva",
		BusinessName: "Silva Trading",
		Email:        "ana@example.com",
		Phone:        "+5511999990000",
		Source:       models.LeadSourceWebsite,
		Status:       models.LeadStatusNew,
		Priority:     models.PriorityMedium,
		AssignedTo:   "emp-1",
	}
	err := repo.Create(context.Background(), lead)

	require.NoError(t, err)
	assert.Equal(t, "LEAD00042", lead.Code)
	assert.NotEmpty(t, lead.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryUpdateStatusGuardsClosedLeads(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeadRepository(db)

	// The conditional update misses because the lead is already Won/Lost.
	mock.ExpectExec("UPDATE leads SET .* AND status NOT IN").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:     "lead-1",
		Status: models.LeadStatusNegotiation,
	})

	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryUpdateStatusReopenSkipsGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeadRepository(db)

	mock.ExpectExec(`UPDATE leads SET .* WHERE id = \$1$`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:     "lead-1",
		Status: models.LeadStatusNegotiation,
		Reopen: true,
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryUpdateStatusWonStampsConversion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeadRepository(db)

	mock.ExpectExec("UPDATE leads SET .*converted = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	at := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:          "lead-1",
		Status:      models.LeadStatusWon,
		Reopen:      true,
		Converted:   true,
		ConvertedAt: &at,
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryUpdateAssigneeFrozenWhenClosed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeadRepository(db)

	mock.ExpectExec("UPDATE leads SET assigned_to").
		WithArgs("lead-1", "emp-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateAssignee(context.Background(), "lead-1", "emp-2")

	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeadRepository(db)

	mock.ExpectQuery("SELECT .* FROM leads WHERE id").
		WithArgs("lead-404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "lead-404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLeadRepositoryListAppliesFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeadRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM leads WHERE status = \\$1 AND assigned_to = \\$2").
		WithArgs(models.LeadStatusQualified, "emp-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows([]string{"id", "code", "client_name", "business_name", "email", "phone", "alternate_phone",
		"source", "status", "priority", "industry", "expected_revenue", "assigned_to", "assigned_by", "notes", "tags",
		"lost_reason", "converted", "converted_at", "last_contacted_at", "next_follow_up_at", "created_at", "updated_at"}).
		AddRow("lead-1", "LEAD00001", "Ana Silva", "Silva Trading", "ana@example.com", "+5511999990000", nil,
			"Website", "Qualified", "High", nil, 1500.0, "emp-1", nil, nil, "{}",
			nil, false, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT .* FROM leads WHERE status = \\$1 AND assigned_to = \\$2").
		WithArgs(models.LeadStatusQualified, "emp-1").
		WillReturnRows(rows)

	leads, total, err := repo.List(context.Background(), models.LeadFilter{
		Status:     models.LeadStatusQualified,
		AssignedTo: "emp-1",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, leads, 1)
	assert.Equal(t, "LEAD00001", leads[0].Code)
	assert.Equal(t, models.LeadStatusQualified, leads[0].Status)
}

func TestLeadRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLeadRepository(db)

	mock.ExpectExec("DELETE FROM leads WHERE id").
		WithArgs("lead-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "lead-404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
