package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/salesdesk/pipeline-api/internal/models"
)

// ErrOpenTransferExists signals the partial unique index on
// transfers(callback_id) rejected a second unresolved handoff.
var ErrOpenTransferExists = errors.New("an open transfer already exists for this callback")

const transferColumns = `id, callback_id, client_name, business_name, from_employee, to_employee,
       status, remarks, transferred_at, completed_at`

// TransferRepository persists callback handoffs.
type TransferRepository struct {
	db *sqlx.DB
}

// NewTransferRepository constructs the repository.
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create inserts a new handoff. The at-most-one-open-transfer invariant is a
// partial unique index on callback_id over open statuses, so the race between
// two initiations resolves at write time rather than check-then-insert.
func (r *TransferRepository) Create(ctx context.Context, transfer *models.Transfer) error {
	if transfer.ID == "" {
		transfer.ID = uuid.NewString()
	}
	if transfer.Status == "" {
		transfer.Status = models.TransferStatusTransferred
	}
	if transfer.TransferredAt.IsZero() {
		transfer.TransferredAt = time.Now().UTC()
	}
	const query = `INSERT INTO transfers
	(id, callback_id, client_name, business_name, from_employee, to_employee, status, remarks, transferred_at)
	VALUES (:id, :callback_id, :client_name, :business_name, :from_employee, :to_employee, :status, :remarks, :transferred_at)`
	if _, err := r.db.NamedExecContext(ctx, query, transfer); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrOpenTransferExists
		}
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

// GetByID fetches a transfer by identifier.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	var transfer models.Transfer
	if err := r.db.GetContext(ctx, &transfer, query, id); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// List returns transfers matching the filter, newest first.
func (r *TransferRepository) List(ctx context.Context, filter models.TransferFilter) ([]models.Transfer, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + transferColumns + ` FROM transfers`)
	args := make([]interface{}, 0, 4)

	conditions := make([]string, 0, 4)
	if filter.CallbackID != "" {
		args = append(args, filter.CallbackID)
		conditions = append(conditions, fmt.Sprintf("callback_id = $%d", len(args)))
	}
	if filter.FromEmployee != "" {
		args = append(args, filter.FromEmployee)
		conditions = append(conditions, fmt.Sprintf("from_employee = $%d", len(args)))
	}
	if filter.ToEmployee != "" {
		args = append(args, filter.ToEmployee)
		conditions = append(conditions, fmt.Sprintf("to_employee = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY transferred_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var transfers []models.Transfer
	if err := r.db.SelectContext(ctx, &transfers, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, nil
}

// All returns every transfer for the read-side aggregator.
func (r *TransferRepository) All(ctx context.Context) ([]models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers ORDER BY transferred_at DESC`
	var transfers []models.Transfer
	if err := r.db.SelectContext(ctx, &transfers, query); err != nil {
		return nil, fmt.Errorf("load transfers: %w", err)
	}
	return transfers, nil
}

// FindOpenByCallback returns the unresolved transfer for a callback, if any.
func (r *TransferRepository) FindOpenByCallback(ctx context.Context, callbackID string) (*models.Transfer, error) {
	query := fmt.Sprintf(`SELECT `+transferColumns+` FROM transfers
	WHERE callback_id = $1 AND status IN ('%s', '%s')`,
		models.TransferStatusTransferred, models.TransferStatusAccepted)
	var transfer models.Transfer
	if err := r.db.GetContext(ctx, &transfer, query, callbackID); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// CountOpenByLead counts unresolved transfers whose callback belongs to the
// lead. Used by the lead deletion cascade-check.
func (r *TransferRepository) CountOpenByLead(ctx context.Context, leadID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM transfers t
	JOIN callbacks c ON c.id = t.callback_id
	WHERE c.lead_id = $1 AND t.status IN ('%s', '%s')`,
		models.TransferStatusTransferred, models.TransferStatusAccepted)
	var count int
	if err := r.db.GetContext(ctx, &count, query, leadID); err != nil {
		return 0, fmt.Errorf("count open transfers: %w", err)
	}
	return count, nil
}

// Accept flips the transfer to Accepted and reassigns the callback in one
// transaction. The compare-and-swap on status guarantees exactly one of two
// racing accepts wins; the loser sees sql.ErrNoRows.
func (r *TransferRepository) Accept(ctx context.Context, id string, remarks *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin accept transfer: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf(`UPDATE transfers SET status = '%s', remarks = COALESCE($2, remarks)
	WHERE id = $1 AND status = '%s'
	RETURNING callback_id, to_employee`,
		models.TransferStatusAccepted, models.TransferStatusTransferred)

	var callbackID, toEmployee string
	if err := tx.QueryRowxContext(ctx, query, id, remarks).Scan(&callbackID, &toEmployee); err != nil {
		return err
	}

	const reassign = `UPDATE callbacks SET assigned_to = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, reassign, callbackID, toEmployee, time.Now().UTC()); err != nil {
		return fmt.Errorf("reassign callback on accept: %w", err)
	}

	return tx.Commit()
}

// Reject declines the handoff. The callback's assignee is untouched.
func (r *TransferRepository) Reject(ctx context.Context, id string, remarks *string) error {
	query := fmt.Sprintf(`UPDATE transfers SET status = '%s', remarks = COALESCE($2, remarks)
	WHERE id = $1 AND status = '%s'`,
		models.TransferStatusRejected, models.TransferStatusTransferred)
	result, err := r.db.ExecContext(ctx, query, id, remarks)
	if err != nil {
		return fmt.Errorf("reject transfer: %w", err)
	}
	return requireRow(result)
}

// Complete closes an accepted handoff.
func (r *TransferRepository) Complete(ctx context.Context, id string, remarks *string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE transfers SET status = '%s', remarks = COALESCE($2, remarks), completed_at = $3
	WHERE id = $1 AND status = '%s'`,
		models.TransferStatusCompleted, models.TransferStatusAccepted)
	result, err := r.db.ExecContext(ctx, query, id, remarks, at)
	if err != nil {
		return fmt.Errorf("complete transfer: %w", err)
	}
	return requireRow(result)
}

// Cancel withdraws a handoff that has not been resolved yet.
func (r *TransferRepository) Cancel(ctx context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE transfers SET status = '%s' WHERE id = $1 AND status = '%s'`,
		models.TransferStatusCancelled, models.TransferStatusTransferred)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("cancel transfer: %w", err)
	}
	return requireRow(result)
}
