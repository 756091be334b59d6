package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/salesdesk/pipeline-api/internal/models"
)

const callbackColumns = `id, code, lead_id, client_name, business_name, scheduled_date, scheduled_time,
       channel, status, priority, assigned_to, assigned_by, remarks, outcome, completed_at, completed_by,
       rescheduled_from, rescheduled_count, created_at, updated_at`

// CallbackRepository persists scheduled follow-ups.
type CallbackRepository struct {
	db *sqlx.DB
}

// NewCallbackRepository constructs the repository.
func NewCallbackRepository(db *sqlx.DB) *CallbackRepository {
	return &CallbackRepository{db: db}
}

// Create inserts a new callback row with a sequence-backed code.
func (r *CallbackRepository) Create(ctx context.Context, cb *models.Callback) error {
	if cb.ID == "" {
		cb.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cb.CreatedAt = now
	cb.UpdatedAt = now
	const query = `INSERT INTO callbacks
	(id, code, lead_id, client_name, business_name, scheduled_date, scheduled_time, channel, status,
	 priority, assigned_to, assigned_by, remarks, created_at, updated_at)
	VALUES ($1, 'CB' || lpad(nextval('callback_code_seq')::text, 6, '0'), $2, $3, $4, $5, $6, $7, $8,
	 $9, $10, $11, $12, $13, $14)
	RETURNING code`
	if err := r.db.QueryRowxContext(ctx, query,
		cb.ID, cb.LeadID, cb.ClientName, cb.BusinessName, cb.ScheduledDate, cb.ScheduledTime,
		cb.Channel, cb.Status, cb.Priority, cb.AssignedTo, cb.AssignedBy, cb.Remarks,
		cb.CreatedAt, cb.UpdatedAt,
	).Scan(&cb.Code); err != nil {
		return fmt.Errorf("create callback: %w", err)
	}
	return nil
}

// FindByID fetches a callback by identifier.
func (r *CallbackRepository) FindByID(ctx context.Context, id string) (*models.Callback, error) {
	query := `SELECT ` + callbackColumns + ` FROM callbacks WHERE id = $1`
	var cb models.Callback
	if err := r.db.GetContext(ctx, &cb, query, id); err != nil {
		return nil, err
	}
	return &cb, nil
}

// List returns callbacks matching the filter plus the unpaginated total.
func (r *CallbackRepository) List(ctx context.Context, filter models.CallbackFilter) ([]models.Callback, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)

	if filter.LeadID != "" {
		args = append(args, filter.LeadID)
		conditions = append(conditions, fmt.Sprintf("lead_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Channel != "" {
		args = append(args, filter.Channel)
		conditions = append(conditions, fmt.Sprintf("channel = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conditions = append(conditions, fmt.Sprintf("scheduled_date >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conditions = append(conditions, fmt.Sprintf("scheduled_date <= $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(client_name ILIKE $%d OR business_name ILIKE $%d OR code ILIKE $%d)", n, n, n))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM callbacks"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count callbacks: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}

	query := `SELECT ` + callbackColumns + ` FROM callbacks` + where +
		fmt.Sprintf(" ORDER BY scheduled_date ASC, scheduled_time ASC LIMIT %d OFFSET %d", size, (page-1)*size)

	var callbacks []models.Callback
	if err := r.db.SelectContext(ctx, &callbacks, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list callbacks: %w", err)
	}
	return callbacks, total, nil
}

// ListByLead returns the full follow-up history of a lead, newest first.
func (r *CallbackRepository) ListByLead(ctx context.Context, leadID string) ([]models.Callback, error) {
	query := `SELECT ` + callbackColumns + ` FROM callbacks WHERE lead_id = $1 ORDER BY scheduled_date DESC`
	var callbacks []models.Callback
	if err := r.db.SelectContext(ctx, &callbacks, query, leadID); err != nil {
		return nil, fmt.Errorf("list callbacks for lead: %w", err)
	}
	return callbacks, nil
}

// All returns every callback for the read-side aggregator.
func (r *CallbackRepository) All(ctx context.Context) ([]models.Callback, error) {
	query := `SELECT ` + callbackColumns + ` FROM callbacks`
	var callbacks []models.Callback
	if err := r.db.SelectContext(ctx, &callbacks, query); err != nil {
		return nil, fmt.Errorf("load callbacks: %w", err)
	}
	return callbacks, nil
}

// CountOpenByLead counts callbacks still awaiting action for a lead. Used by
// the lead deletion cascade-check.
func (r *CallbackRepository) CountOpenByLead(ctx context.Context, leadID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM callbacks WHERE lead_id = $1 AND status IN ('%s', '%s', '%s')`,
		models.CallbackStatusPending, models.CallbackStatusRescheduled, models.CallbackStatusNotReachable)
	var count int
	if err := r.db.GetContext(ctx, &count, query, leadID); err != nil {
		return 0, fmt.Errorf("count open callbacks: %w", err)
	}
	return count, nil
}

// Reschedule moves the follow-up to a new slot. The status condition is part
// of the UPDATE so a stale client cannot revive a completed or cancelled
// callback; the reschedule counter increments exactly once per hit.
func (r *CallbackRepository) Reschedule(ctx context.Context, id string, date time.Time, timeOfDay string, remarks *string) error {
	query := fmt.Sprintf(`UPDATE callbacks SET
	 status = '%s',
	 rescheduled_from = scheduled_date,
	 rescheduled_count = rescheduled_count + 1,
	 scheduled_date = $2,
	 scheduled_time = $3,
	 remarks = COALESCE($4, remarks),
	 updated_at = $5
	WHERE id = $1 AND status IN ('%s', '%s')`,
		models.CallbackStatusRescheduled, models.CallbackStatusPending, models.CallbackStatusRescheduled)
	result, err := r.db.ExecContext(ctx, query, id, date, timeOfDay, remarks, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reschedule callback: %w", err)
	}
	return requireRow(result)
}

// Complete marks the follow-up done. Conditional on a completable status; the
// caller treats a zero-row result against an already-completed record as an
// idempotent no-op.
func (r *CallbackRepository) Complete(ctx context.Context, id string, completedBy string, outcome *string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE callbacks SET
	 status = '%s', completed_at = $2, completed_by = $3, outcome = COALESCE($4, outcome), updated_at = $5
	WHERE id = $1 AND status IN ('%s', '%s', '%s')`,
		models.CallbackStatusCompleted, models.CallbackStatusPending,
		models.CallbackStatusRescheduled, models.CallbackStatusNotReachable)
	result, err := r.db.ExecContext(ctx, query, id, at, completedBy, outcome, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete callback: %w", err)
	}
	return requireRow(result)
}

// Cancel drops the follow-up. Legal from any state except Completed.
func (r *CallbackRepository) Cancel(ctx context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE callbacks SET status = '%s', updated_at = $2
	WHERE id = $1 AND status <> '%s'`,
		models.CallbackStatusCancelled, models.CallbackStatusCompleted)
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cancel callback: %w", err)
	}
	return requireRow(result)
}

// MarkNotReachable flags a pending follow-up whose contact attempt failed.
func (r *CallbackRepository) MarkNotReachable(ctx context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE callbacks SET status = '%s', updated_at = $2
	WHERE id = $1 AND status IN ('%s', '%s')`,
		models.CallbackStatusNotReachable, models.CallbackStatusPending, models.CallbackStatusRescheduled)
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark callback not reachable: %w", err)
	}
	return requireRow(result)
}

// Delete removes a callback row.
func (r *CallbackRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM callbacks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete callback: %w", err)
	}
	return requireRow(result)
}
