package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/salesdesk/pipeline-api/internal/models"
)

const leadColumns = `id, code, client_name, business_name, email, phone, alternate_phone, source, status,
       priority, industry, expected_revenue, assigned_to, assigned_by, notes, tags, lost_reason,
       converted, converted_at, last_contacted_at, next_follow_up_at, created_at, updated_at`

// LeadRepository persists lead records.
type LeadRepository struct {
	db *sqlx.DB
}

// NewLeadRepository constructs the repository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// Create inserts a new lead row. The human-readable code is drawn from a
// sequence inside the insert so it stays gap-free under concurrent creates.
func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Tags == nil {
		lead.Tags = pq.StringArray{}
	}
	const query = `INSERT INTO leads
	(id, code, client_name, business_name, email, phone, alternate_phone, source, status, priority,
	 industry, expected_revenue, assigned_to, assigned_by, notes, tags, next_follow_up_at, created_at, updated_at)
	VALUES ($1, 'LEAD' || lpad(nextval('lead_code_seq')::text, 5, '0'), $2, $3, $4, $5, $6, $7, $8, $9,
	 $10, $11, $12, $13, $14, $15, $16, $17, $18)
	RETURNING code`
	if err := r.db.QueryRowxContext(ctx, query,
		lead.ID, lead.ClientName, lead.BusinessName, lead.Email, lead.Phone, lead.AlternatePhone,
		lead.Source, lead.Status, lead.Priority, lead.Industry, lead.ExpectedRevenue,
		lead.AssignedTo, lead.AssignedBy, lead.Notes, lead.Tags, lead.NextFollowUpAt,
		lead.CreatedAt, lead.UpdatedAt,
	).Scan(&lead.Code); err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// FindByID fetches a lead by identifier.
func (r *LeadRepository) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	var lead models.Lead
	if err := r.db.GetContext(ctx, &lead, query, id); err != nil {
		return nil, err
	}
	return &lead, nil
}

// Lookup finds a single lead matching the query against code, names or email.
func (r *LeadRepository) Lookup(ctx context.Context, search string) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads
	WHERE code ILIKE $1 OR client_name ILIKE $1 OR business_name ILIKE $1 OR email ILIKE $1
	ORDER BY created_at DESC LIMIT 1`
	var lead models.Lead
	if err := r.db.GetContext(ctx, &lead, query, "%"+search+"%"); err != nil {
		return nil, err
	}
	return &lead, nil
}

// List returns leads matching the filter plus the unpaginated total.
func (r *LeadRepository) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(client_name ILIKE $%d OR business_name ILIKE $%d OR email ILIKE $%d OR code ILIKE $%d)", n, n, n, n))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM leads"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}

	query := `SELECT ` + leadColumns + ` FROM leads` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", size, (page-1)*size)

	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	return leads, total, nil
}

// All returns every lead. Used by the read-side aggregator, which tolerates a
// snapshot that is not transactionally consistent with in-flight writes.
func (r *LeadRepository) All(ctx context.Context) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query); err != nil {
		return nil, fmt.Errorf("load leads: %w", err)
	}
	return leads, nil
}

// Update persists descriptive lead fields.
func (r *LeadRepository) Update(ctx context.Context, lead *models.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	const query = `UPDATE leads SET
	 client_name = :client_name, business_name = :business_name, email = :email, phone = :phone,
	 alternate_phone = :alternate_phone, source = :source, priority = :priority, industry = :industry,
	 expected_revenue = :expected_revenue, notes = :notes, tags = :tags,
	 next_follow_up_at = :next_follow_up_at, updated_at = :updated_at
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, lead)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return requireRow(result)
}

// UpdateStatusParams groups the columns touched by a status transition.
type UpdateStatusParams struct {
	ID              string
	Status          models.LeadStatus
	Reopen          bool
	LostReason      *string
	Converted       bool
	ConvertedAt     *time.Time
	LastContactedAt *time.Time
}

// UpdateStatus applies a status transition. The closed-lead freeze is part of
// the WHERE clause so a racing Won/Lost write cannot be silently overwritten.
func (r *LeadRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) error {
	setParts := []string{"status = $2", "updated_at = $3"}
	args := []interface{}{params.ID, params.Status, time.Now().UTC()}

	if params.LostReason != nil {
		args = append(args, params.LostReason)
		setParts = append(setParts, fmt.Sprintf("lost_reason = $%d", len(args)))
	}
	if params.Converted {
		setParts = append(setParts, "converted = TRUE")
	}
	if params.ConvertedAt != nil {
		args = append(args, params.ConvertedAt)
		setParts = append(setParts, fmt.Sprintf("converted_at = $%d", len(args)))
	}
	if params.LastContactedAt != nil {
		args = append(args, params.LastContactedAt)
		setParts = append(setParts, fmt.Sprintf("last_contacted_at = $%d", len(args)))
	}

	query := fmt.Sprintf("UPDATE leads SET %s WHERE id = $1", strings.Join(setParts, ", "))
	if !params.Reopen {
		query += fmt.Sprintf(" AND status NOT IN ('%s', '%s')", models.LeadStatusWon, models.LeadStatusLost)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	return requireRow(result)
}

// UpdateAssignee reassigns an open lead. Closed leads are frozen for audit
// integrity, enforced in the WHERE clause.
func (r *LeadRepository) UpdateAssignee(ctx context.Context, id, assignedTo string) error {
	query := fmt.Sprintf(`UPDATE leads SET assigned_to = $2, updated_at = $3
	WHERE id = $1 AND status NOT IN ('%s', '%s')`, models.LeadStatusWon, models.LeadStatusLost)
	result, err := r.db.ExecContext(ctx, query, id, assignedTo, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reassign lead: %w", err)
	}
	return requireRow(result)
}

// SetNextFollowUp stamps the lead's next follow-up date.
func (r *LeadRepository) SetNextFollowUp(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE leads SET next_follow_up_at = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set lead follow-up: %w", err)
	}
	return nil
}

// StampLastContacted records the most recent contact against the lead.
func (r *LeadRepository) StampLastContacted(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE leads SET last_contacted_at = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("stamp lead contact: %w", err)
	}
	return nil
}

// Delete removes a lead row.
func (r *LeadRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
