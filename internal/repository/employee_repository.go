package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/salesdesk/pipeline-api/internal/models"
)

// EmployeeRepository resolves directory entries. The pipeline only reads this
// table; employee lifecycle lives in the directory service.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindByID fetches an employee by identifier.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	const query = `SELECT id, employee_code, name, email, position, department, active
	FROM employees WHERE id = $1`
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		return nil, err
	}
	return &employee, nil
}
