package models

// Employee is the directory projection of a user. The pipeline never embeds
// mutable employee state; records reference employees by identifier only.
type Employee struct {
	ID           string `db:"id" json:"id"`
	EmployeeCode string `db:"employee_code" json:"employeeCode"`
	Name         string `db:"name" json:"name"`
	Email        string `db:"email" json:"email"`
	Position     string `db:"position" json:"position"`
	Department   string `db:"department" json:"department"`
	Active       bool   `db:"active" json:"active"`
}
