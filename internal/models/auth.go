package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for access checks.
type UserRole string

const (
	RoleSuperAdmin UserRole = "super-admin"
	RoleEmployee   UserRole = "employee"
)

// DepartmentSales is the department whose members may use the pipeline.
const DepartmentSales = "marketingAndSales"

// JWTClaims represents the JWT payload for access tokens issued by the
// central auth service.
type JWTClaims struct {
	UserID     string   `json:"user_id"`
	Role       UserRole `json:"role"`
	Department string   `json:"department"`
	Email      string   `json:"email"`
	FullName   string   `json:"full_name"`
	jwt.RegisteredClaims
}

// CanAccessPipeline reports whether the actor may use lead/callback/transfer
// management at all.
func (c *JWTClaims) CanAccessPipeline() bool {
	if c == nil {
		return false
	}
	return c.Role == RoleSuperAdmin || c.Department == DepartmentSales
}

// IsSuperAdmin reports whether the actor holds the super-admin role.
func (c *JWTClaims) IsSuperAdmin() bool {
	return c != nil && c.Role == RoleSuperAdmin
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
