package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesdesk/pipeline-api/internal/models"
	appErrors "github.com/salesdesk/pipeline-api/pkg/errors"
)

func signToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService("test-secret")
	signed := signToken(t, "test-secret", &models.JWTClaims{
		UserID:     "emp-1",
		Role:       models.RoleEmployee,
		Department: models.DepartmentSales,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(signed)

	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.UserID)
	assert.True(t, claims.CanAccessPipeline())
	assert.False(t, claims.IsSuperAdmin())
}

func TestAuthServiceRejectsWrongSecret(t *testing.T) {
	svc := NewAuthService("test-secret")
	signed := signToken(t, "other-secret", &models.JWTClaims{UserID: "emp-1"})

	_, err := svc.ValidateToken(signed)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRejectsExpiredToken(t *testing.T) {
	svc := NewAuthService("test-secret")
	signed := signToken(t, "test-secret", &models.JWTClaims{
		UserID: "emp-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := svc.ValidateToken(signed)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRejectsMissingIdentity(t *testing.T) {
	svc := NewAuthService("test-secret")
	signed := signToken(t, "test-secret", &models.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := svc.ValidateToken(signed)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}
