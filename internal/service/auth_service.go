package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/salesdesk/pipeline-api/internal/models"
	appErrors "github.com/salesdesk/pipeline-api/pkg/errors"
)

// AuthService validates access tokens issued by the central auth service.
// This API never mints tokens; login and refresh live elsewhere.
type AuthService struct {
	secret []byte
}

// NewAuthService constructs the validator.
func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret)}
}

// ValidateToken parses and verifies an HS256 access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	if claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token missing user identity")
	}
	return claims, nil
}
