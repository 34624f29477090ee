// Package auth verifies the access tokens issued by the identity provider
// and turns them into sessions.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the access token payload: the user id travels in "sub",
// profile data in "user_metadata".
type Claims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// GenerateToken signs an HS256 access token for the given profile.
func GenerateToken(p models.Profile, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Email:        p.Email,
		UserMetadata: p.Metadata,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies tokenString and returns the session it describes.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// verification yields an error wrapping common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*models.Session, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	s := &models.Session{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Metadata: claims.UserMetadata,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}
