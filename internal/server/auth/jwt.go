// Package auth turns bearer tokens into principals. Tokens are issued by
// the identity provider; the server trusts the claims it verifies here and
// never changes roles itself.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the principal alongside the standard claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID string      `json:"uid"`
	Email  string      `json:"email,omitempty"`
	Role   models.Role `json:"role"`
}

// GenerateToken signs an HS256 token for p. Used by the dev token tool and
// tests; production tokens come from the identity provider.
func GenerateToken(p models.Principal, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: p.ID,
		Email:  p.Email,
		Role:   p.Role,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParsePrincipal verifies tokenString and returns the principal it names.
func ParsePrincipal(tokenString string, secretKey []byte) (models.Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Principal{}, common.ErrTokenExpired
		}
		return models.Principal{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return models.Principal{}, common.ErrInvalidToken
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" || !claims.Role.Valid() {
		return models.Principal{}, fmt.Errorf("%w: missing subject or role", common.ErrInvalidToken)
	}

	return models.Principal{ID: id, Email: claims.Email, Role: claims.Role}, nil
}
