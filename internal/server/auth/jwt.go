package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the cookie payload: registered claims plus the session id.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// GenerateSessionToken signs a token that names the session id and expires
// together with the session.
func GenerateSessionToken(sessionID uuid.UUID, secretKey []byte, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		SessionID: sessionID.String(),
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

// GetSessionIDFromToken validates the signature and expiry and returns the
// embedded session id.
func GetSessionIDFromToken(tokenString string, secretKey []byte) (uuid.UUID, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, common.ErrTokenExpired
		}
		return uuid.Nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return uuid.Nil, common.ErrInvalidToken
	}

	id, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return uuid.Nil, common.ErrInvalidToken
	}

	return id, nil
}
