// Package auth issues and verifies the HS256 bearer tokens accepted by the
// REST API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the standard claims plus the client identity the token
// was issued to.
type Claims struct {
	jwt.RegisteredClaims
	ClientID string
}

// GenerateToken signs a token for clientID valid for validityDuration.
func GenerateToken(clientID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		ClientID: clientID,
	})

	return token.SignedString(secretKey)
}

// VerifyToken parses and validates a token, returning the client identity
// it was issued to.
func VerifyToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	return claims.ClientID, nil
}
