package auth

import (
	"fmt"
	"order-chat/errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "order-chat"

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenManager signs and checks HS256 tokens with a shared secret.
type TokenManager struct {
	secret   []byte
	duration time.Duration
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), duration: duration}
}

// GenerateToken creates a signed JWT for a customer or a vendor.
func (m *TokenManager) GenerateToken(userID string, roles []string) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates the signature and expiration of a JWT string.
func (m *TokenManager) ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.ErrUnauthenticated
	}
	return claims, nil
}
