package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims carried by a customer access token
type Claims struct {
	CustomerID string `json:"customer_id"`
	Phone      string `json:"phone"`
	jwt.RegisteredClaims
}

// Service handles JWT operations for customer access tokens. Token issuance
// lives in the identity service; the booking backend only validates, but
// GenerateToken is kept for tests and local tooling.
type Service struct {
	secret string
	expiry time.Duration
}

// NewService creates a new JWT service
func NewService(secret string, expiry time.Duration) *Service {
	return &Service{
		secret: secret,
		expiry: expiry,
	}
}

// GenerateToken generates a signed access token for a customer
func (s *Service) GenerateToken(customerID, phone string) (string, error) {
	now := time.Now()
	claims := Claims{
		CustomerID: customerID,
		Phone:      phone,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "routemate-booking",
			Subject:   customerID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates and parses a customer access token
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.CustomerID == "" {
		return nil, fmt.Errorf("token missing customer id")
	}

	return claims, nil
}

// IsTokenExpired reports whether a token failed validation because it expired
func (s *Service) IsTokenExpired(tokenString string) bool {
	_, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.secret), nil
	})
	return errors.Is(err, jwt.ErrTokenExpired)
}
