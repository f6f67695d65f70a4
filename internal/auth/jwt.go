// Package auth issues and validates the operator bearer tokens that guard
// mutating API routes.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "wifi-registry"

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired
	ErrExpiredToken = errors.New("token has expired")
	// ErrInvalidClaims is returned when the token claims are invalid
	ErrInvalidClaims = errors.New("invalid token claims")
	// ErrEmptyOperator is returned when a token is requested without a name
	ErrEmptyOperator = errors.New("operator name is required")
)

// Claims identifies the operator making a request
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// JWTService handles token generation and validation
type JWTService struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// NewJWTService creates a new JWT service instance
func NewJWTService(secret string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// GenerateOperatorToken issues a token for operator. Returns the token and
// its expiration time.
func (s *JWTService) GenerateOperatorToken(operator string) (string, time.Time, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return "", time.Time{}, ErrEmptyOperator
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   operator,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign operator token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates a token and returns its claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if strings.TrimSpace(claims.Operator) == "" {
		return nil, fmt.Errorf("%w: missing operator", ErrInvalidClaims)
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return nil, fmt.Errorf("%w: invalid token ID", ErrInvalidClaims)
	}

	return claims, nil
}

// TokenTTL returns the token lifetime
func (s *JWTService) TokenTTL() time.Duration {
	return s.tokenTTL
}
