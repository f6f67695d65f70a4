package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTService(t *testing.T) {
	service := NewJWTService("test-secret-key", time.Hour)

	assert.NotNil(t, service)
	assert.Equal(t, []byte("test-secret-key"), service.secret)
	assert.Equal(t, time.Hour, service.TokenTTL())
}

func TestGenerateOperatorToken(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	token, expiresAt, err := service.GenerateOperatorToken(" field-team ")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Second)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "field-team", claims.Operator)
	assert.Equal(t, "field-team", claims.Subject)
	assert.Equal(t, "wifi-registry", claims.Issuer)

	_, err = uuid.Parse(claims.ID)
	assert.NoError(t, err)
}

func TestGenerateOperatorToken_UniqueIDs(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	first, _, err := service.GenerateOperatorToken("ops")
	require.NoError(t, err)
	second, _, err := service.GenerateOperatorToken("ops")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestGenerateOperatorToken_EmptyOperator(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	_, _, err := service.GenerateOperatorToken("  ")
	assert.ErrorIs(t, err, ErrEmptyOperator)
}

func TestValidateToken_Expired(t *testing.T) {
	service := NewJWTService("test-secret", time.Minute)
	service.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := service.GenerateOperatorToken("ops")
	require.NoError(t, err)

	service.now = time.Now
	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuerService := NewJWTService("secret-a", time.Hour)
	otherService := NewJWTService("secret-b", time.Hour)

	token, _, err := issuerService.GenerateOperatorToken("ops")
	require.NoError(t, err)

	_, err = otherService.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Malformed(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestValidateToken_WrongSigningMethod(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	claims := &Claims{
		Operator: "ops",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_MissingOperator(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = service.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}
