package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matribhumi/api/models"
)

var testUser = &models.User{ID: 7, Name: "Omar", Email: "omar@example.com", Role: models.RoleEditor}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", 12*time.Hour)

	token, err := m.Generate(testUser)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, "omar@example.com", claims.Email)
	assert.Equal(t, models.RoleEditor, claims.Role)
	assert.Equal(t, "Omar", claims.Name)
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(12*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a", time.Hour).Generate(testUser)
	require.NoError(t, err)

	_, err = NewJWTManager("secret-b", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }

	token, err := m.Generate(testUser)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTManager_RejectsUnknownRole(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.Generate(&models.User{ID: 1, Email: "x@example.com", Role: "owner"})
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsOtherSigningMethod(t *testing.T) {
	claims := &Claims{
		UserID: 1,
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTManager("test-secret", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_Garbage(t *testing.T) {
	_, err := NewJWTManager("test-secret", time.Hour).Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
