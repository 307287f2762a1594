package adminkit

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key"

func signTestToken(t *testing.T, key string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

// TestJWTValidator tests token validation
func TestJWTValidator(t *testing.T) {
	validator := NewJWTValidator(testSigningKey, "adminkit")
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name     string
		token    func(t *testing.T) string
		expected *Identity
		wantErr  error
	}{
		{
			name: "Valid token",
			token: func(t *testing.T) string {
				return signTestToken(t, testSigningKey, jwt.SigningMethodHS256, Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "adminkit", ExpiresAt: future},
					UserID:           "u1",
					TenantID:         "t1",
				})
			},
			expected: &Identity{UserID: "u1", TenantID: "t1"},
		},
		{
			name: "Subject fallback",
			token: func(t *testing.T) string {
				return signTestToken(t, testSigningKey, jwt.SigningMethodHS512, Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "adminkit", Subject: "u2", ExpiresAt: future},
				})
			},
			expected: &Identity{UserID: "u2"},
		},
		{
			name: "Expired token",
			token: func(t *testing.T) string {
				return signTestToken(t, testSigningKey, jwt.SigningMethodHS256, Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "adminkit", ExpiresAt: past},
					UserID:           "u1",
				})
			},
			wantErr: ErrTokenExpired,
		},
		{
			name: "Wrong key",
			token: func(t *testing.T) string {
				return signTestToken(t, "other-key", jwt.SigningMethodHS256, Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "adminkit"},
					UserID:           "u1",
				})
			},
			wantErr: ErrTokenInvalid,
		},
		{
			name: "Wrong issuer",
			token: func(t *testing.T) string {
				return signTestToken(t, testSigningKey, jwt.SigningMethodHS256, Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
					UserID:           "u1",
				})
			},
			wantErr: ErrTokenInvalid,
		},
		{
			name: "No subject",
			token: func(t *testing.T) string {
				return signTestToken(t, testSigningKey, jwt.SigningMethodHS256, Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "adminkit"},
				})
			},
			wantErr: ErrTokenInvalid,
		},
		{
			name:    "Garbage",
			token:   func(t *testing.T) string { return "not.a.token" },
			wantErr: ErrTokenInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := validator.ValidateToken(tt.token(t))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, identity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, identity)
		})
	}
}

// TestJWTValidatorWithoutIssuer tests that an empty issuer skips the check
func TestJWTValidatorWithoutIssuer(t *testing.T) {
	validator := NewJWTValidator(testSigningKey, "")
	token := signTestToken(t, testSigningKey, jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "anyone"},
		UserID:           "u1",
	})

	identity, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
}
