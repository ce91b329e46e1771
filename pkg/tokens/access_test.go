package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/marketplace/pkg/identity"
)

var testSecret = []byte("test-jwt-secret")

func TestNewAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	p := identity.Principal{UserID: uuid.New(), Role: identity.RoleSeller, Email: "s@example.com"}
	exp := time.Now().Add(15 * time.Minute)

	token, err := NewAccessToken(p, testSecret, exp)
	require.NoError(t, err)

	claims, err := AccessClaimsFromToken(token, testSecret)
	require.NoError(t, err)
	assert.WithinDuration(t, exp, claims.ExpiresAt.Time, time.Second)

	got, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestAccessClaimsFromToken_Rejects(t *testing.T) {
	t.Parallel()

	valid := identity.Principal{UserID: uuid.New(), Role: identity.RoleCustomer}

	expired, err := NewAccessToken(valid, testSecret, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	otherKey, err := NewAccessToken(valid, []byte("other"), time.Now().Add(time.Minute))
	require.NoError(t, err)

	unknownRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"role": "root",
		"exp":  time.Now().Add(time.Minute).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		is    error
	}{
		{name: "expired", token: expired, is: jwt.ErrTokenExpired},
		{name: "wrong key", token: otherKey, is: jwt.ErrTokenSignatureInvalid},
		{name: "unknown role", token: unknownRole},
		{name: "garbage", token: "not-a-jwt"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			claims, err := AccessClaimsFromToken(tt.token, testSecret)
			require.Error(t, err)
			assert.Nil(t, claims)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}
