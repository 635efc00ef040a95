package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", "clinic-api", time.Hour)

	token, expiresAt, err := svc.GenerateAccessToken(42)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	userID, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestJWTService_RejectsForeignTokens(t *testing.T) {
	issued, _, err := NewJWTService("other", "clinic-api", time.Hour).GenerateAccessToken(42)
	require.NoError(t, err)

	_, err = NewJWTService("secret", "clinic-api", time.Hour).ValidateToken(issued)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTService("secret", "clinic-api", time.Hour).ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Expired(t *testing.T) {
	svc := NewJWTService("secret", "clinic-api", time.Minute).(*jwtService)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := svc.GenerateAccessToken(42)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
