package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/testutil"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func newTestService(t *testing.T) (*Service, *testutil.Fixture, *time.Time) {
	f := testutil.NewFixture(t)
	jwtSvc := auth.NewJWTService("test-secret", "clinic-api", time.Hour)
	svc := NewService(f.Store, f.Hasher, jwtSvc, Options{MaxFailedLogins: 3, LockoutDuration: 5 * time.Minute}, f.Logger)

	now := testutil.Now
	svc.now = func() time.Time { return now }
	return svc, f, &now
}

func login(svc *Service, userName, password string) (*model.TokenResponse, error) {
	return svc.Login(context.Background(), &model.LoginRequest{UserName: userName, Password: password})
}

func TestLogin_Success(t *testing.T) {
	svc, f, _ := newTestService(t)

	resp, err := login(svc, "dr_john", testutil.Password("dr_john"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Greater(t, resp.ExpiresIn, int64(0))

	userID, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.DoctorID, userID)

	u, err := f.Store.Users().GetByUserName(context.Background(), "dr_john")
	require.NoError(t, err)
	require.NotNil(t, u.LastLogin)
	assert.True(t, testutil.Now.Equal(*u.LastLogin))
}

func TestLogin_WrongPasswordLocksAccount(t *testing.T) {
	svc, f, now := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := login(svc, "pat_rahul", "wrong-password")
		require.Error(t, err)
		assert.Equal(t, "Invalid username or password", apperrors.As(err).Message)
	}

	u, err := f.Store.Users().GetByUserName(ctx, "pat_rahul")
	require.NoError(t, err)
	assert.Equal(t, 2, u.FailedLogins)

	_, err = login(svc, "pat_rahul", "wrong-password")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrAccountLocked)

	_, err = login(svc, "pat_rahul", testutil.Password("pat_rahul"))
	assert.ErrorIs(t, err, model.ErrAccountLocked)

	*now = now.Add(6 * time.Minute)
	_, err = login(svc, "pat_rahul", testutil.Password("pat_rahul"))
	require.NoError(t, err)

	u, err = f.Store.Users().GetByUserName(ctx, "pat_rahul")
	require.NoError(t, err)
	assert.Zero(t, u.FailedLogins)
	assert.Nil(t, u.LockedUntil)
}

func TestLogin_Rejections(t *testing.T) {
	svc, f, _ := newTestService(t)

	_, err := login(svc, "nobody", "whatever-password")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	_, err = login(svc, " ", "x")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	require.NoError(t, f.Store.DeactivateUser(f.StaffID))
	_, err = login(svc, "st_amy", testutil.Password("st_amy"))
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestValidateToken_Invalid(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}
