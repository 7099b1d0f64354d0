package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/authwave/authwave/internal/models"
	"github.com/authwave/authwave/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeveloperRegisterAndVerify(t *testing.T) {
	env := newTestEnv(t)

	dev, err := env.devs.Register(DeveloperRegisterInput{
		Email:    "New@Example.com",
		Username: "newdev",
		Name:     "New Developer",
		Password: "portal-pass-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", dev.Email)
	assert.False(t, dev.EmailVerified)
	assert.False(t, dev.IsActive)

	// Sign-in is refused until the link is clicked
	_, err = env.devs.Login("new@example.com", "portal-pass-1")
	assert.ErrorIs(t, err, ErrAccountNotVerified)

	// The verification link lands on the shared verify-email endpoint
	vt := env.latestToken(t, dev.ID, models.VerifyNewAccount)
	require.Equal(t, models.SubjectDeveloper, vt.SubjectKind)
	require.NoError(t, env.users.VerifyEmail(vt.Token))

	result, err := env.devs.Login("new@example.com", "portal-pass-1")
	require.NoError(t, err)
	assert.True(t, result.Developer.EmailVerified)
	assert.NotEmpty(t, result.Pair.AccessToken)
	assert.NotEmpty(t, result.Pair.RefreshToken)
}

func TestDeveloperRegisterConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.createDeveloper(t, "dev@example.com")

	_, err := env.devs.Register(DeveloperRegisterInput{
		Email:    "dev@example.com",
		Username: "other",
		Password: "portal-pass-1",
	})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = env.devs.Register(DeveloperRegisterInput{
		Email:    "",
		Password: "portal-pass-1",
	})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestDeveloperLockout(t *testing.T) {
	env := newTestEnv(t)
	dev := env.createDeveloper(t, "dev@example.com")

	// Wrong passwords up to the threshold are plain failures
	for i := 0; i < env.cfg.MaxFailedLogins-1; i++ {
		_, err := env.devs.Login("dev@example.com", fmt.Sprintf("wrong-%d", i))
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// The threshold attempt trips the lock
	_, err := env.devs.Login("dev@example.com", "wrong-final")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	locked, err := env.store.GetDeveloperByID(dev.ID)
	require.NoError(t, err)
	require.NotNil(t, locked.LockedUntil)
	assert.True(t, locked.IsLocked())
	assert.Zero(t, locked.FailedLoginAttempts, "counter resets when the lock is set")

	// While locked, even the correct password is rejected
	_, err = env.devs.Login("dev@example.com", "developer-pass")
	assert.ErrorIs(t, err, ErrAccountLocked)

	// Rewind the lock to simulate expiry
	past := time.Now().Add(-time.Minute)
	locked.LockedUntil = &past
	require.NoError(t, env.store.UpdateDeveloper(locked))

	result, err := env.devs.Login("dev@example.com", "developer-pass")
	require.NoError(t, err)
	assert.Nil(t, result.Developer.LockedUntil)
	assert.Zero(t, result.Developer.FailedLoginAttempts)
}

func TestDeveloperLockoutCounterResetOnSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.createDeveloper(t, "dev@example.com")

	_, err := env.devs.Login("dev@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.devs.Login("dev@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	result, err := env.devs.Login("dev@example.com", "developer-pass")
	require.NoError(t, err)
	assert.Zero(t, result.Developer.FailedLoginAttempts)

	// The streak starts over
	for i := 0; i < env.cfg.MaxFailedLogins-1; i++ {
		_, err = env.devs.Login("dev@example.com", "wrong-pass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = env.devs.Login("dev@example.com", "developer-pass")
	assert.NoError(t, err, "still below the threshold after the reset")
}

func TestDeveloperRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	env.createDeveloper(t, "dev@example.com")

	first, err := env.devs.Login("dev@example.com", "developer-pass")
	require.NoError(t, err)

	second, err := env.devs.Refresh(token.DomainDeveloper, first.Pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.Pair.RefreshToken, second.Pair.RefreshToken)

	// The spent token cannot be replayed
	_, err = env.devs.Refresh(token.DomainDeveloper, first.Pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// The replacement still works
	_, err = env.devs.Refresh(token.DomainDeveloper, second.Pair.RefreshToken)
	assert.NoError(t, err)
}

func TestDeveloperRefreshDomainIsolation(t *testing.T) {
	env := newTestEnv(t)
	env.createDeveloper(t, "dev@example.com")

	result, err := env.devs.Login("dev@example.com", "developer-pass")
	require.NoError(t, err)

	// A portal refresh token is not valid in the cpanel domain
	_, err = env.devs.Refresh(token.DomainCPanel, result.Pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDeveloperRefreshBlockedAccount(t *testing.T) {
	env := newTestEnv(t)
	dev := env.createDeveloper(t, "dev@example.com")

	result, err := env.devs.Login("dev@example.com", "developer-pass")
	require.NoError(t, err)

	dev.IsBlocked = true
	require.NoError(t, env.store.UpdateDeveloper(dev))

	_, err = env.devs.Refresh(token.DomainDeveloper, result.Pair.RefreshToken)
	assert.ErrorIs(t, err, ErrAccountBlocked)
}

func TestDeveloperLogout(t *testing.T) {
	env := newTestEnv(t)
	env.createDeveloper(t, "dev@example.com")

	result, err := env.devs.Login("dev@example.com", "developer-pass")
	require.NoError(t, err)

	require.NoError(t, env.devs.Logout(result.Pair.RefreshToken))

	_, err = env.devs.Refresh(token.DomainDeveloper, result.Pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Logout is idempotent
	assert.NoError(t, env.devs.Logout(result.Pair.RefreshToken))
	assert.NoError(t, env.devs.Logout("garbage"))
}

func TestDeveloperChangePasswordRevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	dev := env.createDeveloper(t, "dev@example.com")

	portal, err := env.devs.Login("dev@example.com", "developer-pass")
	require.NoError(t, err)
	cpanel, err := env.devs.IssueCPanelPair(dev)
	require.NoError(t, err)

	err = env.devs.ChangePassword(dev.ID, "wrong-pass", "replacement-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, env.devs.ChangePassword(dev.ID, "developer-pass", "replacement-pass"))

	// Every outstanding refresh token dies with the old password
	_, err = env.devs.Refresh(token.DomainDeveloper, portal.Pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.devs.Refresh(token.DomainCPanel, cpanel.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.devs.Login("dev@example.com", "replacement-pass")
	assert.NoError(t, err)
}

func TestDeveloperPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	dev := env.createDeveloper(t, "dev@example.com")

	// Unknown addresses get the same silent success
	require.NoError(t, env.devs.RequestPasswordReset("nobody@example.com"))

	require.NoError(t, env.devs.RequestPasswordReset("dev@example.com"))
	vt := env.latestToken(t, dev.ID, models.VerifyPasswordReset)
	require.Equal(t, models.SubjectDeveloper, vt.SubjectKind)

	require.NoError(t, env.devs.CompletePasswordReset(vt.Token, "fresh-portal-pass"))

	_, err := env.devs.Login("dev@example.com", "developer-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.devs.Login("dev@example.com", "fresh-portal-pass")
	assert.NoError(t, err)

	err = env.devs.CompletePasswordReset(vt.Token, "yet-another-pass")
	assert.ErrorIs(t, err, ErrLinkInvalid)
}

func TestDeveloperResetTokenNotValidForEndUsers(t *testing.T) {
	env := newTestEnv(t)
	dev := env.createDeveloper(t, "dev@example.com")

	require.NoError(t, env.devs.RequestPasswordReset("dev@example.com"))
	vt := env.latestToken(t, dev.ID, models.VerifyPasswordReset)

	// The end-user reset endpoint refuses developer-kind tokens
	err := env.users.CompletePasswordReset(vt.Token, "fresh-portal-pass")
	assert.ErrorIs(t, err, ErrLinkInvalid)
}
