package services

import (
	"testing"
	"time"

	"github.com/authwave/authwave/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateAuthorize(t *testing.T) {
	env := newTestEnv(t)
	dev := env.createDeveloper(t, "dev@example.com")
	app, secret := env.createApp(t, dev.ID)

	result, err := env.gate.Authorize(app.APIKey, secret, "/auth/login")
	require.NoError(t, err)
	assert.Equal(t, app.ID, result.App.ID)
	assert.Equal(t, "starter", result.Plan.PlanName)
}

func TestGateMissingCredentials(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.gate.Authorize("", "", "/auth/login")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = env.gate.Authorize("ak_something", "", "/auth/login")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = env.gate.Authorize("", "secret", "/auth/login")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestGateInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	dev := env.createDeveloper(t, "dev@example.com")
	app, secret := env.createApp(t, dev.ID)

	_, err := env.gate.Authorize(app.APIKey, "wrong-secret", "/auth/login")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.gate.Authorize("ak_unknown", secret, "/auth/login")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGatePlanInactive(t *testing.T) {
	env := newTestEnv(t)
	dev := env.createDeveloper(t, "dev@example.com")
	app, secret := env.createApp(t, dev.ID)

	// Expire the only registration
	require.NoError(t, env.store.DB().
		Model(&models.PlanRegistration{}).
		Where("developer_id = ?", dev.ID).
		Update("status", "expired").Error)

	_, err := env.gate.Authorize(app.APIKey, secret, "/auth/login")
	assert.ErrorIs(t, err, ErrPlanInactive)
}

func TestGateRegeneratedSecret(t *testing.T) {
	env := newTestEnv(t)
	dev := env.createDeveloper(t, "dev@example.com")
	app, oldSecret := env.createApp(t, dev.ID)

	_, newSecret, err := env.apps.RegenerateSecret(dev.ID, app.ID)
	require.NoError(t, err)

	// Old secret stops working immediately; the new one works
	_, err = env.gate.Authorize(app.APIKey, oldSecret, "/auth/login")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.gate.Authorize(app.APIKey, newSecret, "/auth/login")
	assert.NoError(t, err)
}

func TestGateWritesUsageRecord(t *testing.T) {
	env := newTestEnv(t)
	dev := env.createDeveloper(t, "dev@example.com")
	app, secret := env.createApp(t, dev.ID)

	_, err := env.gate.Authorize(app.APIKey, secret, "/auth/register")
	require.NoError(t, err)

	// The write is async; poll briefly
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var count int64
		require.NoError(t, env.store.DB().
			Model(&models.UsageRecord{}).
			Where("app_id = ? AND endpoint = ?", app.ID, "/auth/register").
			Count(&count).Error)
		if count == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("usage record was never written")
}
