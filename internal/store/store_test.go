package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/authwave/authwave/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// TestStoreWithSQLite tests store operations with SQLite
func TestStoreWithSQLite(t *testing.T) {
	testBasicOperations(t, "sqlite", ":memory:")
}

// TestStoreWithPostgres tests store operations with PostgreSQL
func TestStoreWithPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	// Recover from panic if Docker is not available
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping PostgreSQL test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	testBasicOperations(t, "postgres", dsn)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("sqlite", ":memory:")
	require.NoError(t, err)
	return s
}

func createTestDeveloper(t *testing.T, s *Store, email string) *models.Developer {
	t.Helper()
	dev := &models.Developer{
		ID:            uuid.New().String(),
		Email:         email,
		Username:      email,
		PasswordHash:  "hash",
		EmailVerified: true,
		IsActive:      true,
	}
	require.NoError(t, s.CreateDeveloper(dev))
	return dev
}

func createTestApp(t *testing.T, s *Store, developerID string) *models.App {
	t.Helper()
	app := &models.App{
		ID:               uuid.New().String(),
		DeveloperID:      developerID,
		AppName:          "Test App",
		APIKey:           "ak_" + uuid.New().String(),
		APISecretHash:    uuid.New().String(),
		AllowEmailSignin: true,
	}
	require.NoError(t, s.CreateApp(app))
	return app
}

func testBasicOperations(t *testing.T, driver, dsn string) {
	s, err := New(driver, dsn)
	require.NoError(t, err)

	dev := createTestDeveloper(t, s, "dev@example.com")
	app := createTestApp(t, s, dev.ID)

	t.Run("GetAppByCredentials", func(t *testing.T) {
		found, err := s.GetAppByCredentials(app.APIKey, app.APISecretHash)
		require.NoError(t, err)
		assert.Equal(t, app.ID, found.ID)

		_, err = s.GetAppByCredentials(app.APIKey, "wrong-digest")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

		_, err = s.GetAppByCredentials("wrong-key", app.APISecretHash)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("EndUserScopedByApp", func(t *testing.T) {
		otherApp := createTestApp(t, s, dev.ID)

		user := &models.EndUser{
			ID:           uuid.New().String(),
			AppID:        app.ID,
			Email:        "user@example.com",
			PasswordHash: "hash",
		}
		require.NoError(t, s.CreateEndUser(user))

		// Same email under a different app is a separate account
		twin := &models.EndUser{
			ID:           uuid.New().String(),
			AppID:        otherApp.ID,
			Email:        "user@example.com",
			PasswordHash: "other-hash",
		}
		require.NoError(t, s.CreateEndUser(twin))

		found, err := s.GetEndUser(app.ID, "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)

		found, err = s.GetEndUser(otherApp.ID, "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, twin.ID, found.ID)

		// Duplicate within one app is rejected by the unique index
		dup := &models.EndUser{
			ID:    uuid.New().String(),
			AppID: app.ID,
			Email: "user@example.com",
		}
		assert.Error(t, s.CreateEndUser(dup))
	})

	t.Run("ActivePlan", func(t *testing.T) {
		_, err := s.GetActivePlan(dev.ID)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

		require.NoError(t, s.CreatePlanRegistration(&models.PlanRegistration{
			DeveloperID: dev.ID,
			PlanName:    "starter",
			Status:      "active",
		}))

		plan, err := s.GetActivePlan(dev.ID)
		require.NoError(t, err)
		assert.Equal(t, "starter", plan.PlanName)
	})

	t.Run("ExpiredPlanIsNotActive", func(t *testing.T) {
		other := createTestDeveloper(t, s, "expired@example.com")
		past := time.Now().Add(-time.Hour)
		require.NoError(t, s.CreatePlanRegistration(&models.PlanRegistration{
			DeveloperID: other.ID,
			PlanName:    "starter",
			Status:      "active",
			ExpiresAt:   &past,
		}))

		_, err := s.GetActivePlan(other.ID)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("RefreshTokens", func(t *testing.T) {
		row := &models.DeveloperRefreshToken{
			ID:          uuid.New().String(),
			DeveloperID: dev.ID,
			TokenHash:   uuid.New().String(),
			Scope:       "developer",
			ExpiresAt:   time.Now().Add(time.Hour),
		}
		require.NoError(t, s.CreateRefreshToken(row))

		found, err := s.GetRefreshTokenByHash(row.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, row.ID, found.ID)

		require.NoError(t, s.DeleteRefreshTokensByDeveloper(dev.ID))
		_, err = s.GetRefreshTokenByHash(row.TokenHash)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestConsumeVerificationToken(t *testing.T) {
	s := newTestStore(t)

	vt := &models.VerificationToken{
		Token:       "tok-single-use",
		SubjectID:   "user-1",
		SubjectKind: models.SubjectEndUser,
		VerifyType:  models.VerifyPasswordReset,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, s.CreateVerificationToken(vt))

	consumed, err := s.ConsumeVerificationToken("tok-single-use", models.VerifyPasswordReset)
	require.NoError(t, err)
	assert.True(t, consumed.Used)
	assert.Equal(t, "user-1", consumed.SubjectID)

	// Second consumption of the same token must fail
	_, err = s.ConsumeVerificationToken("tok-single-use", models.VerifyPasswordReset)
	assert.ErrorIs(t, err, ErrTokenConsumed)
}

func TestConsumeVerificationToken_WrongType(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateVerificationToken(&models.VerificationToken{
		Token:       "tok-reset",
		SubjectID:   "user-1",
		SubjectKind: models.SubjectEndUser,
		VerifyType:  models.VerifyPasswordReset,
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	// A reset token cannot be redeemed as a deletion token
	_, err := s.ConsumeVerificationToken("tok-reset", models.VerifyDeleteAccount)
	assert.ErrorIs(t, err, ErrTokenConsumed)

	// And it remains valid for its own type
	_, err = s.ConsumeVerificationToken("tok-reset", models.VerifyPasswordReset)
	assert.NoError(t, err)
}

func TestConsumeVerificationToken_Expired(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateVerificationToken(&models.VerificationToken{
		Token:       "tok-expired",
		SubjectID:   "user-1",
		SubjectKind: models.SubjectEndUser,
		VerifyType:  models.VerifyNewAccount,
		ExpiresAt:   time.Now().Add(-time.Minute),
	}))

	_, err := s.ConsumeVerificationToken("tok-expired", models.VerifyNewAccount)
	assert.ErrorIs(t, err, ErrTokenConsumed)
}

func TestConsumeVerificationToken_Concurrent(t *testing.T) {
	// A file-backed database: every pooled connection must see the same
	// data, which :memory: does not guarantee.
	s, err := New("sqlite", filepath.Join(t.TempDir(), "race.db"))
	require.NoError(t, err)

	require.NoError(t, s.CreateVerificationToken(&models.VerificationToken{
		Token:       "tok-race",
		SubjectID:   "user-1",
		SubjectKind: models.SubjectEndUser,
		VerifyType:  models.VerifyPasswordReset,
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeVerificationToken("tok-race", models.VerifyPasswordReset); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one consumer may win")
}

func TestInvalidateVerificationTokens(t *testing.T) {
	s := newTestStore(t)

	for _, tok := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateVerificationToken(&models.VerificationToken{
			Token:       tok,
			SubjectID:   "user-1",
			SubjectKind: models.SubjectEndUser,
			VerifyType:  models.VerifyPasswordReset,
			ExpiresAt:   time.Now().Add(time.Hour),
		}))
	}
	// A token of another type for the same subject stays live
	require.NoError(t, s.CreateVerificationToken(&models.VerificationToken{
		Token:       "d",
		SubjectID:   "user-1",
		SubjectKind: models.SubjectEndUser,
		VerifyType:  models.VerifyNewAccount,
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	require.NoError(t, s.InvalidateVerificationTokens("user-1", models.VerifyPasswordReset))

	for _, tok := range []string{"a", "b", "c"} {
		_, err := s.ConsumeVerificationToken(tok, models.VerifyPasswordReset)
		assert.ErrorIs(t, err, ErrTokenConsumed)
	}
	_, err := s.ConsumeVerificationToken("d", models.VerifyNewAccount)
	assert.NoError(t, err)
}

func TestDeleteEndUserWithAudit(t *testing.T) {
	s := newTestStore(t)
	dev := createTestDeveloper(t, s, "dev@example.com")
	app := createTestApp(t, s, dev.ID)

	user := &models.EndUser{
		ID:           uuid.New().String(),
		AppID:        app.ID,
		Email:        "gone@example.com",
		Username:     "gone",
		Name:         "Going Gone",
		PasswordHash: "hash",
	}
	require.NoError(t, s.CreateEndUser(user))

	require.NoError(t, s.CreateLoginHistory(&models.LoginHistory{
		UserID: user.ID, AppID: app.ID, Method: "email",
	}))
	require.NoError(t, s.CreatePasswordHistory(&models.PasswordHistory{
		SubjectID: user.ID, SubjectKind: models.SubjectEndUser, OldHash: "old",
	}))
	require.NoError(t, s.CreateVerificationToken(&models.VerificationToken{
		Token: "pending", SubjectID: user.ID, SubjectKind: models.SubjectEndUser,
		VerifyType: models.VerifyPasswordReset, ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, s.DeleteEndUserWithAudit(user))

	_, err := s.GetEndUserByID(user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Associated rows are gone
	var loginCount, tokenCount int64
	require.NoError(t, s.DB().Model(&models.LoginHistory{}).Where("user_id = ?", user.ID).Count(&loginCount).Error)
	require.NoError(t, s.DB().Model(&models.VerificationToken{}).Where("subject_id = ?", user.ID).Count(&tokenCount).Error)
	assert.Zero(t, loginCount)
	assert.Zero(t, tokenCount)

	// The audit snapshot survives
	var audit models.DeletionHistory
	require.NoError(t, s.DB().Where("email = ?", "gone@example.com").First(&audit).Error)
	assert.Equal(t, app.ID, audit.AppID)
	assert.Equal(t, "gone", audit.Username)
	assert.False(t, audit.DeletedAt.IsZero())
}
