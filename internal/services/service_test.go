package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/authwave/authwave/internal/cache"
	"github.com/authwave/authwave/internal/config"
	"github.com/authwave/authwave/internal/credentials"
	"github.com/authwave/authwave/internal/googleauth"
	"github.com/authwave/authwave/internal/mailer"
	"github.com/authwave/authwave/internal/metrics"
	"github.com/authwave/authwave/internal/models"
	"github.com/authwave/authwave/internal/store"
	"github.com/authwave/authwave/internal/token"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// captureSender records outbound mail instead of delivering it
type captureSender struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

func (c *captureSender) Send(ctx context.Context, msg mailer.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// stubVerifier returns a fixed Google profile without any network call
type stubVerifier struct {
	profile *googleauth.Profile
	err     error
}

func (s *stubVerifier) Verify(ctx context.Context, rawToken, audience string) (*googleauth.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

type testEnv struct {
	store    *store.Store
	cfg      *config.Config
	tokens   *token.Provider
	mail     *captureSender
	verifier *stubVerifier

	gate    *GateService
	users   *EndUserService
	devs    *DeveloperService
	broker  *TicketBroker
	apps    *AppService
	tickets cache.Cache[string]
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		BaseURL:       "http://localhost:8080",
		CPanelBaseURL: "http://localhost:3100",

		EndUserJWTSecret:   "enduser-secret",
		DeveloperJWTSecret: "developer-secret",
		CPanelJWTSecret:    "cpanel-secret",

		EndUserTokenExpiration:     168 * time.Hour,
		DeveloperAccessExpiration:  15 * time.Minute,
		DeveloperRefreshExpiration: 168 * time.Hour,
		CPanelAccessExpiration:     15 * time.Minute,
		CPanelRefreshExpiration:    168 * time.Hour,

		VerificationTokenExpiration: 24 * time.Hour,
		ResetTokenExpiration:        time.Hour,

		TicketTTL:       60 * time.Second,
		MaxFailedLogins: 5,
		LockoutDuration: 30 * time.Minute,
	}

	db, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)

	tokens := token.NewProvider(cfg)
	mail := &captureSender{}
	verifier := &stubVerifier{}
	rec := metrics.NewNoopMetrics()
	tickets := cache.NewMemoryCache[string]()

	return &testEnv{
		store:    db,
		cfg:      cfg,
		tokens:   tokens,
		mail:     mail,
		verifier: verifier,

		gate:    NewGateService(db, rec),
		users:   NewEndUserService(db, tokens, verifier, mail, cfg, rec),
		devs:    NewDeveloperService(db, tokens, mail, cfg, rec),
		broker:  NewTicketBroker(db, tickets, cfg, rec),
		apps:    NewAppService(db),
		tickets: tickets,
	}
}

func (e *testEnv) createDeveloper(t *testing.T, email string) *models.Developer {
	t.Helper()
	hash, err := credentials.HashPassword("developer-pass")
	require.NoError(t, err)
	dev := &models.Developer{
		ID:            uuid.New().String(),
		Email:         email,
		Username:      email,
		PasswordHash:  hash,
		EmailVerified: true,
		IsActive:      true,
	}
	require.NoError(t, e.store.CreateDeveloper(dev))
	require.NoError(t, e.store.CreatePlanRegistration(&models.PlanRegistration{
		DeveloperID: dev.ID,
		PlanName:    "starter",
		Status:      "active",
	}))
	return dev
}

func (e *testEnv) createApp(t *testing.T, developerID string) (*models.App, string) {
	t.Helper()
	app, secret, err := e.apps.CreateApp(developerID, CreateAppInput{
		AppName:           "Test App",
		AllowGoogleSignin: true,
	})
	require.NoError(t, err)
	return app, secret
}

// latestToken fetches the newest live verification token for a subject
func (e *testEnv) latestToken(
	t *testing.T,
	subjectID string,
	verifyType models.VerifyType,
) *models.VerificationToken {
	t.Helper()
	var vt models.VerificationToken
	err := e.store.DB().
		Where("subject_id = ? AND verify_type = ? AND used = ?", subjectID, verifyType, false).
		Order("id DESC").
		First(&vt).Error
	require.NoError(t, err)
	return &vt
}
