package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/authwave/authwave/internal/cache"
	"github.com/authwave/authwave/internal/config"
	"github.com/authwave/authwave/internal/googleauth"
	"github.com/authwave/authwave/internal/mailer"
	"github.com/authwave/authwave/internal/metrics"
	"github.com/authwave/authwave/internal/middleware"
	"github.com/authwave/authwave/internal/models"
	"github.com/authwave/authwave/internal/services"
	"github.com/authwave/authwave/internal/store"
	"github.com/authwave/authwave/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type dropSender struct{}

func (dropSender) Send(ctx context.Context, msg mailer.Message) error { return nil }

type fixedVerifier struct {
	profile *googleauth.Profile
}

func (v *fixedVerifier) Verify(ctx context.Context, raw, audience string) (*googleauth.Profile, error) {
	if v.profile == nil {
		return nil, googleauth.ErrInvalidIDToken
	}
	return v.profile, nil
}

// serverFixture wires the full route table the way the server does, minus
// rate limiting and metrics endpoints.
type serverFixture struct {
	router   *gin.Engine
	store    *store.Store
	devs     *services.DeveloperService
	apps     *services.AppService
	verifier *fixedVerifier
}

func newServerFixture(t *testing.T) *serverFixture {
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
	rec := metrics.NewNoopMetrics()
	mail := dropSender{}
	tickets := cache.NewMemoryCache[string]()

	verifier := &fixedVerifier{}
	gateService := services.NewGateService(db, rec)
	endUserService := services.NewEndUserService(db, tokens, verifier, mail, cfg, rec)
	developerService := services.NewDeveloperService(db, tokens, mail, cfg, rec)
	ticketBroker := services.NewTicketBroker(db, tickets, cfg, rec)
	appService := services.NewAppService(db)

	endUserHandler := NewEndUserHandler(endUserService)
	developerHandler := NewDeveloperHandler(developerService, appService)
	ssoHandler := NewSSOHandler(ticketBroker, developerService, cfg)

	r := gin.New()

	links := r.Group("/auth")
	{
		links.GET("/verify-email", endUserHandler.VerifyEmail)
		links.POST("/reset-password", endUserHandler.CompletePasswordReset)
	}

	authAPI := r.Group("/auth", middleware.AppGate(gateService))
	{
		authAPI.POST("/register", endUserHandler.Register)
		authAPI.POST("/login", endUserHandler.Login)
		authAPI.POST("/google", endUserHandler.GoogleAuth)

		user := authAPI.Group("", middleware.RequireEndUser(tokens))
		{
			user.GET("/profile", endUserHandler.Profile)
		}
	}

	keyed := r.Group("/:apiKey", middleware.AppGate(gateService))
	{
		keyed.POST("/auth/register", endUserHandler.Register)
		keyed.POST("/auth/login", endUserHandler.Login)

		keyedUser := keyed.Group("", middleware.RequireEndUser(tokens))
		{
			keyedUser.GET("/user/profile", endUserHandler.Profile)
		}
	}

	portal := r.Group("/portal")
	{
		portal.POST("/register", developerHandler.Register)
		portal.POST("/login", developerHandler.Login)
		portal.POST("/refresh", developerHandler.Refresh)

		dev := portal.Group("", middleware.RequireDeveloper(tokens))
		{
			dev.GET("/me", developerHandler.Me)
			dev.POST("/cpanel-ticket", ssoHandler.IssueTicket)
			dev.POST("/apps", developerHandler.CreateApp)
		}
	}

	cpanel := r.Group("/cpanel")
	{
		cpanel.POST("/redeem-ticket", ssoHandler.RedeemTicket)
		cpanel.GET("/me", middleware.RequireCPanel(tokens), ssoHandler.Me)
	}

	return &serverFixture{router: r, store: db, devs: developerService, apps: appService, verifier: verifier}
}

// payload unwraps the success envelope's data object
func payload(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "success responses carry a data object: %v", body)
	return data
}

func (f *serverFixture) do(t *testing.T, method, path string, body any, mutate func(*http.Request)) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	parsed := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &parsed)
	return w, parsed
}

// seedApp creates a verified developer with an active plan and one app,
// returning the app credentials for the X-API-* headers.
func (f *serverFixture) seedApp(t *testing.T) (*models.Developer, *models.App, string) {
	t.Helper()

	devBody, err := f.devs.Register(services.DeveloperRegisterInput{
		Email:    "dev@example.com",
		Username: "dev",
		Password: "developer-pass",
	})
	require.NoError(t, err)
	devBody.EmailVerified = true
	devBody.IsActive = true
	require.NoError(t, f.store.UpdateDeveloper(devBody))
	require.NoError(t, f.store.CreatePlanRegistration(&models.PlanRegistration{
		DeveloperID: devBody.ID,
		PlanName:    "starter",
		Status:      "active",
	}))

	app, secret, err := f.apps.CreateApp(devBody.ID, services.CreateAppInput{AppName: "HTTP Test"})
	require.NoError(t, err)
	return devBody, app, secret
}

func withAppHeaders(app *models.App, secret string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set(middleware.HeaderAPIKey, app.APIKey)
		req.Header.Set(middleware.HeaderAPISecret, secret)
	}
}

func TestRegisterAndLoginOverHTTP(t *testing.T) {
	f := newServerFixture(t)
	_, app, secret := f.seedApp(t)

	w, body := f.do(t, http.MethodPost, "/auth/register", gin.H{
		"email":    "user@example.com",
		"password": "secret-pass",
	}, withAppHeaders(app, secret))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	data := payload(t, body)
	assert.NotEmpty(t, data["access_token"])
	assert.Equal(t, "Bearer", data["token_type"])
	assert.NotZero(t, data["expires_in"])
	user := data["user"].(map[string]any)
	assert.Equal(t, "user@example.com", user["email"])
	assert.NotContains(t, user, "password_hash")

	// Duplicate registration maps to the conflict envelope
	w, body = f.do(t, http.MethodPost, "/auth/register", gin.H{
		"email":    "user@example.com",
		"password": "secret-pass",
	}, withAppHeaders(app, secret))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, CodeEmailExists, body["error"])

	// Wrong password
	w, body = f.do(t, http.MethodPost, "/auth/login", gin.H{
		"email":    "user@example.com",
		"password": "wrong-pass",
	}, withAppHeaders(app, secret))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeInvalidCredentials, body["error"])

	// Login is blocked until the verification link is clicked
	w, body = f.do(t, http.MethodPost, "/auth/login", gin.H{
		"email":    "user@example.com",
		"password": "secret-pass",
	}, withAppHeaders(app, secret))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeAccountNotVerified, body["error"])
}

func TestVerifyEmailLinkOverHTTP(t *testing.T) {
	f := newServerFixture(t)
	_, app, secret := f.seedApp(t)

	w, body := f.do(t, http.MethodPost, "/auth/register", gin.H{
		"email":    "user@example.com",
		"password": "secret-pass",
	}, withAppHeaders(app, secret))
	require.Equal(t, http.StatusCreated, w.Code)
	userID := payload(t, body)["user"].(map[string]any)["id"].(string)

	var vt models.VerificationToken
	require.NoError(t, f.store.DB().
		Where("subject_id = ? AND verify_type = ?", userID, models.VerifyNewAccount).
		First(&vt).Error)

	// The link click returns a page, not JSON, and needs no API headers
	w, _ = f.do(t, http.MethodGet, "/auth/verify-email?token="+vt.Token, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Email verified")

	// Second click: same page shape, failure message
	w, _ = f.do(t, http.MethodGet, "/auth/verify-email?token="+vt.Token, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Link invalid")
}

func TestAppGateGuardsAuthAPI(t *testing.T) {
	f := newServerFixture(t)
	_, app, _ := f.seedApp(t)

	w, body := f.do(t, http.MethodPost, "/auth/login", gin.H{
		"email":    "user@example.com",
		"password": "secret-pass",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MISSING_CREDENTIALS", body["error"])

	w, body = f.do(t, http.MethodPost, "/auth/login", gin.H{
		"email":    "user@example.com",
		"password": "secret-pass",
	}, withAppHeaders(app, "wrong-secret"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", body["error"])
}

func TestDeveloperLockoutOverHTTP(t *testing.T) {
	f := newServerFixture(t)
	f.seedApp(t)

	for i := 0; i < 5; i++ {
		w, _ := f.do(t, http.MethodPost, "/portal/login", gin.H{
			"email":    "dev@example.com",
			"password": fmt.Sprintf("wrong-%d", i),
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w, body := f.do(t, http.MethodPost, "/portal/login", gin.H{
		"email":    "dev@example.com",
		"password": "developer-pass",
	}, nil)
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, CodeAccountLocked, body["error"])
}

func TestSSOHandoffOverHTTP(t *testing.T) {
	f := newServerFixture(t)
	f.seedApp(t)

	// Portal sign-in
	w, body := f.do(t, http.MethodPost, "/portal/login", gin.H{
		"email":    "dev@example.com",
		"password": "developer-pass",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	access := payload(t, body)["access_token"].(string)

	// Ticket issuance requires the portal bearer token
	w, _ = f.do(t, http.MethodPost, "/portal/cpanel-ticket", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = f.do(t, http.MethodPost, "/portal/cpanel-ticket", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+access)
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := payload(t, body)
	ticket := data["ticket"].(string)
	assert.Contains(t, data["url"], "/sso?ticket=")
	assert.EqualValues(t, 60, data["expires_in"])

	// Redemption sets the cpanel cookies
	w, body = f.do(t, http.MethodPost, "/cpanel/redeem-ticket", gin.H{"ticket": ticket}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dev := payload(t, body)["developer"].(map[string]any)
	assert.Equal(t, "dev@example.com", dev["email"])

	cookies := w.Result().Cookies()
	var accessCookie *http.Cookie
	for _, c := range cookies {
		if c.Name == middleware.CPanelAccessCookie {
			accessCookie = c
		}
	}
	require.NotNil(t, accessCookie, "redemption must set the access cookie")
	assert.True(t, accessCookie.HttpOnly)

	// The same ticket is gone forever
	w, body = f.do(t, http.MethodPost, "/cpanel/redeem-ticket", gin.H{"ticket": ticket}, nil)
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, CodeTicketRedeemFailed, body["error"])

	// The cookie session works against /cpanel/me
	w, body = f.do(t, http.MethodGet, "/cpanel/me", nil, func(req *http.Request) {
		req.AddCookie(accessCookie)
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dev@example.com", payload(t, body)["developer"].(map[string]any)["email"])
}

func TestPathSegmentKeyOverHTTP(t *testing.T) {
	f := newServerFixture(t)
	_, app, secret := f.seedApp(t)

	// The API key rides in the path; only the secret is a header
	w, body := f.do(t, http.MethodPost, "/"+app.APIKey+"/auth/register", gin.H{
		"email":    "user@example.com",
		"password": "secret-pass",
	}, func(req *http.Request) {
		req.Header.Set(middleware.HeaderAPISecret, secret)
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	access := payload(t, body)["access_token"].(string)

	w, body = f.do(t, http.MethodGet, "/"+app.APIKey+"/user/profile", nil, func(req *http.Request) {
		req.Header.Set(middleware.HeaderAPISecret, secret)
		req.Header.Set("Authorization", "Bearer "+access)
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	user := payload(t, body)["user"].(map[string]any)
	assert.Equal(t, "user@example.com", user["email"])

	// A wrong path key fails the gate like a wrong header key
	w, _ = f.do(t, http.MethodPost, "/ak_wrong/auth/register", gin.H{
		"email":    "other@example.com",
		"password": "secret-pass",
	}, func(req *http.Request) {
		req.Header.Set(middleware.HeaderAPISecret, secret)
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGoogleOnlyLoginOverHTTP(t *testing.T) {
	f := newServerFixture(t)
	_, app, secret := f.seedApp(t)

	f.verifier.profile = &googleauth.Profile{
		Subject: "google-sub-1",
		Email:   "gonly@example.com",
	}
	w, _ := f.do(t, http.MethodPost, "/auth/google", gin.H{
		"id_token": "stub-id-token",
	}, withAppHeaders(app, secret))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A password login against a Google-only account is a policy rejection,
	// not a conflict
	w, body := f.do(t, http.MethodPost, "/auth/login", gin.H{
		"email":    "gonly@example.com",
		"password": "whatever-pass",
	}, withAppHeaders(app, secret))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeUseGoogleSignin, body["error"])
}

func TestRedeemTicketRequiresBody(t *testing.T) {
	f := newServerFixture(t)

	w, body := f.do(t, http.MethodPost, "/cpanel/redeem-ticket", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeMissingCredentials, body["error"])

	w, body = f.do(t, http.MethodPost, "/cpanel/redeem-ticket", gin.H{"ticket": "nonexistent"}, nil)
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, CodeTicketRedeemFailed, body["error"])
}
