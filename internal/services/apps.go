package services

import (
	"strings"

	"github.com/authwave/authwave/internal/credentials"
	"github.com/authwave/authwave/internal/models"
	"github.com/authwave/authwave/internal/store"

	"github.com/google/uuid"
)

// AppService manages the apps a developer registers on the platform
type AppService struct {
	store *store.Store
}

func NewAppService(st *store.Store) *AppService {
	return &AppService{store: st}
}

// CreateAppInput is the payload for registering a new app
type CreateAppInput struct {
	AppName           string
	SupportEmail      string
	AllowEmailSignin  *bool
	AllowGoogleSignin bool
	GoogleClientID    string
}

// CreateApp registers an app and mints its credential pair. The plaintext
// secret is returned exactly once; only its digest is stored.
func (s *AppService) CreateApp(developerID string, in CreateAppInput) (*models.App, string, error) {
	name := strings.TrimSpace(in.AppName)
	if name == "" {
		return nil, "", ErrMissingCredentials
	}

	apiKey, err := credentials.GenerateAPIKey()
	if err != nil {
		return nil, "", err
	}
	secret, digest, err := credentials.GenerateAPISecret()
	if err != nil {
		return nil, "", err
	}

	app := &models.App{
		ID:                uuid.New().String(),
		DeveloperID:       developerID,
		AppName:           name,
		SupportEmail:      strings.TrimSpace(in.SupportEmail),
		APIKey:            apiKey,
		APISecretHash:     digest,
		AllowEmailSignin:  true,
		AllowGoogleSignin: in.AllowGoogleSignin,
		GoogleClientID:    strings.TrimSpace(in.GoogleClientID),
	}
	if in.AllowEmailSignin != nil {
		app.AllowEmailSignin = *in.AllowEmailSignin
	}

	if err := s.store.CreateApp(app); err != nil {
		return nil, "", err
	}
	return app, secret, nil
}

// ListApps returns every app owned by the developer
func (s *AppService) ListApps(developerID string) ([]models.App, error) {
	return s.store.GetAppsByDeveloper(developerID)
}

// GetApp returns one app, enforcing ownership
func (s *AppService) GetApp(developerID, appID string) (*models.App, error) {
	app, err := s.store.GetAppByID(appID)
	if err != nil {
		return nil, err
	}
	if app.DeveloperID != developerID {
		return nil, ErrInvalidCredentials
	}
	return app, nil
}

// RegenerateSecret replaces an app's API secret. The old secret stops working
// the moment the new digest is stored.
func (s *AppService) RegenerateSecret(developerID, appID string) (*models.App, string, error) {
	app, err := s.GetApp(developerID, appID)
	if err != nil {
		return nil, "", err
	}

	secret, digest, err := credentials.GenerateAPISecret()
	if err != nil {
		return nil, "", err
	}
	app.APISecretHash = digest
	if err := s.store.UpdateApp(app); err != nil {
		return nil, "", err
	}
	return app, secret, nil
}

// UpdateAppInput carries mutable app settings; nil leaves a field unchanged
type UpdateAppInput struct {
	AppName             *string
	SupportEmail        *string
	AllowEmailSignin    *bool
	AllowGoogleSignin   *bool
	GoogleClientID      *string
	GoogleClientSecret  *string
	ExtraFields         *string
	UserEditPermissions *string
	AccessTokenExpires  *int
}

// UpdateApp applies settings changes, enforcing ownership
func (s *AppService) UpdateApp(developerID, appID string, in UpdateAppInput) (*models.App, error) {
	app, err := s.GetApp(developerID, appID)
	if err != nil {
		return nil, err
	}

	if in.AppName != nil && strings.TrimSpace(*in.AppName) != "" {
		app.AppName = strings.TrimSpace(*in.AppName)
	}
	if in.SupportEmail != nil {
		app.SupportEmail = strings.TrimSpace(*in.SupportEmail)
		app.SupportEmailVerified = false
	}
	if in.AllowEmailSignin != nil {
		app.AllowEmailSignin = *in.AllowEmailSignin
	}
	if in.AllowGoogleSignin != nil {
		app.AllowGoogleSignin = *in.AllowGoogleSignin
	}
	if in.GoogleClientID != nil {
		app.GoogleClientID = strings.TrimSpace(*in.GoogleClientID)
	}
	if in.GoogleClientSecret != nil {
		app.GoogleClientSecret = *in.GoogleClientSecret
	}
	if in.ExtraFields != nil {
		app.ExtraFields = *in.ExtraFields
	}
	if in.UserEditPermissions != nil {
		app.UserEditPermissions = *in.UserEditPermissions
	}
	if in.AccessTokenExpires != nil && *in.AccessTokenExpires >= 0 {
		app.AccessTokenExpiresSeconds = *in.AccessTokenExpires
	}

	if err := s.store.UpdateApp(app); err != nil {
		return nil, err
	}
	return app, nil
}
