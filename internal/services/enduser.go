package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/authwave/authwave/internal/config"
	"github.com/authwave/authwave/internal/credentials"
	"github.com/authwave/authwave/internal/googleauth"
	"github.com/authwave/authwave/internal/mailer"
	"github.com/authwave/authwave/internal/metrics"
	"github.com/authwave/authwave/internal/models"
	"github.com/authwave/authwave/internal/store"
	"github.com/authwave/authwave/internal/token"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const minPasswordLength = 6

// EndUserService implements authentication for the end-users of an App:
// registration, email and Google sign-in, and the single-use link flows
// (verification, password reset, deletion, set-password).
type EndUserService struct {
	store    *store.Store
	tokens   *token.Provider
	verifier googleauth.TokenVerifier
	mail     mailer.Sender
	cfg      *config.Config
	metrics  metrics.Recorder
}

func NewEndUserService(
	st *store.Store,
	tokens *token.Provider,
	verifier googleauth.TokenVerifier,
	mail mailer.Sender,
	cfg *config.Config,
	rec metrics.Recorder,
) *EndUserService {
	return &EndUserService{
		store:    st,
		tokens:   tokens,
		verifier: verifier,
		mail:     mail,
		cfg:      cfg,
		metrics:  rec,
	}
}

// AuthResult is the outcome of a successful register/login/google-auth
type AuthResult struct {
	User        *models.EndUser
	AccessToken string
	ExpiresAt   time.Time
	IsNewUser   bool
}

// sanitizePassword strips control characters that occasionally leak in from
// mobile keyboards and copy-paste, then trims surrounding whitespace.
func sanitizePassword(p string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, p)
	return strings.TrimSpace(cleaned)
}

func validatePassword(p string) (string, error) {
	p = sanitizePassword(p)
	if len(p) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	return p, nil
}

// accessTTL resolves the end-user token lifetime, honoring the per-App
// override when set.
func (s *EndUserService) accessTTL(app *models.App) time.Duration {
	if app.AccessTokenExpiresSeconds > 0 {
		return time.Duration(app.AccessTokenExpiresSeconds) * time.Second
	}
	return 0 // provider falls back to the domain default
}

func (s *EndUserService) issueAccessToken(app *models.App, user *models.EndUser) (string, time.Time, error) {
	start := time.Now()
	signed, expiresAt, err := s.tokens.GenerateAccess(token.DomainEndUser, token.Claims{
		UserID:     user.ID,
		AppID:      app.ID,
		Email:      user.Email,
		Name:       user.Name,
		IsVerified: user.EmailVerified,
	}, s.accessTTL(app))
	if err != nil {
		return "", time.Time{}, err
	}
	s.metrics.RecordTokenIssued(string(token.DomainEndUser), token.CategoryAccess, time.Since(start))
	return signed, expiresAt, nil
}

// googleClientID resolves the OAuth client the app authenticates against.
// Group "common mode" promotes the client from per-App to shared across the
// whole group.
func (s *EndUserService) googleClientID(app *models.App) string {
	if app.GroupID != nil {
		group, err := s.store.GetAppGroup(*app.GroupID)
		if err == nil && group.UseCommonGoogleOAuth && group.CommonGoogleClientID != "" {
			return group.CommonGoogleClientID
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Auth] App group lookup failed for app %s: %v", app.ID, err)
		}
	}
	return app.GoogleClientID
}

func (s *EndUserService) link(path, rawToken string) string {
	return fmt.Sprintf("%s%s?token=%s", s.cfg.BaseURL, path, url.QueryEscape(rawToken))
}

func (s *EndUserService) createLinkToken(
	subjectID, subjectKind string,
	verifyType models.VerifyType,
	payload string,
	ttl time.Duration,
) (*models.VerificationToken, error) {
	raw, err := credentials.CryptoRandomHex(64)
	if err != nil {
		return nil, err
	}
	vt := &models.VerificationToken{
		Token:       raw,
		SubjectID:   subjectID,
		SubjectKind: subjectKind,
		VerifyType:  verifyType,
		Payload:     payload,
		ExpiresAt:   time.Now().Add(ttl),
	}
	if err := s.store.CreateVerificationToken(vt); err != nil {
		return nil, err
	}
	return vt, nil
}

// RegisterInput is the payload for email/password registration
type RegisterInput struct {
	Email    string
	Password string
	Username string
	Name     string
	Extra    string
}

// Register creates an end-user account under the app. The access token is
// issued immediately; email verification happens out-of-band and only flips
// the is_verified claim on the next login.
func (s *EndUserService) Register(app *models.App, in RegisterInput) (*AuthResult, error) {
	if !app.AllowEmailSignin {
		return nil, ErrFeatureDisabled
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}

	password, err := validatePassword(in.Password)
	if err != nil {
		return nil, err
	}

	if existing, err := s.store.GetEndUser(app.ID, email); err == nil {
		s.metrics.RecordRegistration(string(token.DomainEndUser), false)
		if existing.IsGoogleOnly() {
			return nil, ErrUseGoogleSignIn
		}
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := credentials.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.EndUser{
		ID:           uuid.New().String(),
		AppID:        app.ID,
		Email:        email,
		Username:     strings.TrimSpace(in.Username),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Extra:        in.Extra,
	}
	if err := s.store.CreateEndUser(user); err != nil {
		s.metrics.RecordRegistration(string(token.DomainEndUser), false)
		return nil, err
	}

	access, expiresAt, err := s.issueAccessToken(app, user)
	if err != nil {
		return nil, err
	}

	s.sendVerificationEmail(app, user)
	s.metrics.RecordRegistration(string(token.DomainEndUser), true)

	return &AuthResult{User: user, AccessToken: access, ExpiresAt: expiresAt, IsNewUser: true}, nil
}

func (s *EndUserService) sendVerificationEmail(app *models.App, user *models.EndUser) {
	vt, err := s.createLinkToken(
		user.ID, models.SubjectEndUser,
		models.VerifyNewAccount, "",
		s.cfg.VerificationTokenExpiration,
	)
	if err != nil {
		log.Printf("[Auth] Verification token create failed for user %s: %v", user.ID, err)
		return
	}
	link := s.link("/auth/verify-email", vt.Token)
	mailer.SendAsync(s.mail, mailer.Message{
		To:      user.Email,
		Subject: fmt.Sprintf("Verify your email for %s", app.AppName),
		TextBody: fmt.Sprintf(
			"Welcome to %s!\n\nVerify your email address by opening this link:\n%s\n\nThe link expires in %s.",
			app.AppName, link, s.cfg.VerificationTokenExpiration,
		),
	})
}

// ResendVerification issues a fresh verification link, invalidating any
// outstanding ones. Always reports success to the caller.
func (s *EndUserService) ResendVerification(app *models.App, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetEndUser(app.ID, email)
	if err != nil || user.EmailVerified {
		return nil
	}
	if err := s.store.InvalidateVerificationTokens(user.ID, models.VerifyNewAccount); err != nil {
		log.Printf("[Auth] Invalidate verification tokens failed for user %s: %v", user.ID, err)
	}
	s.sendVerificationEmail(app, user)
	return nil
}

// Login authenticates with email and password
func (s *EndUserService) Login(app *models.App, email, password string) (*AuthResult, error) {
	if !app.AllowEmailSignin {
		return nil, ErrFeatureDisabled
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.store.GetEndUser(app.ID, email)
	if err != nil {
		s.metrics.RecordLogin(string(token.DomainEndUser), "email", false)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// Policy rejections come before credential checks: a blocked or
	// unverified account reports its state even on a wrong password.
	if user.IsBlocked {
		s.metrics.RecordLogin(string(token.DomainEndUser), "email", false)
		return nil, ErrAccountBlocked
	}
	if !user.EmailVerified {
		s.metrics.RecordLogin(string(token.DomainEndUser), "email", false)
		return nil, ErrAccountNotVerified
	}
	if user.IsGoogleOnly() {
		s.metrics.RecordLogin(string(token.DomainEndUser), "email", false)
		return nil, ErrUseGoogleSignIn
	}
	if !credentials.VerifyPassword(password, user.PasswordHash) {
		s.metrics.RecordLogin(string(token.DomainEndUser), "email", false)
		return nil, ErrInvalidCredentials
	}

	s.recordSignIn(app, user, "email")

	access, expiresAt, err := s.issueAccessToken(app, user)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLogin(string(token.DomainEndUser), "email", true)

	return &AuthResult{User: user, AccessToken: access, ExpiresAt: expiresAt}, nil
}

func (s *EndUserService) recordSignIn(app *models.App, user *models.EndUser, method string) {
	now := time.Now()
	user.LastLogin = &now
	if err := s.store.UpdateEndUser(user); err != nil {
		log.Printf("[Auth] last_login update failed for user %s: %v", user.ID, err)
	}
	if err := s.store.CreateLoginHistory(&models.LoginHistory{
		UserID: user.ID,
		AppID:  app.ID,
		Method: method,
	}); err != nil {
		log.Printf("[Auth] Login history write failed for user %s: %v", user.ID, err)
	}
}

// GoogleAuth authenticates with a Google ID token. Resolution order:
// by google_id, then by email (silent link), then a fresh account. Accounts
// created or linked through Google are email-verified by definition.
func (s *EndUserService) GoogleAuth(ctx context.Context, app *models.App, rawIDToken string) (*AuthResult, error) {
	if !app.AllowGoogleSignin {
		return nil, ErrFeatureDisabled
	}
	if rawIDToken == "" {
		return nil, ErrMissingCredentials
	}

	profile, err := s.verifier.Verify(ctx, rawIDToken, s.googleClientID(app))
	if err != nil {
		s.metrics.RecordLogin(string(token.DomainEndUser), "google", false)
		return nil, ErrInvalidCredentials
	}

	user, isNew, err := s.resolveOrLinkGoogleIdentity(app, profile)
	if err != nil {
		s.metrics.RecordLogin(string(token.DomainEndUser), "google", false)
		return nil, err
	}

	if user.IsBlocked {
		s.metrics.RecordLogin(string(token.DomainEndUser), "google", false)
		return nil, ErrAccountBlocked
	}

	s.recordSignIn(app, user, "google")

	access, expiresAt, err := s.issueAccessToken(app, user)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLogin(string(token.DomainEndUser), "google", true)
	if isNew {
		s.metrics.RecordRegistration(string(token.DomainEndUser), true)
	}

	return &AuthResult{User: user, AccessToken: access, ExpiresAt: expiresAt, IsNewUser: isNew}, nil
}

func (s *EndUserService) resolveOrLinkGoogleIdentity(
	app *models.App,
	profile *googleauth.Profile,
) (*models.EndUser, bool, error) {
	user, err := s.store.GetEndUserByGoogleID(app.ID, profile.Subject)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	email := strings.ToLower(profile.Email)
	user, err = s.store.GetEndUser(app.ID, email)
	if err == nil {
		// Existing email/password account: link silently. Google has
		// asserted ownership of the address, which also settles any
		// pending verification.
		user.GoogleID = profile.Subject
		user.GoogleLinked = true
		user.EmailVerified = true
		if updateErr := s.store.UpdateEndUser(user); updateErr != nil {
			return nil, false, updateErr
		}
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user = &models.EndUser{
		ID:            uuid.New().String(),
		AppID:         app.ID,
		Email:         email,
		Name:          profile.Name,
		GoogleID:      profile.Subject,
		GoogleLinked:  true,
		EmailVerified: true,
	}
	if err := s.store.CreateEndUser(user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// VerifyEmail consumes a verification link and marks the subject's email as
// verified. The same endpoint serves both end-user and developer links; the
// token row carries which kind it was minted for.
func (s *EndUserService) VerifyEmail(rawToken string) error {
	vt, err := s.store.ConsumeVerificationToken(rawToken, models.VerifyNewAccount)
	if err != nil {
		s.metrics.RecordVerificationToken(string(models.VerifyNewAccount), false)
		if errors.Is(err, store.ErrTokenConsumed) {
			return ErrLinkInvalid
		}
		return err
	}
	s.metrics.RecordVerificationToken(string(models.VerifyNewAccount), true)

	switch vt.SubjectKind {
	case models.SubjectDeveloper:
		dev, err := s.store.GetDeveloperByID(vt.SubjectID)
		if err != nil {
			return err
		}
		dev.EmailVerified = true
		dev.IsActive = true
		return s.store.UpdateDeveloper(dev)
	default:
		user, err := s.store.GetEndUserByID(vt.SubjectID)
		if err != nil {
			return err
		}
		user.EmailVerified = true
		return s.store.UpdateEndUser(user)
	}
}

// RequestPasswordReset starts the reset flow. The response is identical
// whether or not the address exists, so the endpoint cannot be used to
// enumerate accounts.
func (s *EndUserService) RequestPasswordReset(app *models.App, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetEndUser(app.ID, email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Auth] Reset lookup failed: %v", err)
		}
		return nil
	}
	if !user.HasPassword() {
		// Google-only accounts reset nothing; the set-password flow is
		// the supported path for them.
		return nil
	}

	if err := s.store.InvalidateVerificationTokens(user.ID, models.VerifyPasswordReset); err != nil {
		log.Printf("[Auth] Invalidate reset tokens failed for user %s: %v", user.ID, err)
	}
	vt, err := s.createLinkToken(
		user.ID, models.SubjectEndUser,
		models.VerifyPasswordReset, "",
		s.cfg.ResetTokenExpiration,
	)
	if err != nil {
		log.Printf("[Auth] Reset token create failed for user %s: %v", user.ID, err)
		return nil
	}

	link := s.link("/auth/reset-password", vt.Token)
	mailer.SendAsync(s.mail, mailer.Message{
		To:      user.Email,
		Subject: fmt.Sprintf("Reset your password for %s", app.AppName),
		TextBody: fmt.Sprintf(
			"A password reset was requested for your %s account.\n\nOpen this link to choose a new password:\n%s\n\nThe link expires in %s. If you did not request a reset, ignore this email.",
			app.AppName, link, s.cfg.ResetTokenExpiration,
		),
	})
	return nil
}

// CompletePasswordReset consumes a reset link and installs the new password.
// Any remaining reset links for the same account are invalidated.
func (s *EndUserService) CompletePasswordReset(rawToken, newPassword string) error {
	password, err := validatePassword(newPassword)
	if err != nil {
		return err
	}

	vt, err := s.store.ConsumeVerificationToken(rawToken, models.VerifyPasswordReset)
	if err != nil {
		s.metrics.RecordVerificationToken(string(models.VerifyPasswordReset), false)
		if errors.Is(err, store.ErrTokenConsumed) {
			return ErrLinkInvalid
		}
		return err
	}
	s.metrics.RecordVerificationToken(string(models.VerifyPasswordReset), true)

	if vt.SubjectKind != models.SubjectEndUser {
		return ErrLinkInvalid
	}
	user, err := s.store.GetEndUserByID(vt.SubjectID)
	if err != nil {
		return err
	}

	return s.setPassword(user, password)
}

func (s *EndUserService) setPassword(user *models.EndUser, password string) error {
	if user.PasswordHash != "" {
		if err := s.store.CreatePasswordHistory(&models.PasswordHistory{
			SubjectID:   user.ID,
			SubjectKind: models.SubjectEndUser,
			OldHash:     user.PasswordHash,
		}); err != nil {
			log.Printf("[Auth] Password history write failed for user %s: %v", user.ID, err)
		}
	}

	hash, err := credentials.HashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.store.UpdateEndUser(user); err != nil {
		return err
	}

	if err := s.store.InvalidateVerificationTokens(user.ID, models.VerifyPasswordReset); err != nil {
		log.Printf("[Auth] Invalidate reset tokens failed for user %s: %v", user.ID, err)
	}
	return nil
}

// ChangePassword replaces the password for an authenticated user after
// re-verifying the current one.
func (s *EndUserService) ChangePassword(userID, currentPassword, newPassword string) error {
	user, err := s.store.GetEndUserByID(userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return ErrUseGoogleSignIn
	}
	if !credentials.VerifyPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	password, err := validatePassword(newPassword)
	if err != nil {
		return err
	}
	return s.setPassword(user, password)
}

// RequestAccountDeletion emails a single-use confirmation link. Deletion
// never happens in the request that asked for it.
func (s *EndUserService) RequestAccountDeletion(app *models.App, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetEndUser(app.ID, email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Auth] Deletion lookup failed: %v", err)
		}
		return nil
	}

	vt, err := s.createLinkToken(
		user.ID, models.SubjectEndUser,
		models.VerifyDeleteAccount, app.ID,
		s.cfg.VerificationTokenExpiration,
	)
	if err != nil {
		log.Printf("[Auth] Deletion token create failed for user %s: %v", user.ID, err)
		return nil
	}

	link := s.link("/auth/delete-account", vt.Token)
	mailer.SendAsync(s.mail, mailer.Message{
		To:      user.Email,
		Subject: fmt.Sprintf("Confirm account deletion for %s", app.AppName),
		TextBody: fmt.Sprintf(
			"A request was made to delete your %s account.\n\nTo confirm, open this link:\n%s\n\nThe link expires in %s. If you did not request deletion, ignore this email and your account stays untouched.",
			app.AppName, link, s.cfg.VerificationTokenExpiration,
		),
	})
	return nil
}

// DeletionPreview resolves a deletion link without consuming it, so the
// confirmation page can show which account is about to be removed.
func (s *EndUserService) DeletionPreview(rawToken string) (*models.EndUser, error) {
	vt, err := s.store.GetVerificationToken(rawToken)
	if err != nil || vt.Used || vt.IsExpired() || vt.VerifyType != models.VerifyDeleteAccount {
		return nil, ErrLinkInvalid
	}
	user, err := s.store.GetEndUserByID(vt.SubjectID)
	if err != nil {
		return nil, ErrLinkInvalid
	}
	return user, nil
}

// ConfirmAccountDeletion consumes the link and hard-deletes the account.
// Accounts holding a password must re-enter it; Google-only accounts are
// deleted on link possession alone.
func (s *EndUserService) ConfirmAccountDeletion(rawToken, password string) error {
	preview, err := s.DeletionPreview(rawToken)
	if err != nil {
		return err
	}
	if preview.HasPassword() && !credentials.VerifyPassword(password, preview.PasswordHash) {
		return ErrInvalidCredentials
	}

	if _, err := s.store.ConsumeVerificationToken(rawToken, models.VerifyDeleteAccount); err != nil {
		s.metrics.RecordVerificationToken(string(models.VerifyDeleteAccount), false)
		if errors.Is(err, store.ErrTokenConsumed) {
			return ErrLinkInvalid
		}
		return err
	}
	s.metrics.RecordVerificationToken(string(models.VerifyDeleteAccount), true)

	return s.store.DeleteEndUserWithAudit(preview)
}

// RequestSetPassword starts the add-a-password flow for Google-only accounts
func (s *EndUserService) RequestSetPassword(app *models.App, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetEndUser(app.ID, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !user.IsGoogleOnly() {
		return ErrNotGoogleOnly
	}

	if err := s.store.InvalidateVerificationTokens(user.ID, models.VerifySetPasswordGoogle); err != nil {
		log.Printf("[Auth] Invalidate set-password tokens failed for user %s: %v", user.ID, err)
	}
	vt, err := s.createLinkToken(
		user.ID, models.SubjectEndUser,
		models.VerifySetPasswordGoogle, "",
		s.cfg.ResetTokenExpiration,
	)
	if err != nil {
		log.Printf("[Auth] Set-password token create failed for user %s: %v", user.ID, err)
		return nil
	}

	link := s.link("/auth/set-password", vt.Token)
	mailer.SendAsync(s.mail, mailer.Message{
		To:      user.Email,
		Subject: fmt.Sprintf("Set a password for %s", app.AppName),
		TextBody: fmt.Sprintf(
			"Your %s account currently signs in with Google only.\n\nTo add a password, open this link:\n%s\n\nThe link expires in %s.",
			app.AppName, link, s.cfg.ResetTokenExpiration,
		),
	})
	return nil
}

// CompleteSetPassword consumes the set-password link. The account must still
// be Google-only when the link is redeemed.
func (s *EndUserService) CompleteSetPassword(rawToken, newPassword string) error {
	password, err := validatePassword(newPassword)
	if err != nil {
		return err
	}

	vt, err := s.store.ConsumeVerificationToken(rawToken, models.VerifySetPasswordGoogle)
	if err != nil {
		s.metrics.RecordVerificationToken(string(models.VerifySetPasswordGoogle), false)
		if errors.Is(err, store.ErrTokenConsumed) {
			return ErrLinkInvalid
		}
		return err
	}
	s.metrics.RecordVerificationToken(string(models.VerifySetPasswordGoogle), true)

	user, err := s.store.GetEndUserByID(vt.SubjectID)
	if err != nil {
		return err
	}
	if !user.IsGoogleOnly() {
		return ErrNotGoogleOnly
	}

	hash, err := credentials.HashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.store.UpdateEndUser(user)
}

// Profile returns the account for an authenticated user id
func (s *EndUserService) Profile(userID string) (*models.EndUser, error) {
	return s.store.GetEndUserByID(userID)
}

// UpdateProfileInput carries the fields an end-user may change. Nil means
// "leave unchanged".
type UpdateProfileInput struct {
	Name     *string
	Username *string
	Extra    *string
	Email    *string
}

// editPermissions decodes the app's user_edit_permissions JSON. Missing or
// malformed configuration means nothing is editable.
func editPermissions(app *models.App) map[string]bool {
	perms := map[string]bool{}
	if app.UserEditPermissions == "" {
		return perms
	}
	if err := json.Unmarshal([]byte(app.UserEditPermissions), &perms); err != nil {
		log.Printf("[Auth] Bad user_edit_permissions on app %s: %v", app.ID, err)
		return map[string]bool{}
	}
	return perms
}

// UpdateProfile applies the permitted field changes. An email change is never
// applied directly: a confirmation link goes to the new address and the swap
// happens when it is redeemed.
func (s *EndUserService) UpdateProfile(app *models.App, userID string, in UpdateProfileInput) (*models.EndUser, error) {
	user, err := s.store.GetEndUserByID(userID)
	if err != nil {
		return nil, err
	}
	perms := editPermissions(app)

	if in.Name != nil && perms["name"] {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Username != nil && perms["username"] {
		user.Username = strings.TrimSpace(*in.Username)
	}
	if in.Extra != nil && perms["extra"] {
		user.Extra = *in.Extra
	}
	if err := s.store.UpdateEndUser(user); err != nil {
		return nil, err
	}

	if in.Email != nil && perms["email"] {
		newEmail := strings.ToLower(strings.TrimSpace(*in.Email))
		if newEmail != "" && newEmail != user.Email {
			if err := s.requestEmailChange(app, user, newEmail); err != nil {
				return nil, err
			}
		}
	}
	return user, nil
}

func (s *EndUserService) requestEmailChange(app *models.App, user *models.EndUser, newEmail string) error {
	if _, err := s.store.GetEndUser(app.ID, newEmail); err == nil {
		return ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := s.store.InvalidateVerificationTokens(user.ID, models.VerifyProfileUpdate); err != nil {
		log.Printf("[Auth] Invalidate email-change tokens failed for user %s: %v", user.ID, err)
	}
	vt, err := s.createLinkToken(
		user.ID, models.SubjectEndUser,
		models.VerifyProfileUpdate, newEmail,
		s.cfg.VerificationTokenExpiration,
	)
	if err != nil {
		return err
	}

	link := s.link("/auth/confirm-email-change", vt.Token)
	mailer.SendAsync(s.mail, mailer.Message{
		To:      newEmail,
		Subject: fmt.Sprintf("Confirm your new email for %s", app.AppName),
		TextBody: fmt.Sprintf(
			"A request was made to change your %s account email to this address.\n\nConfirm by opening this link:\n%s\n\nThe link expires in %s.",
			app.AppName, link, s.cfg.VerificationTokenExpiration,
		),
	})
	return nil
}

// ConfirmEmailChange consumes an email-change link and swaps the address.
// The token payload carries the pending email.
func (s *EndUserService) ConfirmEmailChange(rawToken string) error {
	vt, err := s.store.ConsumeVerificationToken(rawToken, models.VerifyProfileUpdate)
	if err != nil {
		s.metrics.RecordVerificationToken(string(models.VerifyProfileUpdate), false)
		if errors.Is(err, store.ErrTokenConsumed) {
			return ErrLinkInvalid
		}
		return err
	}
	s.metrics.RecordVerificationToken(string(models.VerifyProfileUpdate), true)

	user, err := s.store.GetEndUserByID(vt.SubjectID)
	if err != nil {
		return err
	}
	if vt.Payload == "" {
		return ErrLinkInvalid
	}
	if _, err := s.store.GetEndUser(user.AppID, vt.Payload); err == nil {
		// Taken since the link was issued
		return ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	user.Email = vt.Payload
	user.EmailVerified = true
	return s.store.UpdateEndUser(user)
}
