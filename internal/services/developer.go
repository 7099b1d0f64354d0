package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/authwave/authwave/internal/config"
	"github.com/authwave/authwave/internal/credentials"
	"github.com/authwave/authwave/internal/mailer"
	"github.com/authwave/authwave/internal/metrics"
	"github.com/authwave/authwave/internal/models"
	"github.com/authwave/authwave/internal/store"
	"github.com/authwave/authwave/internal/token"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeveloperService handles account lifecycle for the developers who own apps:
// portal registration, login under a lockout policy, and the refresh-token
// session model.
type DeveloperService struct {
	store   *store.Store
	tokens  *token.Provider
	mail    mailer.Sender
	cfg     *config.Config
	metrics metrics.Recorder
}

func NewDeveloperService(
	st *store.Store,
	tokens *token.Provider,
	mail mailer.Sender,
	cfg *config.Config,
	rec metrics.Recorder,
) *DeveloperService {
	return &DeveloperService{
		store:   st,
		tokens:  tokens,
		mail:    mail,
		cfg:     cfg,
		metrics: rec,
	}
}

// DeveloperRegisterInput is the payload for portal registration
type DeveloperRegisterInput struct {
	Email    string
	Username string
	Name     string
	Password string
}

// Register creates an inactive developer account and emails a verification
// link. The account cannot sign in until the link is redeemed.
func (s *DeveloperService) Register(in DeveloperRegisterInput) (*models.Developer, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}

	password, err := validatePassword(in.Password)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetDeveloperByEmail(email); err == nil {
		s.metrics.RecordRegistration(string(token.DomainDeveloper), false)
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := credentials.HashPassword(password)
	if err != nil {
		return nil, err
	}

	dev := &models.Developer{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
	}
	if err := s.store.CreateDeveloper(dev); err != nil {
		s.metrics.RecordRegistration(string(token.DomainDeveloper), false)
		// The username column carries its own unique index
		return nil, ErrUsernameExists
	}

	s.sendVerificationEmail(dev)
	s.metrics.RecordRegistration(string(token.DomainDeveloper), true)
	return dev, nil
}

func (s *DeveloperService) sendVerificationEmail(dev *models.Developer) {
	raw, err := credentials.CryptoRandomHex(64)
	if err != nil {
		log.Printf("[Portal] Verification token generate failed for developer %s: %v", dev.ID, err)
		return
	}
	vt := &models.VerificationToken{
		Token:       raw,
		SubjectID:   dev.ID,
		SubjectKind: models.SubjectDeveloper,
		VerifyType:  models.VerifyNewAccount,
		ExpiresAt:   time.Now().Add(s.cfg.VerificationTokenExpiration),
	}
	if err := s.store.CreateVerificationToken(vt); err != nil {
		log.Printf("[Portal] Verification token create failed for developer %s: %v", dev.ID, err)
		return
	}
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", s.cfg.BaseURL, vt.Token)
	mailer.SendAsync(s.mail, mailer.Message{
		To:      dev.Email,
		Subject: "Verify your developer account",
		TextBody: fmt.Sprintf(
			"Welcome!\n\nActivate your developer account by opening this link:\n%s\n\nThe link expires in %s.",
			link, s.cfg.VerificationTokenExpiration,
		),
	})
}

// DeveloperAuthResult is a successful portal login
type DeveloperAuthResult struct {
	Developer *models.Developer
	Pair      *token.Pair
}

// Login authenticates a developer under the lockout policy: each wrong
// password increments a counter, the configured threshold locks the account
// for the lockout window, and a correct password resets the counter.
// While locked, even the correct password is rejected.
func (s *DeveloperService) Login(email, password string) (*DeveloperAuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	dev, err := s.store.GetDeveloperByEmail(email)
	if err != nil {
		s.metrics.RecordLogin(string(token.DomainDeveloper), "email", false)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if dev.IsLocked() {
		s.metrics.RecordLogin(string(token.DomainDeveloper), "email", false)
		return nil, ErrAccountLocked
	}

	if !credentials.VerifyPassword(password, dev.PasswordHash) {
		s.registerFailedAttempt(dev)
		s.metrics.RecordLogin(string(token.DomainDeveloper), "email", false)
		return nil, ErrInvalidCredentials
	}

	if dev.IsBlocked {
		s.metrics.RecordLogin(string(token.DomainDeveloper), "email", false)
		return nil, ErrAccountBlocked
	}
	if !dev.EmailVerified {
		s.metrics.RecordLogin(string(token.DomainDeveloper), "email", false)
		return nil, ErrAccountNotVerified
	}

	if dev.FailedLoginAttempts > 0 || dev.LockedUntil != nil {
		dev.FailedLoginAttempts = 0
		dev.LockedUntil = nil
		if err := s.store.UpdateDeveloper(dev); err != nil {
			log.Printf("[Portal] Lockout reset failed for developer %s: %v", dev.ID, err)
		}
	}

	pair, err := s.issuePair(dev, "developer")
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLogin(string(token.DomainDeveloper), "email", true)
	return &DeveloperAuthResult{Developer: dev, Pair: pair}, nil
}

func (s *DeveloperService) registerFailedAttempt(dev *models.Developer) {
	dev.FailedLoginAttempts++
	if dev.FailedLoginAttempts >= s.cfg.MaxFailedLogins {
		until := time.Now().Add(s.cfg.LockoutDuration)
		dev.LockedUntil = &until
		dev.FailedLoginAttempts = 0
		s.metrics.RecordAccountLockout()
		log.Printf("[Portal] Developer %s locked until %s after repeated failures",
			dev.ID, until.Format(time.RFC3339))
	}
	if err := s.store.UpdateDeveloper(dev); err != nil {
		log.Printf("[Portal] Failed-attempt update failed for developer %s: %v", dev.ID, err)
	}
}

// issuePair signs an access/refresh pair and persists the refresh token's
// digest so the session can be revoked server-side.
func (s *DeveloperService) issuePair(dev *models.Developer, scope string) (*token.Pair, error) {
	domain := token.DomainDeveloper
	if scope == "cpanel" {
		domain = token.DomainCPanel
	}

	start := time.Now()
	pair, err := s.tokens.GeneratePair(domain, token.Claims{
		DeveloperID: dev.ID,
		Email:       dev.Email,
		Name:        dev.Name,
		IsVerified:  dev.EmailVerified,
		Scope:       scope,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued(string(domain), token.CategoryAccess, time.Since(start))

	if err := s.store.CreateRefreshToken(&models.DeveloperRefreshToken{
		ID:          uuid.New().String(),
		DeveloperID: dev.ID,
		TokenHash:   credentials.HashSecret(pair.RefreshToken),
		Scope:       scope,
		ExpiresAt:   pair.RefreshExpiresAt,
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// IssueCPanelPair mints the cookie-delivered admin pair. Only the SSO ticket
// broker calls this, after redeeming a ticket.
func (s *DeveloperService) IssueCPanelPair(dev *models.Developer) (*token.Pair, error) {
	return s.issuePair(dev, "cpanel")
}

// Refresh rotates a refresh token: the presented token must verify as a JWT
// and still exist server-side; it is then deleted and a fresh pair issued.
func (s *DeveloperService) Refresh(domain token.Domain, refreshToken string) (*DeveloperAuthResult, error) {
	claims, err := s.tokens.VerifyRefresh(domain, refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	row, err := s.store.GetRefreshTokenByHash(credentials.HashSecret(refreshToken))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if row.IsExpired() || row.DeveloperID != claims.DeveloperID {
		return nil, ErrInvalidCredentials
	}

	dev, err := s.store.GetDeveloperByID(row.DeveloperID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !dev.CanSignIn() {
		return nil, ErrAccountBlocked
	}

	if err := s.store.DeleteRefreshToken(row.ID); err != nil {
		return nil, err
	}
	pair, err := s.issuePair(dev, row.Scope)
	if err != nil {
		return nil, err
	}
	return &DeveloperAuthResult{Developer: dev, Pair: pair}, nil
}

// Logout revokes one refresh token. Unknown tokens are a no-op: logout is
// idempotent.
func (s *DeveloperService) Logout(refreshToken string) error {
	row, err := s.store.GetRefreshTokenByHash(credentials.HashSecret(refreshToken))
	if err != nil {
		return nil
	}
	return s.store.DeleteRefreshToken(row.ID)
}

// ChangePassword re-verifies the current password, installs the new one, and
// revokes every refresh token the developer holds in any scope.
func (s *DeveloperService) ChangePassword(developerID, currentPassword, newPassword string) error {
	dev, err := s.store.GetDeveloperByID(developerID)
	if err != nil {
		return err
	}
	if !credentials.VerifyPassword(currentPassword, dev.PasswordHash) {
		return ErrInvalidCredentials
	}

	password, err := validatePassword(newPassword)
	if err != nil {
		return err
	}
	return s.setPassword(dev, password)
}

func (s *DeveloperService) setPassword(dev *models.Developer, password string) error {
	if err := s.store.CreatePasswordHistory(&models.PasswordHistory{
		SubjectID:   dev.ID,
		SubjectKind: models.SubjectDeveloper,
		OldHash:     dev.PasswordHash,
	}); err != nil {
		log.Printf("[Portal] Password history write failed for developer %s: %v", dev.ID, err)
	}

	hash, err := credentials.HashPassword(password)
	if err != nil {
		return err
	}
	dev.PasswordHash = hash
	if err := s.store.UpdateDeveloper(dev); err != nil {
		return err
	}

	// Every existing session dies with the old password
	if err := s.store.DeleteRefreshTokensByDeveloper(dev.ID); err != nil {
		log.Printf("[Portal] Refresh token revocation failed for developer %s: %v", dev.ID, err)
	}
	return nil
}

// RequestPasswordReset mirrors the end-user flow for portal accounts
func (s *DeveloperService) RequestPasswordReset(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	dev, err := s.store.GetDeveloperByEmail(email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Portal] Reset lookup failed: %v", err)
		}
		return nil
	}

	if err := s.store.InvalidateVerificationTokens(dev.ID, models.VerifyPasswordReset); err != nil {
		log.Printf("[Portal] Invalidate reset tokens failed for developer %s: %v", dev.ID, err)
	}
	raw, err := credentials.CryptoRandomHex(64)
	if err != nil {
		return nil
	}
	vt := &models.VerificationToken{
		Token:       raw,
		SubjectID:   dev.ID,
		SubjectKind: models.SubjectDeveloper,
		VerifyType:  models.VerifyPasswordReset,
		ExpiresAt:   time.Now().Add(s.cfg.ResetTokenExpiration),
	}
	if err := s.store.CreateVerificationToken(vt); err != nil {
		log.Printf("[Portal] Reset token create failed for developer %s: %v", dev.ID, err)
		return nil
	}

	link := fmt.Sprintf("%s/portal/reset-password?token=%s", s.cfg.BaseURL, vt.Token)
	mailer.SendAsync(s.mail, mailer.Message{
		To:      dev.Email,
		Subject: "Reset your developer account password",
		TextBody: fmt.Sprintf(
			"A password reset was requested for your developer account.\n\nOpen this link to choose a new password:\n%s\n\nThe link expires in %s. If you did not request a reset, ignore this email.",
			link, s.cfg.ResetTokenExpiration,
		),
	})
	return nil
}

// CompletePasswordReset consumes a developer reset link
func (s *DeveloperService) CompletePasswordReset(rawToken, newPassword string) error {
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

	if vt.SubjectKind != models.SubjectDeveloper {
		return ErrLinkInvalid
	}
	dev, err := s.store.GetDeveloperByID(vt.SubjectID)
	if err != nil {
		return err
	}
	return s.setPassword(dev, password)
}

// Get returns a developer by id
func (s *DeveloperService) Get(developerID string) (*models.Developer, error) {
	return s.store.GetDeveloperByID(developerID)
}
