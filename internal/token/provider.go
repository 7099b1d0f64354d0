// Package token signs and verifies the platform's JWTs. Three independent
// signing domains exist, each with its own secret and issuer/audience pair,
// so a token minted in one domain can never verify in another even if the
// payloads overlap.
package token

import (
	"time"

	"github.com/authwave/authwave/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Domain names one signing domain
type Domain string

const (
	// DomainEndUser signs long-lived app-scoped end-user access tokens.
	// No refresh mechanism: end-users re-login after expiry.
	DomainEndUser Domain = "enduser"

	// DomainDeveloper signs the portal access/refresh pair
	DomainDeveloper Domain = "developer"

	// DomainCPanel signs the cookie-delivered admin pair, issued only
	// through SSO ticket redemption
	DomainCPanel Domain = "cpanel"
)

// Token category claim values
const (
	CategoryAccess  = "access"
	CategoryRefresh = "refresh"
)

// Claims is the unified claim set across domains; unused fields stay empty
// and are omitted from the payload.
type Claims struct {
	UserID      string `json:"user_id,omitempty"`
	AppID       string `json:"app_id,omitempty"`
	DeveloperID string `json:"developer_id,omitempty"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	IsVerified  bool   `json:"is_verified,omitempty"`
	Scope       string `json:"scope,omitempty"`
	Category    string `json:"category,omitempty"` // "access" or "refresh"
	jwt.RegisteredClaims
}

type domainConfig struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration // zero for domains without refresh tokens
}

// Provider generates and verifies JWTs for all signing domains. Generation is
// pure and stateless; callers persist refresh tokens where revocation is
// required.
type Provider struct {
	domains map[Domain]domainConfig
}

// NewProvider builds the three platform domains from configuration
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		domains: map[Domain]domainConfig{
			DomainEndUser: {
				secret:    []byte(cfg.EndUserJWTSecret),
				issuer:    "authwave",
				audience:  "authwave:enduser",
				accessTTL: cfg.EndUserTokenExpiration,
			},
			DomainDeveloper: {
				secret:     []byte(cfg.DeveloperJWTSecret),
				issuer:     "authwave",
				audience:   "authwave:developer",
				accessTTL:  cfg.DeveloperAccessExpiration,
				refreshTTL: cfg.DeveloperRefreshExpiration,
			},
			DomainCPanel: {
				secret:     []byte(cfg.CPanelJWTSecret),
				issuer:     "authwave:sso",
				audience:   "authwave:cpanel",
				accessTTL:  cfg.CPanelAccessExpiration,
				refreshTTL: cfg.CPanelRefreshExpiration,
			},
		},
	}
}

// Pair is an access/refresh token pair with the access token's expiry
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

func (p *Provider) sign(
	dc domainConfig,
	claims Claims,
	category string,
	ttl time.Duration,
) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims.Category = category
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    dc.issuer,
		Audience:  jwt.ClaimStrings{dc.audience},
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.New().String(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(dc.secret)
	if err != nil {
		return "", time.Time{}, ErrTokenGeneration
	}
	return signed, expiresAt, nil
}

// GenerateAccess signs an access token. ttlOverride > 0 replaces the domain
// default (per-App access_token_expires_seconds).
func (p *Provider) GenerateAccess(
	domain Domain,
	claims Claims,
	ttlOverride time.Duration,
) (string, time.Time, error) {
	dc, ok := p.domains[domain]
	if !ok {
		return "", time.Time{}, ErrUnknownDomain
	}
	ttl := dc.accessTTL
	if ttlOverride > 0 {
		ttl = ttlOverride
	}
	return p.sign(dc, claims, CategoryAccess, ttl)
}

// GeneratePair signs an access/refresh pair for domains that support refresh
// tokens.
func (p *Provider) GeneratePair(domain Domain, claims Claims) (*Pair, error) {
	dc, ok := p.domains[domain]
	if !ok {
		return nil, ErrUnknownDomain
	}
	if dc.refreshTTL == 0 {
		return nil, ErrUnknownDomain
	}

	access, accessExp, err := p.sign(dc, claims, CategoryAccess, dc.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := p.sign(dc, claims, CategoryRefresh, dc.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (p *Provider) parse(domain Domain, tokenString string) (*Claims, error) {
	dc, ok := p.domains[domain]
	if !ok {
		return nil, ErrUnknownDomain
	}

	t, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(t *jwt.Token) (any, error) {
			return dc.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(dc.issuer),
		jwt.WithAudience(dc.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccess checks signature, issuer, audience, expiry, and category for
// an access token in one domain. Every failure collapses to ErrInvalidToken.
func (p *Provider) VerifyAccess(domain Domain, tokenString string) (*Claims, error) {
	claims, err := p.parse(domain, tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Category != CategoryAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh is VerifyAccess for refresh tokens
func (p *Provider) VerifyRefresh(domain Domain, tokenString string) (*Claims, error) {
	claims, err := p.parse(domain, tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Category != CategoryRefresh {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AccessTTL exposes a domain's configured access-token lifetime
func (p *Provider) AccessTTL(domain Domain) time.Duration {
	return p.domains[domain].accessTTL
}
