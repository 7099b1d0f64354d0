package models

import (
	"time"
)

type Developer struct {
	ID            string `gorm:"primaryKey"`
	Email         string `gorm:"uniqueIndex;not null"`
	Username      string `gorm:"uniqueIndex;not null"`
	Name          string
	PasswordHash  string `gorm:"not null"`
	EmailVerified bool   `gorm:"not null;default:false"`
	IsActive      bool   `gorm:"not null;default:false"` // activated on email verification
	IsBlocked     bool   `gorm:"not null;default:false"`

	// Lockout state: counter increments on bad password and is reset on success
	FailedLoginAttempts int
	LockedUntil         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked returns true while the lockout window is in effect
func (d *Developer) IsLocked() bool {
	return d.LockedUntil != nil && time.Now().Before(*d.LockedUntil)
}

// CanSignIn reports whether the account passes the policy gates that are
// independent of credential validity.
func (d *Developer) CanSignIn() bool {
	return !d.IsBlocked && d.EmailVerified
}

// DeveloperRefreshToken is a persisted developer refresh token. Unlike
// end-user access tokens these are stored server-side so they can be
// individually revoked (e.g. all of them on password change).
type DeveloperRefreshToken struct {
	ID          string `gorm:"primaryKey"`
	DeveloperID string `gorm:"not null;index"`
	TokenHash   string `gorm:"uniqueIndex;not null"`         // sha256 of the JWT, never the raw token
	Scope       string `gorm:"not null;default:'developer'"` // "developer" or "cpanel"
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

func (t *DeveloperRefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// PlanRegistration links a developer to a subscription plan. The gate only
// cares whether one active registration exists; plan-limit rules live outside
// this service.
type PlanRegistration struct {
	ID          uint   `gorm:"primaryKey"`
	DeveloperID string `gorm:"not null;index"`
	PlanName    string `gorm:"not null"`
	Status      string `gorm:"not null;default:'active';index"` // 'active', 'expired', 'cancelled'
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// IsCurrent returns true if the registration authorizes API usage right now
func (p *PlanRegistration) IsCurrent() bool {
	if p.Status != "active" {
		return false
	}
	return p.ExpiresAt == nil || time.Now().Before(*p.ExpiresAt)
}
