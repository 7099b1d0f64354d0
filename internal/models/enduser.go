package models

import (
	"time"
)

// EndUser is a customer of one App. The same email may exist as independent
// rows under different apps; uniqueness is always scoped by (app_id, email).
type EndUser struct {
	ID       string `gorm:"primaryKey"`
	AppID    string `gorm:"not null;uniqueIndex:idx_app_email"`
	Email    string `gorm:"not null;uniqueIndex:idx_app_email"`
	Username string
	Name     string

	// PasswordHash is empty for Google-only accounts. Such accounts can only
	// authenticate via Google until an explicit set-password flow completes.
	PasswordHash string

	GoogleID     string `gorm:"index"`
	GoogleLinked bool   `gorm:"not null;default:false"`

	EmailVerified bool `gorm:"not null;default:false"`
	IsBlocked     bool `gorm:"not null;default:false"`

	LastLogin *time.Time
	Extra     string `gorm:"type:text"` // JSON blob of app-defined extra fields

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword returns true when the account holds a password credential
func (u *EndUser) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsGoogleOnly returns true for accounts that can only authenticate via Google
func (u *EndUser) IsGoogleOnly() bool {
	return u.GoogleLinked && u.PasswordHash == ""
}
