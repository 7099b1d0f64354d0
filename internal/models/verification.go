package models

import (
	"time"
)

// VerifyType discriminates what state transition a single-use token guards
type VerifyType string

const (
	VerifyNewAccount        VerifyType = "New Account"
	VerifyPasswordReset     VerifyType = "Password change"
	VerifyDeleteAccount     VerifyType = "Delete Account"
	VerifySetPasswordGoogle VerifyType = "Set Password - Google User"
	VerifyProfileUpdate     VerifyType = "profile_update"
)

// SubjectKind names the credential domain a token's subject belongs to
const (
	SubjectEndUser   = "enduser"
	SubjectDeveloper = "developer"
)

// VerificationToken is an opaque, persisted, expiring token guarding exactly
// one state transition. It is deliberately NOT a JWT: no payload exists to
// forge client-side, validity is enforced purely by the stored row.
// Consumption must go through Store.ConsumeVerificationToken, which flips
// used=false to true atomically.
type VerificationToken struct {
	ID          uint       `gorm:"primaryKey"`
	Token       string     `gorm:"uniqueIndex;not null"` // random hex, unguessable
	SubjectID   string     `gorm:"not null;index"`
	SubjectKind string     `gorm:"not null;default:'enduser'"`
	VerifyType  VerifyType `gorm:"not null;index"`
	Payload     string     // optional flow data, e.g. the pending email on a profile update
	ExpiresAt   time.Time
	Used        bool `gorm:"not null;default:false"`
	CreatedAt   time.Time
}

func (t *VerificationToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
