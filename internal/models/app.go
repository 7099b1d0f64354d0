package models

import (
	"time"
)

type App struct {
	ID          string `gorm:"primaryKey"`
	DeveloperID string `gorm:"not null;index"`
	GroupID     *uint  `gorm:"index"` // optional AppGroup membership

	AppName              string `gorm:"not null"`
	SupportEmail         string
	SupportEmailVerified bool `gorm:"not null;default:false"`

	// APIKey is public and stored in plaintext. APISecretHash is the sha256
	// digest of the secret; the plaintext secret is returned exactly once at
	// creation/regeneration and is never stored.
	APIKey        string `gorm:"uniqueIndex;not null"`
	APISecretHash string `gorm:"uniqueIndex;not null"`

	AllowEmailSignin  bool `gorm:"not null;default:true"`
	AllowGoogleSignin bool `gorm:"not null;default:false"`

	GoogleClientID     string
	GoogleClientSecret string

	ExtraFields         string `gorm:"type:text"` // JSON array of extra field definitions
	UserEditPermissions string `gorm:"type:text"` // JSON map of fields end-users may edit

	// AccessTokenExpiresSeconds overrides the platform default end-user token
	// lifetime when > 0.
	AccessTokenExpiresSeconds int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name used by App to `app`
func (App) TableName() string {
	return "app"
}

// AppGroup groups apps under one developer. "Common mode" flags promote a
// field from per-App to shared identity across every App in the group.
type AppGroup struct {
	ID          uint   `gorm:"primaryKey"`
	DeveloperID string `gorm:"not null;index"`
	Name        string `gorm:"not null"`

	UseCommonGoogleOAuth     bool `gorm:"not null;default:false"`
	CommonGoogleClientID     string
	CommonGoogleClientSecret string

	UseCommonExtraFields     bool `gorm:"not null;default:false"`
	UseCommonUsername        bool `gorm:"not null;default:false"`
	UseCommonName            bool `gorm:"not null;default:false"`
	UseCommonPassword        bool `gorm:"not null;default:false"`
	UseCommonExtraFieldsData bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UsageRecord is best-effort telemetry written by the credential gate. A
// failed write never fails the request it belongs to.
type UsageRecord struct {
	ID          uint   `gorm:"primaryKey"`
	AppID       string `gorm:"not null;index"`
	DeveloperID string `gorm:"not null;index"`
	Endpoint    string
	CreatedAt   time.Time
}
