package models

import (
	"time"
)

// LoginHistory records every successful sign-in with the method used
type LoginHistory struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	AppID     string `gorm:"index"`
	Method    string `gorm:"not null"` // "email" or "google"
	CreatedAt time.Time
}

// PasswordHistory is an append-only log of prior hashes, written before every
// overwrite. Audit-only: reuse is never checked against it.
type PasswordHistory struct {
	ID          uint   `gorm:"primaryKey"`
	SubjectID   string `gorm:"not null;index"`
	SubjectKind string `gorm:"not null;default:'enduser'"`
	OldHash     string `gorm:"not null"`
	CreatedAt   time.Time
}

// DeletionHistory is the audit snapshot written in the same transaction that
// hard-deletes an end-user row.
type DeletionHistory struct {
	ID           uint   `gorm:"primaryKey"`
	AppID        string `gorm:"not null;index"`
	Name         string
	Username     string
	Email        string `gorm:"not null"`
	RegisteredAt time.Time
	DeletedAt    time.Time
}
