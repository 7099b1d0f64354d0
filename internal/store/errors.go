package store

import "errors"

var (
	// ErrTokenConsumed indicates the single-use token was already used,
	// expired, or never existed. Callers must not distinguish the cases.
	ErrTokenConsumed = errors.New("store: token already used or expired")

	// ErrEmailConflict indicates an end-user row already exists for the
	// (app, email) pair.
	ErrEmailConflict = errors.New("store: email already registered for this app")
)
