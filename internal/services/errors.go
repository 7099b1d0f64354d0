package services

import "errors"

// Sentinel errors returned by the service layer. Handlers map these onto the
// wire error codes; services never speak HTTP.
var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPlanInactive       = errors.New("no active plan registration")

	ErrFeatureDisabled    = errors.New("sign-in method disabled for this app")
	ErrAccountBlocked     = errors.New("account is blocked")
	ErrAccountNotVerified = errors.New("account email is not verified")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrEmailExists        = errors.New("email is already registered")
	ErrUsernameExists     = errors.New("username is already taken")
	ErrUseGoogleSignIn    = errors.New("account has no password; use google sign-in")
	ErrNotGoogleOnly      = errors.New("account is not a google-only account")

	// ErrLinkInvalid covers every single-use link failure: unknown token,
	// expired, or already consumed. Collapsed deliberately so a probing
	// client learns nothing about which case it hit.
	ErrLinkInvalid = errors.New("link is invalid or has expired")

	ErrPasswordTooShort = errors.New("password must be at least 6 characters")

	// ErrTicketGone covers every ticket redemption failure: unknown,
	// expired, or already redeemed.
	ErrTicketGone = errors.New("ticket is invalid, expired, or already redeemed")
)
