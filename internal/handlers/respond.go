package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/authwave/authwave/internal/services"
	"github.com/authwave/authwave/internal/token"

	"github.com/gin-gonic/gin"
)

// Wire error codes. Clients branch on these, never on messages.
const (
	CodeMissingCredentials = "MISSING_CREDENTIALS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeFeatureDisabled    = "FEATURE_DISABLED"
	CodeAccountBlocked     = "ACCOUNT_BLOCKED"
	CodeAccountNotVerified = "ACCOUNT_NOT_VERIFIED"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeUseGoogleSignin    = "USE_GOOGLE_SIGNIN"
	CodeNotGoogleAccount   = "NOT_GOOGLE_ACCOUNT"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	CodePasswordMismatch   = "PASSWORD_MISMATCH"
	CodePlanInactive       = "PLAN_INACTIVE"
	CodeTicketRedeemFailed = "TICKET_REDEEM_FAILED"
	CodeServerError        = "SERVER_ERROR"
)

// Success responses nest the payload under "data" so clients can bind a
// single envelope type regardless of endpoint.
func respondOK(c *gin.Context, data gin.H) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondCreated(c *gin.Context, data gin.H) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"success": false, "error": code, "message": message})
}

// respondServiceError maps service sentinels onto the wire taxonomy. Anything
// unmapped is a genuine server fault: logged with detail, returned without.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMissingCredentials):
		respondError(c, http.StatusBadRequest, CodeMissingCredentials, "Required credentials are missing")
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid credentials")
	case errors.Is(err, services.ErrFeatureDisabled):
		respondError(c, http.StatusForbidden, CodeFeatureDisabled, "This sign-in method is disabled for this application")
	case errors.Is(err, services.ErrAccountBlocked):
		respondError(c, http.StatusForbidden, CodeAccountBlocked, "This account has been blocked")
	case errors.Is(err, services.ErrAccountNotVerified):
		respondError(c, http.StatusForbidden, CodeAccountNotVerified, "Please verify your email address first")
	case errors.Is(err, services.ErrAccountLocked):
		respondError(c, http.StatusLocked, CodeAccountLocked, "Account temporarily locked due to repeated failed sign-ins")
	case errors.Is(err, services.ErrEmailExists):
		respondError(c, http.StatusConflict, CodeEmailExists, "An account with this email already exists")
	case errors.Is(err, services.ErrUsernameExists):
		respondError(c, http.StatusConflict, CodeUsernameExists, "This username is already taken")
	case errors.Is(err, services.ErrUseGoogleSignIn):
		respondError(c, http.StatusConflict, CodeUseGoogleSignin, "This account signs in with Google")
	case errors.Is(err, services.ErrNotGoogleOnly):
		respondError(c, http.StatusBadRequest, CodeNotGoogleAccount, "This account is not a Google-only account")
	case errors.Is(err, services.ErrLinkInvalid), errors.Is(err, token.ErrInvalidToken):
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "This link is invalid or has expired")
	case errors.Is(err, services.ErrPasswordTooShort):
		respondError(c, http.StatusBadRequest, CodePasswordTooShort, "Password must be at least 6 characters")
	case errors.Is(err, services.ErrPlanInactive):
		respondError(c, http.StatusForbidden, CodePlanInactive, "No active plan for this application")
	case errors.Is(err, services.ErrTicketGone):
		respondError(c, http.StatusGone, CodeTicketRedeemFailed, "Ticket is invalid, expired, or already redeemed")
	default:
		log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, CodeServerError, "Something went wrong")
	}
}
