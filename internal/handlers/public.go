package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/authwave/authwave/internal/middleware"
	"github.com/authwave/authwave/internal/models"
	"github.com/authwave/authwave/internal/services"
	"github.com/authwave/authwave/internal/templates"

	"github.com/gin-gonic/gin"
)

// EndUserHandler serves the app-facing authentication API plus the
// browser-facing link-click pages.
type EndUserHandler struct {
	users *services.EndUserService
}

func NewEndUserHandler(users *services.EndUserService) *EndUserHandler {
	return &EndUserHandler{users: users}
}

// userJSON shapes an end-user for the wire; credential material never leaves
func userJSON(u *models.EndUser) gin.H {
	return gin.H{
		"id":             u.ID,
		"email":          u.Email,
		"username":       u.Username,
		"name":           u.Name,
		"email_verified": u.EmailVerified,
		"google_linked":  u.GoogleLinked,
		"has_password":   u.HasPassword(),
		"last_login":     u.LastLogin,
		"extra":          u.Extra,
		"created_at":     u.CreatedAt,
	}
}

func authResultJSON(r *services.AuthResult) gin.H {
	return gin.H{
		"access_token": r.AccessToken,
		"token_type":   "Bearer",
		"expires_at":   r.ExpiresAt.UTC().Format(time.RFC3339),
		"expires_in":   int(time.Until(r.ExpiresAt).Seconds()),
		"is_new_user":  r.IsNewUser,
		"user":         userJSON(r.User),
	}
}

func mustApp(c *gin.Context) (*models.App, bool) {
	app, ok := middleware.AppFromContext(c)
	if !ok {
		respondError(c, http.StatusInternalServerError, CodeServerError, "Something went wrong")
	}
	return app, ok
}

// Register godoc
//
//	@Summary		Register an end-user
//	@Description	Creates an end-user account for the calling app and issues an access token immediately. A verification email is sent; login requires the link to be clicked first.
//	@Tags			EndUser
//	@Accept			json
//	@Produce		json
//	@Security		AppKey
//	@Security		AppSecret
//	@Param			request	body		object{email=string,password=string,username=string,name=string}	true	"Registration payload"
//	@Success		201		{object}	object{success=bool,data=object{access_token=string,token_type=string,expires_in=int,user=object}}	"Access token and user profile"
//	@Failure		409		{object}	object{success=bool,error=string,message=string}	"Email already registered"
//	@Router			/auth/register [post]
func (h *EndUserHandler) Register(c *gin.Context) {
	app, ok := mustApp(c)
	if !ok {
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
		Name     string `json:"name"`
		Extra    string `json:"extra"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeMissingCredentials, "Email and password are required")
		return
	}

	result, err := h.users.Register(app, services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		Name:     req.Name,
		Extra:    req.Extra,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, authResultJSON(result))
}

// Login godoc
//
//	@Summary		End-user login
//	@Description	Authenticates an end-user with email and password for the calling app.
//	@Tags			EndUser
//	@Accept			json
//	@Produce		json
//	@Security		AppKey
//	@Security		AppSecret
//	@Param			request	body		object{email=string,password=string}	true	"Credentials"
//	@Success		200		{object}	object{success=bool,data=object{access_token=string,token_type=string,expires_in=int,user=object}}	"Access token and user profile"
//	@Failure		401		{object}	object{success=bool,error=string,message=string}	"Invalid credentials (generic, no enumeration)"
//	@Failure		403		{object}	object{success=bool,error=string,message=string}	"Blocked, unverified, Google-only, or feature disabled"
//	@Router			/auth/login [post]
func (h *EndUserHandler) Login(c *gin.Context) {
	app, ok := mustApp(c)
	if !ok {
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeMissingCredentials, "Email and password are required")
		return
	}

	result, err := h.users.Login(app, req.Email, req.Password)
	if err != nil {
		// On login this is a policy rejection, not a conflict: the account
		// exists, it just cannot sign in with a password.
		if errors.Is(err, services.ErrUseGoogleSignIn) {
			respondError(c, http.StatusForbidden, CodeUseGoogleSignin, "This account signs in with Google")
			return
		}
		respondServiceError(c, err)
		return
	}
	respondOK(c, authResultJSON(result))
}

// GoogleAuth godoc
//
//	@Summary		Sign in with Google
//	@Description	Validates a Google ID token, resolving or creating the end-user account. Links an existing password account with the same email.
//	@Tags			EndUser
//	@Accept			json
//	@Produce		json
//	@Security		AppKey
//	@Security		AppSecret
//	@Param			request	body		object{id_token=string}	true	"Google ID token"
//	@Success		200		{object}	object{success=bool,data=object{access_token=string,is_new_user=bool,user=object}}	"Access token and user profile, with is_new_user"
//	@Failure		401		{object}	object{success=bool,error=string,message=string}	"Invalid or replayed ID token"
//	@Failure		403		{object}	object{success=bool,error=string,message=string}	"Google sign-in disabled, or account blocked"
//	@Router			/auth/google [post]
func (h *EndUserHandler) GoogleAuth(c *gin.Context) {
	app, ok := mustApp(c)
	if !ok {
		return
	}

	var req struct {
		IDToken string `json:"id_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeMissingCredentials, "id_token is required")
		return
	}

	result, err := h.users.GoogleAuth(c.Request.Context(), app, req.IDToken)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, authResultJSON(result))
}

// VerifyEmail handles GET /auth/verify-email?token=... — a link click, so the
// response is a human-readable page rather than JSON.
func (h *EndUserHandler) VerifyEmail(c *gin.Context) {
	err := h.users.VerifyEmail(c.Query("token"))
	if err != nil {
		templates.RenderTempl(c, http.StatusUnauthorized, templates.MessagePage(templates.MessagePageProps{
			Title:   "Link invalid",
			Message: "This verification link is invalid or has expired. Request a new one and try again.",
		}))
		return
	}
	templates.RenderTempl(c, http.StatusOK, templates.MessagePage(templates.MessagePageProps{
		Success: true,
		Title:   "Email verified",
		Message: "Your email address has been verified. You can close this page and sign in.",
	}))
}

// ResendVerification handles POST /auth/resend-verification
func (h *EndUserHandler) ResendVerification(c *gin.Context) {
	app, ok := mustApp(c)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.users.ResendVerification(app, req.Email); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "If the account exists, a verification email has been sent"})
}

// RequestPasswordReset handles POST /auth/forgot-password
func (h *EndUserHandler) RequestPasswordReset(c *gin.Context) {
	app, ok := mustApp(c)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.users.RequestPasswordReset(app, req.Email); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "If the account exists, a reset email has been sent"})
}

// ResetPasswordPage handles GET /auth/reset-password?token=...
func (h *EndUserHandler) ResetPasswordPage(c *gin.Context) {
	templates.RenderTempl(c, http.StatusOK, templates.PasswordFormPage(templates.PasswordFormPageProps{
		Token:  c.Query("token"),
		Action: "/auth/reset-password",
	}))
}

// resetForm reads the reset/set-password form, accepting JSON as well so the
// endpoints work both from the served page and from an app's own UI.
func resetForm(c *gin.Context) (rawToken, password, confirm string) {
	if c.ContentType() == "application/json" {
		var req struct {
			Token    string `json:"token"`
			Password string `json:"password"`
			Confirm  string `json:"confirm"`
		}
		_ = c.ShouldBindJSON(&req)
		return req.Token, req.Password, req.Confirm
	}
	return c.PostForm("token"), c.PostForm("password"), c.PostForm("confirm")
}

// CompletePasswordReset handles POST /auth/reset-password
func (h *EndUserHandler) CompletePasswordReset(c *gin.Context) {
	rawToken, password, confirm := resetForm(c)
	if confirm != "" && confirm != password {
		respondError(c, http.StatusBadRequest, CodePasswordMismatch, "Passwords do not match")
		return
	}

	if err := h.users.CompletePasswordReset(rawToken, password); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Password has been reset"})
}

// ChangePassword handles POST /auth/change-password (authenticated)
func (h *EndUserHandler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeMissingCredentials, "Current and new passwords are required")
		return
	}

	if err := h.users.ChangePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Password has been changed"})
}

// RequestAccountDeletion handles POST /auth/delete-account
func (h *EndUserHandler) RequestAccountDeletion(c *gin.Context) {
	app, ok := mustApp(c)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.users.RequestAccountDeletion(app, req.Email); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "If the account exists, a confirmation email has been sent"})
}

// DeleteAccountPage handles GET /auth/delete-account?token=...
func (h *EndUserHandler) DeleteAccountPage(c *gin.Context) {
	rawToken := c.Query("token")
	user, err := h.users.DeletionPreview(rawToken)
	if err != nil {
		templates.RenderTempl(c, http.StatusUnauthorized, templates.MessagePage(templates.MessagePageProps{
			Title:   "Link invalid",
			Message: "This deletion link is invalid or has expired.",
		}))
		return
	}
	templates.RenderTempl(c, http.StatusOK, templates.DeleteAccountPage(templates.DeleteAccountPageProps{
		Token:           rawToken,
		Email:           user.Email,
		RequirePassword: user.HasPassword(),
		Action:          "/auth/delete-account/confirm",
	}))
}

// ConfirmAccountDeletion handles POST /auth/delete-account/confirm
func (h *EndUserHandler) ConfirmAccountDeletion(c *gin.Context) {
	rawToken := c.PostForm("token")
	password := c.PostForm("password")
	if rawToken == "" {
		var req struct {
			Token    string `json:"token"`
			Password string `json:"password"`
		}
		_ = c.ShouldBindJSON(&req)
		rawToken, password = req.Token, req.Password
	}

	if err := h.users.ConfirmAccountDeletion(rawToken, password); err != nil {
		if c.ContentType() != "application/json" {
			templates.RenderTempl(c, http.StatusUnauthorized, templates.MessagePage(templates.MessagePageProps{
				Title:   "Deletion failed",
				Message: "The link is invalid, has expired, or the password was wrong.",
			}))
			return
		}
		respondServiceError(c, err)
		return
	}

	if c.ContentType() != "application/json" {
		templates.RenderTempl(c, http.StatusOK, templates.MessagePage(templates.MessagePageProps{
			Success: true,
			Title:   "Account deleted",
			Message: "Your account has been permanently deleted.",
		}))
		return
	}
	respondOK(c, gin.H{"message": "Account has been deleted"})
}

// RequestSetPassword handles POST /auth/set-password for Google-only accounts
func (h *EndUserHandler) RequestSetPassword(c *gin.Context) {
	app, ok := mustApp(c)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.users.RequestSetPassword(app, req.Email); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "If the account exists, a set-password email has been sent"})
}

// SetPasswordPage handles GET /auth/set-password?token=...
func (h *EndUserHandler) SetPasswordPage(c *gin.Context) {
	templates.RenderTempl(c, http.StatusOK, templates.PasswordFormPage(templates.PasswordFormPageProps{
		Token:  c.Query("token"),
		Action: "/auth/set-password/confirm",
	}))
}

// CompleteSetPassword handles POST /auth/set-password/confirm
func (h *EndUserHandler) CompleteSetPassword(c *gin.Context) {
	rawToken, password, confirm := resetForm(c)
	if confirm != "" && confirm != password {
		respondError(c, http.StatusBadRequest, CodePasswordMismatch, "Passwords do not match")
		return
	}

	if err := h.users.CompleteSetPassword(rawToken, password); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Password has been set; you can now sign in with email too"})
}

// Profile handles GET /auth/profile (authenticated)
func (h *EndUserHandler) Profile(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
		return
	}

	user, err := h.users.Profile(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"user": userJSON(user)})
}

// UpdateProfile handles PATCH /auth/profile (authenticated)
func (h *EndUserHandler) UpdateProfile(c *gin.Context) {
	app, ok := mustApp(c)
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
		return
	}

	var req struct {
		Name     *string `json:"name"`
		Username *string `json:"username"`
		Extra    *string `json:"extra"`
		Email    *string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeMissingCredentials, "Request body is required")
		return
	}

	user, err := h.users.UpdateProfile(app, userID, services.UpdateProfileInput{
		Name:     req.Name,
		Username: req.Username,
		Extra:    req.Extra,
		Email:    req.Email,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"user": userJSON(user)})
}

// ConfirmEmailChange handles GET /auth/confirm-email-change?token=...
func (h *EndUserHandler) ConfirmEmailChange(c *gin.Context) {
	if err := h.users.ConfirmEmailChange(c.Query("token")); err != nil {
		templates.RenderTempl(c, http.StatusUnauthorized, templates.MessagePage(templates.MessagePageProps{
			Title:   "Link invalid",
			Message: "This confirmation link is invalid, has expired, or the address is no longer available.",
		}))
		return
	}
	templates.RenderTempl(c, http.StatusOK, templates.MessagePage(templates.MessagePageProps{
		Success: true,
		Title:   "Email updated",
		Message: "Your account email has been updated.",
	}))
}
