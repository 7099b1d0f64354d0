package handlers

import (
	"net/http"
	"time"

	"github.com/authwave/authwave/internal/middleware"
	"github.com/authwave/authwave/internal/models"
	"github.com/authwave/authwave/internal/services"
	"github.com/authwave/authwave/internal/templates"
	"github.com/authwave/authwave/internal/token"

	"github.com/gin-gonic/gin"
)

// DeveloperHandler serves the developer portal API: account lifecycle and
// app management.
type DeveloperHandler struct {
	devs *services.DeveloperService
	apps *services.AppService
}

func NewDeveloperHandler(devs *services.DeveloperService, apps *services.AppService) *DeveloperHandler {
	return &DeveloperHandler{devs: devs, apps: apps}
}

func developerJSON(d *models.Developer) gin.H {
	return gin.H{
		"id":             d.ID,
		"email":          d.Email,
		"username":       d.Username,
		"name":           d.Name,
		"email_verified": d.EmailVerified,
		"created_at":     d.CreatedAt,
	}
}

func pairJSON(p *token.Pair) gin.H {
	return gin.H{
		"access_token":  p.AccessToken,
		"refresh_token": p.RefreshToken,
		"token_type":    "Bearer",
		"expires_at":    p.AccessExpiresAt.UTC().Format(time.RFC3339),
	}
}

// appJSON shapes an app for the portal; the secret digest never leaves
func appJSON(a *models.App) gin.H {
	return gin.H{
		"id":                  a.ID,
		"app_name":            a.AppName,
		"support_email":       a.SupportEmail,
		"api_key":             a.APIKey,
		"allow_email_signin":  a.AllowEmailSignin,
		"allow_google_signin": a.AllowGoogleSignin,
		"google_client_id":    a.GoogleClientID,
		"created_at":          a.CreatedAt,
	}
}

// Register handles POST /portal/register
func (h *DeveloperHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeMissingCredentials, "Email, username, and password are required")
		return
	}

	dev, err := h.devs.Register(services.DeveloperRegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, gin.H{
		"developer": developerJSON(dev),
		"message":   "Check your email to verify your account",
	})
}

// Login godoc
//
//	@Summary		Developer login
//	@Description	Authenticates a developer, returning an access/refresh token pair. Repeated failures lock the account temporarily.
//	@Tags			Developer
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{email=string,password=string}	true	"Credentials"
//	@Success		200		{object}	object{success=bool,data=object{access_token=string,refresh_token=string,developer=object}}	"Token pair and developer profile"
//	@Failure		401		{object}	object{success=bool,error=string,message=string}	"Invalid credentials"
//	@Failure		423		{object}	object{success=bool,error=string,message=string}	"Account temporarily locked"
//	@Router			/portal/login [post]
func (h *DeveloperHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeMissingCredentials, "Email and password are required")
		return
	}

	result, err := h.devs.Login(req.Email, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	body := pairJSON(result.Pair)
	body["developer"] = developerJSON(result.Developer)
	respondOK(c, body)
}

// Refresh handles POST /portal/refresh
func (h *DeveloperHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		respondError(c, http.StatusBadRequest, CodeMissingCredentials, "refresh_token is required")
		return
	}

	result, err := h.devs.Refresh(token.DomainDeveloper, req.RefreshToken)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pairJSON(result.Pair))
}

// Logout handles POST /portal/logout
func (h *DeveloperHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.devs.Logout(req.RefreshToken); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Logged out"})
}

// Me handles GET /portal/me (authenticated)
func (h *DeveloperHandler) Me(c *gin.Context) {
	developerID, ok := middleware.DeveloperIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
		return
	}

	dev, err := h.devs.Get(developerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"developer": developerJSON(dev)})
}

// ChangePassword handles POST /portal/change-password (authenticated)
func (h *DeveloperHandler) ChangePassword(c *gin.Context) {
	developerID, ok := middleware.DeveloperIDFromContext(c)
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

	if err := h.devs.ChangePassword(developerID, req.CurrentPassword, req.NewPassword); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Password has been changed; sign in again"})
}

// RequestPasswordReset handles POST /portal/forgot-password
func (h *DeveloperHandler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.devs.RequestPasswordReset(req.Email); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "If the account exists, a reset email has been sent"})
}

// ResetPasswordPage handles GET /portal/reset-password?token=...
func (h *DeveloperHandler) ResetPasswordPage(c *gin.Context) {
	templates.RenderTempl(c, http.StatusOK, templates.PasswordFormPage(templates.PasswordFormPageProps{
		Token:  c.Query("token"),
		Action: "/portal/reset-password",
	}))
}

// CompletePasswordReset handles POST /portal/reset-password
func (h *DeveloperHandler) CompletePasswordReset(c *gin.Context) {
	rawToken, password, confirm := resetForm(c)
	if confirm != "" && confirm != password {
		respondError(c, http.StatusBadRequest, CodePasswordMismatch, "Passwords do not match")
		return
	}

	if err := h.devs.CompletePasswordReset(rawToken, password); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Password has been reset"})
}

// CreateApp handles POST /portal/apps (authenticated)
func (h *DeveloperHandler) CreateApp(c *gin.Context) {
	developerID, ok := middleware.DeveloperIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
		return
	}

	var req struct {
		AppName           string `json:"app_name"`
		SupportEmail      string `json:"support_email"`
		AllowEmailSignin  *bool  `json:"allow_email_signin"`
		AllowGoogleSignin bool   `json:"allow_google_signin"`
		GoogleClientID    string `json:"google_client_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.AppName == "" {
		respondError(c, http.StatusBadRequest, CodeMissingCredentials, "app_name is required")
		return
	}

	app, secret, err := h.apps.CreateApp(developerID, services.CreateAppInput{
		AppName:           req.AppName,
		SupportEmail:      req.SupportEmail,
		AllowEmailSignin:  req.AllowEmailSignin,
		AllowGoogleSignin: req.AllowGoogleSignin,
		GoogleClientID:    req.GoogleClientID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	body := gin.H{"app": appJSON(app)}
	// Shown exactly once; only the digest is stored
	body["api_secret"] = secret
	respondCreated(c, body)
}

// ListApps handles GET /portal/apps (authenticated)
func (h *DeveloperHandler) ListApps(c *gin.Context) {
	developerID, ok := middleware.DeveloperIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
		return
	}

	apps, err := h.apps.ListApps(developerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	out := make([]gin.H, 0, len(apps))
	for i := range apps {
		out = append(out, appJSON(&apps[i]))
	}
	respondOK(c, gin.H{"apps": out})
}

// GetApp handles GET /portal/apps/:id (authenticated)
func (h *DeveloperHandler) GetApp(c *gin.Context) {
	developerID, ok := middleware.DeveloperIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
		return
	}

	app, err := h.apps.GetApp(developerID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"app": appJSON(app)})
}

// UpdateApp handles PATCH /portal/apps/:id (authenticated)
func (h *DeveloperHandler) UpdateApp(c *gin.Context) {
	developerID, ok := middleware.DeveloperIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
		return
	}

	var req struct {
		AppName             *string `json:"app_name"`
		SupportEmail        *string `json:"support_email"`
		AllowEmailSignin    *bool   `json:"allow_email_signin"`
		AllowGoogleSignin   *bool   `json:"allow_google_signin"`
		GoogleClientID      *string `json:"google_client_id"`
		GoogleClientSecret  *string `json:"google_client_secret"`
		ExtraFields         *string `json:"extra_fields"`
		UserEditPermissions *string `json:"user_edit_permissions"`
		AccessTokenExpires  *int    `json:"access_token_expires_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeMissingCredentials, "Request body is required")
		return
	}

	app, err := h.apps.UpdateApp(developerID, c.Param("id"), services.UpdateAppInput{
		AppName:             req.AppName,
		SupportEmail:        req.SupportEmail,
		AllowEmailSignin:    req.AllowEmailSignin,
		AllowGoogleSignin:   req.AllowGoogleSignin,
		GoogleClientID:      req.GoogleClientID,
		GoogleClientSecret:  req.GoogleClientSecret,
		ExtraFields:         req.ExtraFields,
		UserEditPermissions: req.UserEditPermissions,
		AccessTokenExpires:  req.AccessTokenExpires,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"app": appJSON(app)})
}

// RegenerateSecret handles POST /portal/apps/:id/regenerate-secret
func (h *DeveloperHandler) RegenerateSecret(c *gin.Context) {
	developerID, ok := middleware.DeveloperIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
		return
	}

	app, secret, err := h.apps.RegenerateSecret(developerID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"app": appJSON(app), "api_secret": secret})
}
