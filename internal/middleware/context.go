package middleware

import (
	"github.com/authwave/authwave/internal/models"
	"github.com/authwave/authwave/internal/token"

	"github.com/gin-gonic/gin"
)

// Context keys set by the middleware chain
const (
	ContextApp         = "app"
	ContextUserID      = "user_id"
	ContextDeveloperID = "developer_id"
	ContextClaims      = "claims"
)

// AppFromContext returns the App resolved by the credential gate
func AppFromContext(c *gin.Context) (*models.App, bool) {
	v, ok := c.Get(ContextApp)
	if !ok {
		return nil, false
	}
	app, ok := v.(*models.App)
	return app, ok
}

// UserIDFromContext returns the authenticated end-user id
func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// DeveloperIDFromContext returns the authenticated developer id
func DeveloperIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextDeveloperID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// ClaimsFromContext returns the verified JWT claims
func ClaimsFromContext(c *gin.Context) (*token.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*token.Claims)
	return claims, ok
}
